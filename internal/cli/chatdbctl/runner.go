// Package chatdbctl is the operator CLI for a running chatdb API.
package chatdbctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

// requestError marks failures that happen after the command line was
// accepted. Everything else cobra reports is a usage error.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }

func (e *requestError) Unwrap() error { return e.err }

type runner struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	stdout  io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	r := &runner{stdout: stdout}
	root := newRootCommand(r, defaults)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		_, _ = fmt.Fprintln(stderr, reqErr.Error())
		return 1
	}
	_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
	_, _ = fmt.Fprint(stderr, root.UsageString())
	return 2
}

func newRootCommand(r *runner, defaults Options) *cobra.Command {
	root := &cobra.Command{
		Use:           "chatdbctl",
		Short:         "Talk to a running chatdb API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			r.client = defaults.HTTPClient
			if r.client == nil {
				r.client = &http.Client{Timeout: r.timeout}
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unknown command %q", args[0])
			}
			return errors.New("a command is required")
		},
		Args: cobra.ArbitraryArgs,
	}
	root.PersistentFlags().StringVar(&r.baseURL, "base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "chatdb API base URL")
	root.PersistentFlags().DurationVar(&r.timeout, "timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 30s)")

	root.AddCommand(
		&cobra.Command{
			Use:   "health",
			Short: "GET /v1/health",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return r.do(cmd.Context(), http.MethodGet, "/v1/health", "", nil)
			},
		},
		&cobra.Command{
			Use:   "ready",
			Short: "GET /v1/ready",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return r.do(cmd.Context(), http.MethodGet, "/v1/ready", "", nil)
			},
		},
		&cobra.Command{
			Use:   "ask <question...>",
			Short: "POST /api/chat-db with the question as plain text",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				question := strings.Join(args, " ")
				return r.do(cmd.Context(), http.MethodPost, "/api/chat-db", "text/plain; charset=utf-8", strings.NewReader(question))
			},
		},
		&cobra.Command{
			Use:   "chat <prompt...>",
			Short: "POST /api/chat to the table consultant",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				payload, err := json.Marshal(map[string]string{"prompt": strings.Join(args, " ")})
				if err != nil {
					return &requestError{err: err}
				}
				return r.do(cmd.Context(), http.MethodPost, "/api/chat", "application/json", bytes.NewReader(payload))
			},
		},
		newExportCommand(r),
	)
	return root
}

func newExportCommand(r *runner) *cobra.Command {
	var archive bool
	cmd := &cobra.Command{
		Use:   "export <table>",
		Short: "GET /v1/export/{table}",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if archive {
				query.Set("archive", "true")
			}
			path := "/v1/export/" + url.PathEscape(args[0])
			if encoded := query.Encode(); encoded != "" {
				path += "?" + encoded
			}
			return r.do(cmd.Context(), http.MethodGet, path, "", nil)
		},
	}
	cmd.Flags().BoolVar(&archive, "archive", false, "write the export to the object store instead of printing it")
	return cmd
}

func (r *runner) do(ctx context.Context, method, path, contentType string, body io.Reader) error {
	endpoint := strings.TrimRight(r.baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &requestError{err: fmt.Errorf("request failed: %w", err)}
	}
	req.Header.Set("Accept", "application/json, text/plain")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return &requestError{err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &requestError{err: fmt.Errorf("request failed: %w", err)}
	}
	if resp.StatusCode >= 400 {
		return &requestError{err: fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(responseBody)))}
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(r.stdout, pretty)
		return nil
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(r.stdout, string(responseBody))
	}
	return nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
