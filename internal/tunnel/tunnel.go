// Package tunnel reaches the relational store through an SSH bastion.
//
// Instead of forwarding a local port, the tunnel exposes DialContext so the
// Postgres drivers can open their connections directly over the SSH client.
// Only key-based authentication is supported.
package tunnel

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type Config struct {
	Host          string
	Port          int
	User          string
	KeyPath       string
	KeyPassphrase string
	// KnownHosts is a known_hosts file. When empty the host key is not
	// verified and a warning is logged.
	KnownHosts string
	Timeout    time.Duration
}

type Tunnel struct {
	client *ssh.Client
	addr   string
}

func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Tunnel, error) {
	if cfg.Host == "" || cfg.User == "" {
		return nil, fmt.Errorf("ssh host and user are required")
	}
	port := cfg.Port
	if port <= 0 {
		port = 22
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	auth, err := authMethods(cfg)
	if err != nil {
		return nil, err
	}
	hostKeyCallback, err := hostKeyCallback(cfg, logger)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	return &Tunnel{client: ssh.NewClient(sshConn, chans, reqs), addr: addr}, nil
}

// DialContext opens a connection to addr from the bastion's side.
func (t *Tunnel) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := t.client.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s via %s: %w", addr, t.addr, err)
	}
	return conn, nil
}

func (t *Tunnel) Close() error {
	if t == nil || t.client == nil {
		return nil
	}
	return t.client.Close()
}

func authMethods(cfg Config) ([]ssh.AuthMethod, error) {
	if cfg.KeyPath == "" {
		return nil, fmt.Errorf("ssh key path is required")
	}
	keyBytes, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("read ssh key %s: %w", cfg.KeyPath, err)
	}

	var signer ssh.Signer
	if cfg.KeyPassphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(cfg.KeyPassphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(keyBytes)
	}
	if err != nil {
		return nil, fmt.Errorf("parse ssh key: %w", err)
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
}

func hostKeyCallback(cfg Config, logger *slog.Logger) (ssh.HostKeyCallback, error) {
	if cfg.KnownHosts != "" {
		callback, err := knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("load known hosts %s: %w", cfg.KnownHosts, err)
		}
		return callback, nil
	}
	if logger != nil {
		logger.Warn("ssh host key verification disabled", slog.String("host", cfg.Host))
	}
	return ssh.InsecureIgnoreHostKey(), nil
}
