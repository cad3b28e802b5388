// Package llm holds the chat-completion data contracts and an
// OpenAI-compatible client for them.
package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrInvalidArguments = errors.New("invalid function-call arguments")

type ChatRequest struct {
	Model       string               `json:"model"`
	Messages    []Message            `json:"messages"`
	Functions   []FunctionDefinition `json:"functions,omitempty"`
	Temperature float64              `json:"temperature"`
}

// Message is one conversation turn. A nil Content is omitted on the wire and
// is distinct from an empty string.
type Message struct {
	Role         string        `json:"role"`
	Content      *string       `json:"content,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

func TextMessage(role, content string) Message {
	return Message{Role: role, Content: &content}
}

type FunctionDefinition struct {
	Name        string
	Description string
	Parameters  []FunctionParam
}

type FunctionParam struct {
	Name        string
	Type        string
	Description string
}

func (d FunctionDefinition) MarshalJSON() ([]byte, error) {
	properties := orderedmap.New[string, any]()
	required := make([]string, 0, len(d.Parameters))
	for _, param := range d.Parameters {
		schema := orderedmap.New[string, any]()
		schema.Set("type", param.Type)
		if param.Description != "" {
			schema.Set("description", param.Description)
		}
		properties.Set(param.Name, schema)
		required = append(required, param.Name)
	}

	body := orderedmap.New[string, any]()
	body.Set("name", d.Name)
	body.Set("description", d.Description)
	body.Set("parameters", map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	})
	return json.Marshal(body)
}

// FunctionCall is model output and is untrusted. Arguments keeps the raw
// payload; providers send either an object or a JSON-encoded string of one.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

func (c FunctionCall) DecodeArguments() (map[string]any, error) {
	raw := bytes.TrimSpace(c.Arguments)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}, nil
	}

	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
		raw = bytes.TrimSpace([]byte(encoded))
		if len(raw) == 0 {
			return map[string]any{}, nil
		}
	}

	if raw[0] != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidArguments)
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return args, nil
}

// StringArgument returns the named argument when it is present and a string.
func (c FunctionCall) StringArgument(name string) (string, bool, error) {
	args, err := c.DecodeArguments()
	if err != nil {
		return "", false, err
	}
	value, ok := args[name]
	if !ok || value == nil {
		return "", false, nil
	}
	text, ok := value.(string)
	if !ok {
		return "", false, fmt.Errorf("%w: %q is %T, not a string", ErrInvalidArguments, name, value)
	}
	return text, true, nil
}

type ChatResponse struct {
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Message Message `json:"message"`
}

type toolCall struct {
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// UnmarshalJSON folds the newer tool_calls shape into FunctionCall so the
// rest of the code only deals with one representation.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire struct {
		Role         string        `json:"role"`
		Content      *string       `json:"content"`
		FunctionCall *FunctionCall `json:"function_call"`
		ToolCalls    []toolCall    `json:"tool_calls"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.Role = wire.Role
	m.Content = wire.Content
	m.FunctionCall = wire.FunctionCall
	if m.FunctionCall == nil && len(wire.ToolCalls) > 0 {
		call := wire.ToolCalls[0].Function
		m.FunctionCall = &call
	}
	return nil
}
