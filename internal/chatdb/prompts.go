package chatdb

import (
	"fmt"
	"strings"

	"github.com/chatdb/chatdb/internal/llm"
)

const (
	RunQueryFunction = "runQuery"
	queryArgument    = "query"

	DefaultSchemaHint = "users(id, name, age)"
)

var runQueryDefinition = llm.FunctionDefinition{
	Name:        RunQueryFunction,
	Description: "Execute a SQL query and return its rows",
	Parameters: []llm.FunctionParam{
		{Name: queryArgument, Type: "string", Description: "SQL query to execute (SELECT only)"},
	},
}

const answerSystemPrompt = "You are a helper agent. Answer the user's question using only the provided SQL result. Do not invent any further data."

func round1SystemPrompt(schemaHint string) string {
	if strings.TrimSpace(schemaHint) == "" {
		schemaHint = DefaultSchemaHint
	}
	var b strings.Builder
	b.WriteString("You are a SQL assistant that answers by calling the function ")
	b.WriteString(RunQueryFunction)
	b.WriteString(".\n")
	fmt.Fprintf(&b, "Use ONLY these tables and columns: %s.\n", schemaHint)
	fmt.Fprintf(&b, "Respond only with a %s function call whose arguments.%s holds one SQL query.\n", RunQueryFunction, queryArgument)
	b.WriteString("If the question is invalid or unsafe, call the function with an empty or safe query instead.\n")
	b.WriteString("Do not make up data.")
	return b.String()
}

func buildRound1Request(model, schemaHint, question string) llm.ChatRequest {
	return llm.ChatRequest{
		Model: model,
		Messages: []llm.Message{
			llm.TextMessage(llm.RoleSystem, round1SystemPrompt(schemaHint)),
			llm.TextMessage(llm.RoleUser, question),
		},
		Functions:   []llm.FunctionDefinition{runQueryDefinition},
		Temperature: 0,
	}
}

// buildRound2Request never attaches functions; the model has to answer in text.
func buildRound2Request(model, question, evidence string) llm.ChatRequest {
	return llm.ChatRequest{
		Model: model,
		Messages: []llm.Message{
			llm.TextMessage(llm.RoleSystem, answerSystemPrompt),
			llm.TextMessage(llm.RoleUser, "Question: "+question),
			llm.TextMessage(llm.RoleAssistant, "SQL result:\n"+evidence),
		},
		Temperature: 0,
	}
}
