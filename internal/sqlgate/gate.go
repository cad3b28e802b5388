// Package sqlgate decides whether a model-generated statement may run.
//
// The check is an allow-list on the leading keyword only: after trimming and
// lower-casing, the statement must start with "select". Nothing after the
// first token is inspected, so statements such as "select pg_sleep(10)" or
// "select 1; drop table users" are permitted. Callers that need stronger
// guarantees must rely on database permissions.
package sqlgate

import "strings"

const (
	ReasonEmpty      = "query is empty"
	ReasonNotSelect  = "only SELECT queries are allowed"
	permittedKeyword = "select"
)

type Decision struct {
	Permitted bool
	// Query is the trimmed statement in its original case.
	Query  string
	Reason string
}

func Classify(candidate string) Decision {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return Decision{Reason: ReasonEmpty}
	}
	if !strings.HasPrefix(strings.ToLower(trimmed), permittedKeyword) {
		return Decision{Query: trimmed, Reason: ReasonNotSelect}
	}
	return Decision{Permitted: true, Query: trimmed}
}
