package sqlgate

import (
	"strings"
	"testing"
)

func TestClassifyPermitsLeadingSelect(t *testing.T) {
	tests := map[string]string{
		"SELECT name FROM users":         "SELECT name FROM users",
		"  select * from users  ":        "select * from users",
		"\n\tSeLeCt 1\n":                 "SeLeCt 1",
		"selectivity_report":             "selectivity_report",
		"select pg_sleep(10)":            "select pg_sleep(10)",
		"select 1; drop table users":     "select 1; drop table users",
		"SELECT count(*) FROM cars -- x": "SELECT count(*) FROM cars -- x",
	}
	for candidate, wantQuery := range tests {
		decision := Classify(candidate)
		if !decision.Permitted {
			t.Fatalf("Classify(%q) rejected: %s", candidate, decision.Reason)
		}
		if decision.Query != wantQuery {
			t.Fatalf("Classify(%q).Query = %q, want %q", candidate, decision.Query, wantQuery)
		}
		if decision.Reason != "" {
			t.Fatalf("Classify(%q).Reason = %q", candidate, decision.Reason)
		}
	}
}

func TestClassifyRejectsEverythingElse(t *testing.T) {
	tests := []string{
		"DELETE FROM users",
		"update users set age = 1",
		"insert into users values (1)",
		"drop table users",
		"with x as (select 1) select * from x",
		"(select 1)",
		"explain select 1",
		"-- comment\nselect 1",
	}
	for _, candidate := range tests {
		decision := Classify(candidate)
		if decision.Permitted {
			t.Fatalf("Classify(%q) permitted", candidate)
		}
		if decision.Reason != ReasonNotSelect {
			t.Fatalf("Classify(%q).Reason = %q", candidate, decision.Reason)
		}
	}
}

func TestClassifyRejectsEmpty(t *testing.T) {
	for _, candidate := range []string{"", "   ", "\n\t"} {
		decision := Classify(candidate)
		if decision.Permitted || decision.Reason != ReasonEmpty {
			t.Fatalf("Classify(%q) = %#v", candidate, decision)
		}
	}
}

func TestClassifyPermitsExactlyTheSelectPrefix(t *testing.T) {
	candidates := []string{"select 1", "SELECT 1", " x select", "sel", "", "selectx"}
	for _, candidate := range candidates {
		want := strings.HasPrefix(strings.ToLower(strings.TrimSpace(candidate)), "select")
		if got := Classify(candidate).Permitted; got != want {
			t.Fatalf("Classify(%q).Permitted = %v, want %v", candidate, got, want)
		}
	}
}
