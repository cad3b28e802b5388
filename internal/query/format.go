package query

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	NoRowsText    = "(no rows)"
	nullText      = "NULL"
	cellSeparator = " | "
)

type Formatter struct {
	Header bool
}

// FormatAsText renders result with a header line of column names.
func FormatAsText(result Result) string {
	return Formatter{Header: true}.Format(result)
}

func (f Formatter) Format(result Result) string {
	if result.Empty() {
		return NoRowsText
	}

	lines := make([]string, 0, len(result.Rows)+1)
	if f.Header && len(result.Columns) > 0 {
		lines = append(lines, strings.Join(result.Columns, cellSeparator))
	}
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, value := range row {
			cells[i] = FormatValue(value)
		}
		lines = append(lines, strings.Join(cells, cellSeparator))
	}
	return strings.Join(lines, "\n")
}

func FormatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return nullText
	case string:
		return typed
	case []byte:
		return string(typed)
	case time.Time:
		return typed.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if typed == nil {
			return nullText
		}
		return typed.UTC().Format(time.RFC3339Nano)
	case map[string]any, []any:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}
		return string(encoded)
	case fmt.Stringer:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}
