package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

const exportsRoot = "exports"

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildExportPath returns exports/<table>/date=YYYY-MM-DD/<id>.<ext> with the
// date taken in UTC.
func BuildExportPath(table string, at time.Time, id, ext string) (string, error) {
	if err := validatePathComponent(table, "table name"); err != nil {
		return "", err
	}
	if err := validatePathComponent(id, "export id"); err != nil {
		return "", err
	}
	ext = strings.TrimPrefix(ext, ".")
	if err := validatePathComponent(ext, "extension"); err != nil {
		return "", err
	}

	ts := at.UTC()
	return path.Join(
		exportsRoot,
		table,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		id+"."+ext,
	), nil
}

// ExportPrefix is the listing prefix for every archived export of table.
func ExportPrefix(table string) (string, error) {
	if err := validatePathComponent(table, "table name"); err != nil {
		return "", err
	}
	return exportsRoot + "/" + table + "/", nil
}

// IsExportKey reports whether key lies under table's export prefix.
func IsExportKey(table, key string) bool {
	prefix, err := ExportPrefix(table)
	if err != nil {
		return false
	}
	cleaned := path.Clean(key)
	return strings.HasPrefix(cleaned, prefix) && cleaned == key
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
