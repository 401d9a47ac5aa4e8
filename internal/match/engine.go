package match

import (
	"fmt"

	"github.com/qelp/esxi-log-triage/internal/logfile"
	"github.com/qelp/esxi-log-triage/internal/rules"
)

// Record is one classified occurrence: the full named-group mapping of the
// ContentPattern match plus the injected "Access Type" and "Source" fields.
// Columns preserves the capture-group declaration order so CSV headers stay
// stable per content pattern.
type Record struct {
	Columns  []string
	Values   map[string]string
	Timeline bool
}

// Get returns the value of a column, or "" when absent.
func (r Record) Get(column string) string {
	return r.Values[column]
}

// Row projects the record's values into its column order.
func (r Record) Row() []string {
	row := make([]string, len(r.Columns))
	for i, col := range r.Columns {
		row[i] = r.Values[col]
	}
	return row
}

// File runs the identifier's content patterns over every line of the log
// file at path and returns the emitted records.
//
// Matching is non-exclusive at all three levels: every ContentPattern is
// searched against every line, and each match is expanded through every
// AccessType and every DescriptionHandler; each handler hit emits its own
// record. A single line therefore yields zero or more records.
func File(path string, id *rules.LogIdentifier) ([]Record, error) {
	reader, err := logfile.Open(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var records []Record
	for reader.Scan() {
		line := reader.Text()
		for i := range id.ContentPatterns {
			cp := &id.ContentPatterns[i]
			matched, err := Line(line, cp, path)
			if err != nil {
				return nil, fmt.Errorf("file %s: %w", path, err)
			}
			records = append(records, matched...)
		}
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return records, nil
}

// Line expands a single content pattern against one line. source is injected
// into every emitted record's "Source" field.
func Line(line string, cp *rules.ContentPattern, source string) ([]Record, error) {
	groups := cp.Regex.FindStringSubmatch(line)
	if groups == nil {
		return nil, nil
	}

	values := make(map[string]string)
	for i, name := range cp.Regex.SubexpNames() {
		if name != "" {
			values[name] = groups[i]
		}
	}

	description, ok := values["Description"]
	if !ok {
		// Every content pattern must capture Description; its absence is a
		// defect in the rule table, not a property of the line.
		return nil, fmt.Errorf("content pattern %q defines no Description group", cp.Regex.String())
	}

	columns := append(cp.Columns(), "Access Type", "Source")

	var records []Record
	for _, at := range cp.AccessTypes {
		for _, handler := range at.Handlers {
			if !handler.Regex.MatchString(description) {
				continue
			}
			rec := Record{
				Columns:  columns,
				Values:   make(map[string]string, len(values)+2),
				Timeline: handler.Timeline,
			}
			for k, v := range values {
				rec.Values[k] = v
			}
			rec.Values["Access Type"] = at.Name
			rec.Values["Source"] = source
			records = append(records, rec)
		}
	}
	return records, nil
}
