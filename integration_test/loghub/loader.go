// Package loghub loads the structured CSV files of the Loghub benchmark
// (https://github.com/logpai/loghub) as labelled engine input.
package loghub

import (
	"encoding/csv"
	"os"
	"strings"

	"github.com/go-errors/errors"
)

// Entry is one labelled line of a Loghub dataset.
type Entry struct {
	Content string
	// Level is empty for datasets without a Level column.
	Level   string
	EventID string
}

// Dataset is a loaded Loghub CSV.
type Dataset struct {
	Name    string
	Entries []Entry
}

// Text joins every entry's content into one newline-separated log.
func (d Dataset) Text() string {
	lines := make([]string, len(d.Entries))
	for i, e := range d.Entries {
		lines[i] = e.Content
	}
	return strings.Join(lines, "\n")
}

// Events returns the number of distinct ground-truth event ids.
func (d Dataset) Events() int {
	seen := make(map[string]struct{})
	for _, e := range d.Entries {
		seen[e.EventID] = struct{}{}
	}
	return len(seen)
}

// Load reads a Loghub structured CSV. Columns are located by header name;
// Content and EventId are required.
func Load(name, csvPath string) (Dataset, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return Dataset{}, errors.Errorf("open csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil {
		return Dataset{}, errors.Errorf("read csv: %w", err)
	}
	if len(records) < 2 {
		return Dataset{}, errors.Errorf("csv has fewer than 2 rows (header + data)")
	}

	cols := map[string]int{"Content": -1, "Level": -1, "EventId": -1}
	for i, h := range records[0] {
		if _, ok := cols[h]; ok {
			cols[h] = i
		}
	}
	for _, required := range []string{"Content", "EventId"} {
		if cols[required] == -1 {
			return Dataset{}, errors.Errorf("missing required column: %s", required)
		}
	}

	ds := Dataset{Name: name, Entries: make([]Entry, 0, len(records)-1)}
	for _, row := range records[1:] {
		content, ok := column(row, cols["Content"])
		if !ok {
			continue
		}
		id, ok := column(row, cols["EventId"])
		if !ok {
			continue
		}
		level, _ := column(row, cols["Level"])
		ds.Entries = append(ds.Entries, Entry{Content: content, Level: level, EventID: id})
	}
	return ds, nil
}

func column(row []string, i int) (string, bool) {
	if i < 0 || i >= len(row) {
		return "", false
	}
	return row[i], true
}
