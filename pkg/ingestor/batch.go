package ingestor

import (
	"context"
	"strings"

	"github.com/strrl/logsentry/pkg/parser"
)

// Batch is a run of consecutive lines analyzed together.
type Batch struct {
	Index     int
	FirstLine int
	Lines     int
	// Truncated counts lines cut to MaxLineSize.
	Truncated int
	Data      []byte
}

// Batches groups the input into batches of at least size lines. A batch is
// only cut before a line that starts a new entry, so continuation lines
// such as stack traces stay with the entry they belong to. size < 1 yields
// the whole input as one batch.
func Batches(ctx context.Context, filePath string, size int) (<-chan Result[*Batch], error) {
	lines, err := Ingest(ctx, filePath)
	if err != nil {
		return nil, err
	}

	ch := make(chan Result[*Batch], 4)
	go func() {
		defer close(ch)

		var (
			buf       []string
			first     int
			index     int
			truncated int
		)
		emit := func() bool {
			if len(buf) == 0 {
				return true
			}
			b := &Batch{
				Index:     index,
				FirstLine: first,
				Lines:     len(buf),
				Truncated: truncated,
				Data:      []byte(strings.Join(buf, "\n")),
			}
			index++
			buf = nil
			truncated = 0
			select {
			case ch <- Result[*Batch]{Value: b}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for r := range lines {
			if r.Err != nil {
				if !emit() {
					return
				}
				select {
				case ch <- Result[*Batch]{Err: r.Err}:
				case <-ctx.Done():
				}
				return
			}
			line := r.Value
			if size > 0 && len(buf) >= size && parser.IsEntryStart(line.Content) {
				if !emit() {
					return
				}
			}
			if len(buf) == 0 {
				first = line.LineNumber
			}
			buf = append(buf, line.Content)
			if line.Truncated {
				truncated++
			}
		}
		if ctx.Err() == nil {
			emit()
		}
	}()

	return ch, nil
}
