package ingestor

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/go-errors/errors"
)

// MaxLineSize bounds a single line. Longer lines are cut to this size and
// the rest of the line is discarded.
const MaxLineSize = 4 << 20

// LogLine represents a single raw log line read from input.
type LogLine struct {
	LineNumber int
	Content    string
	// Truncated is set when the line was longer than MaxLineSize.
	Truncated bool
}

// Result wraps either a successfully read value or a read error,
// similar to Result<T, E> in Rust.
type Result[T any] struct {
	Value T
	Err   error
}

// Ingestor reads log lines from a source and streams them as Results.
type Ingestor interface {
	Ingest(ctx context.Context) (<-chan Result[*LogLine], error)
}

var _ Ingestor = (*FileIngestor)(nil)

// FileIngestor reads log lines from a file path or stdin.
type FileIngestor struct {
	Path string
}

func (f *FileIngestor) open() (io.ReadCloser, error) {
	if f.Path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, errors.Errorf("open log file: %w", err)
	}
	return file, nil
}

// Ingest reads log lines from the file (or stdin if Path is "-").
// Cancel the context to stop reading early; the goroutine will exit promptly.
func (f *FileIngestor) Ingest(ctx context.Context) (<-chan Result[*LogLine], error) {
	file, err := f.open()
	if err != nil {
		return nil, err
	}

	ch := make(chan Result[*LogLine], 100)
	go func() {
		defer close(ch)

		var fileErr error
		defer func() {
			if cerr := file.Close(); cerr != nil {
				fileErr = errors.Join(fileErr, errors.Errorf("close log file: %w", cerr))
			}
			if fileErr != nil {
				select {
				case ch <- Result[*LogLine]{Err: fileErr}:
				case <-ctx.Done():
				}
			}
		}()

		reader := bufio.NewReaderSize(file, 64*1024)
		lineNum := 0
		for {
			content, truncated, err := readLine(reader)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				fileErr = errors.Errorf("read log file: %w", err)
				return
			}
			lineNum++
			select {
			case ch <- Result[*LogLine]{Value: &LogLine{LineNumber: lineNum, Content: content, Truncated: truncated}}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// readLine reads one line without its line ending, keeping at most
// MaxLineSize bytes. It returns io.EOF only when no line is left.
func readLine(r *bufio.Reader) (string, bool, error) {
	var (
		line      []byte
		read      bool
		truncated bool
	)
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && read {
				return string(line), truncated, nil
			}
			return "", false, err
		}
		read = true
		if room := MaxLineSize - len(line); len(chunk) > room {
			chunk = chunk[:room]
			truncated = true
		}
		line = append(line, chunk...)
		if !isPrefix {
			return string(line), truncated, nil
		}
	}
}

// ReadAll returns the whole input as raw bytes, undecoded.
func (f *FileIngestor) ReadAll(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := f.open()
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(file)
	if cerr := file.Close(); cerr != nil {
		err = errors.Join(err, errors.Errorf("close log file: %w", cerr))
	}
	if err != nil {
		return nil, errors.Errorf("read log file: %w", err)
	}
	return data, nil
}

// Ingest is a convenience function that creates a FileIngestor and reads from it.
// Pass "-" to read from stdin.
func Ingest(ctx context.Context, filePath string) (<-chan Result[*LogLine], error) {
	return (&FileIngestor{Path: filePath}).Ingest(ctx)
}

// ReadAll is a convenience function that reads a whole file or stdin ("-").
func ReadAll(ctx context.Context, filePath string) ([]byte, error) {
	return (&FileIngestor{Path: filePath}).ReadAll(ctx)
}
