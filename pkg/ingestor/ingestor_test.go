package ingestor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestIngest(t *testing.T) {
	lines := []string{
		"2024-01-01 INFO Starting service",
		"2024-01-01 WARN Disk space low",
		"2024-01-01 ERROR Connection refused",
		"2024-01-01 INFO Retry succeeded",
		"2024-01-01 DEBUG Heartbeat OK",
	}
	path := writeTemp(t, strings.Join(lines, "\n")+"\n")

	ch, err := Ingest(context.Background(), path)
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}

	var got []*LogLine
	for r := range ch {
		if r.Err != nil {
			t.Fatalf("unexpected error: %v", r.Err)
		}
		got = append(got, r.Value)
	}

	if len(got) != len(lines) {
		t.Fatalf("expected %d lines, got %d", len(lines), len(got))
	}
	for i, ll := range got {
		if ll.LineNumber != i+1 {
			t.Errorf("line %d: expected LineNumber %d, got %d", i, i+1, ll.LineNumber)
		}
		if ll.Content != lines[i] {
			t.Errorf("line %d: expected Content %q, got %q", i, lines[i], ll.Content)
		}
	}
}

func TestIngestFileNotFound(t *testing.T) {
	_, err := Ingest(context.Background(), "/nonexistent/path/to/file.log")
	if err == nil {
		t.Fatal("expected error for nonexistent file, got nil")
	}
}

func TestIngestCancel(t *testing.T) {
	path := writeTemp(t, strings.Repeat("2024-01-01 INFO line\n", 1000))
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := Ingest(ctx, path)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	<-ch
	cancel()

	n := 0
	for range ch {
		n++
	}
	if n >= 999 {
		t.Errorf("reader did not stop after cancel, drained %d lines", n)
	}
}

func TestReadAll(t *testing.T) {
	content := "line one\r\nline \x00two\n"
	path := writeTemp(t, content)

	got, err := ReadAll(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != content {
		t.Errorf("ReadAll = %q, want raw bytes %q", got, content)
	}

	if _, err := ReadAll(context.Background(), "/nonexistent/file.log"); err == nil {
		t.Error("expected error for nonexistent file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ReadAll(ctx, path); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func collectBatches(t *testing.T, path string, size int) []*Batch {
	t.Helper()
	ch, err := Batches(context.Background(), path, size)
	if err != nil {
		t.Fatalf("Batches: %v", err)
	}
	var out []*Batch
	for r := range ch {
		if r.Err != nil {
			t.Fatalf("batch error: %v", r.Err)
		}
		out = append(out, r.Value)
	}
	return out
}

func TestBatchesKeepContinuationLines(t *testing.T) {
	content := strings.Join([]string{
		"2024-01-01 10:00:00 INFO start",
		"2024-01-01 10:00:01 ERROR panic",
		"  at main.go:10",
		"  at main.go:20",
		"2024-01-01 10:00:02 INFO recovered",
		"2024-01-01 10:00:03 INFO done",
	}, "\n")
	path := writeTemp(t, content)

	got := collectBatches(t, path, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(got))
	}
	if got[0].Index != 0 || got[0].FirstLine != 1 || got[0].Lines != 4 {
		t.Errorf("batch 0 = index %d first %d lines %d", got[0].Index, got[0].FirstLine, got[0].Lines)
	}
	if !strings.HasSuffix(string(got[0].Data), "at main.go:20") {
		t.Errorf("stack trace split across batches: %q", got[0].Data)
	}
	if got[1].Index != 1 || got[1].FirstLine != 5 || got[1].Lines != 2 {
		t.Errorf("batch 1 = index %d first %d lines %d", got[1].Index, got[1].FirstLine, got[1].Lines)
	}
}

func TestBatchesWholeInput(t *testing.T) {
	path := writeTemp(t, "a\nb\nc\n")
	got := collectBatches(t, path, 0)
	if len(got) != 1 || got[0].Lines != 3 || string(got[0].Data) != "a\nb\nc" {
		t.Fatalf("batches = %+v", got)
	}
}

func oversizedLog(t *testing.T) (string, []string) {
	t.Helper()
	lines := []string{
		"2024-01-01 10:00:00 INFO before blob",
		strings.Repeat("x", MaxLineSize+1<<20),
		"2024-01-01 10:00:01 INFO after blob",
	}
	return writeTemp(t, strings.Join(lines, "\n")+"\n"), lines
}

func TestIngestTruncatesOversizedLine(t *testing.T) {
	path, lines := oversizedLog(t)

	ch, err := Ingest(context.Background(), path)
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	var got []*LogLine
	for r := range ch {
		if r.Err != nil {
			t.Fatalf("unexpected error: %v", r.Err)
		}
		got = append(got, r.Value)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(got))
	}
	if !got[1].Truncated || len(got[1].Content) != MaxLineSize {
		t.Errorf("line 2: truncated=%v len=%d, want truncated to %d", got[1].Truncated, len(got[1].Content), MaxLineSize)
	}
	if got[0].Truncated || got[2].Truncated {
		t.Error("short lines marked truncated")
	}
	if got[2].Content != lines[2] || got[2].LineNumber != 3 {
		t.Errorf("line after blob = %d %q", got[2].LineNumber, got[2].Content)
	}
}

func TestBatchesSurviveOversizedLine(t *testing.T) {
	path, lines := oversizedLog(t)

	ch, err := Batches(context.Background(), path, 1)
	if err != nil {
		t.Fatalf("Batches returned error: %v", err)
	}
	var got []*Batch
	for r := range ch {
		if r.Err != nil {
			t.Fatalf("unexpected error: %v", r.Err)
		}
		got = append(got, r.Value)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(got))
	}
	if got[0].Lines != 2 || got[0].Truncated != 1 {
		t.Errorf("batch 0: lines=%d truncated=%d, want 2 and 1", got[0].Lines, got[0].Truncated)
	}
	if want := len(lines[0]) + 1 + MaxLineSize; len(got[0].Data) != want {
		t.Errorf("batch 0: %d bytes, want %d", len(got[0].Data), want)
	}
	if got[1].FirstLine != 3 || string(got[1].Data) != lines[2] || got[1].Truncated != 0 {
		t.Errorf("batch 1 = first %d, truncated %d, %q", got[1].FirstLine, got[1].Truncated, got[1].Data)
	}
}

func TestIngestKeepsEmptyAndUnterminatedLines(t *testing.T) {
	path := writeTemp(t, "a\r\n\nlast")
	ch, err := Ingest(context.Background(), path)
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	var got []string
	for r := range ch {
		if r.Err != nil {
			t.Fatalf("unexpected error: %v", r.Err)
		}
		got = append(got, r.Value.Content)
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "" || got[2] != "last" {
		t.Fatalf("lines = %q", got)
	}
}

func TestBatchesCancel(t *testing.T) {
	path := writeTemp(t, strings.Repeat("2024-01-01 10:00:00 INFO line\n", 5000))
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := Batches(ctx, path, 10)
	if err != nil {
		t.Fatalf("Batches: %v", err)
	}
	if r := <-ch; r.Err != nil || r.Value.Lines != 10 {
		t.Fatalf("first batch = %+v", r)
	}
	cancel()

	n := 0
	for range ch {
		n++
	}
	if n >= 499 {
		t.Errorf("batcher did not stop after cancel, drained %d batches", n)
	}
}
