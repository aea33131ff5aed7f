package batch

import (
	"context"
	"encoding/json"
	"os"
	"sync"
)

// FileSink appends batches to a file, one JSON document per line.
type FileSink struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// NewFileSink creates (or truncates) path.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &FileSink{f: f, enc: json.NewEncoder(f)}, nil
}

// Write implements Sink.
func (s *FileSink) Write(ctx context.Context, b Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(b)
}

// Close implements Sink.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// MemorySink keeps batches in memory. Fail, when set, is returned for the
// batch rows it lists instead of storing them.
type MemorySink struct {
	mu      sync.Mutex
	Batches []Batch
	Fail    map[int]error
}

// Write implements Sink.
func (s *MemorySink) Write(ctx context.Context, b Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Fail[b.Row]; err != nil {
		return err
	}
	s.Batches = append(s.Batches, b)
	return nil
}

// Close implements Sink.
func (s *MemorySink) Close() error { return nil }

var (
	_ Sink = (*FileSink)(nil)
	_ Sink = (*MemorySink)(nil)
)
