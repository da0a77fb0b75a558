package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/tickmaker/pkg/market"
)

// Entry is one journaled cycle.
type Entry struct {
	Session    string                       `json:"session"`
	Timestamp  int64                        `json:"timestamp"`
	Position   map[string]int64             `json:"position,omitempty"`
	FairValues map[string]decimal.Decimal   `json:"fairValues,omitempty"`
	Orders     map[string]market.OrderBatch `json:"orders"`
	TraderData string                       `json:"traderData"`
}

type Journal interface {
	Append(e Entry) error
	Close() error
}

type NopJournal struct{}

func NewNopJournal() *NopJournal           { return &NopJournal{} }
func (j *NopJournal) Append(_ Entry) error { return nil }
func (j *NopJournal) Close() error         { return nil }

// FileJournal appends one JSON object per line.
type FileJournal struct {
	mu sync.Mutex
	f  *os.File
}

func NewFileJournal(path string) (*FileJournal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileJournal{f: f}, nil
}

func (j *FileJournal) Append(e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err = fmt.Fprintln(j.f, string(line))
	return err
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

// ReadJournal parses every entry written by FileJournal.
func ReadJournal(r io.Reader) ([]Entry, error) {
	var out []Entry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("journal line %d: %w", line, err)
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

var _ Journal = (*NopJournal)(nil)
var _ Journal = (*FileJournal)(nil)
