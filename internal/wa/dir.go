package wa

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileError records a payload file that could not be parsed.
type FileError struct {
	File string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

// ReadDir parses every *.json file in dir, in file name order. Files that do
// not parse are reported in the second return value and otherwise skipped.
func ReadDir(dir string) ([]*Parsed, []FileError, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read payload dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var (
		parsed []*Parsed
		failed []FileError
	)
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			failed = append(failed, FileError{File: name, Err: err})
			continue
		}
		p, err := Parse(raw)
		if err != nil {
			failed = append(failed, FileError{File: name, Err: err})
			continue
		}
		p.Source = name
		parsed = append(parsed, p)
	}
	return parsed, failed, nil
}

// ParseBatch accepts either one payload object or a JSON array of payloads.
func ParseBatch(raw []byte) ([]*Parsed, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode payload batch: %w", err)
		}
		out := make([]*Parsed, 0, len(items))
		for i, item := range items {
			p, err := Parse(item)
			if err != nil {
				return nil, fmt.Errorf("payload %d: %w", i, err)
			}
			out = append(out, p)
		}
		return out, nil
	}
	p, err := Parse(trimmed)
	if err != nil {
		return nil, err
	}
	return []*Parsed{p}, nil
}

// MessagesFirst returns ps reordered so that messages precede status
// updates, keeping relative order within each group.
func MessagesFirst(ps []*Parsed) []*Parsed {
	out := make([]*Parsed, 0, len(ps))
	for _, p := range ps {
		if !p.IsStatus() {
			out = append(out, p)
		}
	}
	for _, p := range ps {
		if p.IsStatus() {
			out = append(out, p)
		}
	}
	return out
}
