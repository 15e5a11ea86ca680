// Package state loads and saves the document that carries the last run time
// and the seen URL list between runs.
package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ppiankov/readdigest/internal/normalize"
)

// State is the persisted run state. A nil LastRun means no previous run.
type State struct {
	LastRun  *time.Time
	SeenURLs []string
}

// Store loads and saves State. Load must treat a missing or undecodable
// document as the empty State.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, st State) error
}

// document is the on-disk shape. Fields are declared in key order so the
// encoding is stable.
type document struct {
	LastRun  *string  `json:"last_run,omitempty"`
	SeenURLs []string `json:"seen_urls"`
}

// Decode parses a state document. Empty input decodes to the empty State.
// The seen list is cleaned of empty and duplicate URLs, keeping order.
func Decode(data []byte) (State, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return State{}, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}

	var st State
	if doc.LastRun != nil {
		st.LastRun = normalize.ParseTime(*doc.LastRun)
	}
	st.SeenURLs = clean(doc.SeenURLs)
	return st, nil
}

// Encode renders st with sorted keys and two-space indentation.
func Encode(st State) ([]byte, error) {
	doc := document{SeenURLs: clean(st.SeenURLs)}
	if st.LastRun != nil {
		s := st.LastRun.UTC().Format(time.RFC3339Nano)
		doc.LastRun = &s
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return append(data, '\n'), nil
}

func clean(urls []string) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
