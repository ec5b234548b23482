package search

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
)

// FileProvider loads search results from a local JSON file for offline/testing use.
// The JSON file format is an array of objects: {"title": "...", "url": "...", "snippet": "..."}.
// Results are returned in file order. With MatchQuery set only entries whose
// title or snippet contains the query are kept.
type FileProvider struct {
	Path       string
	MatchQuery bool
}

func (f *FileProvider) Name() string { return "file" }

func (f *FileProvider) Search(_ context.Context, req Request) ([]Result, error) {
	if strings.TrimSpace(f.Path) == "" {
		return nil, errors.New("file provider path is empty")
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	var raw []Result
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(req.Query))
	out := make([]Result, 0, len(raw))
	for _, r := range raw {
		if f.MatchQuery && q != "" &&
			!strings.Contains(strings.ToLower(r.Title), q) &&
			!strings.Contains(strings.ToLower(r.Snippet), q) {
			continue
		}
		r.Source = f.Name()
		out = append(out, r)
	}
	return finalize(out, req), nil
}
