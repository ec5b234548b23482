package app

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/hyperifyio/goscrape/internal/extract"
)

// page is the JSON shape of one accepted page.
type page struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
	CJK   int    `json:"cjk"`
}

// manifestEntry records one file written by the dir format.
type manifestEntry struct {
	Index  int    `json:"index"`
	File   string `json:"file"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	SHA256 string `json:"sha256"`
	Chars  int    `json:"chars"`
}

type manifest struct {
	Keyword     string          `json:"keyword"`
	Version     string          `json:"version"`
	GeneratedAt time.Time       `json:"generated_at"`
	Pages       []manifestEntry `json:"pages"`
}

func toPages(accepted []extract.Accepted) []page {
	out := make([]page, len(accepted))
	for i, a := range accepted {
		out[i] = page{URL: a.URL, Title: a.Title, Text: a.Text, CJK: a.CJKCount}
	}
	return out
}

// writeJSON writes the accepted pages as an indented JSON array.
func writeJSON(w io.Writer, accepted []extract.Accepted) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(toPages(accepted))
}

// writeText writes one accepted text per line. Texts hold no whitespace, so
// lines never break inside a page.
func writeText(w io.Writer, accepted []extract.Accepted) error {
	for _, a := range accepted {
		if _, err := io.WriteString(w, a.Text+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// pageFileName returns "<slug>-<n>.txt" for the n-th page, 1-based.
func pageFileName(keyword string, n int) string {
	base := slug.Make(keyword)
	if base == "" {
		base = "page"
	}
	return fmt.Sprintf("%s-%02d.txt", base, n)
}

// writeDir writes one text file per page plus a manifest.json into dir.
func writeDir(dir, keyword string, accepted []extract.Accepted) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	m := manifest{Keyword: keyword, Version: BuildVersion, GeneratedAt: time.Now().UTC()}
	for i, a := range accepted {
		name := pageFileName(keyword, i+1)
		if err := os.WriteFile(filepath.Join(dir, name), []byte(a.Text+"\n"), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		sum := sha256.Sum256([]byte(a.Text))
		m.Pages = append(m.Pages, manifestEntry{
			Index:  i + 1,
			File:   name,
			URL:    a.URL,
			Title:  a.Title,
			SHA256: hex.EncodeToString(sum[:]),
			Chars:  len([]rune(a.Text)),
		})
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "manifest.json"), append(b, '\n'), 0o644)
}

// WriteOutput writes accepted pages in the given format. For json and text
// a path of "-" or "" means stdout.
func WriteOutput(stdout io.Writer, path, format, keyword string, accepted []extract.Accepted) error {
	if format == FormatDir {
		return writeDir(path, keyword, accepted)
	}
	w := stdout
	if path != "" && path != "-" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	switch strings.ToLower(format) {
	case FormatText:
		return writeText(w, accepted)
	case "", FormatJSON:
		return writeJSON(w, accepted)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
