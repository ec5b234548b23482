package search

import (
	"testing"

	"golang.org/x/text/language"
)

func TestFinalize_UniqueKeepsFirstOccurrence(t *testing.T) {
	in := []Result{
		{Title: "A", URL: "https://example.com/page?utm_source=x&utm_medium=y"},
		{Title: "A dup", URL: "https://EXAMPLE.com/page"},
		{Title: "A frag", URL: "https://example.com/page#top"},
		{Title: "B", URL: " https://example.com/other "},
		{Title: "blank", URL: "  "},
	}
	out := finalize(in, Request{Unique: true})
	if len(out) != 2 {
		t.Fatalf("expected 2 after dedup, got %d: %+v", len(out), out)
	}
	if out[0].Title != "A" || out[0].URL != "https://example.com/page?utm_source=x&utm_medium=y" {
		t.Fatalf("first occurrence not kept verbatim: %+v", out[0])
	}
	if out[1].URL != "https://example.com/other" {
		t.Fatalf("url not trimmed: %q", out[1].URL)
	}
}

func TestFinalize_WithoutUniqueKeepsDuplicates(t *testing.T) {
	in := []Result{{URL: "https://a.example/"}, {URL: "https://a.example/"}, {URL: "https://b.example/"}}
	out := finalize(in, Request{Limit: 2})
	if len(out) != 2 || out[1].URL != "https://a.example/" {
		t.Fatalf("unexpected: %+v", out)
	}
}

func TestRequestLanguageHelpers(t *testing.T) {
	cases := []struct {
		tag         language.Tag
		base        string
		traditional bool
	}{
		{language.Und, "zh", false},
		{language.MustParse("zh-TW"), "zh", true},
		{language.MustParse("zh-Hant"), "zh", true},
		{language.MustParse("zh-CN"), "zh", false},
		{language.English, "en", false},
	}
	for _, c := range cases {
		r := Request{Language: c.tag}
		if got := r.baseLanguage(); got != c.base {
			t.Errorf("%v base = %q, want %q", c.tag, got, c.base)
		}
		if got := r.traditional(); got != c.traditional {
			t.Errorf("%v traditional = %v, want %v", c.tag, got, c.traditional)
		}
	}
}

func TestURLs(t *testing.T) {
	got := URLs([]Result{{URL: "a"}, {URL: "b"}})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected: %v", got)
	}
}
