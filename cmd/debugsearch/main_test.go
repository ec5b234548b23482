package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDebugSearch_FileProvider(t *testing.T) {
	p := filepath.Join(t.TempDir(), "r.json")
	data := `[{"title":"One","url":"https://one.example/"},{"title":"Dup","url":"https://ONE.example/#x"},{"title":"Two","url":"https://two.example/"}]`
	if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	err := newCLI(&out).Run([]string{"debugsearch", "--provider", "file", "--search.file", p, "anything"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	got := out.String()
	if !strings.HasPrefix(got, "2 results\n") || !strings.Contains(got, "2. [file] Two - https://two.example/") {
		t.Fatalf("unexpected output:\n%s", got)
	}
}

func TestDebugSearch_UnknownProvider(t *testing.T) {
	if err := newCLI(&bytes.Buffer{}).Run([]string{"debugsearch", "--provider", "bing", "q"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
