package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStore_SaveAndLoad(t *testing.T) {
	t.Parallel()
	s := &Store{Dir: t.TempDir()}
	ctx := context.Background()
	if err := s.Save(ctx, "https://example.com/a", "text/html", `"e1"`, "Mon, 02 Jan 2006 15:04:05 GMT", []byte("<p>hi</p>")); err != nil {
		t.Fatalf("save: %v", err)
	}
	meta, err := s.LoadMeta(ctx, "https://example.com/a")
	if err != nil {
		t.Fatalf("load meta: %v", err)
	}
	if meta.ETag != `"e1"` || meta.ContentType != "text/html" || meta.Size != 9 {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	body, err := s.LoadBody(ctx, "https://example.com/a")
	if err != nil {
		t.Fatalf("load body: %v", err)
	}
	if string(body) != "<p>hi</p>" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestStore_Disabled(t *testing.T) {
	var s *Store
	if _, err := s.LoadMeta(context.Background(), "https://example.com"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if err := (&Store{}).Save(context.Background(), "u", "", "", "", nil); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestStore_StrictPerms(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "pages")
	s := &Store{Dir: dir, StrictPerms: true}
	url := "https://example.com/x"
	if err := s.Save(context.Background(), url, "text/html", "etag", "", []byte("hello")); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if got := info.Mode() & 0o777; got != 0o700 {
		t.Fatalf("dir mode = %o, want 0700", got)
	}
	key := Key(url)
	for _, f := range []string{filepath.Join(dir, key+".body"), filepath.Join(dir, key+".meta.json")} {
		finfo, err := os.Stat(f)
		if err != nil {
			t.Fatalf("stat %s: %v", f, err)
		}
		if got := finfo.Mode() & 0o777; got != 0o600 {
			t.Fatalf("%s mode = %o, want 0600", f, got)
		}
	}
}

func TestEnforceLimits_Count(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := &Store{Dir: dir}
	urls := []string{"https://a.com/1", "https://a.com/2", "https://a.com/3"}
	for i, u := range urls {
		if err := s.Save(context.Background(), u, "text/html", "", "", []byte(fmt.Sprintf("body-%d", i))); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	// Touch the second so the first is least recently used.
	if _, err := s.LoadBody(context.Background(), urls[1]); err != nil {
		t.Fatalf("touch body: %v", err)
	}
	removed, err := EnforceLimits(dir, 0, 2)
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := s.LoadBody(context.Background(), urls[0]); err == nil {
		t.Fatalf("expected oldest evicted")
	}
	if _, err := s.LoadBody(context.Background(), urls[1]); err != nil {
		t.Fatalf("expected touched entry kept: %v", err)
	}
}

func TestEnforceLimits_Bytes(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := &Store{Dir: dir}
	if err := s.Save(context.Background(), "https://b.com/1", "text/html", "", "", []byte("1111111111")); err != nil {
		t.Fatalf("save 1: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := s.Save(context.Background(), "https://b.com/2", "text/html", "", "", []byte("22")); err != nil {
		t.Fatalf("save 2: %v", err)
	}
	removed, err := EnforceLimits(dir, 5, 0)
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, err := s.LoadBody(context.Background(), "https://b.com/2"); err != nil {
		t.Fatalf("expected small recent entry kept: %v", err)
	}
}

func TestPurgeByAge(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := &Store{Dir: dir}
	if err := s.Save(context.Background(), "https://c.com/old", "text/html", "", "", []byte("old")); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Rewrite SavedAt into the past.
	metaPath := filepath.Join(dir, Key("https://c.com/old")+".meta.json")
	old := fmt.Sprintf(`{"url":"https://c.com/old","saved_at":%q}`, time.Now().Add(-48*time.Hour).UTC().Format(time.RFC3339))
	if err := os.WriteFile(metaPath, []byte(old), 0o644); err != nil {
		t.Fatalf("rewrite meta: %v", err)
	}
	if err := s.Save(context.Background(), "https://c.com/new", "text/html", "", "", []byte("new")); err != nil {
		t.Fatalf("save: %v", err)
	}
	removed, err := PurgeByAge(dir, 24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 purged, got %d", removed)
	}
	if _, err := os.Stat(filepath.Join(dir, Key("https://c.com/old")+".body")); !os.IsNotExist(err) {
		t.Fatalf("expected old body removed, stat err=%v", err)
	}
}

func TestClearDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "x.body"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ClearDir(dir); err != nil {
		t.Fatalf("clear: %v", err)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(ents) != 0 {
		t.Fatalf("expected empty dir, got %d entries", len(ents))
	}
	if err := ClearDir("  "); err == nil {
		t.Fatalf("expected error for blank dir")
	}
}
