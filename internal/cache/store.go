package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Entry is the metadata kept next to each cached page body. ETag and
// LastModified drive conditional revalidation on the next fetch.
type Entry struct {
	URL          string    `json:"url"`
	ContentType  string    `json:"content_type"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"last_modified"`
	Size         int64     `json:"size"`
	SavedAt      time.Time `json:"saved_at"`
}

// Store keeps fetched pages on disk as <key>.meta.json and <key>.body, where
// key is sha256(url). A nil *Store is a valid, disabled cache.
type Store struct {
	Dir string
	// StrictPerms restricts the directory to 0700 and files to 0600.
	StrictPerms bool
}

// ErrDisabled is returned by every operation on a Store without a directory.
var ErrDisabled = errors.New("cache dir not configured")

func (s *Store) dirPerm() os.FileMode {
	if s.StrictPerms {
		return 0o700
	}
	return 0o755
}

func (s *Store) filePerm() os.FileMode {
	if s.StrictPerms {
		return 0o600
	}
	return 0o644
}

func (s *Store) ensureDir() error {
	if s == nil || s.Dir == "" {
		return ErrDisabled
	}
	if err := os.MkdirAll(s.Dir, s.dirPerm()); err != nil {
		return err
	}
	if s.StrictPerms {
		if info, err := os.Stat(s.Dir); err == nil && info.Mode()&0o777 != 0o700 {
			_ = os.Chmod(s.Dir, 0o700)
		}
	}
	return nil
}

// Key returns the file stem used for url.
func Key(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])
}

func (s *Store) metaPath(key string) string { return filepath.Join(s.Dir, key+metaSuffix) }
func (s *Store) bodyPath(key string) string { return filepath.Join(s.Dir, key+bodySuffix) }

const (
	metaSuffix = ".meta.json"
	bodySuffix = ".body"
)

// LoadMeta returns the cached metadata for url.
func (s *Store) LoadMeta(_ context.Context, url string) (*Entry, error) {
	if err := s.ensureDir(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.metaPath(Key(url)))
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	return &e, nil
}

// LoadBody returns the cached body for url and marks it recently used.
func (s *Store) LoadBody(_ context.Context, url string) ([]byte, error) {
	if err := s.ensureDir(); err != nil {
		return nil, err
	}
	p := s.bodyPath(Key(url))
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	_ = os.Chtimes(p, now, now)
	return b, nil
}

// Save writes body and metadata for url. The metadata file is replaced
// atomically so readers never see a half-written entry.
func (s *Store) Save(_ context.Context, url, contentType, etag, lastModified string, body []byte) error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	key := Key(url)
	if err := os.WriteFile(s.bodyPath(key), body, s.filePerm()); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if s.StrictPerms {
		_ = os.Chmod(s.bodyPath(key), 0o600)
	}
	meta := Entry{
		URL:          url,
		ContentType:  contentType,
		ETag:         etag,
		LastModified: lastModified,
		Size:         int64(len(body)),
		SavedAt:      time.Now().UTC(),
	}
	data, err := json.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	tmp := s.metaPath(key) + ".tmp"
	if err := os.WriteFile(tmp, data, s.filePerm()); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	if s.StrictPerms {
		_ = os.Chmod(tmp, 0o600)
	}
	return os.Rename(tmp, s.metaPath(key))
}
