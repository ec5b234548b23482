package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ClearDir removes the directory and all contents, then recreates it empty.
func ClearDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty dir")
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// PurgeByAge removes entries whose SavedAt is older than maxAge. Unreadable
// or malformed metadata files are left alone.
func PurgeByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), metaSuffix) {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var e Entry
		if err := json.Unmarshal(b, &e); err != nil {
			return nil
		}
		if now.Sub(e.SavedAt) <= maxAge {
			return nil
		}
		removed++
		_ = os.Remove(path)
		_ = os.Remove(strings.TrimSuffix(path, metaSuffix) + bodySuffix)
		return nil
	})
	return removed, err
}

type lruItem struct {
	stem    string
	size    int64
	touched time.Time
}

// EnforceLimits evicts least recently used entries until the cache holds at
// most maxEntries entries and maxBytes body bytes. A zero limit is ignored.
// Recency is the body file's modification time, which LoadBody refreshes.
func EnforceLimits(dir string, maxBytes int64, maxEntries int) (int, error) {
	if maxBytes <= 0 && maxEntries <= 0 {
		return 0, nil
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	items := make([]lruItem, 0, len(ents))
	var total int64
	for _, d := range ents {
		if d.IsDir() || !strings.HasSuffix(d.Name(), bodySuffix) {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		items = append(items, lruItem{
			stem:    strings.TrimSuffix(d.Name(), bodySuffix),
			size:    info.Size(),
			touched: info.ModTime(),
		})
		total += info.Size()
	}
	sort.Slice(items, func(i, j int) bool { return items[i].touched.Before(items[j].touched) })

	removed := 0
	count := len(items)
	for _, it := range items {
		overCount := maxEntries > 0 && count > maxEntries
		overBytes := maxBytes > 0 && total > maxBytes
		if !overCount && !overBytes {
			break
		}
		_ = os.Remove(filepath.Join(dir, it.stem+bodySuffix))
		_ = os.Remove(filepath.Join(dir, it.stem+metaSuffix))
		count--
		total -= it.size
		removed++
	}
	return removed, nil
}
