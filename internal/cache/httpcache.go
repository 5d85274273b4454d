package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ErrMiss is returned by a Store when no entry exists for a key.
var ErrMiss = errors.New("cache miss")

// HTTPEntry captures enough metadata to support conditional revalidation.
type HTTPEntry struct {
	URL           string    `json:"url"`
	Discriminator string    `json:"discriminator,omitempty"`
	ContentType   string    `json:"content_type"`
	ETag          string    `json:"etag"`
	LastModified  string    `json:"last_modified"`
	SavedAt       time.Time `json:"saved_at"`
}

// Store persists response bodies and their validators under a request
// identity key.
type Store interface {
	LoadMeta(ctx context.Context, key string) (*HTTPEntry, error)
	LoadBody(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, meta HTTPEntry, body []byte) error
}

// Key derives the request identity key. Two requests for the same URL
// share an entry only when their discriminators are equal too.
func Key(url, discriminator string) string {
	h := sha256.Sum256([]byte(url + "\x00" + discriminator))
	return hex.EncodeToString(h[:])
}

var _ Store = (*HTTPCache)(nil)

// HTTPCache stores responses on disk as <key>.meta.json and <key>.body.
// No eviction policy is included; see PurgeHTTPCacheByAge.
type HTTPCache struct {
	Dir string
	// StrictPerms, when true, enforces 0700 on the cache directory and 0600
	// on files.
	StrictPerms bool
}

func (c *HTTPCache) ensureDir() error {
	if c == nil || c.Dir == "" {
		return errors.New("cache dir not configured")
	}
	perm := os.FileMode(0o755)
	if c.StrictPerms {
		perm = 0o700
	}
	if err := os.MkdirAll(c.Dir, perm); err != nil {
		return err
	}
	if c.StrictPerms {
		if info, err := os.Stat(c.Dir); err == nil && info.Mode()&0o777 != 0o700 {
			_ = os.Chmod(c.Dir, 0o700)
		}
	}
	return nil
}

func (c *HTTPCache) fileMode() os.FileMode {
	if c.StrictPerms {
		return 0o600
	}
	return 0o644
}

func (c *HTTPCache) metaPath(key string) string { return filepath.Join(c.Dir, key+".meta.json") }
func (c *HTTPCache) bodyPath(key string) string { return filepath.Join(c.Dir, key+".body") }

// LoadMeta returns entry metadata if present.
func (c *HTTPCache) LoadMeta(_ context.Context, key string) (*HTTPEntry, error) {
	if err := c.ensureDir(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(c.metaPath(key))
	if err != nil {
		return nil, missOr(err)
	}
	var e HTTPEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// LoadBody returns the cached body if present.
func (c *HTTPCache) LoadBody(_ context.Context, key string) ([]byte, error) {
	if err := c.ensureDir(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(c.bodyPath(key))
	if err != nil {
		return nil, missOr(err)
	}
	return b, nil
}

// Save writes the body first and then atomically replaces the metadata, so
// a reader never sees metadata without its body.
func (c *HTTPCache) Save(_ context.Context, key string, meta HTTPEntry, body []byte) error {
	if err := c.ensureDir(); err != nil {
		return err
	}
	if err := os.WriteFile(c.bodyPath(key), body, c.fileMode()); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if meta.SavedAt.IsZero() {
		meta.SavedAt = time.Now().UTC()
	}
	data, err := json.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	tmp := c.metaPath(key) + ".tmp"
	if err := os.WriteFile(tmp, data, c.fileMode()); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return os.Rename(tmp, c.metaPath(key))
}

func missOr(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return ErrMiss
	}
	return err
}
