package avatar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// ErrCorrupted is returned when the cache file cannot be parsed and the
// operator declined to overwrite it.
var ErrCorrupted = errors.New("avatar cache file corrupted")

// ConfirmFunc asks the operator a yes/no question. Used when the persisted
// cache cannot be parsed: overwriting stored mappings must be an explicit
// decision, never automatic.
type ConfirmFunc func(ctx context.Context, question string) (bool, error)

// Cache is the persisted filename -> host-code mapping backed by a flat
// JSON file. Every write rewrites the whole file; writes are serialized so
// two uploads finishing concurrently cannot lose each other's entry.
type Cache struct {
	path    string
	confirm ConfirmFunc
	logger  *slog.Logger

	fileMu sync.Mutex // guards the read-modify-write cycle on the file

	keyMu   sync.Mutex
	keyLock map[string]*sync.Mutex
}

// OpenCache validates the cache file at startup. A missing file is fine; a
// corrupted one triggers the confirm prompt and is either reset to an empty
// mapping or refused with ErrCorrupted.
func OpenCache(ctx context.Context, path string, confirm ConfirmFunc, logger *slog.Logger) (*Cache, error) {
	c := &Cache{
		path:    path,
		confirm: confirm,
		logger:  logger,
		keyLock: make(map[string]*sync.Mutex),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("avatar cache not found, starting empty", "path", path)
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read avatar cache %s: %w", path, err)
	}

	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		logger.Error("avatar cache corrupted", "path", path, "err", err)
		ok, cerr := confirm(ctx, fmt.Sprintf("%s is corrupted. Overwrite with an empty cache?", path))
		if cerr != nil {
			return nil, fmt.Errorf("cache recovery prompt: %w", cerr)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrCorrupted, path)
		}
		logger.Warn("overwriting corrupted avatar cache", "path", path)
		if err := c.write(map[string]string{}); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// LockKey serializes work on one cache key so concurrent events for the
// same photo never both upload. The returned func releases the lock.
func (c *Cache) LockKey(key string) func() {
	c.keyMu.Lock()
	mu, ok := c.keyLock[key]
	if !ok {
		mu = &sync.Mutex{}
		c.keyLock[key] = mu
	}
	c.keyMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// Get reads the current file and returns the code stored for key.
func (c *Cache) Get(key string) (string, bool, error) {
	c.fileMu.Lock()
	defer c.fileMu.Unlock()

	entries, err := c.read()
	if err != nil {
		return "", false, err
	}
	code, ok := entries[key]
	return code, ok, nil
}

// Put stores key -> code, rewriting the whole file under the write lock so
// an unrelated entry written by a racing uploader is never lost.
func (c *Cache) Put(key, code string) error {
	c.fileMu.Lock()
	defer c.fileMu.Unlock()

	entries, err := c.read()
	if err != nil {
		return err
	}
	entries[key] = code
	return c.write(entries)
}

func (c *Cache) read() (map[string]string, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read avatar cache: %w", err)
	}
	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse avatar cache: %w", err)
	}
	if entries == nil {
		entries = map[string]string{}
	}
	return entries, nil
}

func (c *Cache) write(entries map[string]string) error {
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal avatar cache: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write avatar cache: %w", err)
	}
	return nil
}
