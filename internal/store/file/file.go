// Package file implements a store.Backend persisted as a single JSON document on disk.
//
// Several processes may share a data dir (a running shell and a one-shot command).
// Every write re-reads the document and applies only its own keys, so keys written
// by another process survive. Writes to the same key are last-write-wins.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/and161185/logistics-keeper/internal/errs"
	"github.com/and161185/logistics-keeper/internal/store"
)

// FileName is the state document inside the data directory.
const FileName = "state.json"

// Backend keeps every key as a top-level member of one document and rewrites
// the whole document through a temp file and rename on each write.
type Backend struct {
	mu   sync.Mutex
	path string
	data map[string]json.RawMessage
	log  *zap.Logger
}

var _ store.Backend = (*Backend)(nil)

// Open loads dir/state.json, creating dir when missing. An unreadable document is
// moved aside to state.json.corrupt and the store starts empty.
func Open(dir string, log *zap.Logger) (*Backend, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	b := &Backend{
		path: filepath.Join(dir, FileName),
		data: map[string]json.RawMessage{},
		log:  log,
	}
	doc, err := b.readDisk()
	switch {
	case errors.Is(err, errCorrupt):
		b.log.Warn("state file unreadable, starting empty", zap.String("path", b.path), zap.Error(err))
		_ = os.Rename(b.path, b.path+".corrupt")
	case err != nil:
		return nil, err
	default:
		b.data = doc
	}
	return b, nil
}

var errCorrupt = errors.New("state file corrupt")

// readDisk returns the current document; a missing file is an empty document.
func (b *Backend) readDisk() (map[string]json.RawMessage, error) {
	doc := map[string]json.RawMessage{}
	raw, err := os.ReadFile(b.path)
	switch {
	case os.IsNotExist(err):
		return doc, nil
	case err != nil:
		return nil, err
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	if doc == nil {
		doc = map[string]json.RawMessage{}
	}
	return doc, nil
}

// Path returns the state document location.
func (b *Backend) Path() string { return b.path }

func (b *Backend) Load(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (b *Backend) Save(ctx context.Context, key string, raw []byte) error {
	return b.SaveMany(ctx, map[string][]byte{key: raw}, nil)
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	return b.SaveMany(ctx, nil, []string{key})
}

// SaveMany applies all changes to the latest on-disk document and commits it with
// a single rename.
func (b *Backend) SaveMany(_ context.Context, values map[string][]byte, deletes []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	next, err := b.readDisk()
	if err != nil {
		b.log.Warn("state file unreadable, writing from memory", zap.String("path", b.path), zap.Error(err))
		next = make(map[string]json.RawMessage, len(b.data)+len(values))
		for k, v := range b.data {
			next[k] = v
		}
	}
	for k, v := range values {
		if !json.Valid(v) {
			return errs.ErrValidation
		}
		next[k] = append(json.RawMessage(nil), v...)
	}
	for _, k := range deletes {
		delete(next, k)
	}

	if err := b.write(next); err != nil {
		return err
	}
	b.data = next
	return nil
}

func (b *Backend) write(doc map[string]json.RawMessage) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".state-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), b.path)
}
