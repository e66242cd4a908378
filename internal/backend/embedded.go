package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// StoreDir is the badger database kept inside each history directory.
const StoreDir = ".store"

const (
	blobPrefix = "blob:"
	revsPrefix = "revs:"
)

// EmbeddedOptions configures the embedded backend.
type EmbeddedOptions struct {
	CacheSize   int // Number of decompressed snapshots to cache
	Compression CompressionOptions
	Author      string
	Now         func() time.Time
}

// Embedded is a content-addressed revision store. Snapshots are kept in a
// badger database under the history directory; the "<base>,v" record is
// rewritten after every change so it reads like the one RCS would keep.
type Embedded struct {
	author string
	now    func() time.Time
	codec  *codec
	cache  *lru.Cache[string, []byte]
	logger *zap.Logger
}

func NewEmbedded(opts EmbeddedOptions, logger *zap.Logger) (*Embedded, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 64
	}
	if opts.Compression == (CompressionOptions{}) {
		opts.Compression = DefaultCompressionOptions()
	}
	if opts.Author == "" {
		opts.Author = currentUser()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cache, err := lru.New[string, []byte](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	c, err := newCodec(opts.Compression)
	if err != nil {
		return nil, err
	}

	return &Embedded{
		author: opts.Author,
		now:    opts.Now,
		codec:  c,
		cache:  cache,
		logger: logger,
	}, nil
}

func (e *Embedded) Close() {
	e.codec.close()
}

// Init creates an empty record. The "<base>,v" file is only written once
// the store transaction has committed.
func (e *Embedded) Init(_ context.Context, dir, base string) error {
	err := e.withDB(dir, func(db *badger.DB) error {
		return db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get(revsKey(base))
			if err == nil {
				return ErrRecordExists
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			return putRevisions(txn, base, []RevisionMeta{})
		})
	})
	if err != nil {
		return err
	}
	return saveRecord(recordPath(dir, base), nil)
}

// Commit stores dir/base and removes the working file, as ci does. A
// missing record is created on the way.
func (e *Embedded) Commit(_ context.Context, dir, base string) error {
	working := filepath.Join(dir, base)
	content, err := os.ReadFile(working)
	if err != nil {
		return fmt.Errorf("reading working file: %w", err)
	}
	hash := hashContent(content)

	var revs []RevisionMeta
	err = e.withDB(dir, func(db *badger.DB) error {
		return db.Update(func(txn *badger.Txn) error {
			if _, err := txn.Get(blobKey(hash)); errors.Is(err, badger.ErrKeyNotFound) {
				if err := txn.Set(blobKey(hash), e.codec.encode(content)); err != nil {
					return fmt.Errorf("storing blob: %w", err)
				}
			} else if err != nil {
				return err
			}

			current, err := getRevisions(txn, base)
			if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			next := 1
			if len(current) > 0 {
				next = current[0].ID + 1
			}
			revs = append([]RevisionMeta{{
				ID:     next,
				Date:   Stamp(e.now()),
				Author: e.author,
				Hash:   hash,
			}}, current...)

			return putRevisions(txn, base, revs)
		})
	})
	if err != nil {
		return err
	}
	if err := saveRecord(recordPath(dir, base), revs); err != nil {
		return err
	}

	e.cache.Add(hash, content)
	return os.Remove(working)
}

func (e *Embedded) TruncateBefore(_ context.Context, dir, base string, keepFrom int) error {
	if keepFrom <= 1 {
		return nil
	}
	e.logger.Debug("outdating revisions",
		zap.String("record", base+RecordSuffix),
		zap.Int("keep_from", keepFrom))

	var kept []RevisionMeta
	changed := false
	err := e.withDB(dir, func(db *badger.DB) error {
		return db.Update(func(txn *badger.Txn) error {
			revs, err := getRevisions(txn, base)
			if err != nil {
				return err
			}
			kept = revs[:0:0]
			for _, rev := range revs {
				if rev.ID >= keepFrom {
					kept = append(kept, rev)
				}
			}
			if len(kept) == len(revs) {
				return nil
			}
			changed = true
			if err := putRevisions(txn, base, kept); err != nil {
				return err
			}
			return e.collectBlobs(txn)
		})
	})
	if err != nil || !changed {
		return err
	}
	return saveRecord(recordPath(dir, base), kept)
}

func (e *Embedded) Checkout(_ context.Context, dir, base, token string) error {
	id, err := ParseToken(token)
	if err != nil {
		return err
	}

	var content []byte
	err = e.withDB(dir, func(db *badger.DB) error {
		return db.View(func(txn *badger.Txn) error {
			revs, err := getRevisions(txn, base)
			if errors.Is(err, badger.ErrKeyNotFound) || (err == nil && len(revs) == 0) {
				return fmt.Errorf("%w: no revisions of %s", ErrUnknownRevision, base)
			}
			if err != nil {
				return err
			}

			rev := revs[0]
			if id != 0 {
				found := false
				for _, r := range revs {
					if r.ID == id {
						rev, found = r, true
						break
					}
				}
				if !found {
					return fmt.Errorf("%w: %s of %s", ErrUnknownRevision, token, base)
				}
			}

			content, err = e.loadBlob(txn, rev.Hash)
			return err
		})
	})
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, base), content, 0644)
}

func (e *Embedded) loadBlob(txn *badger.Txn, hash string) ([]byte, error) {
	if content, ok := e.cache.Get(hash); ok {
		return content, nil
	}

	item, err := txn.Get(blobKey(hash))
	if err != nil {
		return nil, fmt.Errorf("loading blob %s: %w", hash, err)
	}
	blob, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	content, err := e.codec.decode(blob)
	if err != nil {
		return nil, fmt.Errorf("decoding blob %s: %w", hash, err)
	}
	if hashContent(content) != hash {
		return nil, fmt.Errorf("blob %s: content hash mismatch", hash)
	}

	e.cache.Add(hash, content)
	return content, nil
}

// collectBlobs deletes blobs no longer referenced by any revision list in
// the same history directory.
func (e *Embedded) collectBlobs(txn *badger.Txn) error {
	live := make(map[string]bool)
	var blobs []string

	opts := badger.DefaultIteratorOptions
	it := txn.NewIterator(opts)
	for it.Rewind(); it.Valid(); it.Next() {
		key := string(it.Item().KeyCopy(nil))
		switch {
		case strings.HasPrefix(key, blobPrefix):
			blobs = append(blobs, strings.TrimPrefix(key, blobPrefix))
		case strings.HasPrefix(key, revsPrefix):
			var revs []RevisionMeta
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &revs)
			})
			if err != nil {
				it.Close()
				return err
			}
			for _, r := range revs {
				live[r.Hash] = true
			}
		}
	}
	it.Close()

	for _, hash := range blobs {
		if live[hash] {
			continue
		}
		if err := txn.Delete(blobKey(hash)); err != nil {
			return err
		}
		e.cache.Remove(hash)
	}
	return nil
}

func (e *Embedded) withDB(dir string, fn func(db *badger.DB) error) error {
	opts := badger.DefaultOptions(filepath.Join(dir, StoreDir)).
		WithLogger(nil).
		WithNumVersionsToKeep(1).
		WithMemTableSize(8 << 20).
		WithValueLogFileSize(16 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening store in %s: %w", dir, err)
	}
	defer db.Close()

	return fn(db)
}

func getRevisions(txn *badger.Txn, base string) ([]RevisionMeta, error) {
	item, err := txn.Get(revsKey(base))
	if err != nil {
		return nil, err
	}
	var revs []RevisionMeta
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &revs)
	})
	return revs, err
}

func putRevisions(txn *badger.Txn, base string, revs []RevisionMeta) error {
	data, err := json.Marshal(revs)
	if err != nil {
		return fmt.Errorf("marshaling revisions: %w", err)
	}
	return txn.Set(revsKey(base), data)
}

func blobKey(hash string) []byte {
	return []byte(blobPrefix + hash)
}

func revsKey(base string) []byte {
	return []byte(revsPrefix + base)
}

func recordPath(dir, base string) string {
	return filepath.Join(dir, base+RecordSuffix)
}

func currentUser() string {
	for _, key := range []string{"USER", "USERNAME", "LOGNAME"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return "localhist"
}
