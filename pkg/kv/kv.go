// Package kv provides a persistent key-value store using BadgerDB.
// The engine uses it to remember transcript fingerprints, so a debounce
// fire on an unchanged conversation skips the model call entirely.
package kv

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

type KV struct {
	db       *badger.DB
	closed   bool
	closedMu sync.RWMutex
}

// Options for KV store
type Options struct {
	Dir        string // Data directory
	SyncWrites bool   // Sync writes to disk
	MemoryMode bool   // In-memory only (no persistence)
}

// DefaultOptions returns default options
func DefaultOptions(dir string) Options {
	return Options{
		Dir:        dir,
		SyncWrites: false,
	}
}

// Open opens a KV store
func Open(opt Options) (*KV, error) {
	if !opt.MemoryMode && opt.Dir == "" {
		opt.Dir = filepath.Join(os.TempDir(), "dealsense-kv")
	}

	opts := badger.DefaultOptions(opt.Dir)
	opts.SyncWrites = opt.SyncWrites
	opts.Logger = nil

	if opt.MemoryMode {
		opts.InMemory = true
		opts.Dir = ""
		opts.ValueDir = ""
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger failed: %w", err)
	}

	log.Printf("[KV] Opened: %s (memory: %v)", opt.Dir, opt.MemoryMode)
	return &KV{db: db}, nil
}

// OpenMemory opens an in-memory store, mainly for tests
func OpenMemory() (*KV, error) {
	return Open(Options{MemoryMode: true})
}

// Close closes the KV store
func (k *KV) Close() error {
	k.closedMu.Lock()
	defer k.closedMu.Unlock()

	if k.closed {
		return nil
	}
	k.closed = true
	return k.db.Close()
}

// SetWithTTL sets a key-value pair that expires after ttl
func (k *KV) SetWithTTL(key, value string, ttl time.Duration) error {
	k.closedMu.RLock()
	defer k.closedMu.RUnlock()

	if k.closed {
		return fmt.Errorf("KV is closed")
	}
	return k.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), []byte(value)).WithTTL(ttl)
		return txn.SetEntry(e)
	})
}

// Get gets a value by key. Missing keys return ("", nil).
func (k *KV) Get(key string) (string, error) {
	k.closedMu.RLock()
	defer k.closedMu.RUnlock()

	if k.closed {
		return "", fmt.Errorf("KV is closed")
	}

	var result string
	err := k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		result = string(val)
		return nil
	})
	if err == badger.ErrKeyNotFound {
		return "", nil
	}
	return result, err
}

// Delete deletes a key
func (k *KV) Delete(key string) error {
	k.closedMu.RLock()
	defer k.closedMu.RUnlock()

	if k.closed {
		return fmt.Errorf("KV is closed")
	}
	return k.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// ===== Fingerprint helpers =====

const prefixFingerprint = "fp:"

// fingerprintTTL bounds how long a skip fingerprint is honored. A dormant
// conversation gets one fresh analysis when it wakes up.
const fingerprintTTL = 30 * 24 * time.Hour

// Fingerprint returns the hex SHA-256 of a transcript
func Fingerprint(transcript string) string {
	sum := sha256.Sum256([]byte(transcript))
	return hex.EncodeToString(sum[:])
}

func fingerprintKey(domain string, clientID int64) string {
	return fmt.Sprintf("%s%s:%d", prefixFingerprint, domain, clientID)
}

// SetFingerprint records the transcript fingerprint a domain last analyzed
func (k *KV) SetFingerprint(domain string, clientID int64, fingerprint string) error {
	return k.SetWithTTL(fingerprintKey(domain, clientID), fingerprint, fingerprintTTL)
}

// MatchesFingerprint reports whether the stored fingerprint equals fingerprint.
// Unknown clients never match.
func (k *KV) MatchesFingerprint(domain string, clientID int64, fingerprint string) bool {
	stored, err := k.Get(fingerprintKey(domain, clientID))
	if err != nil {
		log.Printf("[KV] Fingerprint read failed: %v", err)
		return false
	}
	return stored != "" && stored == fingerprint
}

// ClearFingerprints forgets a client's fingerprints so the next run always
// calls the model
func (k *KV) ClearFingerprints(domains []string, clientID int64) {
	for _, d := range domains {
		if err := k.Delete(fingerprintKey(d, clientID)); err != nil {
			log.Printf("[KV] Fingerprint delete failed: %v", err)
		}
	}
}
