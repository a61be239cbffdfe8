// Package cache stores API responses in memory and on disk so a session can
// start from the last known forest when the backend is unreachable.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key builds a cache key scoped to a workspace, e.g. Key("w1", "tree", "10")
func Key(workspaceID string, parts ...string) string {
	hash := sha256.Sum256([]byte(workspaceID + "\x00" + strings.Join(parts, "\x00")))
	return "claimgraph:v1:" + hex.EncodeToString(hash[:])
}

// Nop is a Cache that stores nothing
type Nop struct{}

func (Nop) Get(string) ([]byte, bool)               { return nil, false }
func (Nop) Set(string, []byte, time.Duration) error { return nil }
func (Nop) Delete(string) error                     { return nil }
func (Nop) Clear() error                            { return nil }
