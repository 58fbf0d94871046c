// Package mock provides an in-process implementation of
// blobstore.Bucket for tests that must not touch the network (spec
// §4.7, "Mock blob bucket").
package mock

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ConfigButler/vfscore/internal/blobstore"
)

// MemBucket is a map-backed Bucket guarded by a mutex.
type MemBucket struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemBucket returns an empty bucket.
func NewMemBucket() *MemBucket {
	return &MemBucket{objects: map[string][]byte{}}
}

var _ blobstore.Bucket = (*MemBucket)(nil)

func (b *MemBucket) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (b *MemBucket) Put(_ context.Context, key string, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = buf
	return nil
}

func (b *MemBucket) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *MemBucket) List(_ context.Context, prefix, delimiter string) ([]string, []string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var objects []string
	prefixSet := map[string]bool{}
	for k := range b.objects {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		if delimiter == "" || !strings.Contains(rest, delimiter) {
			objects = append(objects, k)
			continue
		}
		idx := strings.Index(rest, delimiter)
		prefixSet[prefix+rest[:idx+len(delimiter)]] = true
	}

	var commonPrefixes []string
	for p := range prefixSet {
		commonPrefixes = append(commonPrefixes, p)
	}
	sort.Strings(objects)
	sort.Strings(commonPrefixes)
	return objects, commonPrefixes, nil
}

// Snapshot returns a copy of the bucket's keys, for debugging/tests.
func (b *MemBucket) Snapshot() map[string][]byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string][]byte, len(b.objects))
	for k, v := range b.objects {
		buf := make([]byte, len(v))
		copy(buf, v)
		out[k] = buf
	}
	return out
}
