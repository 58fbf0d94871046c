package gitfs

import "github.com/go-git/go-git/v5/plumbing/filemode"

// GitTreeEntry is the cached shape of one committed-tree directory
// entry, enough to answer exists/stat/readdir without re-walking the
// object database (spec §4.5.10, "tree cache").
type GitTreeEntry struct {
	Name      string
	Mode      filemode.FileMode
	IsDir     bool
	IsSymlink bool
}

// treeCache holds one commit OID's worth of directory listings. It is
// discarded wholesale whenever the OID changes (commit or a pull that
// updates HEAD), never patched incrementally.
type treeCache struct {
	oid     string
	entries map[string][]GitTreeEntry
}

func newTreeCache() *treeCache {
	return &treeCache{entries: map[string][]GitTreeEntry{}}
}

// forOID returns the cache if it still matches oid, resetting (and
// returning the now-empty cache) otherwise.
func (c *treeCache) forOID(oid string) *treeCache {
	if c.oid == oid {
		return c
	}
	return &treeCache{oid: oid, entries: map[string][]GitTreeEntry{}}
}

func (c *treeCache) get(dir string) ([]GitTreeEntry, bool) {
	entries, ok := c.entries[dir]
	return entries, ok
}

func (c *treeCache) put(dir string, entries []GitTreeEntry) {
	c.entries[dir] = entries
}
