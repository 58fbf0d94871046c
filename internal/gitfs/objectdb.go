package gitfs

import (
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// ObjectDB is the isomorphic Git memory filesystem: a filesystem-backed
// storage.Storer (refs, loose objects, packs) sitting entirely on a
// go-billy in-memory filesystem, paired with a second in-memory
// filesystem used as the checkout target when materialising a commit.
// This is the same pairing the Git library itself uses for in-memory
// clones, just reused here as the durable shape we snapshot to/from
// the overlay blob-store instead of a real .git directory on disk.
type ObjectDB struct {
	dotGit   billy.Filesystem
	worktree billy.Filesystem
	Storer   *filesystem.Storage
}

// NewObjectDB creates a fresh, empty object database.
func NewObjectDB() *ObjectDB {
	dotGit := memfs.New()
	return &ObjectDB{
		dotGit:   dotGit,
		worktree: memfs.New(),
		Storer:   filesystem.NewStorage(dotGit, cache.NewObjectLRUDefault()),
	}
}

// Worktree returns the in-memory filesystem go-git checks files out
// into when a commit is materialised.
func (o *ObjectDB) Worktree() billy.Filesystem {
	return o.worktree
}

// Snapshot captures the current object database as a PackSnapshot.
func (o *ObjectDB) Snapshot() (*PackSnapshot, error) {
	return SnapshotFS(o.dotGit)
}

// RestoreObjectDB rebuilds an ObjectDB from a previously captured
// PackSnapshot.
func RestoreObjectDB(snap *PackSnapshot) (*ObjectDB, error) {
	dotGit := memfs.New()
	if err := RestoreFS(dotGit, snap); err != nil {
		return nil, err
	}
	return &ObjectDB{
		dotGit:   dotGit,
		worktree: memfs.New(),
		Storer:   filesystem.NewStorage(dotGit, cache.NewObjectLRUDefault()),
	}, nil
}
