package gitfs

import (
	"context"
	"sort"

	"github.com/ConfigButler/vfscore/internal/vfs"
)

// Status is the result of partitioning the overlay against the
// committed tree (spec §4.5.5).
type Status struct {
	Added    []string
	Modified []string
	Deleted  []string
}

// Status computes the working-tree status without mutating anything.
func (g *GitFs) Status(ctx context.Context) (Status, error) {
	if err := g.Init(ctx); err != nil {
		return Status{}, err
	}

	files, err := g.overlay.allFiles(ctx)
	if err != nil {
		return Status{}, err
	}

	tree, err := g.headTree()
	if err != nil {
		return Status{}, vfs.NewErrorf(vfs.KindIoError, "status", g.cfg.MountPoint, "%v", err).Wrap(err)
	}

	st := Status{}
	for _, p := range files {
		if isPlaceholderPath(p) {
			continue
		}
		if _, ferr := g.treeFile(tree, p); ferr == nil {
			st.Modified = append(st.Modified, p)
		} else {
			st.Added = append(st.Added, p)
		}
	}
	for p := range g.deleted {
		st.Deleted = append(st.Deleted, p)
	}

	sort.Strings(st.Added)
	sort.Strings(st.Modified)
	sort.Strings(st.Deleted)
	return st, nil
}
