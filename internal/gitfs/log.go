package gitfs

import (
	"context"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/ConfigButler/vfscore/internal/vfs"
)

// LogEntry is one commit in the history rendered by "git log".
type LogEntry struct {
	OID         string
	AuthorName  string
	AuthorEmail string
	Message     string
}

// Log returns up to n commits reachable from HEAD, most recent first.
// n <= 0 means unbounded (within the shallow clone's depth).
func (g *GitFs) Log(ctx context.Context, n int) ([]LogEntry, error) {
	if err := g.Init(ctx); err != nil {
		return nil, err
	}
	hash := plumbing.NewHash(g.commitOid)
	if hash.IsZero() {
		return nil, nil
	}

	commitIter, err := g.repo.Log(&git.LogOptions{From: hash})
	if err != nil {
		return nil, vfs.NewErrorf(vfs.KindIoError, "log", g.cfg.MountPoint, "%v", err).Wrap(err)
	}
	defer commitIter.Close()

	var entries []LogEntry
	err = commitIter.ForEach(func(c *object.Commit) error {
		if n > 0 && len(entries) >= n {
			return storer.ErrStop
		}
		entries = append(entries, LogEntry{
			OID:         c.Hash.String(),
			AuthorName:  c.Author.Name,
			AuthorEmail: c.Author.Email,
			Message:     c.Message,
		})
		return nil
	})
	if err != nil {
		return nil, vfs.NewErrorf(vfs.KindIoError, "log", g.cfg.MountPoint, "%v", err).Wrap(err)
	}
	return entries, nil
}
