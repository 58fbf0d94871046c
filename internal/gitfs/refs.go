package gitfs

import (
	"context"
	"sort"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/ConfigButler/vfscore/internal/vfs"
)

// RemoteInfo is one configured remote (spec §4.6 supplemented "git
// remote" listing).
type RemoteInfo struct {
	Name string
	URL  string
}

// Branches lists local and remote-tracking branch short names visible
// in the object database, sorted ascending (spec §4.6 supplemented
// "git branch" listing — a thin read-only view, not full branch
// management).
func (g *GitFs) Branches(ctx context.Context) ([]string, error) {
	if err := g.Init(ctx); err != nil {
		return nil, err
	}
	refs, err := g.repo.References()
	if err != nil {
		return nil, vfs.NewErrorf(vfs.KindIoError, "branch", g.cfg.MountPoint, "%v", err).Wrap(err)
	}
	defer refs.Close()

	var names []string
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name()
		switch {
		case name.IsBranch():
			names = append(names, name.Short())
		case name.IsRemote():
			names = append(names, "remotes/"+name.Short())
		}
		return nil
	})
	if err != nil {
		return nil, vfs.NewErrorf(vfs.KindIoError, "branch", g.cfg.MountPoint, "%v", err).Wrap(err)
	}
	sort.Strings(names)
	return names, nil
}

// Remotes lists configured remotes (spec §4.6 supplemented "git
// remote" listing).
func (g *GitFs) Remotes(ctx context.Context) ([]RemoteInfo, error) {
	if err := g.Init(ctx); err != nil {
		return nil, err
	}
	remotes, err := g.repo.Remotes()
	if err != nil {
		return nil, vfs.NewErrorf(vfs.KindIoError, "remote", g.cfg.MountPoint, "%v", err).Wrap(err)
	}

	var out []RemoteInfo
	for _, r := range remotes {
		cfg := r.Config()
		url := ""
		if len(cfg.URLs) > 0 {
			url = cfg.URLs[0]
		}
		out = append(out, RemoteInfo{Name: cfg.Name, URL: url})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CurrentOID returns the current commit OID, optionally shortened to
// 7 characters (spec §4.6 "git rev-parse [--short] HEAD").
func (g *GitFs) CurrentOID(ctx context.Context, short bool) (string, error) {
	if err := g.Init(ctx); err != nil {
		return "", err
	}
	oid := g.commitOid
	if short && len(oid) > 7 {
		oid = oid[:7]
	}
	return oid, nil
}
