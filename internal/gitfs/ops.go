package gitfs

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/ConfigButler/vfscore/internal/metrics"
	"github.com/ConfigButler/vfscore/internal/vfs"
)

// Author is the commit author identity (spec §4.6: "--author, or
// GIT_AUTHOR_NAME/GIT_AUTHOR_EMAIL, or a built-in identity").
type Author struct {
	Name  string
	Email string
}

func (a Author) withDefaults() Author {
	if a.Name == "" {
		a.Name = "vfscore"
	}
	if a.Email == "" {
		a.Email = "vfscore@localhost"
	}
	return a
}

// Commit materialises the overlay and the deletion set into the
// in-memory working directory, stages them, and creates a commit
// against the current HEAD (spec §4.5.6).
func (g *GitFs) Commit(ctx context.Context, message string, author Author) (string, error) {
	if err := g.Init(ctx); err != nil {
		return "", err
	}

	files, err := g.overlay.allFiles(ctx)
	if err != nil {
		return "", err
	}
	var toCommit []string
	for _, p := range files {
		// Git has no representation for an empty directory, so the
		// mkdir placeholder never becomes a tracked file.
		if isPlaceholderPath(p) {
			continue
		}
		toCommit = append(toCommit, p)
	}
	if len(toCommit) == 0 && len(g.deleted) == 0 {
		return "", vfs.NewErrorf(vfs.KindInvalidArg, "commit", g.cfg.MountPoint, "nothing to commit")
	}

	worktree, err := g.repo.Worktree()
	if err != nil {
		return "", mountErr(g.cfg.MountPoint, "get worktree", err)
	}

	if hash := plumbing.NewHash(g.commitOid); !hash.IsZero() {
		if err := worktree.Checkout(&git.CheckoutOptions{Hash: hash, Force: true}); err != nil {
			return "", mountErr(g.cfg.MountPoint, "checkout working tree", err)
		}
	}

	for _, p := range toCommit {
		if err := materialise(worktree, p, g); err != nil {
			return "", err
		}
	}

	for p := range g.deleted {
		rel := treeRelPath(p)
		_, _ = worktree.Remove(rel) // not present in the tree: nothing to stage
	}

	author = author.withDefaults()
	newHash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: author.Name, Email: author.Email, When: time.Now()},
	})
	if err != nil {
		return "", mountErr(g.cfg.MountPoint, "commit", err)
	}

	g.commitOid = newHash.String()
	if commitObj, cerr := g.repo.CommitObject(newHash); cerr == nil {
		g.commitMtime = commitObj.Committer.When
	}
	g.tree = newTreeCache()
	if err := g.overlay.clearUserFiles(ctx); err != nil {
		return "", err
	}
	g.deleted = map[string]struct{}{}

	if err := g.persist(ctx); err != nil {
		return "", err
	}
	metrics.GitCommitsTotal.Add(ctx, 1)
	return g.commitOid, nil
}

func materialise(worktree *git.Worktree, p string, g *GitFs) error {
	ctx := context.Background()
	data, ok, err := g.overlay.get(ctx, p)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	rel := treeRelPath(p)
	if dir := path.Dir(rel); dir != "." {
		if err := worktree.Filesystem.MkdirAll(dir, 0o755); err != nil {
			return mountErr(g.cfg.MountPoint, "mkdir "+dir, err)
		}
	}
	f, err := worktree.Filesystem.Create(rel)
	if err != nil {
		return mountErr(g.cfg.MountPoint, "create "+rel, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return mountErr(g.cfg.MountPoint, "write "+rel, err)
	}
	if _, err := worktree.Add(rel); err != nil {
		return mountErr(g.cfg.MountPoint, "stage "+rel, err)
	}
	return nil
}

// Push pushes commitOid to the tracked ref (spec §4.5.7).
func (g *GitFs) Push(ctx context.Context, auth transport.AuthMethod) error {
	if err := g.Init(ctx); err != nil {
		return err
	}
	if auth == nil {
		auth = g.cfg.Auth
	}
	err := g.repo.PushContext(ctx, &git.PushOptions{RemoteName: "origin", Auth: auth})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return mountErr(g.cfg.MountPoint, "push", err)
	}
	g.remoteOid = g.commitOid
	if err := g.persistMeta(ctx); err != nil {
		return err
	}
	metrics.GitPushesTotal.Add(ctx, 1)
	return nil
}

// Pull fast-forwards the tracked ref (spec §4.5.8). It refuses when
// there are unpushed local commits: the server would otherwise force
// a divergent history.
func (g *GitFs) Pull(ctx context.Context, auth transport.AuthMethod) (updated bool, err error) {
	if err := g.Init(ctx); err != nil {
		return false, err
	}
	if g.HasUnpushedCommits() {
		return false, vfs.NewErrorf(vfs.KindInvalidArg, "pull", g.cfg.MountPoint, "push first")
	}
	if auth == nil {
		auth = g.cfg.Auth
	}
	from := g.commitOid

	dest := plumbing.NewRemoteReferenceName("origin", g.ref)
	fetchOpts := &git.FetchOptions{
		RemoteName: "origin",
		Auth:       auth,
		Depth:      g.cfg.Depth,
		Force:      true,
		RefSpecs: []config.RefSpec{
			config.RefSpec(fmt.Sprintf("+refs/heads/%s:%s", g.ref, dest)),
		},
	}
	ferr := g.repo.FetchContext(ctx, fetchOpts)
	if ferr != nil && !errors.Is(ferr, git.NoErrAlreadyUpToDate) {
		return false, mountErr(g.cfg.MountPoint, "pull", ferr)
	}

	destRef, rerr := g.repo.Reference(dest, true)
	if rerr != nil {
		return false, mountErr(g.cfg.MountPoint, "resolve fetched ref", rerr)
	}

	g.commitOid = destRef.Hash().String()
	g.remoteOid = g.commitOid
	if commitObj, cerr := g.repo.CommitObject(destRef.Hash()); cerr == nil {
		g.commitMtime = commitObj.Committer.When
	}
	g.tree = newTreeCache()
	metrics.GitPullsTotal.Add(ctx, 1)

	if g.commitOid == from {
		return false, nil
	}
	if err := g.persist(ctx); err != nil {
		return false, err
	}
	return true, nil
}
