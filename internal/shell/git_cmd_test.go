package shell_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConfigButler/vfscore/internal/blobstore/mock"
	mockremote "github.com/ConfigButler/vfscore/internal/gitfs/server"
	"github.com/ConfigButler/vfscore/internal/shell"
)

func seedRepo(t *testing.T, repo *mockremote.Repo, files map[string]string) {
	t.Helper()
	wt := memfs.New()
	r, err := git.Init(repo.Storer(), wt)
	require.NoError(t, err)

	worktree, err := r.Worktree()
	require.NoError(t, err)

	for name, content := range files {
		f, err := wt.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, f.Close())
		_, err = worktree.Add(name)
		require.NoError(t, err)
	}

	_, err = worktree.Commit("seed", &git.CommitOptions{
		Author: &object.Signature{Name: "seed", Email: "seed@example.com", When: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
}

func TestGitCmd_OutsideGitMountFailsFatal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mock.NewMemBucket())
	require.Equal(t, 0, shell.Dispatch(ctx, h.env, []string{"mount", "-t", "mem", "none", "/scratch"}))

	code := shell.Dispatch(ctx, h.env, []string{"git", "-C", "/scratch", "status"})
	assert.Equal(t, 128, code)
	assert.Contains(t, h.stderr.String(), "not a git repository")
}

func TestGitCmd_CloneStatusCommitPushPull(t *testing.T) {
	ctx := context.Background()
	bucket := mock.NewMemBucket()
	h := newHarness(t, bucket)

	repo := mockremote.NewRepo("shell-clone.git")
	seedRepo(t, repo, map[string]string{"README.md": "hello"})

	require.Equal(t, 0, shell.Dispatch(ctx, h.env, []string{"git", "clone", repo.URL(), "/repo"}), h.stderr.String())

	h.stdout.Reset()
	require.Equal(t, 0, shell.Dispatch(ctx, h.env, []string{"git", "-C", "/repo", "status", "--short"}), h.stderr.String())
	assert.Empty(t, h.stdout.String())

	require.NoError(t, h.env.Router.WriteFile(ctx, "/repo/new.txt", []byte("new")))

	h.stdout.Reset()
	require.Equal(t, 0, shell.Dispatch(ctx, h.env, []string{"git", "-C", "/repo", "status", "--short"}))
	assert.Contains(t, h.stdout.String(), "A  /new.txt")

	h.stdout.Reset()
	require.Equal(t, 0, shell.Dispatch(ctx, h.env, []string{"git", "-C", "/repo", "commit", "-m", "add new.txt"}), h.stderr.String())
	assert.Contains(t, h.stdout.String(), "add new.txt")

	h.stdout.Reset()
	require.Equal(t, 0, shell.Dispatch(ctx, h.env, []string{"git", "-C", "/repo", "push"}), h.stderr.String())
	assert.Contains(t, h.stdout.String(), "done.")

	h.stdout.Reset()
	require.Equal(t, 0, shell.Dispatch(ctx, h.env, []string{"git", "-C", "/repo", "push"}))
	assert.Contains(t, h.stdout.String(), "Everything up-to-date")

	h.stdout.Reset()
	require.Equal(t, 0, shell.Dispatch(ctx, h.env, []string{"git", "-C", "/repo", "pull"}))
	assert.Contains(t, h.stdout.String(), "Already up to date.")

	h.stdout.Reset()
	require.Equal(t, 0, shell.Dispatch(ctx, h.env, []string{"git", "-C", "/repo", "log", "--oneline"}))
	assert.Contains(t, h.stdout.String(), "add new.txt")

	h.stdout.Reset()
	require.Equal(t, 0, shell.Dispatch(ctx, h.env, []string{"git", "-C", "/repo", "branch"}))
	assert.Contains(t, h.stdout.String(), "master")

	h.stdout.Reset()
	require.Equal(t, 0, shell.Dispatch(ctx, h.env, []string{"git", "-C", "/repo", "remote"}))
	assert.Contains(t, h.stdout.String(), "origin")

	h.stdout.Reset()
	require.Equal(t, 0, shell.Dispatch(ctx, h.env, []string{"git", "-C", "/repo", "rev-parse", "--short", "HEAD"}))
	assert.Len(t, h.stdout.String(), 8) // 7-char OID + trailing newline

	h.stdout.Reset()
	require.Equal(t, 0, shell.Dispatch(ctx, h.env, []string{"git", "-C", "/repo", "show"}), h.stderr.String())
	assert.Contains(t, h.stdout.String(), "commit ")
	assert.Contains(t, h.stdout.String(), "Author: ")
	assert.Contains(t, h.stdout.String(), "add new.txt")

	raw, err := h.env.Router.ReadFileBuffer(ctx, "/etc/fstab")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "/repo")
}

func TestGitCmd_CommitWithoutMessageIsUsageError(t *testing.T) {
	ctx := context.Background()
	bucket := mock.NewMemBucket()
	h := newHarness(t, bucket)

	repo := mockremote.NewRepo("shell-commit-usage.git")
	seedRepo(t, repo, map[string]string{"a.txt": "a"})
	require.Equal(t, 0, shell.Dispatch(ctx, h.env, []string{"git", "clone", repo.URL(), "/repo"}))

	code := shell.Dispatch(ctx, h.env, []string{"git", "-C", "/repo", "commit"})
	assert.Equal(t, 1, code)
}

func TestGitCmd_UnknownSubcommandIsUsageError(t *testing.T) {
	ctx := context.Background()
	bucket := mock.NewMemBucket()
	h := newHarness(t, bucket)

	repo := mockremote.NewRepo("shell-unknown.git")
	seedRepo(t, repo, map[string]string{"a.txt": "a"})
	require.Equal(t, 0, shell.Dispatch(ctx, h.env, []string{"git", "clone", repo.URL(), "/repo"}))

	code := shell.Dispatch(ctx, h.env, []string{"git", "-C", "/repo", "frobnicate"})
	assert.Equal(t, 1, code)
}
