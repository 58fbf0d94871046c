package gitfs_test

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
	"github.com/ConfigButler/vfscore/internal/gitfs"
	mockremote "github.com/ConfigButler/vfscore/internal/gitfs/server"
	"github.com/ConfigButler/vfscore/internal/metrics"
	"github.com/ConfigButler/vfscore/internal/vfs"
)

const testBranch = "master"

func TestMain(m *testing.M) {
	if _, err := metrics.InitOTLPExporter(context.Background()); err != nil {
		panic("failed to initialize metrics: " + err.Error())
	}
	m.Run()
}

// seedRepo writes an initial commit directly into repo's backing
// storer, the way a CI pipeline would have populated the remote
// before anyone mounts it.
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

// seedConformanceRepo gives a freshly registered mock repo a single
// empty commit, just enough history for a clone's HEAD to resolve.
func seedConformanceRepo(t *testing.T, repo *mockremote.Repo) {
	t.Helper()
	wt := memfs.New()
	r, err := git.Init(repo.Storer(), wt)
	require.NoError(t, err)
	worktree, err := r.Worktree()
	require.NoError(t, err)
	_, err = worktree.Commit("init", &git.CommitOptions{
		AllowEmptyCommits: true,
		Author:            &object.Signature{Name: "seed", Email: "seed@example.com", When: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
}

func newMount(t *testing.T, url string) *gitfs.GitFs {
	t.Helper()
	bucket := mock.NewMemBucket()
	return gitfs.New(bucket, gitfs.Config{
		URL:        url,
		Ref:        testBranch,
		Depth:      1,
		MountPoint: "/mnt/repo",
		UserID:     "user-1",
	})
}

func TestGitFs_InitClonesAndReadsCommittedFile(t *testing.T) {
	ctx := context.Background()
	repo := mockremote.NewRepo("clone-read.git")
	seedRepo(t, repo, map[string]string{"README.md": "hello world"})

	g := newMount(t, repo.URL())
	got, err := g.ReadFileBuffer(ctx, "/README.md")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestGitFs_OverlayHidesAndUnhidesDeletions(t *testing.T) {
	ctx := context.Background()
	repo := mockremote.NewRepo("overlay-delete.git")
	seedRepo(t, repo, map[string]string{"a.txt": "a", "b.txt": "b"})

	g := newMount(t, repo.URL())

	require.NoError(t, g.Rm(ctx, "/a.txt", vfs.RmOptions{}))
	_, err := g.ReadFileBuffer(ctx, "/a.txt")
	assert.True(t, vfs.IsNotFound(err))

	names, err := g.Readdir(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, names)

	// Writing over a deleted path resurrects it (unmarks the tombstone).
	require.NoError(t, g.WriteFile(ctx, "/a.txt", []byte("a2")))
	got, err := g.ReadFileBuffer(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "a2", string(got))
}

func TestGitFs_StatusPartitionsAddedAndDeleted(t *testing.T) {
	ctx := context.Background()
	repo := mockremote.NewRepo("status.git")
	seedRepo(t, repo, map[string]string{"a.txt": "a"})

	g := newMount(t, repo.URL())
	require.NoError(t, g.WriteFile(ctx, "/a.txt", []byte("a-changed")))
	require.NoError(t, g.WriteFile(ctx, "/new.txt", []byte("new")))
	require.NoError(t, g.Rm(ctx, "/a.txt", vfs.RmOptions{Force: true}))

	st, err := g.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/new.txt"}, st.Added)
	assert.Equal(t, []string{"/a.txt"}, st.Deleted)
}

func TestGitFs_CommitClearsOverlayAndAdvancesHead(t *testing.T) {
	ctx := context.Background()
	repo := mockremote.NewRepo("commit.git")
	seedRepo(t, repo, map[string]string{"a.txt": "a"})

	g := newMount(t, repo.URL())
	require.NoError(t, g.WriteFile(ctx, "/new.txt", []byte("new")))

	_, err := g.Commit(ctx, "add new.txt", gitfs.Author{Name: "tester", Email: "tester@example.com"})
	require.NoError(t, err)

	st, err := g.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.Added)
	assert.Empty(t, st.Modified)
	assert.Empty(t, st.Deleted)

	got, err := g.ReadFileBuffer(ctx, "/new.txt")
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
	assert.True(t, g.HasUnpushedCommits())
}

func TestGitFs_CommitWithNothingPendingFails(t *testing.T) {
	ctx := context.Background()
	repo := mockremote.NewRepo("nothing.git")
	seedRepo(t, repo, map[string]string{"a.txt": "a"})

	g := newMount(t, repo.URL())
	_, err := g.Commit(ctx, "no-op", gitfs.Author{})
	require.Error(t, err)
	assert.True(t, vfs.IsInvalidArg(err))
}

func TestGitFs_PushIsVisibleToFreshClone(t *testing.T) {
	ctx := context.Background()
	repo := mockremote.NewRepo("push-pull.git")
	seedRepo(t, repo, map[string]string{"a.txt": "a"})

	writer := newMount(t, repo.URL())
	require.NoError(t, writer.WriteFile(ctx, "/b.txt", []byte("b")))
	_, err := writer.Commit(ctx, "add b.txt", gitfs.Author{Name: "writer", Email: "writer@example.com"})
	require.NoError(t, err)
	require.NoError(t, writer.Push(ctx, nil))
	assert.False(t, writer.HasUnpushedCommits())

	reader := newMount(t, repo.URL())
	_, err = reader.ReadFileBuffer(ctx, "/b.txt")
	require.NoError(t, err)
}

func TestGitFs_RestartAgainstSameBucketSeesCommittedState(t *testing.T) {
	ctx := context.Background()
	repo := mockremote.NewRepo("restart.git")
	seedRepo(t, repo, map[string]string{"README.md": "Hello", "src/index.ts": "export default 42;"})

	bucket := mock.NewMemBucket()
	cfg := gitfs.Config{URL: repo.URL(), Ref: testBranch, Depth: 1, MountPoint: "/mnt/repo", UserID: "user-1"}

	first := gitfs.New(bucket, cfg)
	require.NoError(t, first.WriteFile(ctx, "/newfile.txt", []byte("x")))
	require.NoError(t, first.Rm(ctx, "/README.md", vfs.RmOptions{}))
	_, err := first.Commit(ctx, "c", gitfs.Author{Name: "tester", Email: "tester@example.com"})
	require.NoError(t, err)

	// A fresh GitFs against the same bucket and (userId, mountPoint)
	// must observe exactly what first left behind: the overlay
	// persists the committed-and-cleared state, not an in-memory cache.
	second := gitfs.New(bucket, cfg)

	st, err := second.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.Added)
	assert.Empty(t, st.Modified)
	assert.Empty(t, st.Deleted)

	got, err := second.ReadFileBuffer(ctx, "/newfile.txt")
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))

	exists, err := second.Exists(ctx, "/README.md")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.True(t, second.HasUnpushedCommits())
}

func TestGitFs_PullRefusesWithUnpushedCommits(t *testing.T) {
	ctx := context.Background()
	repo := mockremote.NewRepo("pull-refuses.git")
	seedRepo(t, repo, map[string]string{"a.txt": "a"})

	g := newMount(t, repo.URL())
	require.NoError(t, g.WriteFile(ctx, "/c.txt", []byte("c")))
	_, err := g.Commit(ctx, "add c.txt", gitfs.Author{})
	require.NoError(t, err)

	_, err = g.Pull(ctx, nil)
	require.Error(t, err)
	assert.True(t, vfs.IsInvalidArg(err))
}
