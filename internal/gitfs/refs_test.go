package gitfs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mockremote "github.com/ConfigButler/vfscore/internal/gitfs/server"
)

func TestGitFs_BranchesRemotesAndCurrentOID(t *testing.T) {
	ctx := context.Background()
	repo := mockremote.NewRepo("refs.git")
	seedRepo(t, repo, map[string]string{"a.txt": "a"})

	g := newMount(t, repo.URL())

	branches, err := g.Branches(ctx)
	require.NoError(t, err)
	assert.Contains(t, branches, testBranch)

	remotes, err := g.Remotes(ctx)
	require.NoError(t, err)
	require.Len(t, remotes, 1)
	assert.Equal(t, "origin", remotes[0].Name)
	assert.Equal(t, repo.URL(), remotes[0].URL)

	full, err := g.CurrentOID(ctx, false)
	require.NoError(t, err)
	short, err := g.CurrentOID(ctx, true)
	require.NoError(t, err)
	assert.Len(t, short, 7)
	assert.True(t, len(full) > len(short))
}
