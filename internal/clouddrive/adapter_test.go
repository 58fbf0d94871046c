package clouddrive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConfigButler/vfscore/internal/vfs"
	"github.com/ConfigButler/vfscore/internal/vfs/vfstest"
)

const rootID = "root"

func TestCloudDriveAdapter_Conformance(t *testing.T) {
	vfstest.Suite(t, func() vfs.FS { return New(newMockDrive(rootID), rootID) })
}

func TestCloudDriveAdapter_StaleCacheRetries(t *testing.T) {
	ctx := context.Background()
	drive := newMockDrive(rootID)
	a := New(drive, rootID)

	require.NoError(t, a.WriteFile(ctx, "/a.txt", []byte("hello")))

	got, err := a.ReadFileBuffer(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	// Simulate the cache entry going stale without the underlying
	// object actually moving: re-resolving should still find it.
	a.cacheInvalidate("/a.txt")
	got, err = a.ReadFileBuffer(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestCloudDriveAdapter_CacheExpires(t *testing.T) {
	ctx := context.Background()
	drive := newMockDrive(rootID)
	a := New(drive, rootID)
	fakeNow := time.Now()
	a.now = func() time.Time { return fakeNow }

	require.NoError(t, a.WriteFile(ctx, "/a.txt", []byte("hello")))
	_, ok := a.cacheGet("/a.txt")
	assert.True(t, ok)

	fakeNow = fakeNow.Add(6 * time.Minute)
	_, ok = a.cacheGet("/a.txt")
	assert.False(t, ok, "cache entry should expire after the 5 minute TTL")

	got, err := a.ReadFileBuffer(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}
