package shell_test

import (
	"bytes"
	"context"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"

	"github.com/ConfigButler/vfscore/internal/blobstore"
	"github.com/ConfigButler/vfscore/internal/boot"
	"github.com/ConfigButler/vfscore/internal/fstab"
	"github.com/ConfigButler/vfscore/internal/gitfs"
	"github.com/ConfigButler/vfscore/internal/memfs"
	"github.com/ConfigButler/vfscore/internal/mount"
	"github.com/ConfigButler/vfscore/internal/shell"
	"github.com/ConfigButler/vfscore/internal/vfs"
)

// testHarness bundles the objects a shell.Env test needs direct
// access to, alongside the env itself.
type testHarness struct {
	env    *shell.Env
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

// newHarness builds a router with /etc mounted and seeded with an
// empty fstab, and a type registry serving "mem" (a fresh memfs per
// entry) and "git" (a GitFs over the given bucket).
func newHarness(t testHelper, bucket blobstore.Bucket) *testHarness {
	t.Helper()
	ctx := context.Background()

	router := mount.New(memfs.New())
	etc := memfs.New()
	require.NoError(t, router.Mount("/etc", etc, "etc"))
	require.NoError(t, router.WriteFile(ctx, "/etc/fstab", []byte(fstab.Serialize(nil))))

	registry := boot.TypeRegistry{
		"mem": func(fstab.Entry) (vfs.FS, error) {
			return memfs.New(), nil
		},
		"git": func(entry fstab.Entry) (vfs.FS, error) {
			return gitfs.New(bucket, gitfs.Config{
				URL:        entry.Device,
				Ref:        "master",
				Depth:      1,
				MountPoint: entry.MountPoint,
				UserID:     "user-1",
			}), nil
		},
	}

	var stdout, stderr bytes.Buffer
	env := &shell.Env{
		Router:   router,
		Bucket:   bucket,
		Registry: registry,
		UserID:   "user-1",
		Cwd:      "/",
		Getenv:   func(string) string { return "" },
		Stdout:   &stdout,
		Stderr:   &stderr,
		Logger:   logr.Discard(),
	}
	return &testHarness{env: env, stdout: &stdout, stderr: &stderr}
}

// testHelper is the subset of *testing.T used by newHarness, so it
// can be called from table-driven helpers without importing "testing"
// into this non-_test-suffixed-looking helper file's signature twice.
type testHelper interface {
	Helper()
	Errorf(format string, args ...any)
	FailNow()
}
