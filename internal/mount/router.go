// Package mount implements the path-prefix router that dispatches
// every filesystem call to the correct backing store (spec §4.2).
package mount

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ConfigButler/vfscore/internal/metrics"
	"github.com/ConfigButler/vfscore/internal/vfs"
	"github.com/ConfigButler/vfscore/internal/vfspath"
)

// Mount is one entry of the router's live mount set.
type Mount struct {
	MountPoint string
	Filesystem vfs.FS
	FsType     string
}

// Router holds a base filesystem and an ordered set of mounts, longest
// mount-point prefix wins on dispatch (spec §4.2).
type Router struct {
	mu     sync.RWMutex
	base   vfs.FS
	mounts []Mount // insertion order
}

// New constructs a Router over the given base filesystem (typically a
// memfs.FS used for /mnt-style scaffolding).
func New(base vfs.FS) *Router {
	return &Router{base: base}
}

var _ vfs.FS = (*Router)(nil)

// Mount registers filesystem at mountPoint. Fails KindExists if the
// mount point is already occupied.
func (r *Router) Mount(mountPoint string, filesystem vfs.FS, fsType string) error {
	mp := vfspath.Normalize(mountPoint)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.mounts {
		if m.MountPoint == mp {
			return vfs.NewError(vfs.KindExists, "mount", mp)
		}
	}
	r.mounts = append(r.mounts, Mount{MountPoint: mp, Filesystem: filesystem, FsType: fsType})
	metrics.MountsActive.Add(context.Background(), 1)
	return nil
}

// Unmount removes the mapping at mountPoint. Fails KindNotFound if no
// mount matches. Any in-memory overlay state owned by the adapter is
// dropped with it; persisted state elsewhere (e.g. a blob bucket) is
// untouched.
func (r *Router) Unmount(mountPoint string) error {
	mp := vfspath.Normalize(mountPoint)

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, m := range r.mounts {
		if m.MountPoint == mp {
			r.mounts = append(r.mounts[:i], r.mounts[i+1:]...)
			metrics.MountsActive.Add(context.Background(), -1)
			return nil
		}
	}
	return vfs.NewError(vfs.KindNotFound, "umount", mp)
}

// GetMounts returns the mount list in insertion order.
func (r *Router) GetMounts() []Mount {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Mount, len(r.mounts))
	copy(out, r.mounts)
	return out
}

// resolve picks the mount whose mount point is p or the longest proper
// ancestor prefix of p, and computes the path relative to that mount.
// If no mount matches, the base filesystem and the original (but
// normalised) path are returned.
func (r *Router) resolve(p string) (vfs.FS, string) {
	p = vfspath.Normalize(p)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Mount
	for i := range r.mounts {
		m := &r.mounts[i]
		if !vfspath.HasPrefix(p, m.MountPoint) {
			continue
		}
		if best == nil || len(m.MountPoint) > len(best.MountPoint) {
			best = m
		}
	}

	if best == nil {
		return r.base, p
	}
	return best.Filesystem, vfspath.TrimPrefix(p, best.MountPoint)
}

// MountFor returns the live mount whose prefix governs p, if any.
func (r *Router) MountFor(p string) (Mount, bool) {
	p = vfspath.Normalize(p)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Mount
	for i := range r.mounts {
		m := &r.mounts[i]
		if !vfspath.HasPrefix(p, m.MountPoint) {
			continue
		}
		if best == nil || len(m.MountPoint) > len(best.MountPoint) {
			best = m
		}
	}
	if best == nil {
		return Mount{}, false
	}
	return *best, true
}

func (r *Router) ReadFile(ctx context.Context, path string, encoding vfs.Encoding) (string, error) {
	fsys, rel := r.resolve(path)
	return fsys.ReadFile(ctx, rel, encoding)
}

func (r *Router) ReadFileBuffer(ctx context.Context, path string) ([]byte, error) {
	fsys, rel := r.resolve(path)
	return fsys.ReadFileBuffer(ctx, rel)
}

func (r *Router) WriteFile(ctx context.Context, path string, data []byte) error {
	fsys, rel := r.resolve(path)
	return fsys.WriteFile(ctx, rel, data)
}

func (r *Router) AppendFile(ctx context.Context, path string, data []byte) error {
	fsys, rel := r.resolve(path)
	return fsys.AppendFile(ctx, rel, data)
}

func (r *Router) Exists(ctx context.Context, path string) (bool, error) {
	fsys, rel := r.resolve(path)
	return fsys.Exists(ctx, rel)
}

func (r *Router) Stat(ctx context.Context, path string) (vfs.Stat, error) {
	fsys, rel := r.resolve(path)
	return fsys.Stat(ctx, rel)
}

func (r *Router) Lstat(ctx context.Context, path string) (vfs.Stat, error) {
	fsys, rel := r.resolve(path)
	return fsys.Lstat(ctx, rel)
}

// Readdir additionally surfaces any mount points whose parent is p, so
// that listing a mount's parent directory shows the mount's last path
// component (spec §4.2).
func (r *Router) Readdir(ctx context.Context, path string) ([]string, error) {
	fsys, rel := r.resolve(path)
	names, err := fsys.Readdir(ctx, rel)
	if err != nil {
		return nil, err
	}

	p := vfspath.Normalize(path)
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}

	r.mu.RLock()
	for _, m := range r.mounts {
		if vfspath.Parent(m.MountPoint) == p && m.MountPoint != p {
			name := vfspath.Base(m.MountPoint)
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names, nil
}

func (r *Router) Mkdir(ctx context.Context, path string, opts vfs.MkdirOptions) error {
	fsys, rel := r.resolve(path)
	return fsys.Mkdir(ctx, rel, opts)
}

func (r *Router) Rm(ctx context.Context, path string, opts vfs.RmOptions) error {
	fsys, rel := r.resolve(path)
	return fsys.Rm(ctx, rel, opts)
}

func (r *Router) Cp(ctx context.Context, src, dst string, opts vfs.CpOptions) error {
	srcFS, srcRel := r.resolve(src)
	dstFS, dstRel := r.resolve(dst)
	if srcFS == dstFS {
		return srcFS.Cp(ctx, srcRel, dstRel, opts)
	}
	// Cross-mount copy: no transactional semantics guaranteed (spec Non-goals).
	data, err := srcFS.ReadFileBuffer(ctx, srcRel)
	if err != nil {
		return err
	}
	return dstFS.WriteFile(ctx, dstRel, data)
}

func (r *Router) Mv(ctx context.Context, src, dst string) error {
	if err := r.Cp(ctx, src, dst, vfs.CpOptions{Recursive: true}); err != nil {
		return err
	}
	srcFS, srcRel := r.resolve(src)
	return srcFS.Rm(ctx, srcRel, vfs.RmOptions{Recursive: true})
}

func (r *Router) Chmod(ctx context.Context, path string, mode uint32) error {
	fsys, rel := r.resolve(path)
	return fsys.Chmod(ctx, rel, mode)
}

func (r *Router) Symlink(ctx context.Context, target, linkPath string) error {
	fsys, rel := r.resolve(linkPath)
	return fsys.Symlink(ctx, target, rel)
}

func (r *Router) Link(ctx context.Context, target, linkPath string) error {
	fsys, rel := r.resolve(linkPath)
	_, targetRel := r.resolve(target)
	return fsys.Link(ctx, targetRel, rel)
}

func (r *Router) Readlink(ctx context.Context, path string) (string, error) {
	fsys, rel := r.resolve(path)
	return fsys.Readlink(ctx, rel)
}

func (r *Router) Realpath(ctx context.Context, path string) (string, error) {
	fsys, rel := r.resolve(path)
	return fsys.Realpath(ctx, rel)
}

func (r *Router) Utimes(ctx context.Context, path string, atime, mtime time.Time) error {
	fsys, rel := r.resolve(path)
	return fsys.Utimes(ctx, rel, atime, mtime)
}

func (r *Router) ResolvePath(ctx context.Context, path string) (string, error) {
	fsys, rel := r.resolve(path)
	return fsys.ResolvePath(ctx, rel)
}
