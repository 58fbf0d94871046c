// Package clouddrive implements the hierarchical cloud-drive adapter
// (spec §4: "Cloud-drive adapter"), resolving POSIX paths to drive
// object IDs through a TTL path→id cache (spec §9).
package clouddrive

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ConfigButler/vfscore/internal/vfs"
	"github.com/ConfigButler/vfscore/internal/vfspath"
)

// FileInfo describes one drive entry as returned by DriveClient.
type FileInfo struct {
	ID       string
	Name     string
	IsFolder bool
	Size     int64
	Mtime    time.Time
}

// DriveClient models a hierarchical cloud-drive API (e.g. Google
// Drive): everything is addressed by opaque parent/child IDs, not
// paths.
type DriveClient interface {
	ListChildren(ctx context.Context, parentID string) ([]FileInfo, error)
	GetContent(ctx context.Context, fileID string) ([]byte, error)
	CreateFile(ctx context.Context, parentID, name string, data []byte) (string, error)
	CreateFolder(ctx context.Context, parentID, name string) (string, error)
	UpdateContent(ctx context.Context, fileID string, data []byte) error
	Delete(ctx context.Context, fileID string) error
	Move(ctx context.Context, fileID, newParentID, newName string) error
}

const pathIDCacheTTL = 5 * time.Minute

type cacheEntry struct {
	id        string
	isFolder  bool
	expiresAt time.Time
}

// Adapter implements vfs.FS over a DriveClient, rooted at RootFolderID.
type Adapter struct {
	client       DriveClient
	rootFolderID string

	mu    sync.Mutex
	cache map[string]cacheEntry // normalised path -> entry
	now   func() time.Time
}

// New returns an adapter rooted at rootFolderID (typically the
// fstab entry's `root_folder_id` option).
func New(client DriveClient, rootFolderID string) *Adapter {
	a := &Adapter{client: client, rootFolderID: rootFolderID, cache: map[string]cacheEntry{}, now: time.Now}
	a.cache["/"] = cacheEntry{id: rootFolderID, isFolder: true, expiresAt: time.Time{}.Add(24 * 365 * time.Hour)}
	return a
}

var _ vfs.FS = (*Adapter)(nil)

func (a *Adapter) cacheGet(p string) (cacheEntry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.cache[p]
	if !ok || a.now().After(e.expiresAt) {
		return cacheEntry{}, false
	}
	return e, true
}

func (a *Adapter) cachePut(p string, e cacheEntry) {
	e.expiresAt = a.now().Add(pathIDCacheTTL)
	a.mu.Lock()
	a.cache[p] = e
	a.mu.Unlock()
}

func (a *Adapter) cacheInvalidate(p string) {
	a.mu.Lock()
	delete(a.cache, p)
	a.mu.Unlock()
}

// resolve walks from the nearest cached ancestor of p down to p,
// populating the cache as it goes. A lookup that fails because a
// cached ancestor id turned stale is retried once after invalidating
// that entry (spec §9: "tolerate stale entries by retrying").
func (a *Adapter) resolve(ctx context.Context, path string) (cacheEntry, error) {
	p := vfspath.Normalize(path)
	if e, ok := a.cacheGet(p); ok {
		return e, nil
	}

	parent := vfspath.Parent(p)
	var parentEntry cacheEntry
	var err error
	if p == "/" {
		parentEntry = cacheEntry{id: a.rootFolderID, isFolder: true}
	} else {
		parentEntry, err = a.resolve(ctx, parent)
		if err != nil {
			return cacheEntry{}, err
		}
	}

	if p == "/" {
		e := cacheEntry{id: a.rootFolderID, isFolder: true}
		a.cachePut(p, e)
		return e, nil
	}

	name := vfspath.Base(p)
	entry, err := a.lookupChild(ctx, parentEntry.id, name)
	if err != nil {
		// Stale ancestor id: invalidate and retry once from scratch.
		a.cacheInvalidate(parent)
		parentEntry, err2 := a.resolve(ctx, parent)
		if err2 != nil {
			return cacheEntry{}, err
		}
		entry, err = a.lookupChild(ctx, parentEntry.id, name)
		if err != nil {
			return cacheEntry{}, err
		}
	}

	a.cachePut(p, entry)
	return entry, nil
}

func (a *Adapter) lookupChild(ctx context.Context, parentID, name string) (cacheEntry, error) {
	children, err := a.client.ListChildren(ctx, parentID)
	if err != nil {
		return cacheEntry{}, vfs.NewErrorf(vfs.KindIoError, "open", name, "%v", err).Wrap(err)
	}
	for _, c := range children {
		if c.Name == name {
			return cacheEntry{id: c.ID, isFolder: c.IsFolder}, nil
		}
	}
	return cacheEntry{}, vfs.NewError(vfs.KindNotFound, "open", name)
}

func (a *Adapter) ReadFileBuffer(ctx context.Context, path string) ([]byte, error) {
	e, err := a.resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	if e.isFolder {
		return nil, vfs.NewError(vfs.KindIsDirectory, "open", path)
	}
	data, err := a.client.GetContent(ctx, e.id)
	if err != nil {
		return nil, vfs.NewErrorf(vfs.KindIoError, "open", path, "%v", err).Wrap(err)
	}
	return data, nil
}

func (a *Adapter) ReadFile(ctx context.Context, path string, _ vfs.Encoding) (string, error) {
	raw, err := a.ReadFileBuffer(ctx, path)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (a *Adapter) WriteFile(ctx context.Context, path string, data []byte) error {
	p := vfspath.Normalize(path)
	if e, err := a.resolve(ctx, p); err == nil {
		if e.isFolder {
			return vfs.NewError(vfs.KindIsDirectory, "open", p)
		}
		if err := a.client.UpdateContent(ctx, e.id, data); err != nil {
			return vfs.NewErrorf(vfs.KindIoError, "open", p, "%v", err).Wrap(err)
		}
		return nil
	}

	parentEntry, err := a.resolve(ctx, vfspath.Parent(p))
	if err != nil {
		return err
	}
	id, err := a.client.CreateFile(ctx, parentEntry.id, vfspath.Base(p), data)
	if err != nil {
		return vfs.NewErrorf(vfs.KindIoError, "open", p, "%v", err).Wrap(err)
	}
	a.cachePut(p, cacheEntry{id: id})
	return nil
}

func (a *Adapter) AppendFile(ctx context.Context, path string, data []byte) error {
	existing, err := a.ReadFileBuffer(ctx, path)
	if err != nil && !vfs.IsNotFound(err) {
		return err
	}
	return a.WriteFile(ctx, path, append(existing, data...))
}

func (a *Adapter) Exists(ctx context.Context, path string) (bool, error) {
	_, err := a.resolve(ctx, path)
	if err != nil {
		if vfs.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *Adapter) Stat(ctx context.Context, path string) (vfs.Stat, error) {
	e, err := a.resolve(ctx, path)
	if err != nil {
		return vfs.Stat{}, err
	}
	if e.isFolder {
		return vfs.Stat{IsDirectory: true}, nil
	}
	return vfs.Stat{IsFile: true}, nil
}

func (a *Adapter) Lstat(ctx context.Context, path string) (vfs.Stat, error) {
	return a.Stat(ctx, path)
}

func (a *Adapter) Readdir(ctx context.Context, path string) ([]string, error) {
	e, err := a.resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	if !e.isFolder {
		return nil, vfs.NewError(vfs.KindNotDirectory, "scandir", path)
	}
	children, err := a.client.ListChildren(ctx, e.id)
	if err != nil {
		return nil, vfs.NewErrorf(vfs.KindIoError, "scandir", path, "%v", err).Wrap(err)
	}
	names := make([]string, 0, len(children))
	for _, c := range children {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names, nil
}

func (a *Adapter) Mkdir(ctx context.Context, path string, opts vfs.MkdirOptions) error {
	p := vfspath.Normalize(path)
	if e, err := a.resolve(ctx, p); err == nil {
		if opts.Recursive && e.isFolder {
			return nil
		}
		return vfs.NewError(vfs.KindExists, "mkdir", p)
	}

	parentEntry, err := a.resolve(ctx, vfspath.Parent(p))
	if err != nil {
		if !opts.Recursive {
			return err
		}
		if err := a.Mkdir(ctx, vfspath.Parent(p), opts); err != nil {
			return err
		}
		parentEntry, err = a.resolve(ctx, vfspath.Parent(p))
		if err != nil {
			return err
		}
	}

	id, err := a.client.CreateFolder(ctx, parentEntry.id, vfspath.Base(p))
	if err != nil {
		return vfs.NewErrorf(vfs.KindIoError, "mkdir", p, "%v", err).Wrap(err)
	}
	a.cachePut(p, cacheEntry{id: id, isFolder: true})
	return nil
}

func (a *Adapter) Rm(ctx context.Context, path string, opts vfs.RmOptions) error {
	p := vfspath.Normalize(path)
	e, err := a.resolve(ctx, p)
	if err != nil {
		if vfs.IsNotFound(err) && opts.Force {
			return nil
		}
		return err
	}
	if e.isFolder {
		children, err := a.client.ListChildren(ctx, e.id)
		if err != nil {
			return vfs.NewErrorf(vfs.KindIoError, "rm", p, "%v", err).Wrap(err)
		}
		if len(children) > 0 && !opts.Recursive {
			return vfs.NewError(vfs.KindNotEmpty, "rm", p)
		}
	}
	if err := a.client.Delete(ctx, e.id); err != nil {
		return vfs.NewErrorf(vfs.KindIoError, "rm", p, "%v", err).Wrap(err)
	}
	a.cacheInvalidate(p)
	return nil
}

func (a *Adapter) Cp(ctx context.Context, src, dst string, opts vfs.CpOptions) error {
	st, err := a.Stat(ctx, src)
	if err != nil {
		return err
	}
	if st.IsDirectory {
		if !opts.Recursive {
			return vfs.NewError(vfs.KindIsDirectory, "cp", src)
		}
		if err := a.Mkdir(ctx, dst, vfs.MkdirOptions{Recursive: true}); err != nil && !vfs.IsExists(err) {
			return err
		}
		names, err := a.Readdir(ctx, src)
		if err != nil {
			return err
		}
		for _, n := range names {
			if err := a.Cp(ctx, src+"/"+n, dst+"/"+n, opts); err != nil {
				return err
			}
		}
		return nil
	}
	data, err := a.ReadFileBuffer(ctx, src)
	if err != nil {
		return err
	}
	return a.WriteFile(ctx, dst, data)
}

func (a *Adapter) Mv(ctx context.Context, src, dst string) error {
	e, err := a.resolve(ctx, src)
	if err != nil {
		return err
	}
	parentEntry, err := a.resolve(ctx, vfspath.Parent(dst))
	if err != nil {
		return err
	}
	if err := a.client.Move(ctx, e.id, parentEntry.id, vfspath.Base(dst)); err != nil {
		return vfs.NewErrorf(vfs.KindIoError, "mv", src, "%v", err).Wrap(err)
	}
	a.cacheInvalidate(vfspath.Normalize(src))
	a.cachePut(vfspath.Normalize(dst), e)
	return nil
}

func (a *Adapter) Chmod(context.Context, string, uint32) error { return nil }

func (a *Adapter) Symlink(ctx context.Context, target, linkPath string) error {
	return a.WriteFile(ctx, linkPath, []byte(target))
}

func (a *Adapter) Link(ctx context.Context, target, linkPath string) error {
	return a.Cp(ctx, target, linkPath, vfs.CpOptions{Recursive: true})
}

func (a *Adapter) Readlink(ctx context.Context, path string) (string, error) {
	raw, err := a.ReadFileBuffer(ctx, path)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (a *Adapter) Realpath(_ context.Context, path string) (string, error) {
	return vfspath.Normalize(path), nil
}

func (a *Adapter) ResolvePath(ctx context.Context, path string) (string, error) {
	return a.Realpath(ctx, path)
}

func (a *Adapter) Utimes(context.Context, string, time.Time, time.Time) error { return nil }
