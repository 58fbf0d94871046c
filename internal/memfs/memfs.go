// Package memfs is the hash-map-backed in-memory filesystem adapter
// used as the router's base filesystem and for ephemeral scaffolding
// such as /mnt (spec §2, "In-memory adapter").
package memfs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ConfigButler/vfscore/internal/vfs"
	"github.com/ConfigButler/vfscore/internal/vfspath"
)

type nodeKind int

const (
	kindFile nodeKind = iota
	kindDir
	kindSymlink
)

type node struct {
	kind    nodeKind
	content []byte // file bytes, or symlink target
	mode    uint32
	mtime   time.Time
}

// FS is a mutex-guarded map of normalised path to node. Multiple
// goroutines may call through the router concurrently (spec §5), so
// every operation below takes the lock even though the filesystem
// itself never schedules parallel work internally.
type FS struct {
	mu    sync.RWMutex
	nodes map[string]*node
}

// New returns an empty in-memory filesystem with its root directory present.
func New() *FS {
	f := &FS{nodes: map[string]*node{}}
	f.nodes["/"] = &node{kind: kindDir, mtime: time.Now(), mode: 0o755}
	return f
}

var _ vfs.FS = (*FS)(nil)

func (f *FS) ReadFileBuffer(_ context.Context, path string) ([]byte, error) {
	p := vfspath.Normalize(path)
	f.mu.RLock()
	defer f.mu.RUnlock()

	n, ok := f.nodes[p]
	if !ok {
		return nil, vfs.NewError(vfs.KindNotFound, "open", p)
	}
	if n.kind == kindDir {
		return nil, vfs.NewError(vfs.KindIsDirectory, "open", p)
	}
	out := make([]byte, len(n.content))
	copy(out, n.content)
	return out, nil
}

func (f *FS) ReadFile(ctx context.Context, path string, encoding vfs.Encoding) (string, error) {
	raw, err := f.ReadFileBuffer(ctx, path)
	if err != nil {
		return "", err
	}
	return decode(raw, encoding), nil
}

func decode(raw []byte, encoding vfs.Encoding) string {
	switch encoding {
	case vfs.EncodingBase64:
		return base64.StdEncoding.EncodeToString(raw)
	case vfs.EncodingHex:
		return hex.EncodeToString(raw)
	default:
		return string(raw)
	}
}

func (f *FS) WriteFile(_ context.Context, path string, data []byte) error {
	p := vfspath.Normalize(path)
	f.mu.Lock()
	defer f.mu.Unlock()

	parent := vfspath.Parent(p)
	if pn, ok := f.nodes[parent]; !ok || pn.kind != kindDir {
		return vfs.NewError(vfs.KindNotDirectory, "open", parent)
	}
	if existing, ok := f.nodes[p]; ok && existing.kind == kindDir {
		return vfs.NewError(vfs.KindIsDirectory, "open", p)
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	f.nodes[p] = &node{kind: kindFile, content: buf, mtime: time.Now(), mode: 0o644}
	return nil
}

func (f *FS) AppendFile(ctx context.Context, path string, data []byte) error {
	existing, err := f.ReadFileBuffer(ctx, path)
	if err != nil && !vfs.IsNotFound(err) {
		return err
	}
	return f.WriteFile(ctx, path, append(existing, data...))
}

func (f *FS) Exists(_ context.Context, path string) (bool, error) {
	p := vfspath.Normalize(path)
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.nodes[p]
	return ok, nil
}

func (f *FS) statLocked(p string) (vfs.Stat, error) {
	n, ok := f.nodes[p]
	if !ok {
		return vfs.Stat{}, vfs.NewError(vfs.KindNotFound, "stat", p)
	}
	return toStat(n), nil
}

func toStat(n *node) vfs.Stat {
	st := vfs.Stat{Mode: n.mode, Mtime: n.mtime}
	switch n.kind {
	case kindDir:
		st.IsDirectory = true
	case kindSymlink:
		st.IsSymbolicLink = true
		st.Size = int64(len(n.content))
	default:
		st.IsFile = true
		st.Size = int64(len(n.content))
	}
	return st
}

func (f *FS) Stat(_ context.Context, path string) (vfs.Stat, error) {
	p := vfspath.Normalize(path)
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.statLocked(p)
}

// Lstat does not differ from Stat in memfs: symlinks are plain nodes,
// never transparently followed.
func (f *FS) Lstat(ctx context.Context, path string) (vfs.Stat, error) {
	return f.Stat(ctx, path)
}

func (f *FS) Readdir(_ context.Context, path string) ([]string, error) {
	p := vfspath.Normalize(path)
	f.mu.RLock()
	defer f.mu.RUnlock()

	n, ok := f.nodes[p]
	if !ok {
		return nil, vfs.NewError(vfs.KindNotFound, "scandir", p)
	}
	if n.kind != kindDir {
		return nil, vfs.NewError(vfs.KindNotDirectory, "scandir", p)
	}

	prefix := p
	if prefix != "/" {
		prefix += "/"
	}
	seen := map[string]bool{}
	var names []string
	for childPath := range f.nodes {
		if childPath == p || !strings.HasPrefix(childPath, prefix) {
			continue
		}
		rest := strings.TrimPrefix(childPath, prefix)
		name := strings.SplitN(rest, "/", 2)[0]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (f *FS) Mkdir(_ context.Context, path string, opts vfs.MkdirOptions) error {
	p := vfspath.Normalize(path)
	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.nodes[p]; ok {
		if opts.Recursive && existing.kind == kindDir {
			return nil
		}
		return vfs.NewError(vfs.KindExists, "mkdir", p)
	}

	if !opts.Recursive {
		parent := vfspath.Parent(p)
		if pn, ok := f.nodes[parent]; !ok || pn.kind != kindDir {
			return vfs.NewError(vfs.KindNotFound, "mkdir", parent)
		}
		f.nodes[p] = &node{kind: kindDir, mtime: time.Now(), mode: 0o755}
		return nil
	}

	// Recursive: create every missing ancestor.
	var toCreate []string
	cur := p
	for cur != "/" {
		if n, ok := f.nodes[cur]; ok {
			if n.kind != kindDir {
				return vfs.NewError(vfs.KindNotDirectory, "mkdir", cur)
			}
			break
		}
		toCreate = append(toCreate, cur)
		cur = vfspath.Parent(cur)
	}
	for i := len(toCreate) - 1; i >= 0; i-- {
		f.nodes[toCreate[i]] = &node{kind: kindDir, mtime: time.Now(), mode: 0o755}
	}
	return nil
}

func (f *FS) Rm(_ context.Context, path string, opts vfs.RmOptions) error {
	p := vfspath.Normalize(path)
	f.mu.Lock()
	defer f.mu.Unlock()

	n, ok := f.nodes[p]
	if !ok {
		if opts.Force {
			return nil
		}
		return vfs.NewError(vfs.KindNotFound, "rm", p)
	}

	if n.kind == kindDir {
		prefix := p
		if prefix != "/" {
			prefix += "/"
		}
		var children []string
		for childPath := range f.nodes {
			if childPath != p && strings.HasPrefix(childPath, prefix) {
				children = append(children, childPath)
			}
		}
		if len(children) > 0 && !opts.Recursive {
			return vfs.NewError(vfs.KindNotEmpty, "rm", p)
		}
		for _, c := range children {
			delete(f.nodes, c)
		}
	}
	delete(f.nodes, p)
	return nil
}

func (f *FS) Cp(ctx context.Context, src, dst string, opts vfs.CpOptions) error {
	srcStat, err := f.Stat(ctx, src)
	if err != nil {
		return err
	}
	if srcStat.IsDirectory {
		if !opts.Recursive {
			return vfs.NewError(vfs.KindIsDirectory, "cp", src)
		}
		if err := f.Mkdir(ctx, dst, vfs.MkdirOptions{Recursive: true}); err != nil && !vfs.IsExists(err) {
			return err
		}
		names, err := f.Readdir(ctx, src)
		if err != nil {
			return err
		}
		for _, name := range names {
			if err := f.Cp(ctx, src+"/"+name, dst+"/"+name, opts); err != nil {
				return err
			}
		}
		return nil
	}
	data, err := f.ReadFileBuffer(ctx, src)
	if err != nil {
		return err
	}
	return f.WriteFile(ctx, dst, data)
}

func (f *FS) Mv(ctx context.Context, src, dst string) error {
	if err := f.Cp(ctx, src, dst, vfs.CpOptions{Recursive: true}); err != nil {
		return err
	}
	return f.Rm(ctx, src, vfs.RmOptions{Recursive: true})
}

func (f *FS) Chmod(_ context.Context, path string, mode uint32) error {
	p := vfspath.Normalize(path)
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[p]
	if !ok {
		return vfs.NewError(vfs.KindNotFound, "chmod", p)
	}
	n.mode = mode
	return nil
}

func (f *FS) Symlink(_ context.Context, target, linkPath string) error {
	p := vfspath.Normalize(linkPath)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[p] = &node{kind: kindSymlink, content: []byte(target), mtime: time.Now(), mode: 0o120000}
	return nil
}

func (f *FS) Link(ctx context.Context, target, linkPath string) error {
	// No hard links (spec non-goal): emulate by copy.
	return f.Cp(ctx, target, linkPath, vfs.CpOptions{Recursive: true})
}

func (f *FS) Readlink(_ context.Context, path string) (string, error) {
	p := vfspath.Normalize(path)
	f.mu.RLock()
	defer f.mu.RUnlock()
	n, ok := f.nodes[p]
	if !ok {
		return "", vfs.NewError(vfs.KindNotFound, "readlink", p)
	}
	if n.kind != kindSymlink {
		return "", vfs.NewError(vfs.KindInvalidArg, "readlink", p)
	}
	return string(n.content), nil
}

func (f *FS) Realpath(_ context.Context, path string) (string, error) {
	return vfspath.Normalize(path), nil
}

func (f *FS) ResolvePath(ctx context.Context, path string) (string, error) {
	return f.Realpath(ctx, path)
}

func (f *FS) Utimes(_ context.Context, path string, _ time.Time, mtime time.Time) error {
	p := vfspath.Normalize(path)
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[p]
	if !ok {
		return vfs.NewError(vfs.KindNotFound, "utimes", p)
	}
	n.mtime = mtime
	return nil
}

// EqualBytes reports whether a node's content equals b; exposed for tests.
func EqualBytes(a, b []byte) bool {
	return bytes.Equal(a, b)
}
