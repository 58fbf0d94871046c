// Package gitfs presents a remote Git ref as a read/write POSIX
// filesystem (spec §4.5, "the hard part"): writes buffer in a
// blob-store overlay until commit, commit lands against an in-memory
// object database, push/pull move the remote and the object database
// in lockstep. Grounded on the teacher's internal/git package, with
// the on-disk PlainOpen/PlainInit clone swapped for the isomorphic
// in-memory storage pairing (storage/filesystem.Storage over a
// go-billy memfs) the teacher itself uses for its in-memory test
// fixtures (internal/git/abstraction_test.go).
package gitfs

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-logr/logr"

	"github.com/ConfigButler/vfscore/internal/blobstore"
	"github.com/ConfigButler/vfscore/internal/vfs"
	"github.com/ConfigButler/vfscore/internal/vfspath"
)

const defaultDepth = 1

// dirPlaceholder makes an otherwise-empty overlay directory
// discoverable, the same trick blobstore.Adapter plays with ".keep".
const dirPlaceholder = ".gitkeep"

// isPlaceholderPath reports whether p names the empty-directory
// placeholder itself. Git has no way to track an empty directory, so
// callers that materialise or report pending changes (Commit, Status)
// must skip it instead of committing or surfacing a bogus ".gitkeep"
// file; callers that report existence (overlay.hasChildren) or purge a
// whole subtree (Rm -r, clearUserFiles) must not.
func isPlaceholderPath(p string) bool {
	return vfspath.Base(p) == dirPlaceholder
}

// Config configures one Git mount.
type Config struct {
	URL        string // clone URL
	Ref        string // branch short name; empty asks the remote for its default
	Depth      int
	MountPoint string
	UserID     string
	Auth       transport.AuthMethod
	Logger     logr.Logger
}

// GitFs is a vfs.FS backed by a remote Git repository plus a
// blob-store overlay of pending writes.
type GitFs struct {
	cfg     Config
	overlay *overlay

	initMu      sync.Mutex
	initialized bool

	odb  *ObjectDB
	repo *git.Repository

	commitOid   string
	remoteOid   string
	ref         string
	commitMtime time.Time
	deleted     map[string]struct{}
	tree        *treeCache
}

var _ vfs.FS = (*GitFs)(nil)

// New constructs a GitFs mount. Init (explicit or lazy, on first
// operation) performs the actual restore-or-clone.
func New(bucket blobstore.Bucket, cfg Config) *GitFs {
	if cfg.Depth <= 0 {
		cfg.Depth = defaultDepth
	}
	return &GitFs{
		cfg:     cfg,
		overlay: newOverlay(bucket, cfg.UserID, cfg.MountPoint),
		ref:     cfg.Ref,
		deleted: map[string]struct{}{},
		tree:    newTreeCache(),
	}
}

// Init is idempotent: once it succeeds, later calls are no-ops; a
// failed attempt does not poison future retries.
func (g *GitFs) Init(ctx context.Context) error {
	g.initMu.Lock()
	defer g.initMu.Unlock()
	if g.initialized {
		return nil
	}
	if err := g.restoreOrClone(ctx); err != nil {
		return err
	}
	g.initialized = true
	return nil
}

func (g *GitFs) restoreOrClone(ctx context.Context) error {
	meta, ok, err := g.overlay.readMeta(ctx)
	if err != nil {
		return mountErr(g.cfg.MountPoint, "read meta", err)
	}
	if ok && meta.Depth == g.cfg.Depth {
		if err := g.restoreFromOverlay(ctx, meta); err == nil {
			return nil
		}
		// Fall through to a fresh clone: a torn or incompatible
		// snapshot should not permanently wedge the mount.
	}
	return g.cloneFresh(ctx)
}

func (g *GitFs) restoreFromOverlay(ctx context.Context, meta Metadata) error {
	snap, ok, err := g.overlay.readPack(ctx)
	if err != nil {
		return mountErr(g.cfg.MountPoint, "read pack", err)
	}
	if !ok {
		return errors.New("meta present without a pack snapshot")
	}
	odb, err := RestoreObjectDB(snap)
	if err != nil {
		return mountErr(g.cfg.MountPoint, "restore pack", err)
	}
	repo, err := git.Open(odb.Storer, odb.Worktree())
	if err != nil {
		return mountErr(g.cfg.MountPoint, "open restored repo", err)
	}

	g.odb = odb
	g.repo = repo
	g.commitOid = meta.CommitOid
	g.remoteOid = meta.RemoteOid
	g.ref = meta.Ref
	g.commitMtime = meta.CommitMtime
	g.deleted = make(map[string]struct{}, len(meta.Deleted))
	for _, p := range meta.Deleted {
		g.deleted[p] = struct{}{}
	}
	g.tree = newTreeCache()
	return nil
}

func (g *GitFs) cloneFresh(ctx context.Context) error {
	ref := g.ref
	if ref == "" {
		branch, err := discoverDefaultBranch(g.cfg.URL, g.cfg.Auth)
		if err != nil {
			return mountErr(g.cfg.MountPoint, "discover default branch", err)
		}
		ref = branch
	}

	odb := NewObjectDB()
	cloneOpts := &git.CloneOptions{
		URL:           g.cfg.URL,
		Auth:          g.cfg.Auth,
		ReferenceName: plumbing.NewBranchReferenceName(ref),
		SingleBranch:  true,
		Depth:         g.cfg.Depth,
		NoCheckout:    true,
		Tags:          git.NoTags,
	}
	repo, err := git.CloneContext(ctx, odb.Storer, odb.Worktree(), cloneOpts)
	if err != nil {
		return mountErr(g.cfg.MountPoint, "clone "+g.cfg.URL, err)
	}

	head, err := repo.Head()
	if err != nil {
		return mountErr(g.cfg.MountPoint, "resolve HEAD", err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return mountErr(g.cfg.MountPoint, "read HEAD commit", err)
	}

	g.odb = odb
	g.repo = repo
	g.ref = ref
	g.commitOid = head.Hash().String()
	g.remoteOid = g.commitOid
	g.commitMtime = commit.Committer.When
	g.deleted = map[string]struct{}{}
	g.tree = newTreeCache()

	return g.persist(ctx)
}

func discoverDefaultBranch(url string, auth transport.AuthMethod) (string, error) {
	remote := git.NewRemote(nil, &config.RemoteConfig{Name: "origin", URLs: []string{url}})
	refs, err := remote.List(&git.ListOptions{Auth: auth})
	if err != nil {
		return "", err
	}
	for _, ref := range refs {
		if ref.Name() == plumbing.HEAD && ref.Type() == plumbing.SymbolicReference {
			return ref.Target().Short(), nil
		}
	}
	return "", errors.New("remote did not advertise a HEAD reference")
}

func mountErr(mountPoint, detail string, cause error) error {
	return vfs.NewErrorf(vfs.KindIoError, "mount", mountPoint, "%s: %v", detail, cause).Wrap(cause)
}

func (g *GitFs) persist(ctx context.Context) error {
	snap, err := g.odb.Snapshot()
	if err != nil {
		return mountErr(g.cfg.MountPoint, "snapshot pack", err)
	}
	if err := g.overlay.writePack(ctx, snap); err != nil {
		return mountErr(g.cfg.MountPoint, "write pack", err)
	}
	return g.persistMeta(ctx)
}

func (g *GitFs) persistMeta(ctx context.Context) error {
	if err := g.overlay.writeMeta(ctx, g.metadata()); err != nil {
		return mountErr(g.cfg.MountPoint, "write meta", err)
	}
	return nil
}

func (g *GitFs) metadata() Metadata {
	deleted := make([]string, 0, len(g.deleted))
	for p := range g.deleted {
		deleted = append(deleted, p)
	}
	sort.Strings(deleted)
	return Metadata{
		CommitOid:   g.commitOid,
		RemoteOid:   g.remoteOid,
		Ref:         g.ref,
		URL:         g.cfg.URL,
		CommitMtime: g.commitMtime,
		Deleted:     deleted,
		Depth:       g.cfg.Depth,
	}
}

// HasUnpushedCommits reports whether commit() has advanced commitOid
// past what the remote last acknowledged.
func (g *GitFs) HasUnpushedCommits() bool {
	return g.commitOid != g.remoteOid
}

func isReservedPath(p string) bool {
	return strings.HasPrefix(strings.TrimPrefix(vfspath.Normalize(p), "/"), gitReservedPrefix)
}

func (g *GitFs) isDeleted(p string) bool {
	for cur := vfspath.Normalize(p); ; cur = vfspath.Parent(cur) {
		if _, ok := g.deleted[cur]; ok {
			return true
		}
		if cur == "/" {
			return false
		}
	}
}

func (g *GitFs) headTree() (*object.Tree, error) {
	hash := plumbing.NewHash(g.commitOid)
	if hash.IsZero() {
		return nil, nil //nolint:nilnil // an unborn branch has no tree yet
	}
	commit, err := g.repo.CommitObject(hash)
	if err != nil {
		return nil, err
	}
	return commit.Tree()
}

func treeRelPath(p string) string {
	return strings.TrimPrefix(vfspath.Normalize(p), "/")
}

func (g *GitFs) treeFile(tree *object.Tree, p string) (*object.File, error) {
	if tree == nil {
		return nil, object.ErrFileNotFound
	}
	rel := treeRelPath(p)
	if rel == "" {
		return nil, object.ErrFileNotFound
	}
	return tree.File(rel)
}

func (g *GitFs) treeSubtree(tree *object.Tree, p string) (*object.Tree, error) {
	if tree == nil {
		return nil, object.ErrDirectoryNotFound
	}
	rel := treeRelPath(p)
	if rel == "" {
		return tree, nil
	}
	return tree.Tree(rel)
}

// cachedSubtreeEntries returns the entries of directory p in the
// current committed tree, via the per-OID cache.
func (g *GitFs) cachedSubtreeEntries(tree *object.Tree, p string) ([]GitTreeEntry, error) {
	g.tree = g.tree.forOID(g.commitOid)
	key := vfspath.Normalize(p)
	if entries, ok := g.tree.get(key); ok {
		return entries, nil
	}
	sub, err := g.treeSubtree(tree, p)
	if err != nil {
		return nil, err
	}
	entries := make([]GitTreeEntry, 0, len(sub.Entries))
	for _, e := range sub.Entries {
		entries = append(entries, GitTreeEntry{
			Name:      e.Name,
			Mode:      e.Mode,
			IsDir:     e.Mode == filemode.Dir,
			IsSymlink: e.Mode == filemode.Symlink,
		})
	}
	g.tree.put(key, entries)
	return entries, nil
}

// --- vfs.FS ---

func (g *GitFs) ReadFileBuffer(ctx context.Context, p string) ([]byte, error) {
	if err := g.Init(ctx); err != nil {
		return nil, err
	}
	if isReservedPath(p) {
		return nil, vfs.NewError(vfs.KindNotFound, "open", p)
	}
	if data, ok, err := g.overlay.get(ctx, p); err != nil {
		return nil, vfs.NewErrorf(vfs.KindIoError, "open", p, "%v", err).Wrap(err)
	} else if ok {
		return data, nil
	}
	if g.isDeleted(p) {
		return nil, vfs.NewError(vfs.KindNotFound, "open", p)
	}
	tree, err := g.headTree()
	if err != nil {
		return nil, vfs.NewErrorf(vfs.KindIoError, "open", p, "%v", err).Wrap(err)
	}
	file, err := g.treeFile(tree, p)
	if err != nil {
		return nil, vfs.NewError(vfs.KindNotFound, "open", p)
	}
	content, err := file.Contents()
	if err != nil {
		return nil, vfs.NewErrorf(vfs.KindIoError, "open", p, "%v", err).Wrap(err)
	}
	return []byte(content), nil
}

func (g *GitFs) ReadFile(ctx context.Context, p string, encoding vfs.Encoding) (string, error) {
	raw, err := g.ReadFileBuffer(ctx, p)
	if err != nil {
		return "", err
	}
	return decodeText(raw, encoding), nil
}

func (g *GitFs) WriteFile(ctx context.Context, p string, data []byte) error {
	if err := g.Init(ctx); err != nil {
		return err
	}
	if isReservedPath(p) {
		return vfs.NewError(vfs.KindPermissionDenied, "open", p)
	}
	if err := g.overlay.put(ctx, p, data); err != nil {
		return vfs.NewErrorf(vfs.KindIoError, "open", p, "%v", err).Wrap(err)
	}
	return g.unmarkDeleted(ctx, p)
}

func (g *GitFs) unmarkDeleted(ctx context.Context, p string) error {
	norm := vfspath.Normalize(p)
	if _, ok := g.deleted[norm]; !ok {
		return nil
	}
	delete(g.deleted, norm)
	return g.persistMeta(ctx)
}

func (g *GitFs) AppendFile(ctx context.Context, p string, data []byte) error {
	current, err := g.ReadFileBuffer(ctx, p)
	if err != nil && !vfs.IsNotFound(err) {
		return err
	}
	return g.WriteFile(ctx, p, append(current, data...))
}

func (g *GitFs) Exists(ctx context.Context, p string) (bool, error) {
	if err := g.Init(ctx); err != nil {
		return false, err
	}
	if isReservedPath(p) {
		return false, nil
	}
	if _, ok, err := g.overlay.get(ctx, p); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}
	hasChildren, err := g.overlay.hasChildren(ctx, p)
	if err != nil {
		return false, err
	}
	if hasChildren {
		return true, nil
	}
	if g.isDeleted(p) {
		return false, nil
	}
	tree, err := g.headTree()
	if err != nil {
		return false, vfs.NewErrorf(vfs.KindIoError, "stat", p, "%v", err).Wrap(err)
	}
	if _, err := g.treeFile(tree, p); err == nil {
		return true, nil
	}
	_, err = g.treeSubtree(tree, p)
	return err == nil, nil
}

func (g *GitFs) Stat(ctx context.Context, p string) (vfs.Stat, error) {
	if err := g.Init(ctx); err != nil {
		return vfs.Stat{}, err
	}
	if isReservedPath(p) {
		return vfs.Stat{}, vfs.NewError(vfs.KindNotFound, "stat", p)
	}

	if data, ok, err := g.overlay.get(ctx, p); err != nil {
		return vfs.Stat{}, err
	} else if ok {
		return vfs.Stat{IsFile: true, Size: int64(len(data)), Mtime: g.commitMtime}, nil
	}

	hasChildren, err := g.overlay.hasChildren(ctx, p)
	if err != nil {
		return vfs.Stat{}, err
	}
	if hasChildren {
		return vfs.Stat{IsDirectory: true, Mtime: g.commitMtime}, nil
	}

	if g.isDeleted(p) {
		return vfs.Stat{}, vfs.NewError(vfs.KindNotFound, "stat", p)
	}

	tree, err := g.headTree()
	if err != nil {
		return vfs.Stat{}, vfs.NewErrorf(vfs.KindIoError, "stat", p, "%v", err).Wrap(err)
	}
	if file, ferr := g.treeFile(tree, p); ferr == nil {
		return vfs.Stat{
			IsFile:         file.Mode != filemode.Symlink,
			IsSymbolicLink: file.Mode == filemode.Symlink,
			Mode:           uint32(file.Mode),
			Size:           file.Size,
			Mtime:          g.commitMtime,
		}, nil
	}
	if _, derr := g.treeSubtree(tree, p); derr == nil {
		return vfs.Stat{IsDirectory: true, Mtime: g.commitMtime}, nil
	}
	return vfs.Stat{}, vfs.NewError(vfs.KindNotFound, "stat", p)
}

func (g *GitFs) Lstat(ctx context.Context, p string) (vfs.Stat, error) {
	return g.Stat(ctx, p)
}

func (g *GitFs) Readdir(ctx context.Context, p string) ([]string, error) {
	if err := g.Init(ctx); err != nil {
		return nil, err
	}
	if isReservedPath(p) {
		return nil, vfs.NewError(vfs.KindNotFound, "scandir", p)
	}

	names := map[string]struct{}{}
	isDir := false

	if !g.isDeleted(p) {
		tree, err := g.headTree()
		if err != nil {
			return nil, vfs.NewErrorf(vfs.KindIoError, "scandir", p, "%v", err).Wrap(err)
		}
		entries, err := g.cachedSubtreeEntries(tree, p)
		switch {
		case err == nil:
			isDir = true
			for _, e := range entries {
				if g.isDeleted(vfspath.Join(p, e.Name)) {
					continue
				}
				names[e.Name] = struct{}{}
			}
		default:
			if _, ferr := g.treeFile(tree, p); ferr == nil {
				return nil, vfs.NewError(vfs.KindNotDirectory, "scandir", p)
			}
		}
	}

	overlayChildren, err := g.overlay.children(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(overlayChildren) > 0 {
		isDir = true
		for _, c := range overlayChildren {
			names[c] = struct{}{}
		}
	}

	// An overlay directory holding only the empty-directory placeholder
	// has no listable children, but it is still a directory: Exists and
	// Stat already treat it as one via overlay.hasChildren.
	if !isDir {
		empty, err := g.overlay.hasChildren(ctx, p)
		if err != nil {
			return nil, err
		}
		isDir = empty
	}

	if !isDir {
		return nil, vfs.NewError(vfs.KindNotFound, "scandir", p)
	}

	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

func (g *GitFs) Mkdir(ctx context.Context, p string, opts vfs.MkdirOptions) error {
	if err := g.Init(ctx); err != nil {
		return err
	}
	exists, err := g.Exists(ctx, p)
	if err != nil {
		return err
	}
	if exists {
		if opts.Recursive {
			return nil
		}
		return vfs.NewError(vfs.KindExists, "mkdir", p)
	}

	parent := vfspath.Parent(p)
	if opts.Recursive {
		if parent != "" && parent != p {
			if err := g.Mkdir(ctx, parent, opts); err != nil {
				return err
			}
		}
	} else if parent != "" && parent != p {
		parentExists, err := g.Exists(ctx, parent)
		if err != nil {
			return err
		}
		if !parentExists {
			return vfs.NewError(vfs.KindNotFound, "mkdir", p)
		}
	}

	if err := g.overlay.put(ctx, vfspath.Join(p, dirPlaceholder), nil); err != nil {
		return vfs.NewErrorf(vfs.KindIoError, "mkdir", p, "%v", err).Wrap(err)
	}
	return g.unmarkDeleted(ctx, p)
}

func (g *GitFs) Rm(ctx context.Context, p string, opts vfs.RmOptions) error {
	if err := g.Init(ctx); err != nil {
		return err
	}
	if isReservedPath(p) {
		return vfs.NewError(vfs.KindPermissionDenied, "rm", p)
	}

	visible, err := g.Exists(ctx, p)
	if err != nil {
		return err
	}
	if !visible {
		if opts.Force {
			return nil
		}
		return vfs.NewError(vfs.KindNotFound, "rm", p)
	}

	if _, ok, err := g.overlay.get(ctx, p); err != nil {
		return err
	} else if ok {
		if err := g.overlay.delete(ctx, p); err != nil {
			return vfs.NewErrorf(vfs.KindIoError, "rm", p, "%v", err).Wrap(err)
		}
	}

	norm := vfspath.Normalize(p)
	g.deleted[norm] = struct{}{}

	if opts.Recursive {
		prefix := norm
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		for d := range g.deleted {
			if d != norm && strings.HasPrefix(d, prefix) {
				delete(g.deleted, d)
			}
		}
		children, err := g.overlay.allFiles(ctx)
		if err == nil {
			for _, c := range children {
				if strings.HasPrefix(c, prefix) {
					_ = g.overlay.delete(ctx, c)
				}
			}
		}
	}

	return g.persistMeta(ctx)
}

func (g *GitFs) Cp(ctx context.Context, src, dst string, opts vfs.CpOptions) error {
	st, err := g.Stat(ctx, src)
	if err != nil {
		return err
	}
	if st.IsDirectory {
		if !opts.Recursive {
			return vfs.NewError(vfs.KindIsDirectory, "cp", src)
		}
		names, err := g.Readdir(ctx, src)
		if err != nil {
			return err
		}
		for _, n := range names {
			if err := g.Cp(ctx, vfspath.Join(src, n), vfspath.Join(dst, n), opts); err != nil {
				return err
			}
		}
		return nil
	}
	data, err := g.ReadFileBuffer(ctx, src)
	if err != nil {
		return err
	}
	return g.WriteFile(ctx, dst, data)
}

func (g *GitFs) Mv(ctx context.Context, src, dst string) error {
	if err := g.Cp(ctx, src, dst, vfs.CpOptions{Recursive: true}); err != nil {
		return err
	}
	return g.Rm(ctx, src, vfs.RmOptions{Recursive: true})
}

func (g *GitFs) Chmod(context.Context, string, uint32) error { return nil }

func (g *GitFs) Symlink(ctx context.Context, target, linkPath string) error {
	return g.WriteFile(ctx, linkPath, []byte(target))
}

func (g *GitFs) Link(ctx context.Context, target, linkPath string) error {
	return g.Cp(ctx, target, linkPath, vfs.CpOptions{Recursive: true})
}

func (g *GitFs) Readlink(ctx context.Context, p string) (string, error) {
	if err := g.Init(ctx); err != nil {
		return "", err
	}
	if data, ok, err := g.overlay.get(ctx, p); err != nil {
		return "", err
	} else if ok {
		return string(data), nil
	}
	if g.isDeleted(p) {
		return "", vfs.NewError(vfs.KindNotFound, "readlink", p)
	}
	tree, err := g.headTree()
	if err != nil {
		return "", vfs.NewErrorf(vfs.KindIoError, "readlink", p, "%v", err).Wrap(err)
	}
	file, ferr := g.treeFile(tree, p)
	if ferr != nil {
		return "", vfs.NewError(vfs.KindNotFound, "readlink", p)
	}
	if file.Mode != filemode.Symlink {
		return "", vfs.NewError(vfs.KindInvalidArg, "readlink", p)
	}
	content, err := file.Contents()
	if err != nil {
		return "", vfs.NewErrorf(vfs.KindIoError, "readlink", p, "%v", err).Wrap(err)
	}
	return content, nil
}

func (g *GitFs) Realpath(_ context.Context, p string) (string, error) {
	return vfspath.Normalize(p), nil
}

func (g *GitFs) ResolvePath(ctx context.Context, p string) (string, error) {
	return g.Realpath(ctx, p)
}

func (g *GitFs) Utimes(context.Context, string, time.Time, time.Time) error { return nil }

func decodeText(raw []byte, encoding vfs.Encoding) string {
	switch encoding {
	case vfs.EncodingBase64:
		return base64.StdEncoding.EncodeToString(raw)
	case vfs.EncodingHex:
		return hex.EncodeToString(raw)
	default:
		return string(raw)
	}
}
