package gitfs

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/ConfigButler/vfscore/internal/blobstore"
	"github.com/ConfigButler/vfscore/internal/metrics"
	"github.com/ConfigButler/vfscore/internal/vfspath"
)

// gitReservedPrefix is the namespace within a mount's overlay that
// holds repo-internal state instead of user-visible files.
const gitReservedPrefix = ".git/"

// overlay is the blob-store-backed pending-write layer for one Git
// mount, scoped by (userId, mountPoint) the way spec §4.5.1 describes.
// All writes land here; nothing is materialised into the Git object
// database until commit().
type overlay struct {
	bucket blobstore.Bucket
	userID string
	mount  string
}

func newOverlay(bucket blobstore.Bucket, userID, mountPoint string) *overlay {
	return &overlay{bucket: bucket, userID: userID, mount: mountPoint}
}

func (o *overlay) base() string {
	return o.userID + "/" + strings.Trim(mountKey(o.mount), "/") + "/"
}

func mountKey(mountPoint string) string {
	return strings.Trim(mountPoint, "/")
}

func (o *overlay) key(p string) string {
	return o.base() + strings.TrimPrefix(vfspath.Normalize(p), "/")
}

func (o *overlay) metaKey() string { return o.base() + gitReservedPrefix + "meta.json" }
func (o *overlay) packKey() string { return o.base() + gitReservedPrefix + "pack.json" }

// get returns the pending content at p, if any.
func (o *overlay) get(ctx context.Context, p string) ([]byte, bool, error) {
	data, err := o.bucket.Get(ctx, o.key(p))
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (o *overlay) put(ctx context.Context, p string, data []byte) error {
	prev, existed, err := o.get(ctx, p)
	if err != nil {
		return err
	}
	if err := o.bucket.Put(ctx, o.key(p), data); err != nil {
		return err
	}
	delta := int64(len(data))
	if existed {
		delta -= int64(len(prev))
	}
	metrics.OverlayBytes.Add(ctx, delta)
	return nil
}

func (o *overlay) delete(ctx context.Context, p string) error {
	prev, existed, err := o.get(ctx, p)
	if err != nil {
		return err
	}
	if err := o.bucket.Delete(ctx, o.key(p)); err != nil {
		return err
	}
	if existed {
		metrics.OverlayBytes.Add(ctx, -int64(len(prev)))
	}
	return nil
}

// children returns the direct child names of p among user-visible
// (non-reserved) overlay entries. The empty-directory placeholder
// (dirPlaceholder) is never among them: it marks p as a directory but
// is not itself a listable entry.
func (o *overlay) children(ctx context.Context, p string) ([]string, error) {
	names, _, err := o.rawChildren(ctx, p)
	if err != nil {
		return nil, err
	}
	return names, nil
}

// hasChildren reports whether p has any descendant in the overlay,
// visible or not (a "virtual directory") — the empty-directory
// placeholder alone is enough to mark p as an existing, empty
// directory, even though it is filtered out of children's listing.
func (o *overlay) hasChildren(ctx context.Context, p string) (bool, error) {
	_, any, err := o.rawChildren(ctx, p)
	if err != nil {
		return false, err
	}
	return any, nil
}

// rawChildren lists p's direct descendants, returning the
// user-visible names (placeholder excluded) and whether p has any
// overlay entry at all (placeholder included).
func (o *overlay) rawChildren(ctx context.Context, p string) ([]string, bool, error) {
	prefix := o.key(p)
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	objects, commonPrefixes, err := o.bucket.List(ctx, prefix, "/")
	if err != nil {
		return nil, false, err
	}
	var names []string
	any := false
	for _, obj := range objects {
		name := strings.TrimPrefix(obj, prefix)
		if name == "" || strings.HasPrefix(name, ".git/") {
			continue
		}
		any = true
		if name == dirPlaceholder {
			continue
		}
		names = append(names, name)
	}
	for _, cp := range commonPrefixes {
		name := strings.TrimPrefix(cp, prefix)
		name = strings.TrimSuffix(name, "/")
		if name == "" || name == ".git" {
			continue
		}
		any = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names, any, nil
}

// allFiles returns every user-visible path with a pending write,
// relative to the mount root (leading "/").
func (o *overlay) allFiles(ctx context.Context) ([]string, error) {
	prefix := o.base()
	objects, _, err := o.bucket.List(ctx, prefix, "")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, obj := range objects {
		rel := strings.TrimPrefix(obj, prefix)
		if rel == "" || strings.HasPrefix(rel, gitReservedPrefix) {
			continue
		}
		out = append(out, "/"+rel)
	}
	sort.Strings(out)
	return out, nil
}

// clearUserFiles removes every non-reserved overlay entry, used after
// a successful commit.
func (o *overlay) clearUserFiles(ctx context.Context) error {
	files, err := o.allFiles(ctx)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := o.delete(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

func (o *overlay) readMeta(ctx context.Context) (Metadata, bool, error) {
	data, err := o.bucket.Get(ctx, o.metaKey())
	if errors.Is(err, blobstore.ErrNotFound) {
		return Metadata{}, false, nil
	}
	if err != nil {
		return Metadata{}, false, err
	}
	m, err := unmarshalMetadata(data)
	if err != nil {
		return Metadata{}, false, err
	}
	return m, true, nil
}

func (o *overlay) writeMeta(ctx context.Context, m Metadata) error {
	data, err := marshalMetadata(m)
	if err != nil {
		return err
	}
	return o.bucket.Put(ctx, o.metaKey(), data)
}

func (o *overlay) readPack(ctx context.Context) (*PackSnapshot, bool, error) {
	data, err := o.bucket.Get(ctx, o.packKey())
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var snap PackSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, err
	}
	return &snap, true, nil
}

func (o *overlay) writePack(ctx context.Context, snap *PackSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return o.bucket.Put(ctx, o.packKey(), data)
}
