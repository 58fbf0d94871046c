package gitfs

import (
	"encoding/base64"
	"io"
	"path"
	"sort"

	"github.com/go-git/go-billy/v5"
)

// PackSnapshot is the serialisable form of the Git object database's
// backing filesystem (the ".git" directory tree managed by go-git's
// storage/filesystem.Storage), persisted at /.git/pack.json in the
// overlay blob-store so a mount can be torn down and reopened without
// losing unpushed history.
type PackSnapshot struct {
	Files map[string]string `json:"files"` // path -> base64 content
	Dirs  []string          `json:"dirs"`  // directories with no entries at all
}

// SnapshotFS walks a billy filesystem and captures every regular file
// and empty directory it contains.
func SnapshotFS(fs billy.Filesystem) (*PackSnapshot, error) {
	snap := &PackSnapshot{Files: map[string]string{}}
	if err := walkBilly(fs, "/", snap); err != nil {
		return nil, err
	}
	sort.Strings(snap.Dirs)
	return snap, nil
}

func walkBilly(fs billy.Filesystem, dir string, snap *PackSnapshot) error {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return err
	}
	if len(entries) == 0 && dir != "/" {
		snap.Dirs = append(snap.Dirs, dir)
		return nil
	}
	for _, entry := range entries {
		full := path.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := walkBilly(fs, full, snap); err != nil {
				return err
			}
			continue
		}
		data, err := readBillyFile(fs, full)
		if err != nil {
			return err
		}
		snap.Files[full] = base64.StdEncoding.EncodeToString(data)
	}
	return nil
}

func readBillyFile(fs billy.Filesystem, name string) ([]byte, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// RestoreFS rebuilds a billy filesystem from a PackSnapshot. The
// round-trip law SnapshotFS(RestoreFS(s)) == s holds for any s that
// SnapshotFS produced, since SnapshotFS sorts Dirs itself.
func RestoreFS(fs billy.Filesystem, snap *PackSnapshot) error {
	for _, dir := range snap.Dirs {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	paths := make([]string, 0, len(snap.Files))
	for p := range snap.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		data, err := base64.StdEncoding.DecodeString(snap.Files[p])
		if err != nil {
			return err
		}
		if dir := path.Dir(p); dir != "." && dir != "/" {
			if err := fs.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		if err := writeBillyFile(fs, p, data); err != nil {
			return err
		}
	}
	return nil
}

func writeBillyFile(fs billy.Filesystem, name string, data []byte) error {
	f, err := fs.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}
