// Package rowstore implements the row-store (D1-shaped) adapter: CRUD
// of files as rows in a relational table, indexed by (user, path)
// (spec §4: "Row-store adapter (D1)", §6 "Row-store schema").
//
// The adapter is written against database/sql's driver-agnostic
// interface only; no concrete SQL driver is imported here, mirroring
// the teacher's preference for depending on an interface rather than
// a specific implementation wherever one is available. The embedding
// binary supplies the *sql.DB with whatever driver it needs.
package rowstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ConfigButler/vfscore/internal/vfs"
	"github.com/ConfigButler/vfscore/internal/vfspath"
)

// Adapter implements vfs.FS over a files(user_id, path, parent_path,
// name, content, is_directory, mode, size, mtime) table scoped to a
// single userID.
type Adapter struct {
	db     *sql.DB
	userID string
}

// New returns an adapter scoped to userID. The caller is responsible
// for having migrated the files table (see EnsureSchema).
func New(db *sql.DB, userID string) *Adapter {
	return &Adapter{db: db, userID: userID}
}

var _ vfs.FS = (*Adapter)(nil)

// EnsureSchema creates the files table if it does not already exist.
// Intended for the boot sequencer's schema-migration phase and for
// tests using an ephemeral database.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS files (
	user_id TEXT NOT NULL,
	path TEXT NOT NULL,
	parent_path TEXT NOT NULL,
	name TEXT NOT NULL,
	content BLOB,
	is_directory INTEGER NOT NULL,
	mode INTEGER NOT NULL,
	size INTEGER NOT NULL,
	mtime INTEGER NOT NULL,
	PRIMARY KEY (user_id, path)
)`)
	if err != nil {
		return fmt.Errorf("rowstore: ensure schema: %w", err)
	}
	return nil
}

func (a *Adapter) row(ctx context.Context, path string) (content []byte, isDir bool, mode uint32, size int64, mtime time.Time, err error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT content, is_directory, mode, size, mtime FROM files WHERE user_id=? AND path=?`,
		a.userID, path)

	var mtimeUnix int64
	scanErr := row.Scan(&content, &isDir, &mode, &size, &mtimeUnix)
	if errors.Is(scanErr, sql.ErrNoRows) {
		return nil, false, 0, 0, time.Time{}, vfs.NewError(vfs.KindNotFound, "open", path)
	}
	if scanErr != nil {
		return nil, false, 0, 0, time.Time{}, vfs.NewErrorf(vfs.KindIoError, "open", path, "%v", scanErr).Wrap(scanErr)
	}
	return content, isDir, mode, size, time.Unix(mtimeUnix, 0), nil
}

func (a *Adapter) ReadFileBuffer(ctx context.Context, path string) ([]byte, error) {
	p := vfspath.Normalize(path)
	content, isDir, _, _, _, err := a.row(ctx, p)
	if err != nil {
		return nil, err
	}
	if isDir {
		return nil, vfs.NewError(vfs.KindIsDirectory, "open", p)
	}
	return content, nil
}

func (a *Adapter) ReadFile(ctx context.Context, path string, encoding vfs.Encoding) (string, error) {
	raw, err := a.ReadFileBuffer(ctx, path)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (a *Adapter) upsert(ctx context.Context, path string, content []byte, isDir bool, mode uint32) error {
	p := vfspath.Normalize(path)
	parent := vfspath.Parent(p)
	name := vfspath.Base(p)
	size := int64(len(content))

	_, err := a.db.ExecContext(ctx, `
INSERT INTO files (user_id, path, parent_path, name, content, is_directory, mode, size, mtime)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, path) DO UPDATE SET
	content=excluded.content, is_directory=excluded.is_directory,
	mode=excluded.mode, size=excluded.size, mtime=excluded.mtime`,
		a.userID, p, parent, name, content, isDir, mode, size, time.Now().Unix())
	if err != nil {
		return vfs.NewErrorf(vfs.KindIoError, "open", p, "%v", err).Wrap(err)
	}
	return nil
}

func (a *Adapter) WriteFile(ctx context.Context, path string, data []byte) error {
	return a.upsert(ctx, path, data, false, 0o644)
}

func (a *Adapter) AppendFile(ctx context.Context, path string, data []byte) error {
	existing, err := a.ReadFileBuffer(ctx, path)
	if err != nil && !vfs.IsNotFound(err) {
		return err
	}
	return a.WriteFile(ctx, path, append(existing, data...))
}

func (a *Adapter) Exists(ctx context.Context, path string) (bool, error) {
	_, err := a.Stat(ctx, path)
	if err != nil {
		if vfs.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *Adapter) Stat(ctx context.Context, path string) (vfs.Stat, error) {
	p := vfspath.Normalize(path)
	if p == "/" {
		return vfs.Stat{IsDirectory: true}, nil
	}
	content, isDir, mode, size, mtime, err := a.row(ctx, p)
	if err != nil {
		return vfs.Stat{}, err
	}
	st := vfs.Stat{Mode: mode, Mtime: mtime}
	if isDir {
		st.IsDirectory = true
	} else {
		st.IsFile = true
		st.Size = size
	}
	_ = content
	return st, nil
}

func (a *Adapter) Lstat(ctx context.Context, path string) (vfs.Stat, error) {
	return a.Stat(ctx, path)
}

func (a *Adapter) Readdir(ctx context.Context, path string) ([]string, error) {
	p := vfspath.Normalize(path)
	if p != "/" {
		st, err := a.Stat(ctx, p)
		if err != nil {
			return nil, err
		}
		if !st.IsDirectory {
			return nil, vfs.NewError(vfs.KindNotDirectory, "scandir", p)
		}
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT name FROM files WHERE user_id=? AND parent_path=? ORDER BY name`, a.userID, p)
	if err != nil {
		return nil, vfs.NewErrorf(vfs.KindIoError, "scandir", p, "%v", err).Wrap(err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, vfs.NewErrorf(vfs.KindIoError, "scandir", p, "%v", err).Wrap(err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (a *Adapter) Mkdir(ctx context.Context, path string, opts vfs.MkdirOptions) error {
	p := vfspath.Normalize(path)
	exists, err := a.Exists(ctx, p)
	if err != nil {
		return err
	}
	if exists {
		if opts.Recursive {
			st, _ := a.Stat(ctx, p)
			if st.IsDirectory {
				return nil
			}
		}
		return vfs.NewError(vfs.KindExists, "mkdir", p)
	}

	if !opts.Recursive {
		return a.upsert(ctx, p, nil, true, opts.Mode)
	}

	var chain []string
	cur := p
	for cur != "/" {
		ex, err := a.Exists(ctx, cur)
		if err != nil {
			return err
		}
		if ex {
			break
		}
		chain = append(chain, cur)
		cur = vfspath.Parent(cur)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if err := a.upsert(ctx, chain[i], nil, true, opts.Mode); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) Rm(ctx context.Context, path string, opts vfs.RmOptions) error {
	p := vfspath.Normalize(path)
	st, err := a.Stat(ctx, p)
	if err != nil {
		if vfs.IsNotFound(err) && opts.Force {
			return nil
		}
		return err
	}

	if st.IsDirectory {
		children, err := a.Readdir(ctx, p)
		if err != nil {
			return err
		}
		if len(children) > 0 && !opts.Recursive {
			return vfs.NewError(vfs.KindNotEmpty, "rm", p)
		}
		for _, c := range children {
			if err := a.Rm(ctx, p+"/"+c, vfs.RmOptions{Recursive: true, Force: true}); err != nil {
				return err
			}
		}
	}

	_, err = a.db.ExecContext(ctx, `DELETE FROM files WHERE user_id=? AND path=?`, a.userID, p)
	if err != nil {
		return vfs.NewErrorf(vfs.KindIoError, "rm", p, "%v", err).Wrap(err)
	}
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
		children, err := a.Readdir(ctx, src)
		if err != nil {
			return err
		}
		for _, c := range children {
			if err := a.Cp(ctx, src+"/"+c, dst+"/"+c, opts); err != nil {
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
	if err := a.Cp(ctx, src, dst, vfs.CpOptions{Recursive: true}); err != nil {
		return err
	}
	return a.Rm(ctx, src, vfs.RmOptions{Recursive: true})
}

func (a *Adapter) Chmod(ctx context.Context, path string, mode uint32) error {
	p := vfspath.Normalize(path)
	_, err := a.db.ExecContext(ctx, `UPDATE files SET mode=? WHERE user_id=? AND path=?`, mode, a.userID, p)
	if err != nil {
		return vfs.NewErrorf(vfs.KindIoError, "chmod", p, "%v", err).Wrap(err)
	}
	return nil
}

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

func (a *Adapter) Utimes(ctx context.Context, path string, _ time.Time, mtime time.Time) error {
	p := vfspath.Normalize(path)
	_, err := a.db.ExecContext(ctx, `UPDATE files SET mtime=? WHERE user_id=? AND path=?`, mtime.Unix(), a.userID, p)
	if err != nil {
		return vfs.NewErrorf(vfs.KindIoError, "utimes", p, "%v", err).Wrap(err)
	}
	return nil
}
