package rowstore

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
)

// fakeDriver is a minimal in-process database/sql driver sufficient to
// exercise Adapter's fixed query shapes, standing in for a real D1/SQLite
// driver (none of which appear anywhere in the retrieval pack) so the
// adapter's query construction can be tested without a live database.
type fakeRow struct {
	parent  string
	name    string
	content []byte
	isDir   bool
	mode    int64
	size    int64
	mtime   int64
}

type fakeStore struct {
	mu   sync.Mutex
	rows map[string]*fakeRow // "user\x00path" -> row
}

var fakeStores = struct {
	mu sync.Mutex
	m  map[string]*fakeStore
}{m: map[string]*fakeStore{}}

func openFakeStore(dsn string) *fakeStore {
	fakeStores.mu.Lock()
	defer fakeStores.mu.Unlock()
	s, ok := fakeStores.m[dsn]
	if !ok {
		s = &fakeStore{rows: map[string]*fakeRow{}}
		fakeStores.m[dsn] = s
	}
	return s
}

type fakeDriverT struct{}

func (fakeDriverT) Open(dsn string) (driver.Conn, error) {
	return &fakeConn{store: openFakeStore(dsn)}, nil
}

type fakeConn struct{ store *fakeStore }

func (c *fakeConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("prepare unsupported") }
func (c *fakeConn) Close() error                        { return nil }
func (c *fakeConn) Begin() (driver.Tx, error)            { return fakeTx{}, nil }

type fakeTx struct{}

func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

func rowKey(user, path string) string { return user + "\x00" + path }

func (c *fakeConn) Exec(query string, args []driver.Value) (driver.Result, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	switch {
	case strings.HasPrefix(query, "CREATE TABLE"):
		return driver.RowsAffected(0), nil

	case strings.HasPrefix(query, "INSERT INTO files"):
		user := args[0].(string)
		path := args[1].(string)
		parent := args[2].(string)
		name := args[3].(string)
		var content []byte
		if args[4] != nil {
			content = args[4].([]byte)
		}
		isDir := toBool(args[5])
		mode := toInt64(args[6])
		size := toInt64(args[7])
		mtime := toInt64(args[8])
		c.store.rows[rowKey(user, path)] = &fakeRow{parent: parent, name: name, content: content, isDir: isDir, mode: mode, size: size, mtime: mtime}
		return driver.RowsAffected(1), nil

	case strings.HasPrefix(query, "DELETE FROM files"):
		user := args[0].(string)
		path := args[1].(string)
		delete(c.store.rows, rowKey(user, path))
		return driver.RowsAffected(1), nil

	case strings.HasPrefix(query, "UPDATE files SET mode"):
		mode := toInt64(args[0])
		user := args[1].(string)
		path := args[2].(string)
		if r, ok := c.store.rows[rowKey(user, path)]; ok {
			r.mode = mode
		}
		return driver.RowsAffected(1), nil

	case strings.HasPrefix(query, "UPDATE files SET mtime"):
		mtime := toInt64(args[0])
		user := args[1].(string)
		path := args[2].(string)
		if r, ok := c.store.rows[rowKey(user, path)]; ok {
			r.mtime = mtime
		}
		return driver.RowsAffected(1), nil
	}
	return nil, errors.New("fakeDriver: unsupported exec query: " + query)
}

func (c *fakeConn) Query(query string, args []driver.Value) (driver.Rows, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	switch {
	case strings.HasPrefix(query, "SELECT content"):
		user := args[0].(string)
		path := args[1].(string)
		r, ok := c.store.rows[rowKey(user, path)]
		if !ok {
			return &fakeRows{cols: []string{"content", "is_directory", "mode", "size", "mtime"}}, nil
		}
		return &fakeRows{
			cols: []string{"content", "is_directory", "mode", "size", "mtime"},
			data: [][]driver.Value{{r.content, r.isDir, r.mode, r.size, r.mtime}},
		}, nil

	case strings.HasPrefix(query, "SELECT name"):
		user := args[0].(string)
		parent := args[1].(string)
		var names []string
		for _, r := range c.store.rows {
			if rowUser(c.store, r) != user {
				continue
			}
			if r.parent == parent {
				names = append(names, r.name)
			}
		}
		sortStrings(names)
		rows := &fakeRows{cols: []string{"name"}}
		for _, n := range names {
			rows.data = append(rows.data, []driver.Value{n})
		}
		return rows, nil
	}
	return nil, errors.New("fakeDriver: unsupported query: " + query)
}

// rowUser recovers the user id a row belongs to by re-deriving it from
// the store's key space; acceptable for a single-tenant test fixture.
func rowUser(s *fakeStore, target *fakeRow) string {
	for k, r := range s.rows {
		if r == target {
			idx := strings.IndexByte(k, 0)
			return k[:idx]
		}
	}
	return ""
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func toBool(v driver.Value) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	}
	return false
}

func toInt64(v driver.Value) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	}
	return 0
}

type fakeRows struct {
	cols []string
	data [][]driver.Value
	pos  int
}

func (r *fakeRows) Columns() []string { return r.cols }
func (r *fakeRows) Close() error      { return nil }
func (r *fakeRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.pos])
	r.pos++
	return nil
}

func init() {
	sql.Register("vfscorefake", fakeDriverT{})
}
