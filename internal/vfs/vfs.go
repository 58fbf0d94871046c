// Package vfs defines the filesystem capability every backing store
// (in-memory, blob-store, row-store, cloud-drive, Git overlay) must
// satisfy so the mount router (internal/mount) can dispatch to it
// without caring which store is underneath.
package vfs

import (
	"context"
	"time"
)

// Encoding names an optional text decoding applied by ReadFile.
type Encoding string

const (
	EncodingUTF8   Encoding = "utf8"
	EncodingUTF8x  Encoding = "utf-8"
	EncodingASCII  Encoding = "ascii"
	EncodingBinary Encoding = "binary"
	EncodingBase64 Encoding = "base64"
	EncodingHex    Encoding = "hex"
	EncodingLatin1 Encoding = "latin1"
)

// Stat is the universal metadata shape returned by Stat and Lstat.
// Exactly one of IsFile, IsDirectory, IsSymbolicLink is true.
type Stat struct {
	IsFile         bool
	IsDirectory    bool
	IsSymbolicLink bool
	Mode           uint32
	Size           int64
	Mtime          time.Time
}

// RmOptions controls Rm's recursion and force-on-missing behaviour.
type RmOptions struct {
	Recursive bool
	Force     bool
}

// MkdirOptions controls Mkdir idempotence.
type MkdirOptions struct {
	Recursive bool
	Mode      uint32
}

// CpOptions controls whether Cp may copy directories.
type CpOptions struct {
	Recursive bool
}

// FS is the capability contract every adapter, the Git overlay, and
// the mount router itself implement. Paths passed to every method are
// normalised and relative to the implementation's own root (the
// router strips the mount prefix before dispatch).
type FS interface {
	ReadFile(ctx context.Context, path string, encoding Encoding) (string, error)
	ReadFileBuffer(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	AppendFile(ctx context.Context, path string, data []byte) error
	Exists(ctx context.Context, path string) (bool, error)
	Stat(ctx context.Context, path string) (Stat, error)
	Lstat(ctx context.Context, path string) (Stat, error)
	Readdir(ctx context.Context, path string) ([]string, error)
	Mkdir(ctx context.Context, path string, opts MkdirOptions) error
	Rm(ctx context.Context, path string, opts RmOptions) error
	Cp(ctx context.Context, src, dst string, opts CpOptions) error
	Mv(ctx context.Context, src, dst string) error
	Chmod(ctx context.Context, path string, mode uint32) error
	Symlink(ctx context.Context, target, linkPath string) error
	Link(ctx context.Context, target, linkPath string) error
	Readlink(ctx context.Context, path string) (string, error)
	Realpath(ctx context.Context, path string) (string, error)
	Utimes(ctx context.Context, path string, atime, mtime time.Time) error
	ResolvePath(ctx context.Context, path string) (string, error)
}
