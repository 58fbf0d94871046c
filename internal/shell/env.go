// Package shell implements the argv-driven command surface (spec
// §4.6, §6): mount/umount, the git subcommands, and the supplemented
// find command, all dispatching onto a mount.Router.
package shell

import (
	"io"

	"github.com/go-logr/logr"

	"github.com/ConfigButler/vfscore/internal/blobstore"
	"github.com/ConfigButler/vfscore/internal/boot"
	"github.com/ConfigButler/vfscore/internal/mount"
)

// Env is the shared state every subcommand dispatches against.
type Env struct {
	Router   *mount.Router
	Bucket   blobstore.Bucket
	Registry boot.TypeRegistry
	UserID   string
	Cwd      string
	Getenv   func(string) string
	Stdout   io.Writer
	Stderr   io.Writer
	Logger   logr.Logger
}
