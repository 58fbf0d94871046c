// Package boot implements the two-phase(+) boot sequence that brings
// a mount.Router up from persisted state, reading its own mount table
// through the very router it is building (spec §4.4).
package boot

import (
	"context"
	"errors"

	"github.com/go-logr/logr"

	"github.com/ConfigButler/vfscore/internal/fstab"
	"github.com/ConfigButler/vfscore/internal/mount"
	"github.com/ConfigButler/vfscore/internal/vfs"
)

const fstabPath = "/etc/fstab"

// TypeRegistry maps an fstab entry's Type field to a constructor for
// the adapter that serves it.
type TypeRegistry map[string]func(entry fstab.Entry) (vfs.FS, error)

// Sequence runs all four boot phases against router, using etcAdapter
// as the backing store for /etc (phase 1) and registry to build every
// other mount (phase 4). Mount failures in phase 4 are logged and
// skipped, never fatal: one unreachable Git remote must not deny
// access to the rest of the filesystem.
func Sequence(ctx context.Context, router *mount.Router, etcAdapter vfs.FS, registry TypeRegistry, logger logr.Logger) error {
	if err := phaseEtcBootstrap(ctx, router, etcAdapter); err != nil {
		return err
	}

	entries, err := phaseFstabAcquisition(ctx, router, logger)
	if err != nil {
		return err
	}

	entries, err = phaseLegacyMigration(ctx, router, entries, logger)
	if err != nil {
		return err
	}

	phaseMountTheRest(ctx, router, entries, registry, logger)
	return nil
}

// phaseEtcBootstrap mounts /etc and ensures its root directory exists,
// so /etc/fstab is readable through router before anything else mounts.
func phaseEtcBootstrap(ctx context.Context, router *mount.Router, etcAdapter vfs.FS) error {
	if err := router.Mount("/etc", etcAdapter, "etc"); err != nil {
		return err
	}
	return ensureRoot(ctx, etcAdapter)
}

// phaseFstabAcquisition reads /etc/fstab through router, seeding the
// default fstab the first time a mount starts with no persisted state.
func phaseFstabAcquisition(ctx context.Context, router *mount.Router, logger logr.Logger) ([]fstab.Entry, error) {
	raw, err := router.ReadFileBuffer(ctx, fstabPath)
	switch {
	case err == nil:
		return fstab.Parse(string(raw))
	case vfs.IsNotFound(err):
		logger.Info("fstab missing, seeding default", "path", fstabPath)
		defaults := fstab.DefaultFstab()
		if werr := router.WriteFile(ctx, fstabPath, []byte(fstab.Serialize(defaults))); werr != nil {
			return nil, werr
		}
		return defaults, nil
	default:
		return nil, err
	}
}

// phaseLegacyMigration rewrites a fstab with no d1/r2 entries to the
// current default set, preserving any user-added git entries.
func phaseLegacyMigration(ctx context.Context, router *mount.Router, entries []fstab.Entry, logger logr.Logger) ([]fstab.Entry, error) {
	if fstab.HasAnyType(entries, "d1") || fstab.HasAnyType(entries, "r2") {
		return entries, nil
	}

	logger.Info("legacy fstab detected, migrating to current defaults")
	migrated := fstab.DefaultFstab()
	for _, e := range entries {
		if e.Type == "git" {
			migrated = append(migrated, e)
		}
	}

	if err := router.WriteFile(ctx, fstabPath, []byte(fstab.Serialize(migrated))); err != nil {
		return nil, err
	}
	return fstab.Parse(fstab.Serialize(migrated))
}

// phaseMountTheRest builds and registers every entry other than /etc.
// A failure building or mounting one entry is logged and skipped.
func phaseMountTheRest(ctx context.Context, router *mount.Router, entries []fstab.Entry, registry TypeRegistry, logger logr.Logger) {
	for _, entry := range entries {
		if entry.MountPoint == "/etc" {
			continue
		}

		build, ok := registry[entry.Type]
		if !ok {
			logger.Error(errors.New("unknown fs type"), "mount failed", "type", entry.Type, "mountPoint", entry.MountPoint)
			continue
		}

		adapter, err := build(entry)
		if err != nil {
			logger.Error(err, "mount failed", "type", entry.Type, "mountPoint", entry.MountPoint)
			continue
		}

		if err := router.Mount(entry.MountPoint, adapter, entry.Type); err != nil {
			logger.Error(err, "mount failed", "type", entry.Type, "mountPoint", entry.MountPoint)
			continue
		}

		if err := ensureRoot(ctx, adapter); err != nil {
			logger.Error(err, "mount failed", "type", entry.Type, "mountPoint", entry.MountPoint)
		}
	}
}

func ensureRoot(ctx context.Context, fsys vfs.FS) error {
	exists, err := fsys.Exists(ctx, "/")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return fsys.Mkdir(ctx, "/", vfs.MkdirOptions{Recursive: true})
}
