package shell

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/ConfigButler/vfscore/internal/fstab"
	"github.com/ConfigButler/vfscore/internal/shellerr"
	"github.com/ConfigButler/vfscore/internal/vfspath"
)

const fstabPath = "/etc/fstab"

// mountCmd implements "mount [-t type] [-o opts] device mountpoint"
// (spec §4.3, §6): builds a fstab.Entry, constructs the adapter via
// env.Registry, mounts it on env.Router, and appends the entry to
// /etc/fstab if it isn't already there. Flags parsed with the same
// flag.FlagSet the teacher's own daemon flags use.
func mountCmd(ctx context.Context, env *Env, args []string) int {
	fs := flag.NewFlagSet("mount", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var fsType, optsRaw string
	fs.StringVar(&fsType, "t", "", "filesystem type")
	fs.StringVar(&optsRaw, "o", "", "comma-separated mount options")
	if err := fs.Parse(args); err != nil {
		if isFlagValueMissing(err) {
			return shellerr.OptionNeedsValue(env.Stderr, "mount", flagNameFromError(err))
		}
		return shellerr.Usage(env.Stderr, "mount", "%v", err)
	}

	positional := fs.Args()
	if len(positional) == 0 {
		return printMounts(ctx, env)
	}
	if len(positional) != 2 {
		return shellerr.Usage(env.Stderr, "mount", "expected device and mountpoint")
	}
	if fsType == "" {
		return shellerr.Usage(env.Stderr, "mount", "-t <type> is required")
	}

	device := positional[0]
	mountPoint := vfspath.Normalize(resolveCwd(env.Cwd, positional[1]))

	entry := fstab.Entry{
		Device:     device,
		MountPoint: mountPoint,
		Type:       fsType,
		Options:    parseMountOptions(optsRaw),
	}

	build, ok := env.Registry[fsType]
	if !ok {
		return shellerr.Usage(env.Stderr, "mount", "unknown filesystem type %q", fsType)
	}

	adapter, err := build(entry)
	if err != nil {
		shellerr.Print(env.Stderr, "mount", "%v", err)
		return shellerr.ExitUsage
	}

	if err := env.Router.Mount(mountPoint, adapter, fsType); err != nil {
		shellerr.Print(env.Stderr, "mount", "%v", err)
		return shellerr.ExitUsage
	}

	if err := persistFstabEntry(ctx, env, entry); err != nil {
		shellerr.Print(env.Stderr, "mount", "%v", err)
		return shellerr.ExitUsage
	}
	return shellerr.ExitSuccess
}

// umountCmd implements "umount <mountpoint>": unmounts from env.Router
// and removes the matching line from /etc/fstab.
func umountCmd(ctx context.Context, env *Env, args []string) int {
	if len(args) != 1 {
		return shellerr.Usage(env.Stderr, "umount", "expected exactly one mountpoint")
	}
	mountPoint := vfspath.Normalize(resolveCwd(env.Cwd, args[0]))

	if err := env.Router.Unmount(mountPoint); err != nil {
		shellerr.Print(env.Stderr, "umount", "%v", err)
		return shellerr.ExitUsage
	}

	if err := removeFstabEntry(ctx, env, mountPoint); err != nil {
		shellerr.Print(env.Stderr, "umount", "%v", err)
		return shellerr.ExitUsage
	}
	return shellerr.ExitSuccess
}

func printMounts(ctx context.Context, env *Env) int {
	for _, m := range env.Router.GetMounts() {
		fmt.Fprintf(env.Stdout, "%s on %s type %s\n", m.MountPoint, m.MountPoint, m.FsType)
	}
	return shellerr.ExitSuccess
}

// isFlagValueMissing reports whether err is the stdlib flag package's
// "flag needs an argument" error, which maps to ExitOptionMissing
// rather than a generic usage error.
func isFlagValueMissing(err error) bool {
	return strings.Contains(err.Error(), "flag needs an argument")
}

func flagNameFromError(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, "-"); idx >= 0 {
		return msg[idx:]
	}
	return msg
}

func parseMountOptions(raw string) map[string]string {
	opts := map[string]string{}
	if raw == "" || raw == "defaults" {
		return opts
	}
	for _, kv := range strings.Split(raw, ",") {
		if kv == "" {
			continue
		}
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			opts[kv[:idx]] = kv[idx+1:]
		} else {
			opts[kv] = ""
		}
	}
	return opts
}

func readFstab(ctx context.Context, env *Env) ([]fstab.Entry, error) {
	raw, err := env.Router.ReadFileBuffer(ctx, fstabPath)
	if err != nil {
		return nil, err
	}
	return fstab.Parse(string(raw))
}

func persistFstabEntry(ctx context.Context, env *Env, entry fstab.Entry) error {
	entries, err := readFstab(ctx, env)
	if err != nil {
		return err
	}
	if fstab.HasMountPoint(entries, entry.MountPoint) {
		return nil
	}
	entries = append(entries, entry)
	return env.Router.WriteFile(ctx, fstabPath, []byte(fstab.Serialize(entries)))
}

func removeFstabEntry(ctx context.Context, env *Env, mountPoint string) error {
	entries, err := readFstab(ctx, env)
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.MountPoint != mountPoint {
			kept = append(kept, e)
		}
	}
	return env.Router.WriteFile(ctx, fstabPath, []byte(fstab.Serialize(kept)))
}

// resolveCwd joins a possibly-relative path against cwd.
func resolveCwd(cwd, p string) string {
	if vfspath.IsAbs(p) {
		return p
	}
	return vfspath.Join(cwd, p)
}
