package shell

import (
	"context"

	"github.com/ConfigButler/vfscore/internal/shellerr"
)

// Dispatch routes argv (argv[0] is the top-level command name) to the
// matching subcommand and returns its process exit code.
func Dispatch(ctx context.Context, env *Env, argv []string) int {
	if len(argv) == 0 {
		return shellerr.Usage(env.Stderr, "vfsshell", "no command given")
	}

	switch argv[0] {
	case "mount":
		return mountCmd(ctx, env, argv[1:])
	case "umount":
		return umountCmd(ctx, env, argv[1:])
	case "git":
		return gitCmd(ctx, env, argv[1:])
	case "find":
		return findCmd(ctx, env, argv[1:])
	default:
		return shellerr.Usage(env.Stderr, argv[0], "unknown command")
	}
}
