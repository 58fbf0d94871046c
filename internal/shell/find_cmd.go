package shell

import (
	"context"
	"fmt"
	"sort"

	"github.com/ConfigButler/vfscore/internal/shellerr"
	"github.com/ConfigButler/vfscore/internal/vfspath"
)

// findCmd implements the supplemented "find <path> [-mindepth N]
// [-maxdepth N] [-type f|d]" command: a recursive listing against the
// router, not present in the original system but a natural complement
// to mount/git given the router already knows how to walk a tree.
func findCmd(ctx context.Context, env *Env, args []string) int {
	if len(args) == 0 {
		return shellerr.Usage(env.Stderr, "find", "expected a starting path")
	}
	start := vfspath.Normalize(resolveCwd(env.Cwd, args[0]))

	fs := newSubFlagSet("find")
	var minDepth, maxDepth int
	var typeFilter string
	fs.IntVar(&minDepth, "mindepth", 0, "minimum depth below the starting path to report")
	fs.IntVar(&maxDepth, "maxdepth", -1, "maximum depth below the starting path to descend")
	fs.StringVar(&typeFilter, "type", "", "restrict to \"f\" (files) or \"d\" (directories)")
	if err := fs.Parse(args[1:]); err != nil {
		if isFlagValueMissing(err) {
			return shellerr.OptionNeedsValue(env.Stderr, "find", flagNameFromError(err))
		}
		return shellerr.Usage(env.Stderr, "find", "%v", err)
	}
	if typeFilter != "" && typeFilter != "f" && typeFilter != "d" {
		return shellerr.Usage(env.Stderr, "find", "invalid -type value %q", typeFilter)
	}

	var out []string
	baseDepth := vfspath.Depth(start)
	if err := walk(ctx, env, start, baseDepth, minDepth, maxDepth, typeFilter, &out); err != nil {
		shellerr.Print(env.Stderr, "find", "%v", err)
		return shellerr.ExitUsage
	}

	sort.Strings(out)
	for _, p := range out {
		fmt.Fprintln(env.Stdout, p)
	}
	return shellerr.ExitSuccess
}

func walk(ctx context.Context, env *Env, path string, baseDepth, minDepth, maxDepth int, typeFilter string, out *[]string) error {
	st, err := env.Router.Stat(ctx, path)
	if err != nil {
		return err
	}

	depth := vfspath.Depth(path) - baseDepth
	if depth >= minDepth && (maxDepth < 0 || depth <= maxDepth) {
		if typeFilter == "" ||
			(typeFilter == "f" && st.IsFile) ||
			(typeFilter == "d" && st.IsDirectory) {
			*out = append(*out, path)
		}
	}

	if !st.IsDirectory {
		return nil
	}
	if maxDepth >= 0 && depth >= maxDepth {
		return nil
	}

	names, err := env.Router.Readdir(ctx, path)
	if err != nil {
		return err
	}
	for _, n := range names {
		if err := walk(ctx, env, vfspath.Join(path, n), baseDepth, minDepth, maxDepth, typeFilter, out); err != nil {
			return err
		}
	}
	return nil
}
