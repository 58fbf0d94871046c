package shell

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/ConfigButler/vfscore/internal/fstab"
	"github.com/ConfigButler/vfscore/internal/gitfs"
	"github.com/ConfigButler/vfscore/internal/shellerr"
	"github.com/ConfigButler/vfscore/internal/vfspath"
)

// gitCmd implements the git command surface (spec §4.6): leading
// "-C <path>" flags stack like repeated "cd"s, then the subcommand
// dispatches against whichever GitFs mount governs the resolved cwd.
func gitCmd(ctx context.Context, env *Env, args []string) int {
	cwd := env.Cwd
	for len(args) >= 2 && args[0] == "-C" {
		cwd = resolveCwd(cwd, args[1])
		args = args[2:]
	}
	if len(args) == 0 {
		return shellerr.Usage(env.Stderr, "git", "no subcommand given")
	}

	sub, rest := args[0], args[1:]
	if sub == "clone" {
		return gitClone(ctx, env, cwd, rest)
	}

	g, ok := resolveGitFs(env, cwd)
	if !ok {
		return shellerr.NotAGitRepository(env.Stderr, "git")
	}

	switch sub {
	case "status":
		return gitStatus(ctx, env, g, rest)
	case "commit":
		return gitCommit(ctx, env, g, rest)
	case "push":
		return gitPush(ctx, env, g)
	case "pull":
		return gitPull(ctx, env, g)
	case "log":
		return gitLog(ctx, env, g, rest)
	case "diff":
		return gitDiff(ctx, env, g, rest)
	case "branch":
		return gitBranch(ctx, env, g)
	case "remote":
		return gitRemote(ctx, env, g)
	case "show":
		return gitShow(ctx, env, g, rest)
	case "rev-parse":
		return gitRevParse(ctx, env, g, rest)
	default:
		return shellerr.Usage(env.Stderr, "git", "unknown subcommand %q", sub)
	}
}

// resolveGitFs looks up the mount governing cwd and type-asserts it
// to a *gitfs.GitFs.
func resolveGitFs(env *Env, cwd string) (*gitfs.GitFs, bool) {
	m, ok := env.Router.MountFor(cwd)
	if !ok {
		return nil, false
	}
	g, ok := m.Filesystem.(*gitfs.GitFs)
	return g, ok
}

// newSubFlagSet builds a flag.FlagSet whose usage output is
// suppressed, matching the rest of the command surface's convention
// of reporting failures through shellerr instead of flag's own text.
func newSubFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func gitClone(ctx context.Context, env *Env, cwd string, args []string) int {
	var positional []string
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			positional = append(positional, a)
		}
	}
	if len(positional) == 0 {
		return shellerr.Usage(env.Stderr, "git", "clone requires a URL")
	}
	url := positional[0]

	mountPoint := inferCloneMountPoint(url)
	if len(positional) > 1 {
		mountPoint = positional[1]
	}
	mountPoint = vfspath.Normalize(resolveCwd(cwd, mountPoint))

	g := gitfs.New(env.Bucket, gitfs.Config{
		URL:        url,
		MountPoint: mountPoint,
		UserID:     env.UserID,
	})

	if err := env.Router.Mount(mountPoint, g, "git"); err != nil {
		shellerr.Print(env.Stderr, "git", "clone: %v", err)
		return shellerr.ExitUsage
	}
	if err := g.Init(ctx); err != nil {
		_ = env.Router.Unmount(mountPoint)
		shellerr.Print(env.Stderr, "git", "clone: %v", err)
		return shellerr.ExitUsage
	}

	entry := fstab.Entry{Device: url, MountPoint: mountPoint, Type: "git", Options: map[string]string{}}
	if err := persistFstabEntry(ctx, env, entry); err != nil {
		shellerr.Print(env.Stderr, "git", "clone: %v", err)
		return shellerr.ExitUsage
	}

	fmt.Fprintf(env.Stdout, "Cloning into %q...\n", mountPoint)
	return shellerr.ExitSuccess
}

// inferCloneMountPoint derives a mount point from a clone URL's last
// path segment, stripping a trailing ".git" (spec §4.5.9).
func inferCloneMountPoint(url string) string {
	trimmed := strings.TrimSuffix(url, "/")
	idx := strings.LastIndexAny(trimmed, "/:")
	name := trimmed[idx+1:]
	name = strings.TrimSuffix(name, ".git")
	return "/" + name
}

func gitStatus(ctx context.Context, env *Env, g *gitfs.GitFs, args []string) int {
	fs := newSubFlagSet("status")
	var short bool
	fs.BoolVar(&short, "s", false, "short format")
	fs.BoolVar(&short, "short", false, "short format")
	if err := fs.Parse(args); err != nil {
		return shellerr.Usage(env.Stderr, "git", "status: %v", err)
	}

	st, err := g.Status(ctx)
	if err != nil {
		shellerr.Print(env.Stderr, "git", "status: %v", err)
		return shellerr.ExitUsage
	}
	if short {
		for _, p := range st.Added {
			fmt.Fprintf(env.Stdout, "A  %s\n", p)
		}
		for _, p := range st.Modified {
			fmt.Fprintf(env.Stdout, "M  %s\n", p)
		}
		for _, p := range st.Deleted {
			fmt.Fprintf(env.Stdout, "D  %s\n", p)
		}
		return shellerr.ExitSuccess
	}

	if g.HasUnpushedCommits() {
		fmt.Fprintln(env.Stdout, "Your branch is ahead of 'origin' by pending commits.")
	}
	for _, p := range st.Added {
		fmt.Fprintf(env.Stdout, "\tnew file:   %s\n", p)
	}
	for _, p := range st.Modified {
		fmt.Fprintf(env.Stdout, "\tmodified:   %s\n", p)
	}
	for _, p := range st.Deleted {
		fmt.Fprintf(env.Stdout, "\tdeleted:    %s\n", p)
	}
	return shellerr.ExitSuccess
}

func gitCommit(ctx context.Context, env *Env, g *gitfs.GitFs, args []string) int {
	fs := newSubFlagSet("commit")
	var message, authorRaw string
	fs.StringVar(&message, "m", "", "commit message")
	fs.StringVar(&authorRaw, "author", "", `author identity, "Name <email>"`)
	if err := fs.Parse(args); err != nil {
		if isFlagValueMissing(err) {
			return shellerr.OptionNeedsValue(env.Stderr, "commit", flagNameFromError(err))
		}
		return shellerr.Usage(env.Stderr, "git", "commit: %v", err)
	}
	if message == "" {
		return shellerr.Usage(env.Stderr, "git", "commit requires -m <message>")
	}

	author := gitfs.Author{
		Name:  env.Getenv("GIT_AUTHOR_NAME"),
		Email: env.Getenv("GIT_AUTHOR_EMAIL"),
	}
	if authorRaw != "" {
		if name, email, ok := parseAuthor(authorRaw); ok {
			author.Name, author.Email = name, email
		}
	}

	oid, err := g.Commit(ctx, message, author)
	if err != nil {
		shellerr.Print(env.Stderr, "git", "commit: %v", err)
		return shellerr.ExitUsage
	}
	short := oid
	if len(short) > 7 {
		short = short[:7]
	}
	fmt.Fprintf(env.Stdout, "[%s] %s\n", short, message)
	return shellerr.ExitSuccess
}

// parseAuthor parses "Name <email>" into its two parts.
func parseAuthor(raw string) (name, email string, ok bool) {
	open := strings.Index(raw, "<")
	shut := strings.Index(raw, ">")
	if open < 0 || shut < open {
		return "", "", false
	}
	return strings.TrimSpace(raw[:open]), strings.TrimSpace(raw[open+1 : shut]), true
}

func gitPush(ctx context.Context, env *Env, g *gitfs.GitFs) int {
	if !g.HasUnpushedCommits() {
		fmt.Fprintln(env.Stdout, "Everything up-to-date")
		return shellerr.ExitSuccess
	}
	if err := g.Push(ctx, nil); err != nil {
		shellerr.Print(env.Stderr, "git", "push: %v", err)
		return shellerr.ExitUsage
	}
	fmt.Fprintln(env.Stdout, "done.")
	return shellerr.ExitSuccess
}

func gitPull(ctx context.Context, env *Env, g *gitfs.GitFs) int {
	updated, err := g.Pull(ctx, nil)
	if err != nil {
		shellerr.Print(env.Stderr, "git", "pull: %v", err)
		return shellerr.ExitUsage
	}
	if !updated {
		fmt.Fprintln(env.Stdout, "Already up to date.")
		return shellerr.ExitSuccess
	}
	fmt.Fprintln(env.Stdout, "Updating... done.")
	return shellerr.ExitSuccess
}

func gitLog(ctx context.Context, env *Env, g *gitfs.GitFs, args []string) int {
	fs := newSubFlagSet("log")
	var oneline bool
	var n int
	fs.BoolVar(&oneline, "oneline", false, "one line per commit")
	fs.IntVar(&n, "n", 0, "limit the number of commits shown")
	if err := fs.Parse(args); err != nil {
		if isFlagValueMissing(err) {
			return shellerr.OptionNeedsValue(env.Stderr, "log", flagNameFromError(err))
		}
		return shellerr.Usage(env.Stderr, "git", "log: %v", err)
	}

	entries, err := g.Log(ctx, n)
	if err != nil {
		shellerr.Print(env.Stderr, "git", "log: %v", err)
		return shellerr.ExitUsage
	}
	for _, e := range entries {
		short := e.OID
		if len(short) > 7 {
			short = short[:7]
		}
		if oneline {
			fmt.Fprintf(env.Stdout, "%s %s\n", short, firstLine(e.Message))
			continue
		}
		fmt.Fprintf(env.Stdout, "commit %s\nAuthor: %s <%s>\n\n    %s\n\n", e.OID, e.AuthorName, e.AuthorEmail, firstLine(e.Message))
	}
	return shellerr.ExitSuccess
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func gitDiff(ctx context.Context, env *Env, g *gitfs.GitFs, args []string) int {
	fs := newSubFlagSet("diff")
	var nameOnly, stat bool
	fs.BoolVar(&nameOnly, "name-only", false, "print only file names")
	fs.BoolVar(&stat, "stat", false, "print a diffstat summary")
	if err := fs.Parse(args); err != nil {
		return shellerr.Usage(env.Stderr, "git", "diff: %v", err)
	}

	diffs, err := g.Diff(ctx)
	if err != nil {
		shellerr.Print(env.Stderr, "git", "diff: %v", err)
		return shellerr.ExitUsage
	}
	for _, fd := range diffs {
		switch {
		case nameOnly:
			fmt.Fprintln(env.Stdout, fd.Path)
		case stat:
			fmt.Fprintf(env.Stdout, " %s | +%d -%d\n", fd.Path, fd.Additions, fd.Deletions)
		default:
			fmt.Fprint(env.Stdout, fd.Unified)
		}
	}
	return shellerr.ExitSuccess
}

func gitBranch(ctx context.Context, env *Env, g *gitfs.GitFs) int {
	names, err := g.Branches(ctx)
	if err != nil {
		shellerr.Print(env.Stderr, "git", "branch: %v", err)
		return shellerr.ExitUsage
	}
	for _, n := range names {
		fmt.Fprintln(env.Stdout, n)
	}
	return shellerr.ExitSuccess
}

func gitRemote(ctx context.Context, env *Env, g *gitfs.GitFs) int {
	remotes, err := g.Remotes(ctx)
	if err != nil {
		shellerr.Print(env.Stderr, "git", "remote: %v", err)
		return shellerr.ExitUsage
	}
	for _, r := range remotes {
		fmt.Fprintf(env.Stdout, "%s\t%s\n", r.Name, r.URL)
	}
	return shellerr.ExitSuccess
}

// gitShow displays the HEAD commit, then the overlay-vs-HEAD diff in
// place of a true parent-vs-HEAD diff (spec §9 open question).
func gitShow(ctx context.Context, env *Env, g *gitfs.GitFs, args []string) int {
	entries, err := g.Log(ctx, 1)
	if err != nil {
		shellerr.Print(env.Stderr, "git", "show: %v", err)
		return shellerr.ExitUsage
	}
	if len(entries) == 0 {
		shellerr.Print(env.Stderr, "git", "show: no commits yet")
		return shellerr.ExitUsage
	}
	head := entries[0]
	fmt.Fprintf(env.Stdout, "commit %s\nAuthor: %s <%s>\n\n    %s\n\n", head.OID, head.AuthorName, head.AuthorEmail, firstLine(head.Message))
	return gitDiff(ctx, env, g, args)
}

func gitRevParse(ctx context.Context, env *Env, g *gitfs.GitFs, args []string) int {
	fs := newSubFlagSet("rev-parse")
	var short bool
	fs.BoolVar(&short, "short", false, "shorten the OID to 7 characters")
	if err := fs.Parse(args); err != nil {
		return shellerr.Usage(env.Stderr, "git", "rev-parse: %v", err)
	}

	oid, err := g.CurrentOID(ctx, short)
	if err != nil {
		shellerr.Print(env.Stderr, "git", "rev-parse: %v", err)
		return shellerr.ExitUsage
	}
	fmt.Fprintln(env.Stdout, oid)
	return shellerr.ExitSuccess
}
