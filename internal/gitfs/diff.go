package gitfs

import (
	"context"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/ConfigButler/vfscore/internal/vfs"
)

// FileDiff is one file's unified diff between the committed tree and
// the overlay's pending content.
type FileDiff struct {
	Path      string
	Unified   string
	Additions int
	Deletions int
	IsNew     bool
	IsDeleted bool
}

// Diff renders the overlay-vs-tree comparison of spec §4.6 ("git
// diff" is an approximation of a real working-tree diff: it compares
// against the current commit, not a parent).
func (g *GitFs) Diff(ctx context.Context) ([]FileDiff, error) {
	if err := g.Init(ctx); err != nil {
		return nil, err
	}
	st, err := g.Status(ctx)
	if err != nil {
		return nil, err
	}

	var out []FileDiff
	for _, p := range append(append([]string{}, st.Added...), st.Modified...) {
		newContent, _, err := g.overlay.get(ctx, p)
		if err != nil {
			return nil, err
		}
		var oldContent []byte
		isNew := true
		tree, terr := g.headTree()
		if terr == nil {
			if file, ferr := g.treeFile(tree, p); ferr == nil {
				isNew = false
				contents, cerr := file.Contents()
				if cerr == nil {
					oldContent = []byte(contents)
				}
			}
		}
		out = append(out, buildFileDiff(p, oldContent, newContent, isNew, false))
	}
	for _, p := range st.Deleted {
		tree, err := g.headTree()
		if err != nil {
			return nil, vfs.NewErrorf(vfs.KindIoError, "diff", p, "%v", err).Wrap(err)
		}
		var oldContent []byte
		if file, ferr := g.treeFile(tree, p); ferr == nil {
			if contents, cerr := file.Contents(); cerr == nil {
				oldContent = []byte(contents)
			}
		}
		out = append(out, buildFileDiff(p, oldContent, nil, false, true))
	}
	return out, nil
}

func buildFileDiff(path string, oldContent, newContent []byte, isNew, isDeleted bool) FileDiff {
	unified, adds, dels := unifiedDiff(string(oldContent), string(newContent))
	return FileDiff{
		Path:      path,
		Unified:   fmt.Sprintf("--- a%s\n+++ b%s\n%s", path, path, unified),
		Additions: adds,
		Deletions: dels,
		IsNew:     isNew,
		IsDeleted: isDeleted,
	}
}

// unifiedDiff renders a +/- line diff via the same line-mode diffing
// go-git itself pulls in for patch generation (sergi/go-diff), rather
// than hand-rolling an LCS implementation.
func unifiedDiff(oldText, newText string) (string, int, int) {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var buf strings.Builder
	additions, deletions := 0, 0
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			buf.WriteString(prefix)
			buf.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				buf.WriteString("\n")
			}
			switch prefix {
			case "+":
				additions++
			case "-":
				deletions++
			}
		}
	}
	return buf.String(), additions, deletions
}
