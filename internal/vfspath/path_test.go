package vfspath

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"":                 "/",
		"/":                "/",
		"//a//b/":          "/a/b",
		"/a/./b":           "/a/b",
		"/a/b/..":          "/a",
		"/a/../../b":       "/b",
		"/./":              "/",
		"/a/b/c/../../d":   "/a/d",
		"relative/../path": "path",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"/a//b/../c/", "/", "", "/x/y/z"}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestJoin(t *testing.T) {
	if got := Join("/mnt/repo", "src/index.ts"); got != "/mnt/repo/src/index.ts" {
		t.Errorf("Join = %q", got)
	}
	if got := Join("/mnt/repo", "/abs/path"); got != "/abs/path" {
		t.Errorf("Join absolute rel = %q", got)
	}
	if got := Join("/mnt/repo", "."); got != "/mnt/repo" {
		t.Errorf("Join dot = %q", got)
	}
}

func TestParentBase(t *testing.T) {
	if got := Parent("/a/b/c"); got != "/a/b" {
		t.Errorf("Parent = %q", got)
	}
	if got := Parent("/a"); got != "/" {
		t.Errorf("Parent of top-level = %q", got)
	}
	if got := Parent("/"); got != "/" {
		t.Errorf("Parent of root = %q", got)
	}
	if got := Base("/a/b/c"); got != "c" {
		t.Errorf("Base = %q", got)
	}
	if got := Base("/"); got != "/" {
		t.Errorf("Base of root = %q", got)
	}
}

func TestHasPrefixBoundary(t *testing.T) {
	if !HasPrefix("/mnt/repo/x", "/mnt/repo") {
		t.Error("expected prefix match")
	}
	if HasPrefix("/mnts/x", "/mnt") {
		t.Error("boundary violation: /mnts should not match prefix /mnt")
	}
	if !HasPrefix("/mnt", "/mnt") {
		t.Error("a path is its own prefix")
	}
	if !HasPrefix("/anything", "/") {
		t.Error("root is a prefix of everything")
	}
}

func TestTrimPrefix(t *testing.T) {
	if got := TrimPrefix("/mnt/repo/src/a.ts", "/mnt/repo"); got != "/src/a.ts" {
		t.Errorf("TrimPrefix = %q", got)
	}
	if got := TrimPrefix("/mnt/repo", "/mnt/repo"); got != "/" {
		t.Errorf("TrimPrefix equal = %q", got)
	}
	if got := TrimPrefix("/etc/fstab", "/"); got != "/etc/fstab" {
		t.Errorf("TrimPrefix root = %q", got)
	}
}
