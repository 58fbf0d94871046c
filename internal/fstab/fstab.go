// Package fstab parses and serialises the mount-table file used by
// the boot sequencer (spec §4.3, §4.4).
package fstab

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ConfigButler/vfscore/internal/vfspath"
)

// Entry is one line of the mount table.
type Entry struct {
	Device     string
	MountPoint string
	Type       string
	Options    map[string]string
	Dump       int
	Pass       int
}

// DefaultFstab returns the content used when /etc/fstab is absent
// (spec §4.3).
func DefaultFstab() []Entry {
	return []Entry{
		{Device: "none", MountPoint: "/etc", Type: "d1", Options: map[string]string{}},
		{Device: "none", MountPoint: "/home/user", Type: "d1", Options: map[string]string{}},
		{Device: "none", MountPoint: "/data", Type: "r2", Options: map[string]string{}},
	}
}

// Parse reads fstab-formatted text into entries. Blank lines and
// '#'-prefixed lines are comments.
func Parse(s string) ([]Entry, error) {
	var entries []Entry
	for lineNo, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) < 4 {
			return nil, fmt.Errorf("fstab: line %d: expected at least 4 fields, got %d", lineNo+1, len(fields))
		}

		entry := Entry{
			Device:     fields[0],
			MountPoint: vfspath.Normalize(fields[1]),
			Type:       fields[2],
			Options:    parseOptions(fields[3]),
		}

		if len(fields) > 4 {
			n, err := strconv.Atoi(fields[4])
			if err != nil {
				return nil, fmt.Errorf("fstab: line %d: invalid dump field %q: %w", lineNo+1, fields[4], err)
			}
			entry.Dump = n
		}
		if len(fields) > 5 {
			n, err := strconv.Atoi(fields[5])
			if err != nil {
				return nil, fmt.Errorf("fstab: line %d: invalid pass field %q: %w", lineNo+1, fields[5], err)
			}
			entry.Pass = n
		}

		entries = append(entries, entry)
	}
	return entries, nil
}

func parseOptions(raw string) map[string]string {
	opts := map[string]string{}
	if raw == "defaults" || raw == "" {
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

func formatOptions(opts map[string]string) string {
	if len(opts) == 0 {
		return "defaults"
	}
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := opts[k]; v != "" {
			parts = append(parts, k+"="+v)
		} else {
			parts = append(parts, k)
		}
	}
	return strings.Join(parts, ",")
}

// Serialize renders entries deterministically: one entry per line,
// two-space column separator, trailing newline.
func Serialize(entries []Entry) string {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.Device)
		sb.WriteString("  ")
		sb.WriteString(e.MountPoint)
		sb.WriteString("  ")
		sb.WriteString(e.Type)
		sb.WriteString("  ")
		sb.WriteString(formatOptions(e.Options))
		sb.WriteString("  ")
		sb.WriteString(strconv.Itoa(e.Dump))
		sb.WriteString("  ")
		sb.WriteString(strconv.Itoa(e.Pass))
		sb.WriteString("\n")
	}
	return sb.String()
}

// HasMountPoint reports whether entries already contains a line for
// the given mount point.
func HasMountPoint(entries []Entry, mountPoint string) bool {
	mp := vfspath.Normalize(mountPoint)
	for _, e := range entries {
		if e.MountPoint == mp {
			return true
		}
	}
	return false
}

// HasAnyType reports whether entries contains at least one entry of
// the given type.
func HasAnyType(entries []Entry, fsType string) bool {
	for _, e := range entries {
		if e.Type == fsType {
			return true
		}
	}
	return false
}
