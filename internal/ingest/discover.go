// Package ingest discovers raw workflow log files and parses them into
// canonical LogEntry records. Discovery is read-only: the pipeline
// never writes into or mutates source log directories.
package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// knownSubdirs is the fixed log-root layout the pipeline understands.
var knownSubdirs = []string{"logs", "sessions", "shell-snapshots", "projects"}

// KnownSubdir reports whether name is one of the log-root
// subdirectories the pipeline reads.
func KnownSubdir(name string) bool {
	for _, sub := range knownSubdirs {
		if name == sub {
			return true
		}
	}
	return false
}

// Discover returns the known subdirectories of root that exist on
// disk. A missing root yields an empty result, not an error.
func Discover(root string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ingest: stat root: %w", err)
	}

	var dirs []string
	for _, sub := range knownSubdirs {
		dir := filepath.Join(root, sub)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

// CollectFiles recursively walks dir and returns files eligible for
// parsing, in walk order. Unreadable subtrees are skipped.
func CollectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if Eligible(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: walk %s: %w", dir, err)
	}
	return files, nil
}

// Eligible reports whether a file name looks like a log artifact:
// a .log or .json suffix, or a name mentioning session or snapshot.
func Eligible(name string) bool {
	if strings.HasSuffix(name, ".log") || strings.HasSuffix(name, ".json") {
		return true
	}
	return strings.Contains(name, "session") || strings.Contains(name, "snapshot")
}
