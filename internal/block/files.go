package block

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// logFile is a conversation log with its modification time.
type logFile struct {
	path    string
	modTime time.Time
}

// listFiles returns every file under root matching pattern and none of
// exclude, newest modification time first. A missing root, a bad pattern,
// or unstattable files yield fewer results, never an error.
func listFiles(root, pattern string, exclude []string, log *slog.Logger) []logFile {
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		log.Debug("log root unavailable", "root", root, "error", err)
		return nil
	}

	matches, err := doublestar.Glob(os.DirFS(root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		log.Debug("glob failed", "pattern", pattern, "error", err)
		return nil
	}

	files := make([]logFile, 0, len(matches))
	for _, rel := range matches {
		if excluded(rel, exclude) {
			continue
		}
		path := filepath.Join(root, filepath.FromSlash(rel))
		info, err := os.Stat(path)
		if err != nil {
			log.Debug("skipping unstattable log", "path", path, "error", err)
			continue
		}
		files = append(files, logFile{path: path, modTime: info.ModTime()})
	}

	slices.SortFunc(files, func(a, b logFile) int {
		if c := b.modTime.Compare(a.modTime); c != 0 {
			return c
		}
		return strings.Compare(a.path, b.path)
	})
	return files
}

// excluded reports whether rel matches any exclude pattern.
func excluded(rel string, exclude []string) bool {
	for _, pattern := range exclude {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// recentFiles returns the prefix of files (sorted newest first) modified at
// or after cutoff.
func recentFiles(files []logFile, cutoff time.Time) []logFile {
	for i, f := range files {
		if f.modTime.Before(cutoff) {
			return files[:i]
		}
	}
	return files
}
