package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/sirupsen/logrus"
)

// excludedDirs are never descended into when expanding a directory.
var excludedDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	".cache":       {},
}

type ExpandOptions struct {
	Recursive  bool
	ShowHidden bool
}

// ExpandPaths turns a mix of files and directories into the regular file paths a scan
// accepts. Files named directly are kept even when hidden. A root that cannot be read
// is an error; unreadable entries below a root are logged and skipped.
func ExpandPaths(ctx context.Context, fsys billy.Filesystem, log *logrus.Entry, roots []string, opts ExpandOptions) ([]string, error) {
	log = componentLogger(log, "expander")
	normalized, err := normalizePaths(roots)
	if err != nil {
		return nil, newError(CodeInvalidRequest, "", err)
	}

	seen := make(map[string]struct{})
	files := make([]string, 0, len(normalized))
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}

	for _, root := range normalized {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := fsys.Stat(root)
		if err != nil {
			return nil, newError(CodeUnreadableFile, root, err)
		}
		if !info.IsDir() {
			add(root)
			continue
		}

		walkErr := util.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				if path == root {
					return err
				}
				log.WithField("path", path).WithError(err).Warn("skipping unreadable entry")
				return nil
			}
			if path == root {
				return nil
			}
			name := filepath.Base(path)
			if info.IsDir() {
				if _, excluded := excludedDirs[name]; excluded {
					return filepath.SkipDir
				}
				if !opts.ShowHidden && isHidden(name) {
					return filepath.SkipDir
				}
				if !opts.Recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if !opts.ShowHidden && isHidden(name) {
				return nil
			}
			if info.Mode().IsRegular() {
				add(path)
			}
			return nil
		})
		if walkErr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, newError(CodeUnreadableFile, root, fmt.Errorf("walk: %w", walkErr))
		}
	}

	log.WithFields(logrus.Fields{"roots": len(normalized), "files": len(files)}).Debug("paths expanded")
	return files, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
