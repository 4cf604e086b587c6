package build

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"git.home.luguber.info/inful/docweave/internal/config"
	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// Discover lists the source files of cfg. Files under a group's dirs belong
// to that group and are keyed under the group name; the same key found in
// two places keeps the first occurrence. The output directory is never
// walked.
func Discover(cfg *config.Config) ([]File, error) {
	type root struct{ dir, group string }
	var roots []root
	for _, d := range cfg.Source.Dirs {
		roots = append(roots, root{dir: d})
	}
	for _, g := range cfg.Build.Groups {
		for _, d := range g.Dirs {
			roots = append(roots, root{dir: d, group: g.Name})
		}
	}

	outDir := ""
	if cfg.Output.Directory != "" {
		if abs, err := filepath.Abs(cfg.Output.Directory); err == nil {
			outDir = abs
		}
	}

	seen := make(map[string]bool)
	var files []File
	for _, r := range roots {
		found, err := walk(r.dir, outDir, cfg.Source.Include, cfg.Source.Exclude)
		if err != nil {
			return nil, err
		}
		for _, rel := range found {
			id := path.Join(r.group, rel)
			if seen[id] {
				continue
			}
			seen[id] = true
			files = append(files, File{Key: id, Path: rel, BaseDir: r.dir, Group: r.group})
		}
	}
	return files, nil
}

func walk(dir, skip string, include, exclude []string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "source directory not readable").
			WithContext("dir", dir).Build()
	}
	if !info.IsDir() {
		return nil, ferrors.FileSystemError("source path is not a directory").WithContext("dir", dir).Build()
	}

	var out []string
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if skip != "" {
				if abs, err := filepath.Abs(p); err == nil && abs == skip {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !matches(rel, include, true) || matches(rel, exclude, false) {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "walk source directory").
			WithContext("dir", dir).Build()
	}
	slices.Sort(out)
	return out, nil
}

// matches reports whether rel matches any pattern, either as a whole or by
// base name. An empty list yields empty.
func matches(rel string, patterns []string, empty bool) bool {
	if len(patterns) == 0 {
		return empty
	}
	for _, p := range patterns {
		if ok, _ := path.Match(p, rel); ok {
			return true
		}
		if ok, _ := path.Match(p, path.Base(rel)); ok {
			return true
		}
	}
	return false
}
