// Package scanner finds module files under a directory tree. It respects
// .gdceignore files with gitignore-style patterns.
package scanner

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/l3aro/go-globaldce/pkg/irfile"
)

// FileInfo represents a discovered module file.
type FileInfo struct {
	Path     string        // Relative path from root, slash separated
	FullPath string        // Absolute path
	Format   irfile.Format // Encoding picked from the extension
	Size     int64
}

// Options configures the scanner behavior.
type Options struct {
	SkipHidden      bool     // Skip hidden files and directories (starting with .)
	FollowSymlinks  bool     // Follow file symlinks that stay within root
	DefaultExcludes []string // Directory names never descended into
	IgnoreFileName  string   // Name of the ignore file (default: .gdceignore)
}

// DefaultOptions returns scanner options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		SkipHidden:     true,
		FollowSymlinks: false,
		IgnoreFileName: ".gdceignore",
		DefaultExcludes: []string{
			"node_modules",
			".git",
			".hg",
			".svn",
			"vendor",
			"testdata",
		},
	}
}

// Scanner walks a tree looking for module files.
type Scanner struct {
	opts Options
}

// New creates a new Scanner with the given options.
func New(opts Options) *Scanner {
	if opts.IgnoreFileName == "" {
		opts.IgnoreFileName = ".gdceignore"
	}
	return &Scanner{opts: opts}
}

// Scan recursively scans root and returns module files sorted by path.
// Ignore files are read from root and from every directory below it; the
// patterns of a nested file apply after those of its parents.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	var patterns []IgnorePattern
	var files []FileInfo

	err = filepath.Walk(absRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if relPath != "." {
				if s.opts.SkipHidden && isHidden(info.Name()) || s.isDefaultExcluded(info.Name()) {
					return filepath.SkipDir
				}
				if matchesIgnorePatterns(relPath+"/", patterns) {
					return filepath.SkipDir
				}
			}
			nested, err := s.loadIgnorePatterns(path, relPath)
			if err != nil {
				return fmt.Errorf("loading ignore patterns: %w", err)
			}
			patterns = append(patterns, nested...)
			return nil
		}

		if s.opts.SkipHidden && isHidden(info.Name()) {
			return nil
		}
		format, err := irfile.FormatFromPath(path)
		if err != nil {
			return nil
		}
		if matchesIgnorePatterns(relPath, patterns) {
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 {
			if !s.opts.FollowSymlinks {
				return nil
			}
			target, ok := resolveWithin(absRoot, path)
			if !ok {
				return nil
			}
			info = target
		}

		files = append(files, FileInfo{
			Path:     relPath,
			FullPath: path,
			Format:   format,
			Size:     info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// resolveWithin stats the target of a file symlink if it stays under root.
func resolveWithin(root, path string) (os.FileInfo, bool) {
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, false
	}
	real, err = filepath.Abs(real)
	if err != nil {
		return nil, false
	}
	if !strings.HasPrefix(real, root+string(filepath.Separator)) {
		return nil, false
	}
	info, err := os.Stat(real)
	if err != nil || info.IsDir() {
		return nil, false
	}
	return info, true
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func (s *Scanner) isDefaultExcluded(name string) bool {
	for _, exclude := range s.opts.DefaultExcludes {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return false
}

// loadIgnorePatterns reads the ignore file in dir. Patterns are rebased so
// they only apply below dir.
func (s *Scanner) loadIgnorePatterns(dir, relDir string) ([]IgnorePattern, error) {
	file, err := os.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	base := ""
	if relDir != "." {
		base = relDir
	}

	var patterns []IgnorePattern
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p := ParseIgnorePattern(line)
		p.base = base
		patterns = append(patterns, p)
	}
	return patterns, sc.Err()
}

// matchesIgnorePatterns applies patterns in order; a later negation
// re-includes a path an earlier pattern ignored.
func matchesIgnorePatterns(relPath string, patterns []IgnorePattern) bool {
	ignored := false
	for _, pattern := range patterns {
		if pattern.Match(relPath) {
			ignored = !pattern.IsNegation()
		}
	}
	return ignored
}

// Scan is a convenience function that scans a directory with default options.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}
