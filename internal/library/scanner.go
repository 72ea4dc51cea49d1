package library

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Scanner finds descriptor files under a root directory.
type Scanner struct {
	// Pattern is a shell glob matched case-sensitively against base names.
	Pattern string
	// FollowSymlinks descends into symlinked directories. Each canonical
	// directory is visited at most once, which also cuts symlink cycles.
	FollowSymlinks bool
	Scheduler      Scheduler
	Logger         *zap.Logger
}

type scanState struct {
	s       *Scanner
	group   Group
	visited sync.Map

	// root is the configured absolute root; canonicalRoot is where it resolves.
	root          string
	canonicalRoot string

	mu    sync.Mutex
	found []string
}

// Scan returns the sorted absolute paths of every matching file under root.
// Paths inside the root are reported under root as given, even when root is
// itself a symlink; directories reached through symlinks that leave the root
// are reported by their resolved path. An unreadable subdirectory is logged
// and skipped. An unreadable root fails the scan.
func (s *Scanner) Scan(root string) ([]string, error) {
	if _, err := filepath.Match(s.Pattern, ""); err != nil {
		return nil, fmt.Errorf("descriptor pattern %q: %w", s.Pattern, err)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("library root: %w", err)
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("library root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library root %s is not a directory", abs)
	}

	sched := s.Scheduler
	if sched == nil {
		sched = Inline{}
	}
	st := &scanState{s: s, group: sched.NewGroup(), root: abs, canonicalRoot: canonical}
	st.visited.Store(canonical, struct{}{})

	rootErr := st.walk(canonical, true)
	if err := st.group.Wait(); err != nil {
		return nil, err
	}
	if rootErr != nil {
		return nil, rootErr
	}

	sort.Strings(st.found)
	return st.found, nil
}

func (st *scanState) logger() *zap.Logger {
	if st.s.Logger == nil {
		return zap.NewNop()
	}
	return st.s.Logger
}

// walk lists one canonical directory, records matches and dispatches every
// subdirectory as its own unit of work.
func (st *scanState) walk(dir string, isRoot bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if isRoot {
			return fmt.Errorf("library root: %w", err)
		}
		st.logger().Warn("skipping unreadable directory", zap.String("path", dir), zap.Error(err))
		return nil
	}

	for _, e := range entries {
		full := filepath.Join(dir, e.Name())

		switch {
		case e.Type()&fs.ModeSymlink != 0:
			target, err := os.Stat(full)
			if err != nil {
				st.logger().Warn("skipping broken symlink", zap.String("path", full), zap.Error(err))
				continue
			}
			if !target.IsDir() {
				st.match(full, e.Name())
				continue
			}
			if !st.s.FollowSymlinks {
				continue
			}
			resolved, err := filepath.EvalSymlinks(full)
			if err != nil {
				st.logger().Warn("skipping unresolvable symlink", zap.String("path", full), zap.Error(err))
				continue
			}
			st.descend(resolved)

		case e.IsDir():
			st.descend(full)

		default:
			st.match(full, e.Name())
		}
	}
	return nil
}

func (st *scanState) descend(dir string) {
	if _, seen := st.visited.LoadOrStore(dir, struct{}{}); seen {
		st.logger().Debug("directory already visited", zap.String("path", dir))
		return
	}
	st.group.Go(func() error {
		return st.walk(dir, false)
	})
}

func (st *scanState) match(path, name string) {
	ok, _ := filepath.Match(st.s.Pattern, name)
	if !ok {
		return
	}
	st.mu.Lock()
	st.found = append(st.found, st.display(path))
	st.mu.Unlock()
}

// display maps a canonical path inside the canonical root back under the
// configured root.
func (st *scanState) display(path string) string {
	if st.root == st.canonicalRoot {
		return path
	}
	rel, err := filepath.Rel(st.canonicalRoot, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.Join(st.root, rel)
}
