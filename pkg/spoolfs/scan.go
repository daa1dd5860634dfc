package spoolfs

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/probelab/spool-ingest/internal/logctx"
)

// DefaultSuffix is the file name filter applied when Scanner.Suffix is empty.
const DefaultSuffix = ".json"

// Scanner yields spool files under a root directory. Excluded directories
// are pruned during traversal rather than filtered afterwards, so large
// output trees cost no I/O.
type Scanner struct {
	// Root is the directory to walk.
	Root string
	// Exclude holds directory paths pruned from the walk. Matching is by
	// cleaned-path equality, not prefix: a directory that merely shares a
	// base name with an excluded path is still walked.
	Exclude []string
	// Suffix filters files by name suffix. Empty means DefaultSuffix.
	Suffix string
}

// NewScanner returns a Scanner over root that prunes the given directories.
func NewScanner(root string, exclude ...string) *Scanner {
	return &Scanner{Root: root, Exclude: exclude, Suffix: DefaultSuffix}
}

// Walk calls fn for each matching file under the root, in traversal order.
// The walk observes context cancellation between entries and stops yielding.
// An error from fn aborts the walk and is returned unchanged. Entries below
// the root that vanish or turn unreadable mid-walk are logged and skipped;
// the spool is live, and a pass must survive its churn. An error on the
// root itself still aborts the walk.
func (s *Scanner) Walk(ctx context.Context, fn func(path string) error) error {
	suffix := s.Suffix
	if suffix == "" {
		suffix = DefaultSuffix
	}

	excluded := make(map[string]struct{}, len(s.Exclude))
	for _, p := range s.Exclude {
		excluded[filepath.Clean(p)] = struct{}{}
	}

	return filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.Root {
				return err
			}
			log := logctx.FromContext(ctx)
			log.Warn().Err(err).Str("path", path).Msg("skipping unreadable spool entry")
			return nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() {
			if _, skip := excluded[filepath.Clean(path)]; skip {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), suffix) {
			return nil
		}
		return fn(path)
	})
}
