package condition

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/solatis/loadkeeper/internal/types"
)

/*
 * Path resolution.
 *
 * A user-supplied path is relative, with '/' or '\' separators, and is
 * looked up under each candidate data path in precedence order. Lookups
 * are case-insensitive on every platform: when an exact stat misses, each
 * component is matched against the directory listing case-insensitively.
 * Plugin paths additionally try their ghosted form (path + ".ghost")
 * unless the game has no ghosting or the path is already ghosted.
 */

// splitComponents normalises separators and splits a relative path.
func splitComponents(rel string) []string {
	rel = strings.ReplaceAll(rel, "\\", "/")
	parts := strings.Split(rel, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" && p != "." {
			out = append(out, p)
		}
	}
	return out
}

// locate finds rel under base, matching case-insensitively. Returns the
// on-disk path and whether it exists.
func locate(base, rel string) (string, bool) {
	full := filepath.Join(base, filepath.FromSlash(strings.ReplaceAll(rel, "\\", "/")))
	if _, err := os.Lstat(full); err == nil {
		return full, true
	}

	cur := base
	for _, comp := range splitComponents(rel) {
		entries, err := os.ReadDir(cur)
		if err != nil {
			return "", false
		}
		found := ""
		for _, e := range entries {
			if strings.EqualFold(e.Name(), comp) {
				found = e.Name()
				break
			}
		}
		if found == "" {
			return "", false
		}
		cur = filepath.Join(cur, found)
	}
	return cur, true
}

// resolvePath translates a user-supplied path into a concrete filesystem
// location. The first candidate that exists wins; when none does, the
// main-data-path-joined form is returned so existence predicates can
// report false.
func resolvePath(s *State, rel string) (string, bool) {
	tryGhost := s.game.SupportsGhosting() && s.game.HasUnghostedPluginExtension(rel)

	for _, base := range s.dataPathCandidates() {
		if p, ok := locate(base, rel); ok {
			return p, true
		}
		if tryGhost {
			if p, ok := locate(base, rel+types.GhostExtension); ok {
				return p, true
			}
		}
	}
	return filepath.Join(s.dataPath, filepath.FromSlash(strings.ReplaceAll(rel, "\\", "/"))), false
}

// resolveDir resolves a regex predicate's directory prefix to the first
// existing directory among the candidates. "." names the data path
// itself.
func resolveDir(s *State, prefix string) (string, bool) {
	for _, base := range s.dataPathCandidates() {
		dir := base
		if prefix != "." {
			p, ok := locate(base, prefix)
			if !ok {
				continue
			}
			dir = p
		}
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, true
		}
	}
	return "", false
}

// matchingEntries counts the direct children of the resolved prefix whose
// name matches, after stripping one ghost suffix. Enumeration stops once
// limit matches are exceeded.
func matchingEntries(s *State, prefix string, match func(string) bool, limit int) (int, error) {
	dir, ok := resolveDir(s, prefix)
	if !ok {
		return 0, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, &types.IOError{Path: dir, Err: err}
	}

	count := 0
	for _, e := range entries {
		if match(s.game.TrimGhostSuffix(e.Name())) {
			count++
			if count > limit {
				break
			}
		}
	}
	return count, nil
}
