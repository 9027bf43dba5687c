package condition

import (
	"errors"
	"hash/crc32"
	"io"
	"os"
	"strings"

	"github.com/solatis/loadkeeper/internal/pe"
	"github.com/solatis/loadkeeper/internal/types"
	"github.com/solatis/loadkeeper/internal/version"
)

/*
 * Predicate implementations.
 *
 * Every predicate is a pure function of (arguments, State) returning a
 * boolean or an error. "File does not exist" is never an error: it is a
 * first-class false. Errors abort the whole expression and are never
 * cached.
 */

// eval dispatches a function invocation to its predicate.
func (f *Function) eval(s *State) (bool, error) {
	switch f.Kind {
	case KindFilePath:
		_, ok := resolvePath(s, f.Path)
		return ok, nil
	case KindFileRegex:
		n, err := matchingEntries(s, f.Path, f.Regex.Regex.MatchString, 0)
		return n > 0, err
	case KindFileSize:
		return evalFileSize(s, f.Path, f.Size)
	case KindReadable:
		return evalReadable(s, f.Path)
	case KindIsExecutable:
		return evalIsExecutable(s, f.Path)
	case KindActivePath:
		return s.isActive(f.Path), nil
	case KindActiveRegex:
		return s.countActive(f.Regex.Regex.MatchString, 0) > 0, nil
	case KindIsMaster:
		return evalIsMaster(s, f.Path)
	case KindMany:
		n, err := matchingEntries(s, f.Path, f.Regex.Regex.MatchString, 1)
		return n > 1, err
	case KindManyActive:
		return s.countActive(f.Regex.Regex.MatchString, 1) > 1, nil
	case KindChecksum:
		return evalChecksum(s, f.Path, f.CRC)
	case KindVersion:
		return evalVersion(s, f.Path, f.Version, f.Comparator)
	case KindProductVersion:
		return evalProductVersion(s, f.Path, f.Version, f.Comparator)
	case KindFilenameVersion:
		return evalFilenameVersion(s, f)
	case KindDescriptionContains:
		return evalDescriptionContains(s, f.Path, f.Regex)
	default:
		return false, nil
	}
}

func evalFileSize(s *State, rel string, size uint64) (bool, error) {
	path, ok := resolvePath(s, rel)
	if !ok {
		return false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &types.IOError{Path: path, Err: err}
	}
	if info.IsDir() {
		return false, nil
	}
	return uint64(info.Size()) == size, nil
}

func evalReadable(s *State, rel string) (bool, error) {
	path, ok := resolvePath(s, rel)
	if !ok {
		return false, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			return false, nil
		}
		return false, &types.IOError{Path: path, Err: err}
	}
	f.Close()
	return true, nil
}

func evalIsExecutable(s *State, rel string) (bool, error) {
	path, ok := resolvePath(s, rel)
	if !ok {
		return false, nil
	}
	return pe.IsReadablePE(path)
}

func evalIsMaster(s *State, rel string) (bool, error) {
	if s.game == types.OpenMW {
		return false, nil
	}
	path, ok := resolvePath(s, rel)
	if !ok {
		return false, nil
	}
	rec, err := s.pluginReader().Read(path, s.game)
	if err != nil {
		if errors.Is(err, types.ErrNotPlugin) {
			return false, nil
		}
		return false, err
	}
	return rec.IsPlugin && rec.IsMaster, nil
}

func evalChecksum(s *State, rel string, want uint32) (bool, error) {
	path, _ := resolvePath(s, rel)
	key := crcKey(path)

	if crc, ok := s.cachedCRC(key); ok {
		return crc == want, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &types.IOError{Path: path, Err: err}
	}
	if info.IsDir() {
		return false, nil
	}

	crc, err := fileCRC32(path)
	if err != nil {
		return false, err
	}
	s.storeCRC(key, crc)
	return crc == want, nil
}

func fileCRC32(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, &types.IOError{Path: path, Err: err}
	}
	defer f.Close()

	h := crc32.NewIEEE()
	if _, err := io.Copy(h, f); err != nil {
		return 0, &types.IOError{Path: path, Err: err}
	}
	return h.Sum32(), nil
}

// compareAbsent applies the absence rule for version predicates: an
// executable without a version satisfies != and nothing else.
func compareAbsent(op ComparisonOperator) bool {
	return op == NotEqual
}

func evalVersion(s *State, rel, literal string, op ComparisonOperator) (bool, error) {
	// Plugins are versioned through the caller-supplied overrides, not a
	// version resource.
	if s.game.HasPluginExtension(rel) {
		name := s.game.TrimGhostSuffix(baseName(rel))
		if override, ok := s.versionOverride(name); ok {
			return op.apply(version.Parse(override).Compare(version.Parse(literal))), nil
		}
		return compareAbsent(op), nil
	}

	path, ok := resolvePath(s, rel)
	if !ok {
		return compareAbsent(op), nil
	}
	v, found, err := pe.FileVersion(path)
	if err != nil {
		return false, err
	}
	if !found {
		return compareAbsent(op), nil
	}
	return op.apply(v.Compare(version.Parse(literal))), nil
}

func evalProductVersion(s *State, rel, literal string, op ComparisonOperator) (bool, error) {
	path, ok := resolvePath(s, rel)
	if !ok {
		return compareAbsent(op), nil
	}
	v, found, err := pe.ProductVersion(path)
	if err != nil {
		return false, err
	}
	if !found {
		return compareAbsent(op), nil
	}
	return op.apply(v.Compare(version.Parse(literal))), nil
}

// evalFilenameVersion is true when any directory entry's captured version
// satisfies the comparison. An empty directory or no captures is false for
// every operator, != included.
func evalFilenameVersion(s *State, f *Function) (bool, error) {
	want := version.Parse(f.Version)
	match := func(name string) bool {
		m := f.Regex.Regex.FindStringSubmatch(name)
		if m == nil || m[1] == "" {
			return false
		}
		return f.Comparator.apply(version.Parse(m[1]).Compare(want))
	}

	n, err := matchingEntries(s, f.Path, match, 0)
	return n > 0, err
}

func evalDescriptionContains(s *State, rel string, regex *RegexArg) (bool, error) {
	path, ok := resolvePath(s, rel)
	if !ok {
		return false, nil
	}
	rec, err := s.pluginReader().Read(path, s.game)
	if err != nil {
		if errors.Is(err, types.ErrNotPlugin) {
			return false, nil
		}
		return false, err
	}
	if !rec.IsPlugin || rec.Description == "" {
		return false, nil
	}
	return regex.Regex.MatchString(rec.Description), nil
}

// baseName returns the final component of a user-supplied path, treating
// both separators as separators.
func baseName(rel string) string {
	norm := strings.ReplaceAll(rel, "\\", "/")
	if i := strings.LastIndexByte(norm, '/'); i >= 0 {
		return norm[i+1:]
	}
	return norm
}
