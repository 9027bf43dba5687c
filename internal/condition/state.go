package condition

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/solatis/loadkeeper/internal/plugin"
	"github.com/solatis/loadkeeper/internal/types"
)

/*
 * State is the shared evaluation context: game identity, data paths,
 * caller-supplied overrides and the two caches. Many expressions evaluate
 * against one State concurrently, so three independent locks cover the
 * three groups of mutable data:
 *
 *   - stateMu guards the override maps and additional data paths
 *   - the CRC cache and the condition cache each own a lock
 *
 * Evaluators hold at most one cache lock at a time, and only around map
 * access, never around I/O. Cache writes happen only after a successful
 * computation, so a panicking evaluation cannot leave a partial entry
 * behind; deferred unlocks keep a panic from leaving a lock held.
 *
 * The game code and main data path never change after construction.
 * Override writes are replace-all: an evaluator sees either the old set or
 * the new one, never a mix.
 */

// State is the evaluation context for condition expressions.
type State struct {
	game     types.GameCode
	dataPath string

	stateMu             sync.RWMutex
	additionalDataPaths []string
	activePlugins       map[string]struct{}
	pluginVersions      map[string]string

	crcMu    sync.Mutex
	crcCache map[string]uint32

	condMu         sync.Mutex
	conditionCache map[string]bool

	plugins plugin.Reader
}

// NewState creates a State for the given game and main data directory.
func NewState(game types.GameCode, dataPath string) *State {
	return &State{
		game:           game,
		dataPath:       dataPath,
		activePlugins:  map[string]struct{}{},
		pluginVersions: map[string]string{},
		crcCache:       map[string]uint32{},
		conditionCache: map[string]bool{},
		plugins:        plugin.HeaderReader{},
	}
}

// Game returns the state's game code.
func (s *State) Game() types.GameCode { return s.game }

// DataPath returns the main data directory.
func (s *State) DataPath() string { return s.dataPath }

// SetPluginReader substitutes the plugin-record reader. Intended for hosts
// with their own plugin parser; call before the first evaluation.
func (s *State) SetPluginReader(r plugin.Reader) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.plugins = r
}

// SetAdditionalDataPaths replaces the overlay data paths. Order matters:
// higher precedence first, except for OpenMW where the whole candidate
// sequence is reversed at resolution time.
func (s *State) SetAdditionalDataPaths(paths []string) {
	cloned := make([]string, len(paths))
	copy(cloned, paths)

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.additionalDataPaths = cloned
}

// SetActivePlugins replaces the active plugin set. Names are stored
// lowercased; an empty slice asserts that nothing is active.
func (s *State) SetActivePlugins(names []string) {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = struct{}{}
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.activePlugins = set
}

// PluginVersion is a caller-supplied plugin version override.
type PluginVersion struct {
	Name    string
	Version string
}

// SetPluginVersions replaces the plugin version overrides.
func (s *State) SetPluginVersions(versions []PluginVersion) {
	m := make(map[string]string, len(versions))
	for _, v := range versions {
		m[strings.ToLower(v.Name)] = v.Version
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.pluginVersions = m
}

// PluginCRC is a caller-supplied CRC-32 for a data-path-relative name.
type PluginCRC struct {
	Name string
	CRC  uint32
}

// SetCRCCache replaces the CRC cache with caller-supplied entries, keyed
// as the evaluator would key them so later checksum() calls hit without
// touching disk.
func (s *State) SetCRCCache(entries []PluginCRC) {
	m := make(map[string]uint32, len(entries))
	for _, e := range entries {
		m[crcKey(filepath.Join(s.dataPath, e.Name))] = e.CRC
	}

	s.crcMu.Lock()
	defer s.crcMu.Unlock()
	s.crcCache = m
}

// ClearConditionCache discards all cached predicate results. Callers that
// change overrides after evaluating must call this to drop stale results;
// the override mutators do not invalidate implicitly.
func (s *State) ClearConditionCache() {
	s.condMu.Lock()
	defer s.condMu.Unlock()
	s.conditionCache = map[string]bool{}
}

// ClearCRCCache discards all cached CRC-32 values.
func (s *State) ClearCRCCache() {
	s.crcMu.Lock()
	defer s.crcMu.Unlock()
	s.crcCache = map[string]uint32{}
}

// crcKey normalises an on-disk path into a CRC cache key.
func crcKey(path string) string {
	return normPath(path)
}

func (s *State) cachedCRC(key string) (uint32, bool) {
	s.crcMu.Lock()
	defer s.crcMu.Unlock()
	crc, ok := s.crcCache[key]
	return crc, ok
}

// storeCRC records a computed CRC. Writes are idempotent: two evaluators
// racing on the same file store the same value.
func (s *State) storeCRC(key string, crc uint32) {
	s.crcMu.Lock()
	defer s.crcMu.Unlock()
	s.crcCache[key] = crc
}

func (s *State) cachedCondition(fingerprint string) (bool, bool) {
	s.condMu.Lock()
	defer s.condMu.Unlock()
	v, ok := s.conditionCache[fingerprint]
	return v, ok
}

func (s *State) storeCondition(fingerprint string, value bool) {
	s.condMu.Lock()
	defer s.condMu.Unlock()
	s.conditionCache[fingerprint] = value
}

func (s *State) isActive(name string) bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	_, ok := s.activePlugins[strings.ToLower(name)]
	return ok
}

// countActive returns how many active plugins match, stopping early once
// the caller's threshold is exceeded.
func (s *State) countActive(match func(string) bool, limit int) int {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	count := 0
	for name := range s.activePlugins {
		if match(name) {
			count++
			if count > limit {
				break
			}
		}
	}
	return count
}

func (s *State) versionOverride(name string) (string, bool) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	v, ok := s.pluginVersions[strings.ToLower(name)]
	return v, ok
}

func (s *State) pluginReader() plugin.Reader {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.plugins
}

// dataPathCandidates returns the resolution order: additional paths first
// (higher precedence first), then the main data path. For OpenMW the whole
// sequence is reversed.
func (s *State) dataPathCandidates() []string {
	s.stateMu.RLock()
	additional := s.additionalDataPaths
	s.stateMu.RUnlock()

	candidates := make([]string, 0, len(additional)+1)
	candidates = append(candidates, additional...)
	candidates = append(candidates, s.dataPath)

	if s.game.AdditionalPathsReversed() {
		for i, j := 0, len(candidates)-1; i < j; i, j = i+1, j-1 {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		}
	}
	return candidates
}
