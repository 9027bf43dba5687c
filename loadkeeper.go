// Package loadkeeper is a condition interpreter for load-order metadata:
// it parses condition strings like
//
//	file("Blank.esm") and ( not ( active("Blank.esp") ) )
//
// into expression trees and evaluates them against a game installation.
// Evaluation is thread-safe: many expressions may evaluate concurrently
// against one State, sharing its predicate-result and CRC caches.
//
// The same functionality is exported over a C ABI by cmd/libloadkeeper for
// embedding in non-Go hosts.
package loadkeeper

import (
	"github.com/solatis/loadkeeper/internal/condition"
	"github.com/solatis/loadkeeper/internal/plugin"
	"github.com/solatis/loadkeeper/internal/types"
)

// GameCode identifies a supported game; values are stable across the C
// ABI.
type GameCode = types.GameCode

// Supported games.
const (
	Oblivion   = types.Oblivion
	Skyrim     = types.Skyrim
	SkyrimSE   = types.SkyrimSE
	SkyrimVR   = types.SkyrimVR
	Fallout3   = types.Fallout3
	FalloutNV  = types.FalloutNV
	Fallout4   = types.Fallout4
	Fallout4VR = types.Fallout4VR
	Morrowind  = types.Morrowind
	Starfield  = types.Starfield
	OpenMW     = types.OpenMW
)

// ParseGameCode validates a raw game code value.
func ParseGameCode(code int) (GameCode, error) {
	return types.ParseGameCode(code)
}

// Expression is a parsed condition.
type Expression = condition.Expression

// State is the shared evaluation context.
type State = condition.State

// PluginVersion is a caller-supplied plugin version override.
type PluginVersion = condition.PluginVersion

// PluginCRC is a caller-supplied CRC-32 override.
type PluginCRC = condition.PluginCRC

// PluginRecord is the parsed header of a plugin file.
type PluginRecord = plugin.Record

// PluginReader resolves plugin headers; hosts may substitute their own via
// State.SetPluginReader.
type PluginReader = plugin.Reader

// Parse parses a condition string into an expression tree. The returned
// expression is immutable and safe for concurrent evaluation.
func Parse(input string) (*Expression, error) {
	return condition.Parse(input)
}

// NewState creates an evaluation context for a game and its main data
// directory.
func NewState(game GameCode, dataPath string) *State {
	return condition.NewState(game, dataPath)
}
