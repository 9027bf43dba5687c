// Command libloadkeeper builds the condition interpreter as a C shared
// library:
//
//	go build -buildmode=c-shared -o libloadkeeper.so ./cmd/libloadkeeper
//
// Every export returns an integer status: LK_OK, LK_RESULT_TRUE and
// LK_RESULT_FALSE are the success values, negative values are errors. A
// failing call stores a message retrievable with get_error_message on the
// same thread.
package main

/*
#include <stdlib.h>

#include "helpers.h"
*/
import "C"

import (
	"errors"
	"strings"
	"unicode/utf8"
	"unsafe"

	"github.com/solatis/loadkeeper"
	"github.com/solatis/loadkeeper/internal/types"
)

func main() {}

// setError stores msg in the calling thread's error slot. Embedded nul
// bytes are escaped rather than truncating the C string.
func setError(code C.int, msg string) C.int {
	msg = strings.ReplaceAll(msg, "\x00", `\0`)
	cmsg := C.CString(msg)
	C.lk_set_error(cmsg)
	C.free(unsafe.Pointer(cmsg))
	return code
}

// guard converts a panic into LK_ERROR_GENERIC; no export lets one cross
// the FFI boundary.
func guard(code *C.int) {
	if r := recover(); r != nil {
		*code = setError(C.LK_ERROR_GENERIC, "unexpected panic in loadkeeper")
	}
}

func goString(s *C.char) (string, C.int) {
	if s == nil {
		return "", setError(C.LK_ERROR_INVALID_ARGS, "Null pointer passed")
	}
	str := C.GoString(s)
	if !utf8.ValidString(str) {
		return "", setError(C.LK_ERROR_INVALID_UTF8, "Non-UTF-8 string passed")
	}
	return str, C.LK_OK
}

func mapError(err error) C.int {
	var (
		parseErr      *types.ParseError
		incompleteErr *types.IncompleteParseError
		ioErr         *types.IOError
		peErr         *types.PEParseError
	)
	switch {
	case errors.As(err, &parseErr), errors.As(err, &incompleteErr):
		return C.LK_ERROR_PARSING_ERROR
	case errors.As(err, &peErr):
		return C.LK_ERROR_PE_PARSING_ERROR
	case errors.As(err, &ioErr):
		return C.LK_ERROR_IO_ERROR
	case errors.Is(err, types.ErrInvalidGameCode):
		return C.LK_ERROR_INVALID_GAME_CODE
	default:
		return C.LK_ERROR_GENERIC
	}
}

// checkArrayArgs enforces the mutator contract: null with a zero count
// clears, null with a non-zero count and non-null with a zero count are
// both rejected.
func checkArrayArgs(ptr unsafe.Pointer, count C.size_t) (clear bool, status C.int) {
	if ptr == nil && count != 0 {
		return false, setError(C.LK_ERROR_INVALID_ARGS, "Null array pointer passed but count is non-zero")
	}
	if ptr != nil && count == 0 {
		return false, setError(C.LK_ERROR_INVALID_ARGS, "Non-null array pointer passed but count is zero")
	}
	return ptr == nil, C.LK_OK
}

//export condition_parse
func condition_parse(condition *C.char) (code C.int) {
	defer guard(&code)

	expr, status := goString(condition)
	if status != C.LK_OK {
		return status
	}
	if _, err := loadkeeper.Parse(expr); err != nil {
		return setError(mapError(err), err.Error())
	}
	return C.LK_OK
}

//export condition_eval
func condition_eval(condition *C.char, state *C.lk_state) (code C.int) {
	defer guard(&code)

	input, status := goString(condition)
	if status != C.LK_OK {
		return status
	}
	s, ok := lookupState(uintptr(unsafe.Pointer(state)))
	if !ok {
		return setError(C.LK_ERROR_INVALID_ARGS, "Null or unknown state pointer passed")
	}

	expr, err := loadkeeper.Parse(input)
	if err != nil {
		return setError(mapError(err), err.Error())
	}

	result, err := expr.Eval(s)
	if err != nil {
		return setError(mapError(err), err.Error())
	}
	if result {
		return C.LK_RESULT_TRUE
	}
	return C.LK_RESULT_FALSE
}

//export get_error_message
func get_error_message(message **C.char) (code C.int) {
	defer guard(&code)

	if message == nil {
		return setError(C.LK_ERROR_INVALID_ARGS, "Null pointer passed")
	}
	*message = C.lk_error_message()
	return C.LK_OK
}

//export state_create
func state_create(state **C.lk_state, gameCode C.int, dataPath *C.char, lootPath *C.char) (code C.int) {
	defer guard(&code)

	if state == nil {
		return setError(C.LK_ERROR_INVALID_ARGS, "Null pointer passed")
	}
	game, err := loadkeeper.ParseGameCode(int(gameCode))
	if err != nil {
		return setError(C.LK_ERROR_INVALID_GAME_CODE, "Invalid game specified")
	}
	data, status := goString(dataPath)
	if status != C.LK_OK {
		return status
	}
	// The loot_path argument survives for ABI compatibility and is
	// validated but otherwise ignored.
	if _, status := goString(lootPath); status != C.LK_OK {
		return status
	}

	id := registerState(loadkeeper.NewState(game, data))
	*state = (*C.lk_state)(unsafe.Pointer(id))
	return C.LK_OK
}

//export state_destroy
func state_destroy(state *C.lk_state) (code C.int) {
	defer guard(&code)

	releaseState(uintptr(unsafe.Pointer(state)))
	return C.LK_OK
}

//export state_set_active_plugins
func state_set_active_plugins(state *C.lk_state, pluginNames **C.char, numPlugins C.size_t) (code C.int) {
	defer guard(&code)

	s, ok := lookupState(uintptr(unsafe.Pointer(state)))
	if !ok {
		return setError(C.LK_ERROR_INVALID_ARGS, "Null or unknown state pointer passed")
	}
	clear, status := checkArrayArgs(unsafe.Pointer(pluginNames), numPlugins)
	if status != C.LK_OK {
		return status
	}

	names := make([]string, 0, int(numPlugins))
	if !clear {
		for i := C.size_t(0); i < numPlugins; i++ {
			name, status := goString(C.lk_index_string(pluginNames, i))
			if status != C.LK_OK {
				return status
			}
			names = append(names, name)
		}
	}

	s.SetActivePlugins(names)
	return C.LK_OK
}

//export state_set_plugin_versions
func state_set_plugin_versions(state *C.lk_state, pluginVersions *C.plugin_version, numPlugins C.size_t) (code C.int) {
	defer guard(&code)

	s, ok := lookupState(uintptr(unsafe.Pointer(state)))
	if !ok {
		return setError(C.LK_ERROR_INVALID_ARGS, "Null or unknown state pointer passed")
	}
	clear, status := checkArrayArgs(unsafe.Pointer(pluginVersions), numPlugins)
	if status != C.LK_OK {
		return status
	}

	versions := make([]loadkeeper.PluginVersion, 0, int(numPlugins))
	if !clear {
		for i := C.size_t(0); i < numPlugins; i++ {
			entry := C.lk_index_version(pluginVersions, i)
			name, status := goString(entry.plugin_name)
			if status != C.LK_OK {
				return status
			}
			ver, status := goString(entry.version)
			if status != C.LK_OK {
				return status
			}
			versions = append(versions, loadkeeper.PluginVersion{Name: name, Version: ver})
		}
	}

	s.SetPluginVersions(versions)
	return C.LK_OK
}

//export state_set_crc_cache
func state_set_crc_cache(state *C.lk_state, entries *C.plugin_crc, numEntries C.size_t) (code C.int) {
	defer guard(&code)

	s, ok := lookupState(uintptr(unsafe.Pointer(state)))
	if !ok {
		return setError(C.LK_ERROR_INVALID_ARGS, "Null or unknown state pointer passed")
	}
	clear, status := checkArrayArgs(unsafe.Pointer(entries), numEntries)
	if status != C.LK_OK {
		return status
	}

	crcs := make([]loadkeeper.PluginCRC, 0, int(numEntries))
	if !clear {
		for i := C.size_t(0); i < numEntries; i++ {
			entry := C.lk_index_crc(entries, i)
			name, status := goString(entry.plugin_name)
			if status != C.LK_OK {
				return status
			}
			crcs = append(crcs, loadkeeper.PluginCRC{Name: name, CRC: uint32(entry.crc)})
		}
	}

	s.SetCRCCache(crcs)
	return C.LK_OK
}

//export state_set_additional_data_paths
func state_set_additional_data_paths(state *C.lk_state, paths **C.char, numPaths C.size_t) (code C.int) {
	defer guard(&code)

	s, ok := lookupState(uintptr(unsafe.Pointer(state)))
	if !ok {
		return setError(C.LK_ERROR_INVALID_ARGS, "Null or unknown state pointer passed")
	}
	clear, status := checkArrayArgs(unsafe.Pointer(paths), numPaths)
	if status != C.LK_OK {
		return status
	}

	list := make([]string, 0, int(numPaths))
	if !clear {
		for i := C.size_t(0); i < numPaths; i++ {
			path, status := goString(C.lk_index_string(paths, i))
			if status != C.LK_OK {
				return status
			}
			list = append(list, path)
		}
	}

	s.SetAdditionalDataPaths(list)
	return C.LK_OK
}

//export state_clear_condition_cache
func state_clear_condition_cache(state *C.lk_state) (code C.int) {
	defer guard(&code)

	s, ok := lookupState(uintptr(unsafe.Pointer(state)))
	if !ok {
		return setError(C.LK_ERROR_INVALID_ARGS, "Null or unknown state pointer passed")
	}
	s.ClearConditionCache()
	return C.LK_OK
}

//export state_clear_crc_cache
func state_clear_crc_cache(state *C.lk_state) (code C.int) {
	defer guard(&code)

	s, ok := lookupState(uintptr(unsafe.Pointer(state)))
	if !ok {
		return setError(C.LK_ERROR_INVALID_ARGS, "Null or unknown state pointer passed")
	}
	s.ClearCRCCache()
	return C.LK_OK
}
