package main

import (
	"sync"

	"github.com/solatis/loadkeeper"
)

/*
 * Handle registry.
 *
 * Go pointers may not be stored by C, so the opaque lk_state* handed to
 * the host is an integer token disguised as a pointer. The registry maps
 * tokens to their State; destroy removes the entry, after which any use of
 * the stale handle reports an invalid argument rather than touching freed
 * memory.
 */

var handles = struct {
	sync.Mutex
	next   uintptr
	states map[uintptr]*loadkeeper.State
}{
	next:   1,
	states: map[uintptr]*loadkeeper.State{},
}

func registerState(s *loadkeeper.State) uintptr {
	handles.Lock()
	defer handles.Unlock()
	id := handles.next
	handles.next++
	handles.states[id] = s
	return id
}

func lookupState(id uintptr) (*loadkeeper.State, bool) {
	handles.Lock()
	defer handles.Unlock()
	s, ok := handles.states[id]
	return s, ok
}

func releaseState(id uintptr) {
	handles.Lock()
	defer handles.Unlock()
	delete(handles.states, id)
}
