package main

import (
	"sync"
	"time"
)

// stateManager owns the whole appState behind one mutex. Readers take a
// snapshot copy; writers go through mutators. Slices inside a snapshot
// are replaced wholesale by the pollers, never mutated in place, so the
// copies stay safe to render from.
type stateManager struct {
	mu    sync.Mutex
	state appState
}

func newStateManager() *stateManager {
	return &stateManager{state: appState{
		status:       unknownStatus(),
		needRedraw:   true,
		viewerFollow: true,
	}}
}

func (m *stateManager) snapshot() appState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// mutate runs fn with the state locked and flags a redraw.
func (m *stateManager) mutate(fn func(*appState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.state)
	m.state.needRedraw = true
}

// mutateQuiet runs fn without touching the redraw flag, for bookkeeping
// updates that have no visible effect.
func (m *stateManager) mutateQuiet(fn func(*appState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.state)
}

func (m *stateManager) setShards(shards []shard) {
	m.mutate(func(s *appState) {
		s.shards = shards
		if s.shardIndex >= len(shards) {
			s.shardIndex = 0
		}
	})
}

func (m *stateManager) setStatus(status serverStatus) {
	m.mutate(func(s *appState) { s.status = status })
}

func (m *stateManager) setChat(lines []string) {
	m.mutate(func(s *appState) { s.chatLines = lines })
}

func (m *stateManager) setWorking(working bool) {
	m.mutate(func(s *appState) { s.working = working })
}

func (m *stateManager) working() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.working
}

func (m *stateManager) setError(msg string) {
	m.mutate(func(s *appState) { s.lastErr = msg })
}

func (m *stateManager) setInfo(msg string) {
	m.mutate(func(s *appState) {
		s.lastInfo = msg
		s.lastErr = ""
	})
}

func (m *stateManager) requestRedraw() {
	m.mutateQuiet(func(s *appState) { s.needRedraw = true })
}

// consumeRedraw reports whether a redraw is due, clearing the flag and
// stamping the draw time when it is. A minimum frame interval keeps the
// redraw rate at roughly 30 fps.
func (m *stateManager) consumeRedraw(minInterval time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.needRedraw {
		return false
	}
	now := time.Now()
	if now.Sub(m.state.lastDraw) < minInterval {
		return false
	}
	m.state.needRedraw = false
	m.state.lastDraw = now
	return true
}
