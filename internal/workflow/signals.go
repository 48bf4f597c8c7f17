package workflow

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SignalManager watches the project's .crew/signals directory for control
// files. Dropping a file named pause, resume, or kill steers a running
// workflow from outside the process. Stat fallbacks cover the case where
// the watcher could not start or missed an event.
type SignalManager struct {
	crewDir string

	mu          sync.RWMutex
	stopSignal  bool
	pauseSignal bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewSignalManager creates a signal manager rooted at projectRoot/.crew.
func NewSignalManager(projectRoot string) (*SignalManager, error) {
	crewDir := filepath.Join(projectRoot, ".crew")
	signalsDir := filepath.Join(crewDir, "signals")
	if err := os.MkdirAll(signalsDir, 0755); err != nil {
		return nil, err
	}

	sm := &SignalManager{
		crewDir: crewDir,
		done:    make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// Polling via ShouldStop/ShouldPause still works.
		return sm, nil
	}
	if err := watcher.Add(signalsDir); err != nil {
		watcher.Close()
		return sm, nil
	}
	sm.watcher = watcher

	go sm.watchSignals()
	return sm, nil
}

func (sm *SignalManager) watchSignals() {
	for {
		select {
		case <-sm.done:
			return
		case event, ok := <-sm.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			sm.mu.Lock()
			switch filepath.Base(event.Name) {
			case "kill":
				sm.stopSignal = true
			case "pause":
				sm.pauseSignal = true
			case "resume":
				sm.pauseSignal = false
			}
			sm.mu.Unlock()
		case <-sm.watcher.Errors:
			// Keep watching.
		}
	}
}

// ShouldStop reports whether a kill signal has arrived.
func (sm *SignalManager) ShouldStop() bool {
	if _, err := os.Stat(sm.signalPath("kill")); err == nil {
		sm.mu.Lock()
		sm.stopSignal = true
		sm.mu.Unlock()
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.stopSignal
}

// ShouldPause reports whether a pause signal is in effect.
func (sm *SignalManager) ShouldPause() bool {
	if _, err := os.Stat(sm.signalPath("pause")); err == nil {
		sm.mu.Lock()
		sm.pauseSignal = true
		sm.mu.Unlock()
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.pauseSignal
}

// SendKill drops a kill signal file.
func (sm *SignalManager) SendKill() error {
	return os.WriteFile(sm.signalPath("kill"), []byte(time.Now().Format(time.RFC3339)), 0644)
}

// SendPause drops a pause signal file.
func (sm *SignalManager) SendPause() error {
	return os.WriteFile(sm.signalPath("pause"), []byte(time.Now().Format(time.RFC3339)), 0644)
}

// SendResume removes the pause file and drops a resume marker.
func (sm *SignalManager) SendResume() error {
	os.Remove(sm.signalPath("pause"))
	return os.WriteFile(sm.signalPath("resume"), []byte(time.Now().Format(time.RFC3339)), 0644)
}

// ClearSignals removes all signal files and resets in-memory state.
func (sm *SignalManager) ClearSignals() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.stopSignal = false
	sm.pauseSignal = false

	for _, name := range []string{"kill", "pause", "resume"} {
		os.Remove(sm.signalPath(name))
	}
}

func (sm *SignalManager) signalPath(name string) string {
	return filepath.Join(sm.crewDir, "signals", name)
}

// Close shuts the watcher down.
func (sm *SignalManager) Close() {
	close(sm.done)
	if sm.watcher != nil {
		sm.watcher.Close()
	}
}
