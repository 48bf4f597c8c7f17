// Package graph provides a dependency graph over plan step indexes,
// used for eligibility evaluation and cycle detection.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mwhitt/crew/pkg/models"
)

// ErrCycleDetected indicates a circular dependency among plan steps.
var ErrCycleDetected = errors.New("circular dependency detected")

// StepGraph represents a directed acyclic graph of step dependencies.
// Steps are nodes keyed by index, and edges represent "blocked by"
// relationships.
type StepGraph struct {
	mu sync.RWMutex
	// nodes maps step index to the step's current status.
	nodes map[int]models.StepStatus
	// edges maps step index to the indexes it depends on.
	edges map[int][]int
}

// New creates a new empty step graph.
func New() *StepGraph {
	return &StepGraph{
		nodes: make(map[int]models.StepStatus),
		edges: make(map[int][]int),
	}
}

// Build constructs the graph from a plan's steps.
// Returns an error if a dependency references an unknown index, references
// a later or equal index (dependencies are backward-only), or forms a cycle.
func Build(steps []models.Step) (*StepGraph, error) {
	g := New()

	for _, s := range steps {
		if _, exists := g.nodes[s.Index]; exists {
			return nil, fmt.Errorf("duplicate step index %d", s.Index)
		}
		g.nodes[s.Index] = s.Status
	}

	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if _, exists := g.nodes[dep]; !exists {
				return nil, fmt.Errorf("step %d depends on unknown step %d", s.Index, dep)
			}
			if dep >= s.Index {
				return nil, fmt.Errorf("step %d depends on later step %d", s.Index, dep)
			}
			g.edges[s.Index] = append(g.edges[s.Index], dep)
		}
	}

	// Backward-only edges cannot form a cycle, but refinement rebuilds the
	// graph from model output, so the structural check stays.
	if g.hasCycleLocked() {
		return nil, ErrCycleDetected
	}

	return g, nil
}

// Validate checks a step list for structural problems without keeping the
// graph. This is what decomposition validation uses.
func Validate(steps []models.Step) error {
	_, err := Build(steps)
	return err
}

// hasCycleLocked runs a DFS coloring pass. Callers hold no lock during Build;
// after construction the graph is guarded by mu.
func (g *StepGraph) hasCycleLocked() bool {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[int]int)

	var visit func(idx int) bool
	visit = func(idx int) bool {
		colors[idx] = 1

		for _, dep := range g.edges[idx] {
			switch colors[dep] {
			case 1:
				return true
			case 0:
				if visit(dep) {
					return true
				}
			}
		}

		colors[idx] = 2
		return false
	}

	for idx := range g.nodes {
		if colors[idx] == 0 {
			if visit(idx) {
				return true
			}
		}
	}

	return false
}

// SetStatus records a step's current status.
func (g *StepGraph) SetStatus(idx int, status models.StepStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.nodes[idx]; exists {
		g.nodes[idx] = status
	}
}

// Status returns the recorded status for a step index.
func (g *StepGraph) Status(idx int) models.StepStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[idx]
}

// Ready returns step indexes that are pending and whose dependencies have
// all settled (succeeded or skipped), in ascending index order.
func (g *StepGraph) Ready() []int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []int
	for idx, status := range g.nodes {
		if status != models.StepStatusPending {
			continue
		}

		eligible := true
		for _, dep := range g.edges[idx] {
			if !g.nodes[dep].Settled() {
				eligible = false
				break
			}
		}
		if eligible {
			ready = append(ready, idx)
		}
	}

	sort.Ints(ready)
	return ready
}

// Blocked returns pending step indexes that can never run because a
// transitive dependency has failed. These are the steps the executor skips.
func (g *StepGraph) Blocked() []int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var blocked []int
	for idx, status := range g.nodes {
		if status != models.StepStatusPending {
			continue
		}
		if g.blockedLocked(idx, make(map[int]bool)) {
			blocked = append(blocked, idx)
		}
	}

	sort.Ints(blocked)
	return blocked
}

func (g *StepGraph) blockedLocked(idx int, seen map[int]bool) bool {
	if seen[idx] {
		return false
	}
	seen[idx] = true

	for _, dep := range g.edges[idx] {
		if g.nodes[dep] == models.StepStatusFailed {
			return true
		}
		if g.nodes[dep] == models.StepStatusPending && g.blockedLocked(dep, seen) {
			return true
		}
	}
	return false
}

// Done returns true when no step is pending or running.
func (g *StepGraph) Done() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, status := range g.nodes {
		if status == models.StepStatusPending || status == models.StepStatusRunning {
			return false
		}
	}
	return true
}

// AllSucceeded returns true when every step succeeded.
func (g *StepGraph) AllSucceeded() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, status := range g.nodes {
		if status != models.StepStatusSucceeded {
			return false
		}
	}
	return true
}

// Dependencies returns the indexes a step depends on.
func (g *StepGraph) Dependencies(idx int) []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[idx]
}

// Size returns the number of steps in the graph.
func (g *StepGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}
