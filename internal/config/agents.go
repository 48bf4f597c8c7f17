package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/mwhitt/crew/pkg/models"
)

// agentsFile is the YAML shape of configs/agents.yaml.
type agentsFile struct {
	Default string         `yaml:"default"`
	Agents  []models.Agent `yaml:"agents"`
}

// Roster holds the configured agent personas and the default agent used for
// simple single-step plans.
type Roster struct {
	agents    map[string]models.Agent
	defaultID string
}

// LoadRoster reads the agent roster from a YAML file.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agents file: %w", err)
	}

	var file agentsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse agents file: %w", err)
	}

	if len(file.Agents) == 0 {
		return nil, fmt.Errorf("agents file %s defines no agents", path)
	}

	return newRoster(file.Agents, file.Default)
}

// DefaultRoster returns the built-in roster used when no agents file exists.
func DefaultRoster() *Roster {
	r, _ := newRoster([]models.Agent{
		{
			ID:           "assistant",
			Name:         "Assistant",
			SystemPrompt: "You are a helpful assistant. Answer the user's request directly and concisely.",
			StepCost:     1,
		},
		{
			ID:           "planner",
			Name:         "Planner",
			SystemPrompt: "You break work into concrete, verifiable steps and review plans for gaps.",
			StepCost:     1,
		},
		{
			ID:           "builder",
			Name:         "Builder",
			SystemPrompt: "You produce working artifacts (code, documents, configurations) for a single well-scoped step.",
			StepCost:     2,
		},
		{
			ID:           "reviewer",
			Name:         "Reviewer",
			SystemPrompt: "You check completed work against its description and report problems plainly.",
			StepCost:     1,
		},
	}, "assistant")
	return r
}

func newRoster(agents []models.Agent, defaultID string) (*Roster, error) {
	r := &Roster{agents: make(map[string]models.Agent, len(agents))}

	for _, a := range agents {
		if a.ID == "" {
			return nil, fmt.Errorf("agent with empty id")
		}
		if _, dup := r.agents[a.ID]; dup {
			return nil, fmt.Errorf("duplicate agent id %q", a.ID)
		}
		if a.StepCost <= 0 {
			a.StepCost = 1
		}
		r.agents[a.ID] = a
	}

	if defaultID == "" {
		defaultID = agents[0].ID
	}
	if _, ok := r.agents[defaultID]; !ok {
		return nil, fmt.Errorf("default agent %q not in roster", defaultID)
	}
	r.defaultID = defaultID

	return r, nil
}

// Get returns the agent with the given ID.
func (r *Roster) Get(id string) (models.Agent, bool) {
	a, ok := r.agents[id]
	return a, ok
}

// Default returns the default agent.
func (r *Roster) Default() models.Agent {
	return r.agents[r.defaultID]
}

// IDs returns all agent IDs in the roster, sorted for stable output.
func (r *Roster) IDs() []string {
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Describe returns a short roster listing suitable for inclusion in a
// decomposition prompt: one "id: name - prompt summary" line per agent.
func (r *Roster) Describe() string {
	out := ""
	for _, id := range r.IDs() {
		a := r.agents[id]
		out += fmt.Sprintf("- %s: %s. %s\n", a.ID, a.Name, a.SystemPrompt)
	}
	return out
}
