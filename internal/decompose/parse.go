package decompose

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mwhitt/crew/internal/graph"
	"github.com/mwhitt/crew/pkg/models"
)

// rawStep is the wire shape of one step in model output. Index is only
// present in refinement output; decomposition numbers steps by position.
type rawStep struct {
	Index       *int   `json:"index,omitempty"`
	Description string `json:"description"`
	Agent       string `json:"agent"`
	DependsOn   []int  `json:"depends_on"`
}

// extractJSONArray pulls the outermost JSON array out of model text, which
// often arrives wrapped in prose or a markdown fence.
func extractJSONArray(text string) (string, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON array in response")
	}
	return text[start : end+1], nil
}

// parseSteps decodes decomposition output into steps numbered by array
// position.
func parseSteps(text string) ([]models.Step, error) {
	raw, err := parseRawSteps(text)
	if err != nil {
		return nil, err
	}

	steps := make([]models.Step, 0, len(raw))
	for i, r := range raw {
		steps = append(steps, models.Step{
			Index:         i,
			Description:   strings.TrimSpace(r.Description),
			AssignedAgent: strings.TrimSpace(r.Agent),
			DependsOn:     r.DependsOn,
			Status:        models.StepStatusPending,
		})
	}
	return steps, nil
}

// parseIndexedSteps decodes refinement output, where every step must carry
// an explicit index.
func parseIndexedSteps(text string) ([]models.Step, error) {
	raw, err := parseRawSteps(text)
	if err != nil {
		return nil, err
	}

	steps := make([]models.Step, 0, len(raw))
	for i, r := range raw {
		if r.Index == nil {
			return nil, fmt.Errorf("step at position %d has no index", i)
		}
		steps = append(steps, models.Step{
			Index:         *r.Index,
			Description:   strings.TrimSpace(r.Description),
			AssignedAgent: strings.TrimSpace(r.Agent),
			DependsOn:     r.DependsOn,
			Status:        models.StepStatusPending,
		})
	}
	return steps, nil
}

func parseRawSteps(text string) ([]rawStep, error) {
	arr, err := extractJSONArray(text)
	if err != nil {
		return nil, err
	}

	var raw []rawStep
	if err := json.Unmarshal([]byte(arr), &raw); err != nil {
		return nil, fmt.Errorf("decode steps: %v", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty step list")
	}
	return raw, nil
}

// validate checks structure and agent assignment of a step set.
func (d *Decomposer) validate(steps []models.Step) error {
	for _, s := range steps {
		if s.Description == "" {
			return fmt.Errorf("step %d has no description", s.Index)
		}
		if _, ok := d.roster.Get(s.AssignedAgent); !ok {
			return fmt.Errorf("step %d assigned to unknown agent %q", s.Index, s.AssignedAgent)
		}
	}
	return graph.Validate(steps)
}
