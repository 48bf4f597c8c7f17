package models

// Agent is a named persona invoked through the model gateway with its own
// system prompt.
type Agent struct {
	// ID is the stable identifier used in plans and routes.
	ID string `json:"id" yaml:"id"`
	// Name is the display name.
	Name string `json:"name" yaml:"name"`
	// SystemPrompt is the persona's system prompt.
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt"`
	// StepCost is the estimated credit cost of one step run by this agent.
	StepCost int64 `json:"step_cost" yaml:"step_cost"`
}
