package decompose

// classifyPrompt asks for a simple/complex verdict before any decomposition
// work is spent on the request.
const classifyPrompt = `Classify the following request as SIMPLE or COMPLEX.

SIMPLE: can be answered directly in one response by a single agent (questions,
short writing tasks, explanations).
COMPLEX: needs multiple distinct pieces of work, possibly by different agents,
possibly with ordering between them.

Request:
%s

Respond with exactly one word: SIMPLE or COMPLEX.`

// decompositionPrompt is the prompt template for task decomposition.
const decompositionPrompt = `Break this task into an ordered list of steps for the agents below. Each step should be sized for a single agent to complete in one response.

Available agents:
%s
Task:
%s

Return ONLY a JSON array of steps with this exact structure (no other text):
[
  {
    "description": "What the agent must do in this step",
    "agent": "agent id from the list above",
    "depends_on": [0, 1]
  }
]

Guidelines:
- Steps are numbered by position in the array, starting at 0
- depends_on lists positions of earlier steps whose output this step needs
- Steps should be as independent as possible to allow parallel execution
- Only add a dependency when the step truly needs the earlier step's output
- Use an empty array [] for depends_on if there are no dependencies`

// refinePrompt is the prompt template for plan refinement. The current plan
// is rendered with step indexes so the model replaces by index rather than
// renumbering.
const refinePrompt = `Revise the plan below based on the feedback.

Available agents:
%s
Current plan:
%s
Feedback:
%s

Return ONLY a JSON array of steps with this exact structure (no other text):
[
  {
    "index": 2,
    "description": "What the agent must do in this step",
    "agent": "agent id from the list above",
    "depends_on": [0, 1]
  }
]

Guidelines:
- Keep the existing index for any step you are keeping or replacing
- Never change a step the feedback does not ask you to change; repeat it unchanged
- Give new steps fresh indexes higher than any existing index
- Never renumber or reorder existing steps
- depends_on lists indexes of steps whose output the step needs; indexes must be lower than the step's own index`

// correctionInstruction is appended when the first decomposition attempt
// produced an invalid structure.
const correctionInstruction = `

Your previous answer was invalid: %s
Return a corrected JSON array. Dependencies must reference existing earlier steps only, with no cycles, and every agent id must come from the list above.`
