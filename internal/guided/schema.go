package guided

import "github.com/rkondo/kaiwa/internal/llm"

// turnSchema is the structured output of one turn evaluation: the tutor's
// reply plus rubric scores. One call produces both so a failed call rejects
// the whole turn cleanly.
var turnSchema = &llm.Schema{
	Name:        "guided-turn",
	Description: "Tutor reply and rubric scores for one learner turn",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reply": map[string]any{
				"type":        "string",
				"description": "Natural in-character reply in Japanese continuing the conversation",
			},
			"feedback": map[string]any{
				"type":        "string",
				"description": "One short encouraging note in the learner's support language",
			},
			"rubric": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"pattern": map[string]any{
						"type":        "number",
						"minimum":     0,
						"maximum":     1,
						"description": "How correctly the expected pattern was used",
					},
					"fluency": map[string]any{
						"type":        "number",
						"minimum":     0,
						"maximum":     1,
						"description": "Fluency for the lesson's level",
					},
					"relevance": map[string]any{
						"type":        "number",
						"minimum":     0,
						"maximum":     1,
						"description": "Relevance to the stage goal",
					},
				},
				"required": []any{"pattern", "fluency", "relevance"},
			},
		},
		"required": []any{"reply", "feedback", "rubric"},
	},
}

type turnOutput struct {
	Reply    string       `json:"reply"`
	Feedback string       `json:"feedback"`
	Rubric   RubricScores `json:"rubric"`
}
