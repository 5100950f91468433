package lesson

import "github.com/rkondo/kaiwa/internal/llm"

// Stage schemas for LLM structured output. Unknown fields are deliberately
// tolerated (no additionalProperties constraint): the decode step ignores
// them, so extra model chatter never fails a stage.

// PlanSchema defines the domain-plan output of the plan stage.
var PlanSchema = &llm.Schema{
	Name:        "domain-plan",
	Description: "Pedagogical plan for one CanDo goal: objective, scenarios, lexical buckets, grammar functions",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"objective": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{
						"type":        "string",
						"description": "Short lesson title (3-8 words) in the metalanguage",
					},
					"summary": map[string]any{
						"type":        "string",
						"description": "2-3 sentence summary of what the learner will be able to do",
					},
					"level": map[string]any{
						"type":        "string",
						"description": "CEFR-style level label, e.g. A1",
					},
				},
				"required": []any{"title", "summary", "level"},
			},
			"scenarios": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"minItems":    1,
				"description": "2-4 concrete communicative scenarios for the goal",
			},
			"lexical_buckets": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"label": map[string]any{"type": "string"},
						"items": map[string]any{
							"type":  "array",
							"items": map[string]any{"type": "string"},
						},
					},
					"required": []any{"label", "items"},
				},
				"minItems":    1,
				"description": "Themed vocabulary groups in the target language",
			},
			"grammar_functions": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"minItems":    1,
				"description": "Grammar-function tags the lesson must cover",
			},
		},
		"required": []any{"objective", "scenarios", "lexical_buckets", "grammar_functions"},
	},
}

// VocabularySchema defines the vocabulary card output.
var VocabularySchema = &llm.Schema{
	Name:        "vocabulary-card",
	Description: "Target vocabulary list with readings and meanings",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"surface": map[string]any{
							"type":        "string",
							"description": "Word as written in the target language",
						},
						"reading": map[string]any{
							"type":        "string",
							"description": "Kana reading",
						},
						"meaning": map[string]any{
							"type":        "string",
							"description": "Meaning in the metalanguage",
						},
						"bucket": map[string]any{
							"type":        "string",
							"description": "Lexical bucket label this item belongs to",
						},
					},
					"required": []any{"surface", "reading", "meaning"},
				},
				"minItems": 5,
			},
		},
		"required": []any{"items"},
	},
}

// GrammarSchema defines the grammar-patterns card output.
var GrammarSchema = &llm.Schema{
	Name:        "grammar-patterns-card",
	Description: "Grammar patterns the lesson teaches",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"patterns": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"pattern": map[string]any{
							"type":        "string",
							"description": "Pattern text in the target language, e.g. これは私の〜です",
						},
						"romanization": map[string]any{
							"type":        "string",
							"description": "Romanized form of the pattern",
						},
						"meaning": map[string]any{
							"type":        "string",
							"description": "Function of the pattern in the metalanguage",
						},
					},
					"required": []any{"pattern", "romanization", "meaning"},
				},
				"minItems": 2,
			},
		},
		"required": []any{"patterns"},
	},
}

// DialogueSchema defines the dialogue card output.
var DialogueSchema = &llm.Schema{
	Name:        "dialogue-card",
	Description: "Model conversation exercising the target vocabulary and patterns",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{"type": "string"},
			"lines": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"speaker":     map[string]any{"type": "string"},
						"text":        map[string]any{"type": "string"},
						"translation": map[string]any{"type": "string"},
					},
					"required": []any{"speaker", "text", "translation"},
				},
				"minItems": 4,
			},
		},
		"required": []any{"title", "lines"},
	},
}

// ReadingSchema defines the reading card output.
var ReadingSchema = &llm.Schema{
	Name:        "reading-card",
	Description: "Short narrative passage reusing the dialogue's vocabulary",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":       map[string]any{"type": "string"},
			"body":        map[string]any{"type": "string"},
			"translation": map[string]any{"type": "string"},
			"questions": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"minItems":    2,
				"description": "Comprehension questions in the target language",
			},
		},
		"required": []any{"title", "body", "translation", "questions"},
	},
}

// ScaffoldSchema defines the guided-scaffold card output.
var ScaffoldSchema = &llm.Schema{
	Name:        "guided-scaffold-card",
	Description: "Staged goals driving the guided dialogue practice loop",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"stages": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"goal": map[string]any{
							"type":        "string",
							"description": "What the learner must produce at this stage",
						},
						"hint_ja": map[string]any{
							"type":        "string",
							"description": "Hint in the target language",
						},
						"hint_meta": map[string]any{
							"type":        "string",
							"description": "Hint in the metalanguage",
						},
						"patterns": map[string]any{
							"type":        "array",
							"items":       map[string]any{"type": "string"},
							"minItems":    1,
							"description": "Expected patterns; at least one must appear in the learner's turn",
						},
						"min_words": map[string]any{"type": "integer", "minimum": 1},
						"max_words": map[string]any{"type": "integer", "minimum": 1},
						"rubric": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"pattern":   map[string]any{"type": "number"},
								"fluency":   map[string]any{"type": "number"},
								"relevance": map[string]any{"type": "number"},
							},
							"required": []any{"pattern", "fluency", "relevance"},
						},
					},
					"required": []any{"goal", "hint_ja", "hint_meta", "patterns", "min_words", "max_words", "rubric"},
				},
				"minItems": 2,
			},
		},
		"required": []any{"stages"},
	},
}

// ExercisesSchema defines the exercises card output.
var ExercisesSchema = &llm.Schema{
	Name:        "exercises-card",
	Description: "Comprehension and production exercises over the lesson content",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"exercises": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type": map[string]any{
							"type": "string",
							"enum": []any{"fill_blank", "match", "reorder"},
						},
						"prompt": map[string]any{"type": "string"},
						"answer": map[string]any{"type": "string"},
						"choices": map[string]any{
							"type":  "array",
							"items": map[string]any{"type": "string"},
						},
					},
					"required": []any{"type", "prompt", "answer"},
				},
				"minItems": 3,
			},
		},
		"required": []any{"exercises"},
	},
}

// CultureSchema defines the culture card output.
var CultureSchema = &llm.Schema{
	Name:        "culture-card",
	Description: "Short culture note related to the lesson scenario",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{"type": "string"},
			"body": map[string]any{
				"type":        "string",
				"description": "3-6 sentences in the metalanguage",
			},
		},
		"required": []any{"title", "body"},
	},
}

// DrillsSchema defines the drills card output.
var DrillsSchema = &llm.Schema{
	Name:        "drills-card",
	Description: "Substitution drills over the lesson's grammar patterns",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"drills": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"pattern":     map[string]any{"type": "string"},
						"instruction": map[string]any{"type": "string"},
						"items": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"cue":      map[string]any{"type": "string"},
									"expected": map[string]any{"type": "string"},
								},
								"required": []any{"cue", "expected"},
							},
							"minItems": 2,
						},
					},
					"required": []any{"pattern", "instruction", "items"},
				},
				"minItems": 1,
			},
		},
		"required": []any{"drills"},
	},
}
