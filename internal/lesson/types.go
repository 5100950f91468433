package lesson

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DomainPlan is the pedagogical plan produced by the plan stage for one
// CanDo goal. Immutable input to all downstream stages.
type DomainPlan struct {
	Objective        ObjectiveCard   `json:"objective"`
	Scenarios        []string        `json:"scenarios"`
	LexicalBuckets   []LexicalBucket `json:"lexical_buckets"`
	GrammarFunctions []string        `json:"grammar_functions"`
}

// LexicalBucket groups target vocabulary by theme, e.g. "family members".
type LexicalBucket struct {
	Label string   `json:"label"`
	Items []string `json:"items"`
}

// CardKind identifies one of the closed set of card variants.
type CardKind string

const (
	KindObjective       CardKind = "objective"
	KindVocabulary      CardKind = "vocabulary"
	KindGrammarPatterns CardKind = "grammar_patterns"
	KindDialogue        CardKind = "dialogue"
	KindReading         CardKind = "reading"
	KindGuidedScaffold  CardKind = "guided_scaffold"
	KindExercises       CardKind = "exercises"
	KindCulture         CardKind = "culture"
	KindDrills          CardKind = "drills"
)

// KindOrder is the canonical card order within a LessonRoot. It mirrors
// the stage dependency order of the compile pipeline.
var KindOrder = []CardKind{
	KindObjective,
	KindVocabulary,
	KindGrammarPatterns,
	KindDialogue,
	KindReading,
	KindGuidedScaffold,
	KindExercises,
	KindCulture,
	KindDrills,
}

// Card is a closed tagged union: exactly one variant pointer matching Kind
// is set. All cards are produced by the structured-output repair loop and
// therefore satisfied their schema before being accepted.
type Card struct {
	Kind CardKind `json:"kind"`

	Objective       *ObjectiveCard       `json:"objective,omitempty"`
	Vocabulary      *VocabularyCard      `json:"vocabulary,omitempty"`
	GrammarPatterns *GrammarPatternsCard `json:"grammar_patterns,omitempty"`
	Dialogue        *DialogueCard        `json:"dialogue,omitempty"`
	Reading         *ReadingCard         `json:"reading,omitempty"`
	GuidedScaffold  *GuidedScaffoldCard  `json:"guided_scaffold,omitempty"`
	Exercises       *ExercisesCard       `json:"exercises,omitempty"`
	Culture         *CultureCard         `json:"culture,omitempty"`
	Drills          *DrillsCard          `json:"drills,omitempty"`

	Provenance Provenance `json:"provenance"`
}

// ObjectiveCard states what the learner should be able to do after the lesson.
type ObjectiveCard struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Level   string `json:"level"`
}

// VocabularyCard lists the target vocabulary for the lesson.
type VocabularyCard struct {
	Items []VocabItem `json:"items"`
}

// VocabItem is one vocabulary entry.
type VocabItem struct {
	Surface string `json:"surface"`
	Reading string `json:"reading"`
	Meaning string `json:"meaning"`
	Bucket  string `json:"bucket,omitempty"`
}

// GrammarPatternsCard lists the grammar patterns the lesson teaches.
type GrammarPatternsCard struct {
	Patterns []GrammarPatternRef `json:"patterns"`
}

// GrammarPatternRef is one grammar pattern, optionally linked to a graph
// node. NodeID is set only when graph lookup returned exactly one match;
// ambiguous or absent matches leave it empty — never a best guess.
type GrammarPatternRef struct {
	Pattern      string `json:"pattern"`
	Romanization string `json:"romanization"`
	Meaning      string `json:"meaning"`
	NodeID       string `json:"node_id,omitempty"`
}

// DialogueCard is a model conversation exercising the target patterns.
type DialogueCard struct {
	Title string         `json:"title"`
	Lines []DialogueLine `json:"lines"`
}

// DialogueLine is one speaker turn in the model dialogue.
type DialogueLine struct {
	Speaker     string `json:"speaker"`
	Text        string `json:"text"`
	Translation string `json:"translation"`
}

// ReadingCard is a short passage reusing dialogue vocabulary in narrative form.
type ReadingCard struct {
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Translation string   `json:"translation"`
	Questions   []string `json:"questions"`
}

// GuidedScaffoldCard defines the staged goals for guided dialogue practice.
type GuidedScaffoldCard struct {
	Stages []StageGoal `json:"stages"`
}

// StageGoal is one stage of guided practice. Read-only at evaluation time.
type StageGoal struct {
	Goal     string        `json:"goal"`
	HintJA   string        `json:"hint_ja"`
	HintMeta string        `json:"hint_meta"`
	Patterns []string      `json:"patterns"`
	MinWords int           `json:"min_words"`
	MaxWords int           `json:"max_words"`
	Rubric   RubricWeights `json:"rubric"`
}

// RubricWeights weight the LLM-scored rubric dimensions for a stage.
type RubricWeights struct {
	Pattern   float64 `json:"pattern"`
	Fluency   float64 `json:"fluency"`
	Relevance float64 `json:"relevance"`
}

// ExercisesCard holds comprehension and production exercises.
type ExercisesCard struct {
	Exercises []Exercise `json:"exercises"`
}

// Exercise is a single exercise item.
type Exercise struct {
	Type    string   `json:"type"` // "fill_blank", "match", "reorder"
	Prompt  string   `json:"prompt"`
	Answer  string   `json:"answer"`
	Choices []string `json:"choices,omitempty"`
}

// CultureCard is a short culture note related to the scenario.
type CultureCard struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// DrillsCard holds substitution drills for the grammar patterns.
type DrillsCard struct {
	Drills []Drill `json:"drills"`
}

// Drill is one substitution drill over a single pattern.
type Drill struct {
	Pattern     string      `json:"pattern"`
	Instruction string      `json:"instruction"`
	Items       []DrillItem `json:"items"`
}

// DrillItem is a cue/expected pair within a drill.
type DrillItem struct {
	Cue      string `json:"cue"`
	Expected string `json:"expected"`
}

// Provenance records how a card was generated.
type Provenance struct {
	Model       string    `json:"model"`
	System      string    `json:"system"`
	Instruction string    `json:"instruction"`
	Attempts    int       `json:"attempts"`
	GeneratedAt time.Time `json:"generated_at"`
}

// LessonRoot is the complete, versioned set of cards for one (CanDo,
// version) pair. Created by one successful compile; never mutated in place —
// a regeneration produces a new version.
type LessonRoot struct {
	ID           uuid.UUID  `json:"id"`
	CanDoID      string     `json:"cando_id"`
	Version      int        `json:"version"`
	Metalanguage string     `json:"metalanguage"`
	Model        string     `json:"model"`
	Plan         DomainPlan `json:"plan"`
	Cards        []Card     `json:"cards"`
	CreatedAt    time.Time  `json:"created_at"`
}

// CardOf returns the card of the given kind, or nil if absent.
func (l *LessonRoot) CardOf(kind CardKind) *Card {
	for i := range l.Cards {
		if l.Cards[i].Kind == kind {
			return &l.Cards[i]
		}
	}
	return nil
}

// Scaffold returns the guided-scaffold card's stages, or nil if absent.
func (l *LessonRoot) Scaffold() []StageGoal {
	c := l.CardOf(KindGuidedScaffold)
	if c == nil || c.GuidedScaffold == nil {
		return nil
	}
	return c.GuidedScaffold.Stages
}

// Complete verifies the lesson holds exactly the nine card variants in
// canonical order, each with its variant payload and provenance set.
func (l *LessonRoot) Complete() error {
	if len(l.Cards) != len(KindOrder) {
		return fmt.Errorf("lesson has %d cards, want %d", len(l.Cards), len(KindOrder))
	}
	for i, kind := range KindOrder {
		c := l.Cards[i]
		if c.Kind != kind {
			return fmt.Errorf("card %d is %q, want %q", i, c.Kind, kind)
		}
		if !c.hasPayload() {
			return fmt.Errorf("card %q has no payload", kind)
		}
		if c.Provenance.Model == "" || c.Provenance.GeneratedAt.IsZero() {
			return fmt.Errorf("card %q has incomplete provenance", kind)
		}
	}
	return nil
}

func (c *Card) hasPayload() bool {
	switch c.Kind {
	case KindObjective:
		return c.Objective != nil
	case KindVocabulary:
		return c.Vocabulary != nil
	case KindGrammarPatterns:
		return c.GrammarPatterns != nil
	case KindDialogue:
		return c.Dialogue != nil
	case KindReading:
		return c.Reading != nil
	case KindGuidedScaffold:
		return c.GuidedScaffold != nil
	case KindExercises:
		return c.Exercises != nil
	case KindCulture:
		return c.Culture != nil
	case KindDrills:
		return c.Drills != nil
	}
	return false
}
