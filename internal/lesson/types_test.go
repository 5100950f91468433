package lesson

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeLesson() *LessonRoot {
	prov := Provenance{Model: "mock", GeneratedAt: time.Now()}
	return &LessonRoot{
		Cards: []Card{
			{Kind: KindObjective, Objective: &ObjectiveCard{}, Provenance: prov},
			{Kind: KindVocabulary, Vocabulary: &VocabularyCard{}, Provenance: prov},
			{Kind: KindGrammarPatterns, GrammarPatterns: &GrammarPatternsCard{}, Provenance: prov},
			{Kind: KindDialogue, Dialogue: &DialogueCard{}, Provenance: prov},
			{Kind: KindReading, Reading: &ReadingCard{}, Provenance: prov},
			{Kind: KindGuidedScaffold, GuidedScaffold: &GuidedScaffoldCard{}, Provenance: prov},
			{Kind: KindExercises, Exercises: &ExercisesCard{}, Provenance: prov},
			{Kind: KindCulture, Culture: &CultureCard{}, Provenance: prov},
			{Kind: KindDrills, Drills: &DrillsCard{}, Provenance: prov},
		},
	}
}

func TestCompleteAcceptsCanonicalLesson(t *testing.T) {
	require.NoError(t, completeLesson().Complete())
}

func TestCompleteRejectsMissingCard(t *testing.T) {
	l := completeLesson()
	l.Cards = l.Cards[:8]
	assert.Error(t, l.Complete())
}

func TestCompleteRejectsWrongOrder(t *testing.T) {
	l := completeLesson()
	l.Cards[0], l.Cards[1] = l.Cards[1], l.Cards[0]
	assert.Error(t, l.Complete())
}

func TestCompleteRejectsMissingPayload(t *testing.T) {
	l := completeLesson()
	l.Cards[3].Dialogue = nil
	assert.Error(t, l.Complete())
}

func TestCompleteRejectsMissingProvenance(t *testing.T) {
	l := completeLesson()
	l.Cards[5].Provenance = Provenance{}
	assert.Error(t, l.Complete())
}

func TestCardOf(t *testing.T) {
	l := completeLesson()
	require.NotNil(t, l.CardOf(KindReading))
	assert.Equal(t, KindReading, l.CardOf(KindReading).Kind)
	assert.Nil(t, (&LessonRoot{}).CardOf(KindReading))
}

func TestCanDoCatalog(t *testing.T) {
	cd, err := GetCanDo("JF:105")
	require.NoError(t, err)
	assert.Equal(t, "family", cd.Topic)
	assert.Equal(t, "A1", cd.Level)

	_, err = GetCanDo("JF:999")
	assert.Error(t, err)

	all := AllCanDos()
	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}
}
