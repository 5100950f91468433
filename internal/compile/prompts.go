package compile

import (
	"fmt"
	"strings"

	"github.com/rkondo/kaiwa/internal/lesson"
)

// Prompt builders. Each stage instruction is assembled from the outputs of
// that stage's declared dependencies only, never from stages not yet run.

func systemPrompt(metalanguage string) string {
	return fmt.Sprintf(
		"You are an experienced Japanese language teacher authoring lesson material. "+
			"The learner's support language is %s: write all explanations, meanings and hints in %s, "+
			"and all target-language content in natural Japanese appropriate for the stated level. "+
			"Always respond with a single JSON object matching the requested schema, with no surrounding text.",
		metalanguage, metalanguage)
}

func planInstruction(cd lesson.CanDo) string {
	return fmt.Sprintf(
		"Design a pedagogical plan for one lesson built toward this CanDo goal.\n"+
			"CanDo: %s\nLevel: %s\nTopic: %s\n"+
			"Propose 2-4 concrete communicative scenarios, themed vocabulary buckets, "+
			"and the grammar functions the lesson must cover.",
		cd.Statement, cd.Level, cd.Topic)
}

func vocabularyInstruction(plan *lesson.DomainPlan) string {
	var b strings.Builder
	b.WriteString("Produce the vocabulary card for this lesson plan.\n")
	writePlanContext(&b, plan)
	b.WriteString("List 8-15 items. Each item needs the surface form, kana reading, meaning, " +
		"and the bucket label it belongs to.")
	return b.String()
}

func grammarInstruction(plan *lesson.DomainPlan) string {
	var b strings.Builder
	b.WriteString("Produce the grammar-patterns card for this lesson plan.\n")
	writePlanContext(&b, plan)
	b.WriteString("Cover every listed grammar function with 2-5 patterns. " +
		"Give each pattern's text, romanization, and function.")
	return b.String()
}

func dialogueInstruction(plan *lesson.DomainPlan, vocab *lesson.VocabularyCard, grammar *lesson.GrammarPatternsCard) string {
	var b strings.Builder
	b.WriteString("Write a model dialogue for this lesson.\n")
	writePlanContext(&b, plan)
	fmt.Fprintf(&b, "Target vocabulary: %s\n", strings.Join(vocabSurfaces(vocab), "、"))
	fmt.Fprintf(&b, "Target patterns: %s\n", strings.Join(patternTexts(grammar), "、"))
	b.WriteString("Use one of the plan's scenarios. 4-8 turns between two named speakers, " +
		"each turn with a translation. Every pattern should appear at least once.")
	return b.String()
}

func readingInstruction(dialogue *lesson.DialogueCard) string {
	var b strings.Builder
	b.WriteString("Write a short reading passage that retells the situation of this dialogue " +
		"in narrative form, reusing its vocabulary.\n")
	fmt.Fprintf(&b, "Dialogue %q:\n%s\n", dialogue.Title, dialogueText(dialogue))
	b.WriteString("3-6 sentences, a translation, and 2-4 comprehension questions in Japanese.")
	return b.String()
}

func scaffoldInstruction(plan *lesson.DomainPlan, grammar *lesson.GrammarPatternsCard) string {
	var b strings.Builder
	b.WriteString("Design the staged goals for guided dialogue practice of this lesson.\n")
	writePlanContext(&b, plan)
	fmt.Fprintf(&b, "Target patterns: %s\n", strings.Join(patternTexts(grammar), "、"))
	b.WriteString("3-5 stages of increasing difficulty. For each stage give the goal, a hint in " +
		"Japanese, a hint in the support language, the expected pattern(s) the learner must use, " +
		"sensible min/max word counts for one learner turn, and rubric weights summing to 1.")
	return b.String()
}

func exercisesInstruction(vocab *lesson.VocabularyCard, grammar *lesson.GrammarPatternsCard) string {
	var b strings.Builder
	b.WriteString("Produce exercises over this lesson's vocabulary and grammar.\n")
	fmt.Fprintf(&b, "Vocabulary: %s\n", strings.Join(vocabSurfaces(vocab), "、"))
	fmt.Fprintf(&b, "Patterns: %s\n", strings.Join(patternTexts(grammar), "、"))
	b.WriteString("5-8 items mixing fill_blank, match and reorder types.")
	return b.String()
}

func cultureInstruction(plan *lesson.DomainPlan) string {
	var b strings.Builder
	b.WriteString("Write a short culture note relevant to this lesson's scenarios.\n")
	writePlanContext(&b, plan)
	return b.String()
}

func drillsInstruction(grammar *lesson.GrammarPatternsCard) string {
	var b strings.Builder
	b.WriteString("Produce substitution drills for these grammar patterns.\n")
	fmt.Fprintf(&b, "Patterns: %s\n", strings.Join(patternTexts(grammar), "、"))
	b.WriteString("One drill per pattern, each with 3-5 cue/expected pairs.")
	return b.String()
}

func writePlanContext(b *strings.Builder, plan *lesson.DomainPlan) {
	fmt.Fprintf(b, "Objective: %s (%s)\n", plan.Objective.Title, plan.Objective.Level)
	fmt.Fprintf(b, "Scenarios: %s\n", strings.Join(plan.Scenarios, "; "))
	for _, bucket := range plan.LexicalBuckets {
		fmt.Fprintf(b, "Bucket %q: %s\n", bucket.Label, strings.Join(bucket.Items, "、"))
	}
	fmt.Fprintf(b, "Grammar functions: %s\n", strings.Join(plan.GrammarFunctions, "; "))
}

func vocabSurfaces(card *lesson.VocabularyCard) []string {
	out := make([]string, 0, len(card.Items))
	for _, it := range card.Items {
		out = append(out, it.Surface)
	}
	return out
}

func patternTexts(card *lesson.GrammarPatternsCard) []string {
	out := make([]string, 0, len(card.Patterns))
	for _, p := range card.Patterns {
		out = append(out, p.Pattern)
	}
	return out
}

func dialogueText(card *lesson.DialogueCard) string {
	var b strings.Builder
	for _, line := range card.Lines {
		fmt.Fprintf(&b, "%s: %s\n", line.Speaker, line.Text)
	}
	return b.String()
}
