// Package compile orchestrates the fixed stage pipeline that turns one
// CanDo goal into a complete, versioned lesson:
//
//	plan → {vocabulary, grammar} → dialogue → reading →
//	guided-scaffold → exercises → {culture, drills}
//
// Each stage is one call into the structured-output repair loop, prompted
// only from the outputs of its declared dependencies. Compilation is
// all-or-nothing: any exhausted stage fails the whole run and nothing is
// persisted.
package compile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rkondo/kaiwa/internal/enrich"
	"github.com/rkondo/kaiwa/internal/lesson"
	"github.com/rkondo/kaiwa/internal/llm"
	"github.com/rkondo/kaiwa/internal/logger"
	"github.com/rkondo/kaiwa/internal/repair"
	"github.com/rkondo/kaiwa/internal/store"
)

// Options selects what to compile.
type Options struct {
	CanDoID      string
	Metalanguage string
}

// Result summarizes one successful compile.
type Result struct {
	LessonID uuid.UUID
	CanDoID  string
	Version  int
	Duration time.Duration
}

// Compiler drives lesson compilation. Safe for concurrent use; at most one
// compile per CanDo is in flight at a time, later callers share the result.
type Compiler struct {
	loop     *repair.Loop
	enricher *enrich.Enricher
	lessons  store.LessonRepo
	log      *logger.Logger
	group    singleflight.Group
}

// New builds a Compiler. enricher may be nil when no graph is configured.
func New(loop *repair.Loop, enricher *enrich.Enricher, lessons store.LessonRepo, log *logger.Logger) *Compiler {
	if log == nil {
		log = logger.Nop()
	}
	if enricher == nil {
		enricher = enrich.New(nil, log)
	}
	return &Compiler{
		loop:     loop,
		enricher: enricher,
		lessons:  lessons,
		log:      log.With("component", "compile"),
	}
}

// Compile produces and persists a new lesson version for the CanDo.
// Recompiling the same CanDo appends a version, never overwrites. Concurrent
// calls for the same CanDo coalesce into one run.
func (c *Compiler) Compile(ctx context.Context, opts Options) (*Result, error) {
	v, err, shared := c.group.Do(opts.CanDoID, func() (any, error) {
		return c.compile(ctx, opts)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*Result)
	if shared {
		c.log.Info("joined in-flight compile", "cando", opts.CanDoID, "version", res.Version)
	}
	return res, nil
}

func (c *Compiler) compile(ctx context.Context, opts Options) (*Result, error) {
	cd, err := lesson.GetCanDo(opts.CanDoID)
	if err != nil {
		return nil, err
	}
	meta := opts.Metalanguage
	if meta == "" {
		meta = "English"
	}
	system := systemPrompt(meta)
	started := time.Now()

	c.log.Info("compile started", "cando", cd.ID, "metalanguage", meta)

	var plan lesson.DomainPlan
	planProv, err := c.runStage(ctx, "plan", lesson.PlanSchema, system, planInstruction(cd), &plan)
	if err != nil {
		return nil, err
	}

	var vocab lesson.VocabularyCard
	vocabProv, err := c.runStage(ctx, "vocabulary", lesson.VocabularySchema, system, vocabularyInstruction(&plan), &vocab)
	if err != nil {
		return nil, err
	}

	var grammar lesson.GrammarPatternsCard
	grammarProv, err := c.runStage(ctx, "grammar", lesson.GrammarSchema, system, grammarInstruction(&plan), &grammar)
	if err != nil {
		return nil, err
	}

	var dialogue lesson.DialogueCard
	dialogueProv, err := c.runStage(ctx, "dialogue", lesson.DialogueSchema, system, dialogueInstruction(&plan, &vocab, &grammar), &dialogue)
	if err != nil {
		return nil, err
	}

	var reading lesson.ReadingCard
	readingProv, err := c.runStage(ctx, "reading", lesson.ReadingSchema, system, readingInstruction(&dialogue), &reading)
	if err != nil {
		return nil, err
	}

	// enrichment is additive metadata on the grammar card, no regeneration
	enrichText := dialogueText(&dialogue) + "\n" + reading.Body
	if linked := c.enricher.Enrich(ctx, &grammar, enrichText); linked > 0 {
		c.log.Info("grammar patterns linked", "cando", cd.ID, "linked", linked)
	}

	var scaffold lesson.GuidedScaffoldCard
	scaffoldProv, err := c.runStage(ctx, "guided-scaffold", lesson.ScaffoldSchema, system, scaffoldInstruction(&plan, &grammar), &scaffold)
	if err != nil {
		return nil, err
	}

	var exercises lesson.ExercisesCard
	exercisesProv, err := c.runStage(ctx, "exercises", lesson.ExercisesSchema, system, exercisesInstruction(&vocab, &grammar), &exercises)
	if err != nil {
		return nil, err
	}

	// culture and drills have no cross-dependency
	var (
		culture     lesson.CultureCard
		drills      lesson.DrillsCard
		cultureProv lesson.Provenance
		drillsProv  lesson.Provenance
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cultureProv, err = c.runStage(gctx, "culture", lesson.CultureSchema, system, cultureInstruction(&plan), &culture)
		return err
	})
	g.Go(func() error {
		var err error
		drillsProv, err = c.runStage(gctx, "drills", lesson.DrillsSchema, system, drillsInstruction(&grammar), &drills)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	root := &lesson.LessonRoot{
		ID:           uuid.New(),
		CanDoID:      cd.ID,
		Metalanguage: meta,
		Model:        c.loop.ModelID(),
		Plan:         plan,
		CreatedAt:    time.Now().UTC(),
		Cards: []lesson.Card{
			{Kind: lesson.KindObjective, Objective: &plan.Objective, Provenance: planProv},
			{Kind: lesson.KindVocabulary, Vocabulary: &vocab, Provenance: vocabProv},
			{Kind: lesson.KindGrammarPatterns, GrammarPatterns: &grammar, Provenance: grammarProv},
			{Kind: lesson.KindDialogue, Dialogue: &dialogue, Provenance: dialogueProv},
			{Kind: lesson.KindReading, Reading: &reading, Provenance: readingProv},
			{Kind: lesson.KindGuidedScaffold, GuidedScaffold: &scaffold, Provenance: scaffoldProv},
			{Kind: lesson.KindExercises, Exercises: &exercises, Provenance: exercisesProv},
			{Kind: lesson.KindCulture, Culture: &culture, Provenance: cultureProv},
			{Kind: lesson.KindDrills, Drills: &drills, Provenance: drillsProv},
		},
	}
	if err := root.Complete(); err != nil {
		return nil, fmt.Errorf("assembled lesson incomplete: %w", err)
	}

	// an abandoned caller must not leave a persisted lesson behind
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("serialize lesson: %w", err)
	}
	version, err := c.lessons.SaveNewVersion(ctx, store.NewLessonData{
		ID:           root.ID,
		CanDoID:      root.CanDoID,
		Metalanguage: root.Metalanguage,
		Model:        root.Model,
		Payload:      payload,
	})
	if err != nil {
		return nil, fmt.Errorf("persist lesson: %w", err)
	}

	duration := time.Since(started)
	c.log.Info("compile finished", "cando", cd.ID, "version", version, "duration", duration)

	return &Result{
		LessonID: root.ID,
		CanDoID:  root.CanDoID,
		Version:  version,
		Duration: duration,
	}, nil
}

// runStage executes one pipeline stage through the repair loop and decodes
// the validated output into out. Any failure wraps as CompileFailed.
func (c *Compiler) runStage(ctx context.Context, name string, schema *llm.Schema, system, instruction string, out any) (lesson.Provenance, error) {
	ctx = llm.WithPurpose(ctx, "stage:"+name)

	res, err := c.loop.Generate(ctx, schema, system, instruction)
	if err != nil {
		c.log.Warn("stage failed", "stage", name, "error", err)
		return lesson.Provenance{}, &CompileFailed{Stage: name, Cause: err}
	}
	if err := repair.Decode(res.Content, out); err != nil {
		return lesson.Provenance{}, &CompileFailed{Stage: name, Cause: err}
	}

	c.log.Debug("stage finished", "stage", name, "attempts", res.Attempts)
	return lesson.Provenance{
		Model:       res.Model,
		System:      system,
		Instruction: instruction,
		Attempts:    res.Attempts,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// LoadRoot deserializes a stored lesson record, restoring the version the
// store allocated at save time.
func LoadRoot(rec *store.LessonRecord) (*lesson.LessonRoot, error) {
	var root lesson.LessonRoot
	if err := json.Unmarshal(rec.Payload, &root); err != nil {
		return nil, fmt.Errorf("decode lesson %s: %w", rec.ID, err)
	}
	root.Version = rec.Version
	return &root, nil
}
