// Package guided runs the practice-loop state machine: each learner turn is
// scored against the current stage goal and the session advances, one stage
// at a time, when the goal is met.
//
// Goal policy, applied uniformly to every turn: the goal is met when the
// learner's text contains at least one expected pattern AND the word count
// is within the stage's bounds. The LLM rubric is recorded as a diagnostic
// and never gates advancement, keeping progression deterministic.
package guided

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rkondo/kaiwa/internal/enrich"
	"github.com/rkondo/kaiwa/internal/lesson"
	"github.com/rkondo/kaiwa/internal/llm"
	"github.com/rkondo/kaiwa/internal/logger"
	"github.com/rkondo/kaiwa/internal/repair"
	"github.com/rkondo/kaiwa/internal/store"
)

// RubricScores are LLM-judged diagnostic dimensions, each in [0,1].
type RubricScores struct {
	Pattern   float64 `json:"pattern"`
	Fluency   float64 `json:"fluency"`
	Relevance float64 `json:"relevance"`
}

// Signals is the evaluation of one learner turn.
type Signals struct {
	PatternMatched bool         `json:"pattern_matched"`
	WordCount      int          `json:"word_count"`
	WordCountOK    bool         `json:"word_count_ok"`
	GoalMet        bool         `json:"goal_met"`
	Rubric         RubricScores `json:"rubric"`
}

// TurnRecord is one entry of a session's turn history.
type TurnRecord struct {
	LearnerText string    `json:"learner_text"`
	Signals     Signals   `json:"signals"`
	Reply       string    `json:"reply"`
	Feedback    string    `json:"feedback,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// TurnResult is returned to the caller after a recorded turn.
type TurnResult struct {
	SessionID uuid.UUID
	Reply     string
	Feedback  string
	Signals   Signals
	StageIdx  int
	Completed bool
}

// Evaluator drives guided practice. Turns for the same session are
// serialized; turns for different sessions proceed concurrently.
type Evaluator struct {
	loop     *repair.Loop
	sessions store.SessionRepo
	lessons  store.LessonRepo
	log      *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New builds an Evaluator.
func New(loop *repair.Loop, sessions store.SessionRepo, lessons store.LessonRepo, log *logger.Logger) *Evaluator {
	if log == nil {
		log = logger.Nop()
	}
	return &Evaluator{
		loop:     loop,
		sessions: sessions,
		lessons:  lessons,
		log:      log.With("component", "guided"),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (e *Evaluator) lockFor(userID string, lessonID uuid.UUID) *sync.Mutex {
	key := userID + "/" + lessonID.String()
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[key]
	if !ok {
		l = &sync.Mutex{}
		e.locks[key] = l
	}
	return l
}

// Turn evaluates one learner turn. The session is created lazily at stage 0
// on first use. On success the turn is recorded and the updated stage index
// returned; on TurnEvaluationFailed nothing is recorded and the caller
// should resubmit.
func (e *Evaluator) Turn(ctx context.Context, userID string, lessonID uuid.UUID, learnerText string) (*TurnResult, error) {
	l := e.lockFor(userID, lessonID)
	l.Lock()
	defer l.Unlock()

	rec, err := e.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	root, err := loadRoot(rec)
	if err != nil {
		return nil, err
	}
	stages := root.Scaffold()
	if len(stages) == 0 {
		return nil, fmt.Errorf("lesson %s has no guided scaffold", lessonID)
	}

	sess, err := e.sessions.GetOrCreate(ctx, userID, lessonID)
	if err != nil {
		return nil, err
	}

	// implicit terminal state past the last stage: nothing left to score
	if sess.StageIdx >= len(stages) {
		return &TurnResult{
			SessionID: sess.ID,
			Reply:     "よくできました！",
			Feedback:  "You have completed every stage of this practice. Flush the session to start over.",
			StageIdx:  sess.StageIdx,
			Completed: true,
		}, nil
	}

	goal := stages[sess.StageIdx]
	signals := scoreText(learnerText, goal)

	out, err := e.evaluateWithModel(ctx, root, goal, learnerText, signals)
	if err != nil {
		e.log.Warn("turn evaluation failed", "session", sess.ID, "error", err)
		return nil, &TurnEvaluationFailed{Cause: err}
	}
	signals.Rubric = out.Rubric

	history, err := appendHistory(sess.TurnHistory, TurnRecord{
		LearnerText: learnerText,
		Signals:     signals,
		Reply:       out.Reply,
		Feedback:    out.Feedback,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		return nil, &TurnEvaluationFailed{Cause: err}
	}

	// advance one stage at most, saturating at the terminal state
	stageIdx := sess.StageIdx
	if signals.GoalMet && stageIdx < len(stages) {
		stageIdx++
	}

	if err := e.sessions.SaveProgress(ctx, sess.ID, stageIdx, history); err != nil {
		return nil, &TurnEvaluationFailed{Cause: err}
	}

	e.log.Info("turn recorded",
		"session", sess.ID, "stage", stageIdx, "goal_met", signals.GoalMet)

	return &TurnResult{
		SessionID: sess.ID,
		Reply:     out.Reply,
		Feedback:  out.Feedback,
		Signals:   signals,
		StageIdx:  stageIdx,
		Completed: stageIdx >= len(stages),
	}, nil
}

// Flush resets a session's progress to stage 0 with empty history, keeping
// the session identity. Returns the flush timestamp.
func (e *Evaluator) Flush(ctx context.Context, userID string, lessonID uuid.UUID) (time.Time, error) {
	l := e.lockFor(userID, lessonID)
	l.Lock()
	defer l.Unlock()

	sess, err := e.sessions.Find(ctx, userID, lessonID)
	if err != nil {
		return time.Time{}, err
	}
	return e.sessions.Flush(ctx, sess.ID)
}

// Progress returns the current stage index for a session, 0 when the
// session does not exist yet.
func (e *Evaluator) Progress(ctx context.Context, userID string, lessonID uuid.UUID) (int, error) {
	sess, err := e.sessions.Find(ctx, userID, lessonID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return sess.StageIdx, nil
}

// History returns the recorded turns for a session, oldest first.
func (e *Evaluator) History(ctx context.Context, userID string, lessonID uuid.UUID) ([]TurnRecord, error) {
	sess, err := e.sessions.Find(ctx, userID, lessonID)
	if err != nil {
		return nil, err
	}
	return decodeHistory(sess.TurnHistory)
}

// scoreText computes the deterministic signals and the goal decision.
func scoreText(text string, goal lesson.StageGoal) Signals {
	matched := false
	for _, p := range goal.Patterns {
		if enrich.ContainsPattern(text, p) {
			matched = true
			break
		}
	}

	count := enrich.CountWords(text)
	wordOK := count >= goal.MinWords
	if goal.MaxWords > 0 {
		wordOK = wordOK && count <= goal.MaxWords
	}

	return Signals{
		PatternMatched: matched,
		WordCount:      count,
		WordCountOK:    wordOK,
		GoalMet:        matched && wordOK,
	}
}

func (e *Evaluator) evaluateWithModel(ctx context.Context, root *lesson.LessonRoot, goal lesson.StageGoal, learnerText string, signals Signals) (*turnOutput, error) {
	ctx = llm.WithPurpose(ctx, "guided-turn")

	res, err := e.loop.Generate(ctx, turnSchema, turnSystemPrompt(root), turnInstruction(goal, learnerText, signals))
	if err != nil {
		return nil, err
	}
	var out turnOutput
	if err := repair.Decode(res.Content, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func turnSystemPrompt(root *lesson.LessonRoot) string {
	return fmt.Sprintf(
		"You are a friendly Japanese conversation partner in a guided practice session. "+
			"The lesson objective is: %s. The learner's support language is %s. "+
			"Stay in character, keep replies short and at the learner's level, "+
			"and respond with a single JSON object matching the requested schema.",
		root.Plan.Objective.Title, root.Metalanguage)
}

func turnInstruction(goal lesson.StageGoal, learnerText string, signals Signals) string {
	return fmt.Sprintf(
		"Stage goal: %s\nExpected patterns: %v\nLearner said: %s\n"+
			"Pattern present: %t. Word count: %d (allowed %d-%d).\n"+
			"Reply in Japanese continuing the conversation, add one short feedback note, "+
			"and score the turn on the rubric.",
		goal.Goal, goal.Patterns, learnerText,
		signals.PatternMatched, signals.WordCount, goal.MinWords, goal.MaxWords)
}

func appendHistory(raw []byte, turn TurnRecord) ([]byte, error) {
	history, err := decodeHistory(raw)
	if err != nil {
		return nil, err
	}
	return json.Marshal(append(history, turn))
}

func decodeHistory(raw []byte) ([]TurnRecord, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var history []TurnRecord
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("decode turn history: %w", err)
	}
	return history, nil
}

func loadRoot(rec *store.LessonRecord) (*lesson.LessonRoot, error) {
	var root lesson.LessonRoot
	if err := json.Unmarshal(rec.Payload, &root); err != nil {
		return nil, fmt.Errorf("decode lesson %s: %w", rec.ID, err)
	}
	root.Version = rec.Version
	return &root, nil
}
