package compile

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkondo/kaiwa/internal/enrich"
	"github.com/rkondo/kaiwa/internal/lesson"
	"github.com/rkondo/kaiwa/internal/llm"
	"github.com/rkondo/kaiwa/internal/logger"
	"github.com/rkondo/kaiwa/internal/repair"
	"github.com/rkondo/kaiwa/internal/store"
)

var stageJSON = map[string]string{
	"domain-plan": `{
		"objective": {"title": "Family introductions", "summary": "Introduce family members with simple relationships.", "level": "A1"},
		"scenarios": ["showing a family photo to a friend"],
		"lexical_buckets": [{"label": "family", "items": ["母", "父", "兄"]}],
		"grammar_functions": ["identifying people"]
	}`,
	"vocabulary-card": `{"items": [
		{"surface": "母", "reading": "はは", "meaning": "mother", "bucket": "family"},
		{"surface": "父", "reading": "ちち", "meaning": "father", "bucket": "family"},
		{"surface": "兄", "reading": "あに", "meaning": "older brother", "bucket": "family"},
		{"surface": "姉", "reading": "あね", "meaning": "older sister", "bucket": "family"},
		{"surface": "家族", "reading": "かぞく", "meaning": "family", "bucket": "family"}
	]}`,
	"grammar-patterns-card": `{"patterns": [
		{"pattern": "これは私の", "romanization": "kore wa watashi no", "meaning": "this is my ..."},
		{"pattern": "そうです", "romanization": "sou desu", "meaning": "that is right"}
	]}`,
	"dialogue-card": `{"title": "家族の写真", "lines": [
		{"speaker": "田中", "text": "これは私の母です。", "translation": "This is my mother."},
		{"speaker": "リー", "text": "お母さんですか。", "translation": "Your mother?"},
		{"speaker": "田中", "text": "はい、そうです。", "translation": "Yes, that's right."},
		{"speaker": "リー", "text": "きれいな人ですね。", "translation": "She's beautiful."}
	]}`,
	"reading-card": `{"title": "田中さんの家族", "body": "田中さんは家族の写真を見せました。これは私の母です、と言いました。",
		"translation": "Tanaka showed a family photo and said, this is my mother.",
		"questions": ["写真に誰がいますか。", "田中さんは何と言いましたか。"]}`,
	"guided-scaffold-card": `{"stages": [
		{"goal": "Identify one family member", "hint_ja": "写真を見せましょう", "hint_meta": "Point at the photo",
		 "patterns": ["これは私の"], "min_words": 3, "max_words": 12,
		 "rubric": {"pattern": 0.5, "fluency": 0.25, "relevance": 0.25}},
		{"goal": "State a simple relationship", "hint_ja": "家族について話しましょう", "hint_meta": "Say who they are",
		 "patterns": ["〜です"], "min_words": 3, "max_words": 15,
		 "rubric": {"pattern": 0.4, "fluency": 0.3, "relevance": 0.3}}
	]}`,
	"exercises-card": `{"exercises": [
		{"type": "fill_blank", "prompt": "これは私の＿です。", "answer": "母"},
		{"type": "match", "prompt": "母", "answer": "mother", "choices": ["mother", "father"]},
		{"type": "reorder", "prompt": "です / 私の / これは / 母", "answer": "これは私の母です"}
	]}`,
	"culture-card": `{"title": "Family terms", "body": "Japanese uses humble terms for one's own family and honorific terms for others' families."}`,
	"drills-card": `{"drills": [
		{"pattern": "これは私の", "instruction": "Substitute the family member.",
		 "items": [{"cue": "父", "expected": "これは私の父です。"}, {"cue": "兄", "expected": "これは私の兄です。"}]}
	]}`,
}

func happyMock() *llm.MockProvider {
	mock := llm.NewMockProvider()
	for name, content := range stageJSON {
		mock.RespondTo(name, json.RawMessage(content))
	}
	return mock
}

func testCompiler(t *testing.T, provider llm.Provider, lookup enrich.Lookup) (*Compiler, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "kaiwa.db"), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	loop := repair.New(provider, repair.DefaultConfig())
	return New(loop, enrich.New(lookup, nil), st.LessonRepo(), logger.Nop()), st
}

func TestCompileProducesCompleteLesson(t *testing.T) {
	c, st := testCompiler(t, happyMock(), nil)

	res, err := c.Compile(context.Background(), Options{CanDoID: "JF:105", Metalanguage: "English"})
	require.NoError(t, err)
	assert.Equal(t, "JF:105", res.CanDoID)
	assert.Equal(t, 1, res.Version)

	rec, err := st.LessonRepo().Get(context.Background(), "JF:105", 1)
	require.NoError(t, err)
	root, err := LoadRoot(rec)
	require.NoError(t, err)

	require.NoError(t, root.Complete())
	require.Len(t, root.Cards, 9)
	for i, kind := range lesson.KindOrder {
		assert.Equal(t, kind, root.Cards[i].Kind)
		assert.NotEmpty(t, root.Cards[i].Provenance.Model)
		assert.NotEmpty(t, root.Cards[i].Provenance.Instruction)
		assert.False(t, root.Cards[i].Provenance.GeneratedAt.IsZero())
	}
	assert.Equal(t, 1, root.Version)
	assert.Equal(t, "これは私の母です。", root.CardOf(lesson.KindDialogue).Dialogue.Lines[0].Text)
}

func TestRecompileAppendsVersion(t *testing.T) {
	c, _ := testCompiler(t, happyMock(), nil)
	ctx := context.Background()

	first, err := c.Compile(ctx, Options{CanDoID: "JF:105"})
	require.NoError(t, err)
	second, err := c.Compile(ctx, Options{CanDoID: "JF:105"})
	require.NoError(t, err)

	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)
	assert.NotEqual(t, first.LessonID, second.LessonID)
}

// gatedProvider holds the first call open until released, keeping a compile
// in flight long enough for a second caller to arrive.
type gatedProvider struct {
	llm.Provider
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedProvider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.Provider.Generate(ctx, req)
}

func TestConcurrentCompilesShareOneRun(t *testing.T) {
	mock := happyMock()
	gate := &gatedProvider{Provider: mock, entered: make(chan struct{}), release: make(chan struct{})}
	c, st := testCompiler(t, gate, nil)

	type outcome struct {
		res *Result
		err error
	}
	results := make(chan outcome, 2)
	run := func() {
		res, err := c.Compile(context.Background(), Options{CanDoID: "JF:105", Metalanguage: "English"})
		results <- outcome{res, err}
	}

	go run()
	<-gate.entered
	go run()
	// the second caller needs a moment to reach the in-flight group
	time.Sleep(50 * time.Millisecond)
	close(gate.release)

	first := <-results
	second := <-results
	require.NoError(t, first.err)
	require.NoError(t, second.err)
	assert.Equal(t, first.res.LessonID, second.res.LessonID)
	assert.Equal(t, 1, first.res.Version)
	assert.Equal(t, 1, second.res.Version)

	versions, err := st.LessonRepo().ListVersions(context.Background(), "JF:105")
	require.NoError(t, err)
	assert.Len(t, versions, 1, "two concurrent compiles must not persist two versions")
	assert.Equal(t, 9, mock.CallCount(), "the joined caller must not rerun the pipeline")
}

func TestCompileUnknownCanDo(t *testing.T) {
	c, _ := testCompiler(t, happyMock(), nil)
	_, err := c.Compile(context.Background(), Options{CanDoID: "JF:999"})
	require.Error(t, err)
}

func TestCompileFailsWholeRunOnExhaustedStage(t *testing.T) {
	mock := happyMock()
	mock.RespondTo("dialogue-card", json.RawMessage(`{"lines": "nope"}`))
	c, st := testCompiler(t, mock, nil)

	_, err := c.Compile(context.Background(), Options{CanDoID: "JF:105"})
	require.Error(t, err)

	var failed *CompileFailed
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "dialogue", failed.Stage)
	assert.False(t, failed.Retryable(), "schema exhaustion is not retryable")

	var exhausted *repair.ErrGenerationExhausted
	assert.ErrorAs(t, failed.Cause, &exhausted)

	// all-or-nothing: the earlier successful stages left nothing behind
	_, err = st.LessonRepo().Latest(context.Background(), "JF:105")
	assert.ErrorIs(t, err, store.ErrLessonNotFound)

	// plan, vocabulary, grammar, then three dialogue attempts
	assert.Equal(t, 6, mock.CallCount())
}

func TestCompileTransportFailureIsRetryable(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: errors.New("connection reset")})
	c, _ := testCompiler(t, mock, nil)

	_, err := c.Compile(context.Background(), Options{CanDoID: "JF:105"})
	var failed *CompileFailed
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "plan", failed.Stage)
	assert.True(t, failed.Retryable())
}

func TestCompileRepairsMalformedStage(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Content: json.RawMessage(`not json at all`)},
		llm.MockResponse{Content: json.RawMessage(stageJSON["dialogue-card"])},
	)
	for name, content := range stageJSON {
		if name == "dialogue-card" {
			continue
		}
		mock.RespondTo(name, json.RawMessage(content))
	}
	c, st := testCompiler(t, mock, nil)

	res, err := c.Compile(context.Background(), Options{CanDoID: "JF:105"})
	require.NoError(t, err)

	rec, err := st.LessonRepo().Get(context.Background(), "JF:105", res.Version)
	require.NoError(t, err)
	root, err := LoadRoot(rec)
	require.NoError(t, err)
	assert.Equal(t, 2, root.CardOf(lesson.KindDialogue).Provenance.Attempts)
}

type mapLookup map[string][]string

func (m mapLookup) FindPattern(_ context.Context, surface string) ([]string, error) {
	return m[surface], nil
}

func TestCompileEnrichesGrammarCard(t *testing.T) {
	lookup := mapLookup{
		"これは私の": {"gp:kore-wa-watashi-no"},
		"そうです":  {"gp:sou-desu", "gp:sou-desu-alt"},
	}
	c, st := testCompiler(t, happyMock(), lookup)

	res, err := c.Compile(context.Background(), Options{CanDoID: "JF:105"})
	require.NoError(t, err)

	rec, err := st.LessonRepo().Get(context.Background(), "JF:105", res.Version)
	require.NoError(t, err)
	root, err := LoadRoot(rec)
	require.NoError(t, err)

	patterns := root.CardOf(lesson.KindGrammarPatterns).GrammarPatterns.Patterns
	require.Len(t, patterns, 2)
	assert.Equal(t, "gp:kore-wa-watashi-no", patterns[0].NodeID)
	assert.Empty(t, patterns[1].NodeID, "ambiguous lookup stays unlinked")
}

type purposeRecorder struct {
	llm.Provider
	mu       sync.Mutex
	purposes []string
}

func (p *purposeRecorder) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	p.purposes = append(p.purposes, llm.PurposeFrom(ctx))
	p.mu.Unlock()
	return p.Provider.Generate(ctx, req)
}

func TestStagePurposeLabels(t *testing.T) {
	rec := &purposeRecorder{Provider: happyMock()}
	c, _ := testCompiler(t, rec, nil)

	_, err := c.Compile(context.Background(), Options{CanDoID: "JF:105"})
	require.NoError(t, err)

	require.Len(t, rec.purposes, 9)
	for _, name := range []string{"plan", "vocabulary", "grammar", "dialogue", "reading", "guided-scaffold", "exercises", "culture", "drills"} {
		assert.Contains(t, rec.purposes, "stage:"+name)
	}
}
