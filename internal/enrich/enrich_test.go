package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkondo/kaiwa/internal/lesson"
)

type fakeLookup struct {
	nodes map[string][]string
	err   error
	calls int
}

func (f *fakeLookup) FindPattern(_ context.Context, surface string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.nodes[surface], nil
}

func grammarCard(patterns ...string) *lesson.GrammarPatternsCard {
	card := &lesson.GrammarPatternsCard{}
	for _, p := range patterns {
		card.Patterns = append(card.Patterns, lesson.GrammarPatternRef{Pattern: p})
	}
	return card
}

func TestTokensScriptRuns(t *testing.T) {
	assert.Equal(t, []string{"これは", "私", "の", "母", "です"}, Tokens("これは私の母です。"))
	assert.Equal(t, 5, CountWords("これは私の母です。"))
}

func TestTokensMixedScripts(t *testing.T) {
	assert.Equal(t, []string{"テレビ", "を", "見", "ます"}, Tokens("テレビを見ます"))
	assert.Equal(t, []string{"CD", "を", "2", "枚"}, Tokens("CDを2枚"))
	assert.Empty(t, Tokens("。、！"))
	assert.Empty(t, Tokens(""))
}

func TestContainsPattern(t *testing.T) {
	assert.True(t, ContainsPattern("これは私の母です。", "これは私の"))
	assert.True(t, ContainsPattern("これは 私の 母です", "これは私の"))
	assert.False(t, ContainsPattern("こんにちは", "これは私の"))
	assert.False(t, ContainsPattern("こんにちは", ""))
}

func TestExtract(t *testing.T) {
	cands := Extract("これは私の母です。これは父です。")
	surfaces := make(map[string]string, len(cands))
	for _, c := range cands {
		surfaces[c.Surface] = c.Lemma
	}

	// duplicates collapse; a bare polite ending keeps its surface as lemma
	assert.Contains(t, surfaces, "母")
	assert.Equal(t, "です", surfaces["です"])
	assert.Len(t, cands, len(surfaces))
}

func TestLemmaStripsPoliteSuffix(t *testing.T) {
	cands := Extract("昨日映画を見ていました。")
	surfaces := make(map[string]string, len(cands))
	for _, c := range cands {
		surfaces[c.Surface] = c.Lemma
	}
	assert.Equal(t, "てい", surfaces["ていました"])
}

func TestExtractTooShort(t *testing.T) {
	assert.Nil(t, Extract(""))
	assert.Nil(t, Extract("母"))
}

func TestEnrichLinksOnExactlyOneMatch(t *testing.T) {
	lookup := &fakeLookup{nodes: map[string][]string{
		"これは私の": {"gp:kore-wa"},
		"のです":   {"gp:a", "gp:b"},
	}}
	card := grammarCard("これは私の", "のです", "知らない")

	e := New(lookup, nil)
	linked := e.Enrich(context.Background(), card, "これは私の母です。そうなのです。")

	assert.Equal(t, 1, linked)
	assert.Equal(t, "gp:kore-wa", card.Patterns[0].NodeID)
	assert.Empty(t, card.Patterns[1].NodeID, "ambiguous match stays unlinked")
	assert.Empty(t, card.Patterns[2].NodeID, "unattested pattern is never looked up")
}

func TestEnrichAttestsViaLemma(t *testing.T) {
	lookup := &fakeLookup{nodes: map[string][]string{"ている": {"gp:te-iru"}}}
	card := grammarCard("ている")

	// ている never appears literally; the candidate ていました attests it
	// through its lemma てい
	e := New(lookup, nil)
	linked := e.Enrich(context.Background(), card, "昨日映画を見ていました。")

	assert.Equal(t, 1, linked)
	assert.Equal(t, "gp:te-iru", card.Patterns[0].NodeID)
}

func TestEnrichSkipsPatternsAbsentFromText(t *testing.T) {
	lookup := &fakeLookup{nodes: map[string][]string{"知らない": {"gp:x"}}}
	card := grammarCard("知らない")

	e := New(lookup, nil)
	assert.Zero(t, e.Enrich(context.Background(), card, "これは私の母です。"))
	assert.Zero(t, lookup.calls)
}

func TestEnrichIdempotent(t *testing.T) {
	lookup := &fakeLookup{nodes: map[string][]string{"これは私の": {"gp:kore-wa"}}}
	card := grammarCard("これは私の")
	text := "これは私の母です。"

	e := New(lookup, nil)
	require.Equal(t, 1, e.Enrich(context.Background(), card, text))
	require.Equal(t, "gp:kore-wa", card.Patterns[0].NodeID)

	// second run leaves the link untouched and does not re-query
	calls := lookup.calls
	assert.Zero(t, e.Enrich(context.Background(), card, text))
	assert.Equal(t, "gp:kore-wa", card.Patterns[0].NodeID)
	assert.Equal(t, calls, lookup.calls)
}

func TestEnrichLookupErrorIsNonFatal(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("connection refused")}
	card := grammarCard("これは私の")

	e := New(lookup, nil)
	assert.Zero(t, e.Enrich(context.Background(), card, "これは私の母です。"))
	assert.Empty(t, card.Patterns[0].NodeID)
}

func TestEnrichShortInputYieldsNoCandidates(t *testing.T) {
	lookup := &fakeLookup{nodes: map[string][]string{"母": {"gp:haha"}}}
	card := grammarCard("母")

	e := New(lookup, nil)
	assert.Zero(t, e.Enrich(context.Background(), card, "母"))
	assert.Zero(t, lookup.calls)
}

func TestEnrichNilLookup(t *testing.T) {
	e := New(nil, nil)
	card := grammarCard("これは私の")
	assert.Zero(t, e.Enrich(context.Background(), card, "これは私の母です。"))
}
