// Package enrich links generated grammar references to canonical graph
// nodes. Linking is deliberately conservative: a node identifier is attached
// only when an exact-text lookup returns a single match, so every link the
// lesson carries can be trusted.
package enrich

import (
	"context"
	"strings"

	"github.com/rkondo/kaiwa/internal/lesson"
	"github.com/rkondo/kaiwa/internal/logger"
)

// Lookup is the graph query contract enrichment consumes. Implemented by
// graph.Client; tests use a map-backed fake.
type Lookup interface {
	FindPattern(ctx context.Context, surface string) ([]string, error)
}

// Candidate is one surface form extracted from generated text, with the
// lemma we presume it inflects from.
type Candidate struct {
	Surface string
	Lemma   string
}

// politeSuffixes are common polite endings stripped when guessing a lemma.
var politeSuffixes = []string{"でした", "ました", "ません", "です", "ます"}

func lemmaOf(surface string) string {
	for _, suf := range politeSuffixes {
		if rest, ok := strings.CutSuffix(surface, suf); ok && rest != "" {
			return rest
		}
	}
	return surface
}

// Extract scans target-language text and returns surface/lemma candidates.
// Empty or too-short input yields no candidates; that is not an error.
func Extract(text string) []Candidate {
	tokens := Tokens(text)
	if len(tokens) < 2 {
		return nil
	}

	seen := make(map[string]bool, len(tokens))
	candidates := make([]Candidate, 0, len(tokens))
	for _, tok := range tokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		candidates = append(candidates, Candidate{Surface: tok, Lemma: lemmaOf(tok)})
	}
	return candidates
}

// Enricher patches grammar cards with graph links.
type Enricher struct {
	lookup Lookup
	log    *logger.Logger
}

// New builds an Enricher. A nil lookup is allowed and makes Enrich a no-op,
// since the graph is an optional collaborator.
func New(lookup Lookup, log *logger.Logger) *Enricher {
	if log == nil {
		log = logger.Nop()
	}
	return &Enricher{lookup: lookup, log: log.With("component", "enrich")}
}

// Enrich links patterns in card that are attested in text to graph nodes.
// A pattern is attested when one of the extracted candidates belongs to it,
// by surface or by presumed lemma, so inflected text can attest a
// citation-form pattern. A pattern is linked only when the lookup returns
// exactly one node; zero or many matches leave it unset and move on.
// Already-linked patterns are left alone, so re-running on an enriched card
// yields the same links. Lookup transport errors are logged and skipped;
// enrichment never fails a compile. Returns the number of links attached.
func (e *Enricher) Enrich(ctx context.Context, card *lesson.GrammarPatternsCard, text string) int {
	if e.lookup == nil || card == nil {
		return 0
	}
	cands := Extract(text)
	if len(cands) == 0 {
		return 0
	}

	linked := 0
	for i := range card.Patterns {
		ref := &card.Patterns[i]
		if ref.NodeID != "" {
			continue
		}
		if !attested(cands, ref.Pattern) {
			continue
		}

		ids, err := e.lookup.FindPattern(ctx, ref.Pattern)
		if err != nil {
			e.log.Warn("graph lookup failed", "pattern", ref.Pattern, "error", err)
			continue
		}
		if len(ids) != 1 {
			e.log.Debug("pattern not linked", "pattern", ref.Pattern, "matches", len(ids))
			continue
		}

		ref.NodeID = ids[0]
		linked++
	}
	return linked
}

// attested reports whether a candidate belongs to the pattern. Surfaces
// catch literal fragments; lemmas catch inflected forms of a citation-form
// pattern.
func attested(cands []Candidate, pattern string) bool {
	p := Normalize(pattern)
	if p == "" {
		return false
	}
	for _, c := range cands {
		if strings.Contains(p, Normalize(c.Surface)) || strings.Contains(p, Normalize(c.Lemma)) {
			return true
		}
	}
	return false
}
