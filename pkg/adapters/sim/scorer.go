// Package sim is an in-process stand-in for the essay evaluation service.
//
// It scores essays with deterministic text statistics instead of a language
// model, and serves the same wire format as the real service, either as a
// ports.Transport or over HTTP.
package sim

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/aretw0/essayflow/pkg/domain"
)

// Evaluation is the outcome of scoring one essay. Each check is 0 to 5.
type Evaluation struct {
	Clarity  int
	Depth    int
	Vocab    int
	Total    int
	Feedback string
}

// Passed reports whether the total reaches threshold.
func (e Evaluation) Passed(threshold float64) bool {
	return float64(e.Total) >= threshold
}

// Score evaluates essay deterministically.
//
//   - clarity rewards an average sentence length between 12 and 25 words;
//   - depth grows with the number of words;
//   - vocab is the share of distinct words.
func Score(essay string) Evaluation {
	words := tokenize(essay)
	sentences := countSentences(essay)

	e := Evaluation{
		Clarity: clarity(len(words), sentences),
		Depth:   depth(len(words)),
		Vocab:   vocab(words),
	}
	e.Total = e.Clarity + e.Depth + e.Vocab
	return e
}

// Feedback writes three improvement bullets for e, weakest check first.
func Feedback(e Evaluation) string {
	type check struct {
		name  string
		score int
		tip   string
	}
	checks := []check{
		{"Clarity", e.Clarity, "Vary sentence length and keep most sentences between 12 and 25 words; link paragraphs with explicit transitions."},
		{"Depth", e.Depth, "Cover the social, political and economic dimensions, and support each claim with an example or figure."},
		{"Language", e.Vocab, "Avoid repeating the same words; prefer precise terms over generic ones."},
	}
	// Stable insertion sort by ascending score.
	for i := 1; i < len(checks); i++ {
		for j := i; j > 0 && checks[j].score < checks[j-1].score; j-- {
			checks[j], checks[j-1] = checks[j-1], checks[j]
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Score: %d/%d\n\n", e.Total, domain.MaxScore)
	for _, c := range checks {
		fmt.Fprintf(&b, "- **%s (%d/5):** %s\n", c.name, c.score, c.tip)
	}
	return strings.TrimRight(b.String(), "\n")
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}

func countSentences(s string) int {
	n := 0
	inSentence := false
	for _, r := range s {
		switch {
		case r == '.' || r == '!' || r == '?':
			if inSentence {
				n++
			}
			inSentence = false
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			inSentence = true
		}
	}
	if inSentence {
		n++
	}
	return n
}

func clarity(words, sentences int) int {
	if words == 0 || sentences == 0 {
		return 0
	}
	avg := float64(words) / float64(sentences)
	switch {
	case avg >= 12 && avg <= 25:
		return 5
	case avg >= 9 && avg <= 30:
		return 4
	case avg >= 6 && avg <= 40:
		return 3
	case avg >= 3:
		return 2
	default:
		return 1
	}
}

func depth(words int) int {
	switch {
	case words == 0:
		return 0
	case words < 50:
		return 1
	case words < 120:
		return 2
	case words < 250:
		return 3
	case words < 400:
		return 4
	default:
		return 5
	}
}

func vocab(words []string) int {
	if len(words) == 0 {
		return 0
	}
	distinct := make(map[string]struct{}, len(words))
	for _, w := range words {
		distinct[w] = struct{}{}
	}
	ratio := float64(len(distinct)) / float64(len(words))
	switch {
	case ratio >= 0.7:
		return 5
	case ratio >= 0.6:
		return 4
	case ratio >= 0.5:
		return 3
	case ratio >= 0.4:
		return 2
	default:
		return 1
	}
}
