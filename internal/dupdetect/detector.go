package dupdetect

import (
	"sort"
	"strings"
	"unicode"
)

// CorpusDoc is one already-filed document the new text is compared against.
// The detector performs no filesystem I/O; the corpus is supplied by the
// caller as a point-in-time snapshot.
type CorpusDoc struct {
	Path string
	Text string
}

// Match is one similarity hit at or above the reporting floor.
type Match struct {
	Path  string
	Score float64
}

// Detector flags near-duplicates via the Jaccard index over word-token sets.
type Detector struct {
	Threshold   float64 // score at or above which a document is a duplicate
	ReportFloor float64 // scores below this are not reported at all
}

func New(threshold, reportFloor float64) *Detector {
	return &Detector{Threshold: threshold, ReportFloor: reportFloor}
}

// minTokenLen drops short function words ("am", "zu", "im") that would
// inflate similarity between unrelated documents in the same language.
const minTokenLen = 3

// Tokenize splits text into a set of case-folded word tokens. Punctuation
// separates tokens; tokens shorter than three runes are discarded; no
// stemming, no language-specific handling.
func Tokenize(text string) map[string]struct{} {
	set := make(map[string]struct{})
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		if len([]rune(w)) < minTokenLen {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

// Jaccard is |A ∩ B| / |A ∪ B|. Either set empty means 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	common := 0
	for w := range a {
		if _, ok := b[w]; ok {
			common++
		}
	}
	union := len(a) + len(b) - common
	return float64(common) / float64(union)
}

// Detect scores text against every corpus document and returns the matches at
// or above the reporting floor, ordered by descending score; ties break by
// lexical path order so results are deterministic.
func (d *Detector) Detect(text string, corpus []CorpusDoc) []Match {
	tokens := Tokenize(text)
	var matches []Match
	for _, doc := range corpus {
		score := Jaccard(tokens, Tokenize(doc.Text))
		if score >= d.ReportFloor && score > 0 {
			matches = append(matches, Match{Path: doc.Path, Score: score})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Path < matches[j].Path
	})
	return matches
}

// IsDuplicate reports whether the top match crosses the duplicate threshold.
func (d *Detector) IsDuplicate(matches []Match) bool {
	return len(matches) > 0 && matches[0].Score >= d.Threshold
}
