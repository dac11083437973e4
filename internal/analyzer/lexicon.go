package analyzer

import "strings"

// Keyword sentiment lexicon. Deliberately small: the analyzer needs a
// deterministic polarity signal for rating consistency checks, not a
// general-purpose sentiment model. Swap in the LLM backend for anything
// subtler.
var positiveWords = map[string]struct{}{
	"good": {}, "great": {}, "excellent": {}, "amazing": {}, "awesome": {},
	"wonderful": {}, "fantastic": {}, "professional": {}, "friendly": {},
	"helpful": {}, "timely": {}, "punctual": {}, "reliable": {}, "clean": {},
	"recommend": {}, "recommended": {}, "perfect": {}, "love": {}, "loved": {},
	"best": {}, "pleasant": {}, "courteous": {}, "thorough": {}, "quick": {},
	"happy": {}, "satisfied": {},
}

var negativeWords = map[string]struct{}{
	"bad": {}, "terrible": {}, "awful": {}, "horrible": {}, "poor": {},
	"disappointing": {}, "disappointed": {}, "rude": {}, "late": {},
	"unprofessional": {}, "unreliable": {}, "dirty": {}, "worst": {},
	"never": {}, "avoid": {}, "scam": {}, "waste": {}, "useless": {},
	"slow": {}, "overpriced": {}, "unhappy": {}, "refund": {}, "broken": {},
}

// polarity extracts a sentiment score in [-1, 1] from free text by keyword
// counting: +1 all positive, -1 all negative, 0 neutral or empty.
func polarity(text string) float64 {
	var pos, neg int
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if _, ok := positiveWords[w]; ok {
			pos++
		}
		if _, ok := negativeWords[w]; ok {
			neg++
		}
	}
	total := pos + neg
	if total == 0 {
		return 0.0
	}
	return float64(pos-neg) / float64(total)
}

// expectedPolarity maps a 1-5 rating onto the sentiment polarity a genuine
// review at that rating would carry.
func expectedPolarity(rating int) float64 {
	return (float64(rating) - 3.0) / 2.0
}
