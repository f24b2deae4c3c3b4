package agents

import "strings"

// Keyword lexicons for the four P0 scanners (§4.4). Deliberately small and
// deterministic — the point is pinned, testable scoring, not recall.

var painLexicon = []string{
	"slow", "broken", "confusing", "expensive", "frustrating",
	"annoying", "difficult", "painful", "stuck", "fails", "failing",
	"crash", "crashes", "bug", "buggy", "unreliable",
}

var emotionLexicon = []string{
	"love", "hate", "angry", "excited", "thrilled", "disappointed",
	"frustrated", "delighted", "worried", "anxious", "happy", "sad",
	"furious", "amazing", "terrible",
}

var trendLexicon = []string{
	"trending", "viral", "emerging", "growing", "surge", "spike",
	"momentum", "breakout", "accelerating", "adoption",
}

var sceneLexicon = []string{
	"office", "home", "commute", "meeting", "classroom", "warehouse",
	"store", "hospital", "gym", "kitchen", "team", "remote", "onsite",
}

// sourceTypeWeight is the descending scene-observer source-type tier
// (§4.4: sensor > event > processor > manual).
var sourceTypeWeight = map[string]float64{
	"sensor":    1.0,
	"event":     0.8,
	"processor": 0.6,
	"manual":    0.4,
}

// countMatches returns the keyword subset of lexicon present in text
// (case-insensitive, each keyword counted at most once).
func countMatches(text string, lexicon []string) []string {
	lower := strings.ToLower(text)
	var hits []string
	for _, kw := range lexicon {
		if strings.Contains(lower, kw) {
			hits = append(hits, kw)
		}
	}
	return hits
}

func clamp100(v float64) float64 {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
