// Package grading scores quiz, exam and voice-drill answers.
package grading

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

const (
	keyPointCoverage = 0.5
	correctThreshold = 0.7
)

var stopwords = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`a an the and or but if then else of to in on at by for with from
		into onto about as is are was were be been being am do does did has have had it its this
		that these those there their they them he she his her we our you your i me my so such than
		too very can could should would will shall may might must not no nor only own same just
		also what which who whom whose when where why how all any both each few more most other some`) {
		stopwords[w] = true
	}
}

// Tokenize lowercases text, splits it into alphanumeric words, drops stop-words and
// strips common suffixes.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(words))
	for _, w := range words {
		if stopwords[w] {
			continue
		}
		out = append(out, stem(w))
	}
	return out
}

// stem maps inflected forms onto a shared root: both "cache" and "caches" become
// "cach", "index" and "indexes" become "index", "study" and "studies" become "study".
func stem(w string) string {
	switch {
	case len(w) > 5 && strings.HasSuffix(w, "ing"):
		w = w[:len(w)-3]
	case len(w) > 4 && (strings.HasSuffix(w, "ies") || strings.HasSuffix(w, "ied")):
		return w[:len(w)-3] + "y"
	case len(w) > 4 && strings.HasSuffix(w, "ed"):
		w = w[:len(w)-2]
	case len(w) > 4 && strings.HasSuffix(w, "es") && sibilant(w[:len(w)-2]):
		w = w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") &&
		!strings.HasSuffix(w, "us") && !strings.HasSuffix(w, "is"):
		w = w[:len(w)-1]
	}
	if len(w) > 2 && strings.HasSuffix(w, "e") {
		w = w[:len(w)-1]
	}
	return w
}

// sibilant reports whether a plural of w takes "es" (box, class, buzz, church, wish).
func sibilant(w string) bool {
	for _, end := range []string{"s", "x", "z", "ch", "sh"} {
		if strings.HasSuffix(w, end) {
			return true
		}
	}
	return false
}

func tokenSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, t := range Tokenize(text) {
		set[t] = true
	}
	return set
}

type OverlapResult struct {
	Score    float64  `json:"score"`
	Correct  bool     `json:"correct"`
	Covered  []string `json:"covered_key_points"`
	Missing  []string `json:"missing_key_points"`
	Feedback string   `json:"feedback"`
}

// GradeOverlap scores answer by the share of key points it covers. A key point counts
// as covered when at least half of its tokens (and at least one) appear in the answer.
// Without key points the score is the recall of the sample answer's tokens.
func GradeOverlap(answer string, keyPoints []string, sampleAnswer string) OverlapResult {
	answerTokens := tokenSet(answer)

	var res OverlapResult
	graded := 0
	for _, kp := range keyPoints {
		kpTokens := tokenSet(kp)
		if len(kpTokens) == 0 {
			continue
		}
		graded++
		hits := 0
		for t := range kpTokens {
			if answerTokens[t] {
				hits++
			}
		}
		need := max(1, int(math.Ceil(keyPointCoverage*float64(len(kpTokens)))))
		if hits >= need {
			res.Covered = append(res.Covered, kp)
		} else {
			res.Missing = append(res.Missing, kp)
		}
	}

	switch {
	case graded > 0:
		res.Score = float64(len(res.Covered)) / float64(graded)
		if len(res.Missing) == 0 {
			res.Feedback = "Great answer! You covered all the key points."
		} else {
			res.Feedback = fmt.Sprintf("You covered %d of %d key points. Missing: %s.",
				len(res.Covered), graded, strings.Join(res.Missing, "; "))
		}
	default:
		sample := tokenSet(sampleAnswer)
		if len(sample) > 0 {
			hits := 0
			for t := range sample {
				if answerTokens[t] {
					hits++
				}
			}
			res.Score = float64(hits) / float64(len(sample))
		}
		res.Feedback = fmt.Sprintf("Your answer matched %.0f%% of the reference answer.", res.Score*100)
	}
	res.Correct = res.Score >= correctThreshold
	return res
}
