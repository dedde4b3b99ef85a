// Package learning models how well a user knows each topic, when to review it and
// what to do next.
package learning

import (
	"math"
	"time"

	"github.com/harishm17/study-buddy-sub001/internal/models"
)

const (
	recencyHalfLifeDays = 14.0
	confidentEvidence   = 3.0
	day                 = 24 * time.Hour
)

var kindWeights = map[models.AttemptKind]float64{
	models.AttemptExam:  1.0,
	models.AttemptQuiz:  0.8,
	models.AttemptVoice: 0.6,
}

type Level string

const (
	LevelNotStarted Level = "not_started"
	LevelLearning   Level = "learning"
	LevelDeveloping Level = "developing"
	LevelProficient Level = "proficient"
	LevelMastered   Level = "mastered"
)

// Evidence is one graded observation, scored 0..1.
type Evidence struct {
	Kind  models.AttemptKind
	Score float64
	At    time.Time
}

func EvidenceFromAttempts(attempts []models.Attempt) []Evidence {
	out := make([]Evidence, len(attempts))
	for i, a := range attempts {
		out[i] = Evidence{Kind: a.Kind, Score: a.Score, At: a.CreatedAt}
	}
	return out
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func daysBetween(from, to time.Time) float64 {
	return math.Max(0, to.Sub(from).Hours()/24)
}

// Mastery is the recency- and kind-weighted mean score, scaled down while there is
// little evidence.
func Mastery(evidence []Evidence, now time.Time) float64 {
	if len(evidence) == 0 {
		return 0
	}
	var sum, weights float64
	for _, e := range evidence {
		kw, ok := kindWeights[e.Kind]
		if !ok {
			kw = kindWeights[models.AttemptVoice]
		}
		w := kw * math.Pow(0.5, daysBetween(e.At, now)/recencyHalfLifeDays)
		sum += w * clamp01(e.Score)
		weights += w
	}
	if weights == 0 {
		return 0
	}
	confidence := 0.6 + 0.4*math.Min(1, float64(len(evidence))/confidentEvidence)
	return clamp01(sum / weights * confidence)
}

// Retrievability is the chance of recall t days after a review given stability s.
func Retrievability(tDays, stabilityDays float64) float64 {
	if stabilityDays <= 0 {
		stabilityDays = 1
	}
	return math.Pow(1+19.0/81.0*math.Max(0, tDays)/stabilityDays, -0.5)
}

// RetrievabilityAt evaluates the mastery row at now. Topics never reviewed have
// nothing to forget.
func RetrievabilityAt(m *models.TopicMastery, now time.Time) float64 {
	if m == nil || m.LastReviewedAt == nil {
		return 1
	}
	return Retrievability(daysBetween(*m.LastReviewedAt, now), m.Stability)
}

func EffectiveMastery(m *models.TopicMastery, now time.Time) float64 {
	if m == nil {
		return 0
	}
	return m.Mastery * RetrievabilityAt(m, now)
}

// LevelFor buckets a mastery value; without evidence the topic is not started.
func LevelFor(mastery float64, hasEvidence bool) Level {
	switch {
	case !hasEvidence:
		return LevelNotStarted
	case mastery < 0.4:
		return LevelLearning
	case mastery < 0.7:
		return LevelDeveloping
	case mastery < 0.9:
		return LevelProficient
	default:
		return LevelMastered
	}
}
