package learning

import (
	"math"
	"sort"
	"time"

	"github.com/harishm17/study-buddy-sub001/internal/models"
)

const (
	InitialEase     = 2.5
	MinEase         = 1.3
	MaxIntervalDays = 180
)

// Quality maps a 0..1 score onto the 0..5 SM-2 grade.
func Quality(score float64) int {
	return int(math.Round(clamp01(score) * 5))
}

// Schedule applies one review to m. Passing grades (quality 3+) grow the interval,
// failing ones reset it to a day and count a lapse.
func Schedule(m *models.TopicMastery, score float64, at time.Time) {
	if m.EaseFactor == 0 {
		m.EaseFactor = InitialEase
	}
	q := Quality(score)
	miss := float64(5 - q)
	m.EaseFactor = math.Max(MinEase, m.EaseFactor+0.1-miss*(0.08+miss*0.02))

	var interval int
	if q >= 3 {
		switch m.Repetitions {
		case 0:
			interval = 1
		case 1:
			interval = 3
		default:
			interval = int(math.Round(float64(m.IntervalDays) * m.EaseFactor))
		}
		interval = min(max(interval, 1), MaxIntervalDays)
		m.Repetitions++
	} else {
		m.Lapses++
		m.Repetitions = 0
		interval = 1
	}

	m.IntervalDays = interval
	m.Stability = float64(interval)
	m.LastScore = score
	reviewed := at
	next := at.Add(time.Duration(interval) * day)
	m.LastReviewedAt = &reviewed
	m.NextReviewAt = &next
}

// Due returns rows whose next review is at or before now, most overdue first.
func Due(rows []models.TopicMastery, now time.Time) []models.TopicMastery {
	var out []models.TopicMastery
	for _, r := range rows {
		if r.NextReviewAt != nil && !r.NextReviewAt.After(now) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].NextReviewAt.Before(*out[j].NextReviewAt) })
	return out
}
