package learning

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/harishm17/study-buddy-sub001/internal/models"
)

type ActionType string

const (
	ActionUploadMaterials   ActionType = "upload_materials"
	ActionWaitForProcessing ActionType = "wait_for_processing"
	ActionExtractTopics     ActionType = "extract_topics"
	ActionConfirmTopics     ActionType = "confirm_topics"
	ActionReviewTopic       ActionType = "review_topic"
	ActionGenerateNotes     ActionType = "generate_notes"
	ActionTakeQuiz          ActionType = "take_quiz"
	ActionPracticeQuiz      ActionType = "practice_quiz"
	ActionVoiceDrill        ActionType = "voice_drill"
	ActionTakeExam          ActionType = "take_exam"
)

const (
	DefaultActionLimit = 5
	masteredThreshold  = 0.7
	urgencyWindowDays  = 14
)

type Action struct {
	Type      ActionType `json:"type"`
	TopicID   string     `json:"topic_id,omitempty"`
	TopicName string     `json:"topic_name,omitempty"`
	Priority  float64    `json:"priority"`
	Reason    string     `json:"reason"`

	order int
}

// TopicState is what the planner knows about one topic.
type TopicState struct {
	Topic    models.Topic
	HasNotes bool
	Attempts map[models.AttemptKind]int
	Mastery  *models.TopicMastery
}

func (s TopicState) attemptCount() int {
	n := 0
	for _, c := range s.Attempts {
		n += c
	}
	return n
}

// Snapshot is the state of a project as seen by one user.
type Snapshot struct {
	MaterialCount      int
	ValidMaterialCount int
	ActiveJobs         int
	Topics             []TopicState
	ExamDate           *time.Time
	Now                time.Time
}

// Plan ranks the next actions for a project. Each confirmed topic contributes at most
// one action, the first that applies of review, notes, quiz, practice and drill.
func Plan(s Snapshot, limit int) []Action {
	if limit <= 0 {
		limit = DefaultActionLimit
	}
	var actions []Action
	project := func(t ActionType, priority float64, reason string) {
		actions = append(actions, Action{Type: t, Priority: priority, Reason: reason, order: -1})
	}

	if s.MaterialCount == 0 {
		project(ActionUploadMaterials, 100, "Upload lecture notes, slides or past exams to get started")
	}
	if s.ActiveJobs > 0 {
		project(ActionWaitForProcessing, 90, fmt.Sprintf("%d job(s) are still processing", s.ActiveJobs))
	} else if s.ValidMaterialCount > 0 && len(s.Topics) == 0 {
		project(ActionExtractTopics, 95, "Materials are ready; extract topics from them")
	}

	unconfirmed := 0
	var confirmed []TopicState
	for _, ts := range s.Topics {
		if ts.Topic.UserConfirmed {
			confirmed = append(confirmed, ts)
		} else {
			unconfirmed++
		}
	}
	if unconfirmed > 0 {
		project(ActionConfirmTopics, 92, fmt.Sprintf("Review and confirm %d suggested topic(s)", unconfirmed))
	}

	urgency := 1.0
	if s.ExamDate != nil {
		daysLeft := math.Max(0, math.Floor(s.ExamDate.Sub(s.Now).Hours()/24))
		if daysLeft <= urgencyWindowDays {
			urgency = 1 + (urgencyWindowDays-daysLeft)/urgencyWindowDays
		}
	}

	allMastered := len(confirmed) > 0
	for _, ts := range confirmed {
		effective := EffectiveMastery(ts.Mastery, s.Now)
		if effective < masteredThreshold {
			allMastered = false
		}
		if a, ok := topicAction(ts, effective, s.Now); ok {
			a.Priority *= urgency
			actions = append(actions, a)
		}
	}
	if allMastered {
		project(ActionTakeExam, 50, "Every topic is at 70% mastery or above; try a full sample exam")
	}

	for i := range actions {
		actions[i].Priority = math.Round(actions[i].Priority*100) / 100
	}
	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].Priority != actions[j].Priority {
			return actions[i].Priority > actions[j].Priority
		}
		return actions[i].order < actions[j].order
	})
	if len(actions) > limit {
		actions = actions[:limit]
	}
	return actions
}

func topicAction(ts TopicState, effective float64, now time.Time) (Action, bool) {
	a := Action{TopicID: ts.Topic.ID, TopicName: ts.Topic.Name, order: ts.Topic.OrderIndex}
	m := ts.Mastery

	switch {
	case m != nil && m.NextReviewAt != nil && !m.NextReviewAt.After(now):
		r := RetrievabilityAt(m, now)
		overdue := math.Min(10, now.Sub(*m.NextReviewAt).Hours()/24)
		a.Type = ActionReviewTopic
		a.Priority = 70 + 20*(1-r) + overdue
		a.Reason = fmt.Sprintf("Review is due; estimated recall %.0f%%", r*100)
	case !ts.HasNotes:
		a.Type = ActionGenerateNotes
		a.Priority = 60
		a.Reason = "No study notes yet"
	case ts.attemptCount() == 0:
		a.Type = ActionTakeQuiz
		a.Priority = 55
		a.Reason = "Notes are ready; check your understanding with a quiz"
	case effective < masteredThreshold:
		a.Type = ActionPracticeQuiz
		a.Priority = 40 + 30*(1-effective)
		a.Reason = fmt.Sprintf("Mastery is %.0f%%; keep practising", effective*100)
	case ts.Attempts[models.AttemptVoice] == 0:
		a.Type = ActionVoiceDrill
		a.Priority = 30
		a.Reason = "Explain it out loud with a voice drill"
	default:
		return Action{}, false
	}
	return a, true
}
