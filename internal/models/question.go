package models

const (
	QuestionMultipleChoice = "multiple_choice"
	QuestionShortAnswer    = "short_answer"
	QuestionNumerical      = "numerical"
	QuestionTrueFalse      = "true_false"
	QuestionConceptual     = "conceptual"
)

// QuestionTypeOrder fixes the order question types are allotted in.
var QuestionTypeOrder = []string{QuestionMultipleChoice, QuestionShortAnswer, QuestionNumerical, QuestionTrueFalse}

type QuestionOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is shared by quizzes, exams and voice drills. CorrectAnswer is a string,
// bool or number depending on the type.
type Question struct {
	QuestionType   string           `json:"question_type"`
	QuestionText   string           `json:"question_text"`
	Options        []QuestionOption `json:"options,omitempty"`
	CorrectAnswer  any              `json:"correct_answer,omitempty"`
	SampleAnswer   string           `json:"sample_answer,omitempty"`
	KeyPoints      []string         `json:"key_points,omitempty"`
	Unit           string           `json:"unit,omitempty"`
	Tolerance      float64          `json:"tolerance,omitempty"`
	Explanation    string           `json:"explanation,omitempty"`
	Points         float64          `json:"points,omitempty"`
	Difficulty     string           `json:"difficulty,omitempty"`
	ConceptsTested []string         `json:"concepts_tested,omitempty"`
	TopicID        string           `json:"topic_id,omitempty"`
	TopicName      string           `json:"topic_name,omitempty"`
	Source         string           `json:"source,omitempty"`
}

// MaxPoints defaults unscored questions to one point.
func (q Question) MaxPoints() float64 {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// Public hides everything that would give the answer away.
func (q Question) Public() Question {
	q.CorrectAnswer = nil
	q.SampleAnswer = ""
	q.KeyPoints = nil
	q.Explanation = ""
	q.Tolerance = 0
	return q
}
