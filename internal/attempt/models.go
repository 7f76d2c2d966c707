package attempt

import (
	"strings"
	"time"
)

// Kind is the question type as the classroom API spells it.
type Kind string

const (
	KindChoice   Kind = "MCQ"
	KindFreeText Kind = "PARAGRAPH"
)

// OptionCount is the number of options every choice question carries.
const OptionCount = 4

// ParseKind accepts the wire spellings case-insensitively; the evaluator
// echoes "Paragraph" where the assignment endpoint says "PARAGRAPH".
func ParseKind(s string) (Kind, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(KindChoice):
		return KindChoice, true
	case string(KindFreeText):
		return KindFreeText, true
	}
	return "", false
}

type Question struct {
	ID      string   `json:"qid" validate:"required"`
	Text    string   `json:"text" validate:"required"`
	Kind    Kind     `json:"type" validate:"required,oneof=MCQ PARAGRAPH"`
	Options []string `json:"options,omitempty"` // exactly OptionCount for KindChoice

	// NumericID is set when the classroom API sent the qid as a JSON number.
	NumericID bool `json:"-"`
}

// Assignment is what the question endpoint returns. AttemptID is only set
// when the payload embeds the test identifier alongside the questions.
type Assignment struct {
	ID        string
	Questions []Question
	AttemptID string
}

// AnswerRecord is the in-progress response to one question. Records are
// only built by newChoiceRecord and newTextRecord so OptionText can never
// drift from OptionIndex.
type AnswerRecord struct {
	QuestionID  string `json:"question_id"`
	Kind        Kind   `json:"kind"`
	OptionIndex int    `json:"option_index"`
	OptionText  string `json:"option_text,omitempty"`
	Text        string `json:"text,omitempty"`
}

// Answer is the value sent to the evaluator for this record.
func (r AnswerRecord) Answer() string {
	if r.Kind == KindChoice {
		return r.OptionText
	}
	return r.Text
}

// PayloadItem is one entry of the evaluation request body.
type PayloadItem struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
	NumericID  bool   `json:"-"`
}

type QuestionResult struct {
	QuestionID          string `json:"questionId"`
	QuestionText        string `json:"questionText"`
	Correct             bool   `json:"correct"`
	StudentAnswer       string `json:"studentAnswer,omitempty"`
	StudentParagraph    string `json:"studentParagraph,omitempty"`
	CorrectAnswer       string `json:"correctAnswer,omitempty"`
	Type                string `json:"type,omitempty"`
	ParagraphEvaluation string `json:"paragraphEvaluation,omitempty"`
}

type EvaluationResult struct {
	QuestionResults []QuestionResult `json:"questionResults"`
}

// StartRequest identifies the assignment a student wants to attempt.
type StartRequest struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
	ClassroomID  string `json:"classroom_id" validate:"required"`
}

type Clock func() time.Time
