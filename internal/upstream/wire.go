package upstream

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/mind-engage/mindengage-attempts/internal/attempt"
)

// flexID accepts an identifier sent either as a JSON string or a number.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// typedID is a flexID that remembers whether it arrived unquoted.
type typedID struct {
	ID      flexID
	Numeric bool
}

func (t *typedID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if err := t.ID.UnmarshalJSON(b); err != nil {
		return err
	}
	t.Numeric = t.ID != "" && b[0] != '"'
	return nil
}

// wireID encodes an id with the JSON type it arrived with.
func wireID(id string, numeric bool) interface{} {
	if numeric {
		return json.Number(id)
	}
	return id
}

type mcqWire struct {
	Option1 string `json:"option1"`
	Option2 string `json:"option2"`
	Option3 string `json:"option3"`
	Option4 string `json:"option4"`
}

type questionWire struct {
	QID  typedID  `json:"qid"`
	Text string   `json:"text"`
	Type string   `json:"type"`
	MCQ  *mcqWire `json:"mcq,omitempty"`
}

type assignmentWire struct {
	Questions []questionWire `json:"questions"`
	Test      *struct {
		TID flexID `json:"tid"`
	} `json:"test,omitempty"`
}

func (a assignmentWire) toAssignment(id string) attempt.Assignment {
	out := attempt.Assignment{ID: id, Questions: make([]attempt.Question, 0, len(a.Questions))}
	for _, qw := range a.Questions {
		q := attempt.Question{ID: string(qw.QID.ID), NumericID: qw.QID.Numeric, Text: qw.Text, Kind: attempt.Kind(qw.Type)}
		if k, ok := attempt.ParseKind(qw.Type); ok {
			q.Kind = k
		}
		if q.Kind == attempt.KindChoice && qw.MCQ != nil {
			q.Options = []string{qw.MCQ.Option1, qw.MCQ.Option2, qw.MCQ.Option3, qw.MCQ.Option4}
		}
		out.Questions = append(out.Questions, q)
	}
	if a.Test != nil {
		out.AttemptID = string(a.Test.TID)
	}
	return out
}

type payloadWire struct {
	QuestionID interface{} `json:"questionId"`
	Answer     string      `json:"answer"`
}

func toPayloadWire(items []attempt.PayloadItem) []payloadWire {
	out := make([]payloadWire, 0, len(items))
	for _, it := range items {
		out = append(out, payloadWire{QuestionID: wireID(it.QuestionID, it.NumericID), Answer: it.Answer})
	}
	return out
}

type questionResultWire struct {
	QuestionID          flexID `json:"questionId"`
	QuestionText        string `json:"questionText"`
	Correct             bool   `json:"correct"`
	StudentAnswer       string `json:"studentAnswer"`
	StudentParagraph    string `json:"studentParagraph"`
	CorrectAnswer       string `json:"correctAnswer"`
	Type                string `json:"type"`
	ParagraphEvaluation string `json:"paragraphEvaluation"`
}

type evaluationWire struct {
	QuestionResults []questionResultWire `json:"questionResults"`
}

func (e evaluationWire) toResult() attempt.EvaluationResult {
	out := attempt.EvaluationResult{QuestionResults: make([]attempt.QuestionResult, 0, len(e.QuestionResults))}
	for _, r := range e.QuestionResults {
		out.QuestionResults = append(out.QuestionResults, attempt.QuestionResult{
			QuestionID:          string(r.QuestionID),
			QuestionText:        r.QuestionText,
			Correct:             r.Correct,
			StudentAnswer:       r.StudentAnswer,
			StudentParagraph:    r.StudentParagraph,
			CorrectAnswer:       r.CorrectAnswer,
			Type:                r.Type,
			ParagraphEvaluation: r.ParagraphEvaluation,
		})
	}
	return out
}

type attemptedWire struct {
	ID     flexID `json:"id"`
	AsgnID flexID `json:"asgnId"`
}

func (a attemptedWire) matches(assignmentID string) bool {
	return (a.ID != "" && string(a.ID) == assignmentID) ||
		(a.AsgnID != "" && string(a.AsgnID) == assignmentID)
}

// parseAttemptID reads the attempt-id response: a bare JSON string or
// number, an object carrying tid, or plain text.
func parseAttemptID(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	var id flexID
	if err := json.Unmarshal(body, &id); err == nil {
		return string(id)
	}
	var obj struct {
		TID flexID `json:"tid"`
	}
	if err := json.Unmarshal(body, &obj); err == nil {
		return string(obj.TID)
	}
	return strings.TrimSpace(string(body))
}
