package attempt

import "strings"

// AnswerStore holds the in-progress response for every question of one
// attempt. It is not safe for concurrent use; Session serialises access.
type AnswerStore struct {
	questions map[string]Question
	records   map[string]AnswerRecord
}

func NewAnswerStore(qs []Question) *AnswerStore {
	byID := make(map[string]Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}
	return &AnswerStore{
		questions: byID,
		records:   make(map[string]AnswerRecord, len(qs)),
	}
}

func newChoiceRecord(q Question, idx int) (AnswerRecord, error) {
	if q.Kind != KindChoice {
		return AnswerRecord{}, ErrWrongKind
	}
	if idx < 0 || idx >= OptionCount || idx >= len(q.Options) {
		return AnswerRecord{}, ErrInvalidOption
	}
	return AnswerRecord{
		QuestionID:  q.ID,
		Kind:        KindChoice,
		OptionIndex: idx,
		OptionText:  q.Options[idx],
	}, nil
}

func newTextRecord(q Question, text string) (AnswerRecord, error) {
	if q.Kind != KindFreeText {
		return AnswerRecord{}, ErrWrongKind
	}
	return AnswerRecord{QuestionID: q.ID, Kind: KindFreeText, Text: text}, nil
}

// SetChoiceAnswer records option idx for a choice question, replacing any
// earlier record. The option text is copied from the question here and
// nowhere else.
func (s *AnswerStore) SetChoiceAnswer(questionID string, idx int) error {
	q, ok := s.questions[questionID]
	if !ok {
		return ErrUnknownQuestion
	}
	rec, err := newChoiceRecord(q, idx)
	if err != nil {
		return err
	}
	s.records[questionID] = rec
	return nil
}

// SetTextAnswer stores text verbatim, empty string included.
func (s *AnswerStore) SetTextAnswer(questionID, text string) error {
	q, ok := s.questions[questionID]
	if !ok {
		return ErrUnknownQuestion
	}
	rec, err := newTextRecord(q, text)
	if err != nil {
		return err
	}
	s.records[questionID] = rec
	return nil
}

func (s *AnswerStore) IsAnswered(questionID string) bool {
	_, ok := s.records[questionID]
	return ok
}

func (s *AnswerStore) Get(questionID string) (AnswerRecord, bool) {
	rec, ok := s.records[questionID]
	return rec, ok
}

func (s *AnswerStore) Len() int { return len(s.records) }

// hasResponse is the completeness check: a record exists and, for free
// text, holds something other than whitespace.
func (s *AnswerStore) hasResponse(questionID string) bool {
	rec, ok := s.records[questionID]
	if !ok {
		return false
	}
	if rec.Kind == KindFreeText {
		return strings.TrimSpace(rec.Text) != ""
	}
	return true
}

// snapshot copies the records so callers can read them without the lock.
func (s *AnswerStore) snapshot() map[string]AnswerRecord {
	out := make(map[string]AnswerRecord, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}
