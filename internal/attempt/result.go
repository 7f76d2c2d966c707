package attempt

import "math"

const (
	NotAnswered     = "Not Answered"
	NoCorrectAnswer = "—"
)

// ResultItem is the display view of one evaluated question.
type ResultItem struct {
	Number        int    `json:"number"`
	QuestionID    string `json:"question_id"`
	QuestionText  string `json:"question_text"`
	Answer        string `json:"answer"`
	CorrectAnswer string `json:"correct_answer"`
	Correct       bool   `json:"correct"`
	FreeText      bool   `json:"free_text"`
	Evaluation    string `json:"evaluation,omitempty"`
}

type Summary struct {
	CorrectCount    int          `json:"correct_count"`
	Total           int          `json:"total"`
	AccuracyPercent int          `json:"accuracy_percent"`
	Items           []ResultItem `json:"items"`
}

// Accuracy is round(100*correct/total), and 0 for an empty result.
func Accuracy(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

func Summarize(res EvaluationResult) Summary {
	sum := Summary{
		Total: len(res.QuestionResults),
		Items: make([]ResultItem, 0, len(res.QuestionResults)),
	}
	for i, r := range res.QuestionResults {
		if r.Correct {
			sum.CorrectCount++
		}
		kind, _ := ParseKind(r.Type)
		item := ResultItem{
			Number:        i + 1,
			QuestionID:    r.QuestionID,
			QuestionText:  r.QuestionText,
			Answer:        firstNonEmpty(r.StudentAnswer, r.StudentParagraph, NotAnswered),
			CorrectAnswer: firstNonEmpty(r.CorrectAnswer, NoCorrectAnswer),
			Correct:       r.Correct,
			FreeText:      kind == KindFreeText,
		}
		if item.FreeText {
			item.Evaluation = r.ParagraphEvaluation
		}
		sum.Items = append(sum.Items, item)
	}
	sum.AccuracyPercent = Accuracy(sum.CorrectCount, sum.Total)
	return sum
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
