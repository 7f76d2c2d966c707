package attempt

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const choiceOptionsTag = "choiceoptions"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report JSON names, the same ones the classroom API uses
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(questionStructValidation, Question{})
	return v
}

// questionStructValidation checks that a choice question carries exactly
// OptionCount non-blank options.
func questionStructValidation(sl validator.StructLevel) {
	q := sl.Current().Interface().(Question)
	if q.Kind != KindChoice {
		return
	}
	ok := len(q.Options) == OptionCount
	for _, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			ok = false
		}
	}
	if !ok {
		sl.ReportError(q.Options, "options", "Options", choiceOptionsTag, "")
	}
}

// ValidateQuestions rejects a loaded question set a session cannot hold,
// such as one with a duplicate qid.
func ValidateQuestions(qs []Question) error {
	seen := make(map[string]struct{}, len(qs))
	for i, q := range qs {
		if err := validate.Struct(q); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("question %d: duplicate qid %q", i+1, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}

// ValidateStart checks a start request before any remote call is made.
func ValidateStart(req StartRequest) error {
	return validate.Struct(req)
}
