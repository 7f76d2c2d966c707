package http

import (
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// maxBody caps request bodies; the largest legitimate one is a free-text answer.
const maxBody = 1 << 20

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

var errBadJSON = errors.New("bad json")

// bind decodes the JSON body into dst and runs its validate tags.
func bind(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(errBadJSON, err.Error())
	}
	return validate.Struct(dst)
}

type answerReq struct {
	OptionIndex *int    `json:"option_index" validate:"required_without=Text,excluded_with=Text"`
	Text        *string `json:"text" validate:"required_without=OptionIndex"`
}

const (
	navNext     = "next"
	navPrevious = "previous"
	navGoTo     = "goto"
)

type navigateReq struct {
	Action string `json:"action" validate:"required,oneof=next previous goto"`
	Index  *int   `json:"index" validate:"required_if=Action goto"`
}

// fieldErrors flattens validator output to json-field → rule.
func fieldErrors(err error) map[string]string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
