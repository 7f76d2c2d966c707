package attempt

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateQuestions(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(qs []Question) []Question
		wantErr bool
	}{
		{name: "valid", mutate: func(qs []Question) []Question { return qs }},
		{name: "empty set", mutate: func(qs []Question) []Question { return nil }},
		{name: "missing qid", mutate: func(qs []Question) []Question { qs[0].ID = ""; return qs }, wantErr: true},
		{name: "unknown kind", mutate: func(qs []Question) []Question { qs[1].Kind = "ESSAY"; return qs }, wantErr: true},
		{name: "three options", mutate: func(qs []Question) []Question { qs[0].Options = qs[0].Options[:3]; return qs }, wantErr: true},
		{name: "blank option", mutate: func(qs []Question) []Question { qs[2].Options[3] = " "; return qs }, wantErr: true},
		{name: "duplicate qid", mutate: func(qs []Question) []Question { qs[2].ID = "q1"; return qs }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuestions(tt.mutate(threeQuestions()))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateQuestions() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateQuestions_ReportsJSONField(t *testing.T) {
	qs := threeQuestions()
	qs[0].Options = nil
	err := ValidateQuestions(qs)
	require.Error(t, err)

	var ve validator.ValidationErrors
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "options", ve[0].Field())
	assert.Equal(t, choiceOptionsTag, ve[0].Tag())
}

func TestValidateStart(t *testing.T) {
	assert.NoError(t, ValidateStart(StartRequest{AssignmentID: "a1", ClassroomID: "c1"}))

	err := ValidateStart(StartRequest{AssignmentID: "a1"})
	var ve validator.ValidationErrors
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "classroom_id", ve[0].Field())
}
