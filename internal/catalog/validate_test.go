package catalog

import (
	"errors"
	"strings"
	"testing"

	"quiz-session-service/internal/domain"
)

func validCatalog() domain.Catalog {
	return domain.Catalog{
		ID:         "arith-1",
		Title:      "Arithmetic",
		Difficulty: "Easy",
		Questions: []domain.Question{
			{ID: "1", Kind: domain.KindSingleChoice, Prompt: "2 + 3 = ?", Options: []string{"4", "5", "6", "7"}, CorrectAnswer: "5"},
			{ID: "2", Kind: domain.KindFreeText, Prompt: "Spell 4", CorrectAnswer: "four"},
		},
	}
}

func TestValidateAcceptsWellFormedCatalog(t *testing.T) {
	if err := Validate(validCatalog()); err != nil {
		t.Fatalf("expected valid catalog, got %v", err)
	}
}

func TestValidateReportsFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *domain.Catalog)
		field  string
	}{
		{"empty catalog", func(c *domain.Catalog) { c.Questions = nil }, "questions"},
		{"missing id", func(c *domain.Catalog) { c.ID = "" }, "id"},
		{"bad difficulty", func(c *domain.Catalog) { c.Difficulty = "Insane" }, "difficulty"},
		{"unknown kind", func(c *domain.Catalog) { c.Questions[0].Kind = "essay" }, "questions[0].kind"},
		{"answer outside options", func(c *domain.Catalog) { c.Questions[0].CorrectAnswer = "9" }, "questions[0].correctAnswer"},
		{"one option", func(c *domain.Catalog) { c.Questions[0].Options = []string{"5"} }, "questions[0].options"},
		{"duplicate options", func(c *domain.Catalog) { c.Questions[0].Options = []string{"5", "5"} }, "questions[0].options"},
		{"free text with options", func(c *domain.Catalog) { c.Questions[1].Options = []string{"four", "4"} }, "questions[1].options"},
		{"free text without answer", func(c *domain.Catalog) { c.Questions[1].CorrectAnswer = "" }, "questions[1].correctAnswer"},
		{"duplicate ids", func(c *domain.Catalog) { c.Questions[1].ID = "1" }, "questions"},
		{"bad image url", func(c *domain.Catalog) { c.Questions[0].ImageURL = "not a url" }, "questions[0].imageUrl"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validCatalog()
			tc.mutate(&c)
			err := Validate(c)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			for _, f := range verr.Fields {
				if f.Field == tc.field {
					if f.Message == "" {
						t.Fatalf("empty message for %s", f.Field)
					}
					return
				}
			}
			t.Fatalf("expected error on %s, got %+v", tc.field, verr.Fields)
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	c := validCatalog()
	c.Questions[0].CorrectAnswer = "9"
	err := Validate(c)
	if err == nil || !strings.Contains(err.Error(), "correctAnswer must be one of the options") {
		t.Fatalf("unexpected message %v", err)
	}
}
