package app

import (
	"testing"

	"quiz-session-service/internal/domain"
)

func TestScoreEmptyAnswers(t *testing.T) {
	card := Score(threeQuestionCatalog(), map[string]string{})
	if card.Score != 0 || card.Total != 3 {
		t.Fatalf("expected 0/3, got %d/%d", card.Score, card.Total)
	}
	for _, r := range card.Results {
		if r.Answered || r.Correct {
			t.Fatalf("unexpected verdict %+v", r)
		}
	}
}

func TestScoreAllCorrect(t *testing.T) {
	catalog := threeQuestionCatalog()
	answers := map[string]string{}
	for _, q := range catalog.Questions {
		answers[q.ID] = q.CorrectAnswer
	}
	if card := Score(catalog, answers); card.Score != len(catalog.Questions) {
		t.Fatalf("expected full marks, got %d", card.Score)
	}
}

func TestScoreIgnoresValuesOutsideOptions(t *testing.T) {
	catalog := domain.Catalog{Questions: []domain.Question{
		// a malformed question whose correct answer is not an option never scores
		{ID: "x", Kind: domain.KindSingleChoice, Options: []string{"a", "b"}, CorrectAnswer: "c"},
		{ID: "y", Kind: "essay", CorrectAnswer: "z"},
	}}
	card := Score(catalog, map[string]string{"x": "c", "y": "z"})
	if card.Score != 0 {
		t.Fatalf("expected 0, got %d", card.Score)
	}
	if !card.Results[0].Answered || card.Results[0].Correct {
		t.Fatalf("unexpected verdict %+v", card.Results[0])
	}
}

func TestScoreDoesNotMutateInputs(t *testing.T) {
	catalog := arithmeticCatalog()
	answers := map[string]string{"1": "5"}
	Score(catalog, answers)
	if len(answers) != 1 || catalog.Questions[0].Options[1] != "5" {
		t.Fatalf("inputs mutated")
	}
}
