package app

import "quiz-session-service/internal/domain"

// Scorecard is the derived score of a catalog against a set of answers.
type Scorecard struct {
	Score   int
	Total   int
	Results []domain.QuestionResult
}

// evaluator decides whether a recorded answer is correct for one question kind.
type evaluator interface {
	Correct(q domain.Question, answer string) bool
}

var evaluators = map[domain.Kind]evaluator{
	domain.KindSingleChoice: singleChoiceEvaluator{},
	domain.KindFreeText:     freeTextEvaluator{},
}

type singleChoiceEvaluator struct{}

func (singleChoiceEvaluator) Correct(q domain.Question, answer string) bool {
	return q.HasOption(answer) && answer == q.CorrectAnswer
}

// freeTextEvaluator compares raw input verbatim: no trimming, no case folding.
type freeTextEvaluator struct{}

func (freeTextEvaluator) Correct(q domain.Question, answer string) bool {
	return answer == q.CorrectAnswer
}

// Score computes the score and per-question verdicts. It never mutates its inputs.
func Score(catalog domain.Catalog, answers map[string]string) Scorecard {
	card := Scorecard{
		Total:   len(catalog.Questions),
		Results: make([]domain.QuestionResult, 0, len(catalog.Questions)),
	}
	for _, q := range catalog.Questions {
		answer, answered := answers[q.ID]
		correct := answered && isCorrect(q, answer)
		if correct {
			card.Score++
		}
		card.Results = append(card.Results, domain.QuestionResult{
			QuestionID: q.ID,
			Answered:   answered,
			Correct:    correct,
		})
	}
	return card
}

func isCorrect(q domain.Question, answer string) bool {
	ev, ok := evaluators[q.Kind]
	if !ok {
		// unknown kinds never pass catalog validation; render them as incorrect
		return false
	}
	return ev.Correct(q, answer)
}
