package domain

import "time"

// AttemptRecord is the outcome for one catalog question at session completion.
type AttemptRecord struct {
	Position      int    `json:"position"`
	QuestionID    string `json:"questionId"`
	Prompt        string `json:"prompt"`
	CorrectAnswer string `json:"correctAnswer"`
	StudentAnswer string `json:"studentAnswer,omitempty"`
	Answered      bool   `json:"answered"`
	Correct       bool   `json:"correct"`
}

// SessionResult is produced once per completed run. Run counts restarts of
// the same session, starting at 1.
type SessionResult struct {
	SessionID      string          `json:"sessionId"`
	Run            int             `json:"run"`
	CatalogID      string          `json:"catalogId"`
	UserID         string          `json:"userId,omitempty"`
	SkillID        string          `json:"skillId,omitempty"`
	Difficulty     string          `json:"difficulty,omitempty"`
	StartedAt      time.Time       `json:"startedAt"`
	EndedAt        time.Time       `json:"endedAt"`
	ElapsedSeconds int             `json:"elapsedSeconds"`
	TotalQuestions int             `json:"totalQuestions"`
	TotalAnswered  int             `json:"totalAnswered"`
	TotalCorrect   int             `json:"totalCorrect"`
	Attempts       []AttemptRecord `json:"attempts"`
}

// TracksProgress reports whether the result can be folded into skill progress.
func (r SessionResult) TracksProgress() bool {
	return r.UserID != "" && r.SkillID != ""
}

// DefaultDifficulty is assigned to progress rows created without a difficulty.
const DefaultDifficulty = "Easy"

// SkillProgress accumulates a learner's results for one skill.
type SkillProgress struct {
	UserID            string    `json:"userId"`
	SkillID           string    `json:"skillId"`
	TotalAttempted    int       `json:"totalAttempted"`
	TotalCorrect      int       `json:"totalCorrect"`
	TotalTimeSeconds  int       `json:"totalTimeSeconds"`
	CurrentDifficulty string    `json:"currentDifficulty"`
	CorrectStreak     int       `json:"correctStreak"`
	WrongStreak       int       `json:"wrongStreak"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Apply folds a completed session into the progress counters. Attempts are
// walked in catalog order; unanswered questions leave the streaks untouched.
func (p *SkillProgress) Apply(r SessionResult) {
	if p.UserID == "" {
		p.UserID = r.UserID
	}
	if p.SkillID == "" {
		p.SkillID = r.SkillID
	}
	for _, a := range r.Attempts {
		if !a.Answered {
			continue
		}
		p.TotalAttempted++
		if a.Correct {
			p.TotalCorrect++
			p.CorrectStreak++
			p.WrongStreak = 0
		} else {
			p.CorrectStreak = 0
			p.WrongStreak++
		}
	}
	p.TotalTimeSeconds += r.ElapsedSeconds
	switch {
	case r.Difficulty != "":
		p.CurrentDifficulty = r.Difficulty
	case p.CurrentDifficulty == "":
		p.CurrentDifficulty = DefaultDifficulty
	}
	p.UpdatedAt = r.EndedAt
}
