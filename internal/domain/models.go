package domain

import "time"

// Kind enumerates the supported question variants.
type Kind string

const (
	// KindSingleChoice is answered by picking one of the listed options.
	KindSingleChoice Kind = "single_choice"
	// KindFreeText is answered with raw text compared verbatim.
	KindFreeText Kind = "free_text"
)

// Question is one evaluable item in a catalog. An image-based question is a
// single-choice question that also carries ImageURL.
type Question struct {
	ID            string   `json:"id" yaml:"id" validate:"required"`
	Kind          Kind     `json:"kind" yaml:"kind" validate:"required,oneof=single_choice free_text"`
	Prompt        string   `json:"prompt" yaml:"prompt" validate:"required"`
	Options       []string `json:"options,omitempty" yaml:"options,omitempty" validate:"omitempty,dive,required"`
	CorrectAnswer string   `json:"correctAnswer" yaml:"correctAnswer"`
	ImageURL      string   `json:"imageUrl,omitempty" yaml:"imageUrl,omitempty" validate:"omitempty,url"`
	Placeholder   string   `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Hint          string   `json:"hint,omitempty" yaml:"hint,omitempty"`
}

// HasOption reports whether value is one of the question's options.
func (q Question) HasOption(value string) bool {
	for _, opt := range q.Options {
		if opt == value {
			return true
		}
	}
	return false
}

// Catalog is the fixed ordered list of questions for a session.
type Catalog struct {
	ID         string     `json:"id" yaml:"id" validate:"required"`
	Title      string     `json:"title,omitempty" yaml:"title,omitempty"`
	SkillID    string     `json:"skillId,omitempty" yaml:"skillId,omitempty"`
	Difficulty string     `json:"difficulty,omitempty" yaml:"difficulty,omitempty" validate:"omitempty,oneof=Easy Medium Hard"`
	Questions  []Question `json:"questions" yaml:"questions" validate:"required,min=1,dive"`
}

// CatalogSummary describes a catalog without revealing answers.
type CatalogSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title,omitempty"`
	SkillID       string `json:"skillId,omitempty"`
	Difficulty    string `json:"difficulty,omitempty"`
	QuestionCount int    `json:"questionCount"`
}

// Summary returns the answer-free description of the catalog.
func (c Catalog) Summary() CatalogSummary {
	return CatalogSummary{
		ID:            c.ID,
		Title:         c.Title,
		SkillID:       c.SkillID,
		Difficulty:    c.Difficulty,
		QuestionCount: len(c.Questions),
	}
}

// SessionOptions are fixed per session at construction time.
type SessionOptions struct {
	AllowAnswerChange bool `json:"allowAnswerChange"`
}

// OptionView is a labelled answer option (A, B, C...).
type OptionView struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// QuestionView is the render-ready form of the current question.
type QuestionView struct {
	ID            string       `json:"id"`
	Number        int          `json:"number"`
	Kind          Kind         `json:"kind"`
	Prompt        string       `json:"prompt"`
	Options       []OptionView `json:"options,omitempty"`
	ImageURL      string       `json:"imageUrl,omitempty"`
	Placeholder   string       `json:"placeholder,omitempty"`
	Hint          string       `json:"hint,omitempty"`
	Answer        string       `json:"answer,omitempty"`
	Answered      bool         `json:"answered"`
	Correct       bool         `json:"correct"`
	Flagged       bool         `json:"flagged"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
}

// QuestionResult is the per-question verdict derived by scoring.
type QuestionResult struct {
	QuestionID string `json:"questionId"`
	Answered   bool   `json:"answered"`
	Correct    bool   `json:"correct"`
}

// Page is the visible window of question selectors.
type Page struct {
	Index       int      `json:"index"`
	Size        int      `json:"size"`
	Count       int      `json:"count"`
	QuestionIDs []string `json:"questionIds"`
}

// Snapshot is the read-only view of a session handed to the presentation layer.
type Snapshot struct {
	SessionID         string            `json:"sessionId"`
	CatalogID         string            `json:"catalogId"`
	UserID            string            `json:"userId,omitempty"`
	Cursor            int               `json:"cursor"`
	Total             int               `json:"total"`
	CurrentQuestion   *QuestionView     `json:"currentQuestion,omitempty"`
	Answers           map[string]string `json:"answers"`
	ReviewFlags       []string          `json:"reviewFlags"`
	ElapsedSeconds    int               `json:"elapsedSeconds"`
	Elapsed           string            `json:"elapsed"`
	Score             int               `json:"score"`
	Results           []QuestionResult  `json:"results"`
	IsComplete        bool              `json:"isComplete"`
	Page              Page              `json:"page"`
	AllowAnswerChange bool              `json:"allowAnswerChange"`
	Strokes           int               `json:"strokes"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// Tool is the scratchpad instrument used for a stroke.
type Tool string

const (
	ToolPen    Tool = "pen"
	ToolEraser Tool = "eraser"
)

// Point is a position on the scratchpad.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one continuous pointer movement on the scratchpad.
type Stroke struct {
	Tool   Tool    `json:"tool"`
	Color  string  `json:"color,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Points []Point `json:"points"`
}
