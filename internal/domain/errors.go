package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a session id is unknown or was discarded.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrCatalogNotFound indicates the catalog content could not be loaded.
	ErrCatalogNotFound = errors.New("catalog not found")
	// ErrQuestionNotFound indicates a question id is not part of the session catalog.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a single-choice answer is not one of the options.
	ErrOptionNotFound = errors.New("option not found")
	// ErrAnswerLocked is returned when the session does not allow changing a recorded answer.
	ErrAnswerLocked = errors.New("answer already recorded")
	// ErrSessionComplete is returned for answer changes after the session finished.
	ErrSessionComplete = errors.New("quiz session is complete")
	// ErrInvalidStroke rejects scratchpad strokes without points or with an unknown tool.
	ErrInvalidStroke = errors.New("invalid stroke")
)
