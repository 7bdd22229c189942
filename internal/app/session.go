package app

import (
	"sync"
	"time"

	"quiz-session-service/internal/domain"
)

// DefaultPageSize is the number of question selectors shown per page.
const DefaultPageSize = 10

// Session is one learner's run through a catalog: the navigation cursor,
// answer store, review flags, clock and scratchpad. All methods are safe for
// concurrent use; every mutation is broadcast to subscribers.
type Session struct {
	id       string
	userID   string
	opts     domain.SessionOptions
	pageSize int
	now      func() time.Time

	mu           sync.RWMutex
	catalog      domain.Catalog
	positions    map[string]int
	cursor       int
	page         int
	answers      map[string]string
	reviewFlags  map[string]struct{}
	elapsed      int
	startedAt    time.Time
	endedAt      time.Time
	lastActive   time.Time
	strokes      []domain.Stroke
	discarded    bool
	generation   int
	stop         chan struct{}
	clockRunning bool
	subscribers  map[chan domain.Snapshot]struct{}
}

// NewSession creates a session over catalog. The clock is not started; call
// StartClock or deliver ticks with Tick.
func NewSession(id, userID string, catalog domain.Catalog, opts domain.SessionOptions, pageSize int) *Session {
	return NewSessionWithClock(id, userID, catalog, opts, pageSize, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(id, userID string, catalog domain.Catalog, opts domain.SessionOptions, pageSize int, now func() time.Time) *Session {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	s := &Session{
		id:          id,
		userID:      userID,
		opts:        opts,
		pageSize:    pageSize,
		now:         now,
		subscribers: make(map[chan domain.Snapshot]struct{}),
	}
	s.resetLocked(catalog)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// resetLocked installs catalog and returns the session to its initial state.
func (s *Session) resetLocked(catalog domain.Catalog) {
	s.catalog = copyCatalog(catalog)
	s.positions = make(map[string]int, len(s.catalog.Questions))
	for i, q := range s.catalog.Questions {
		s.positions[q.ID] = i
	}
	s.cursor = 0
	s.page = 0
	s.answers = make(map[string]string)
	s.reviewFlags = make(map[string]struct{})
	s.elapsed = 0
	s.strokes = nil
	s.startedAt = s.now()
	s.endedAt = time.Time{}
	s.lastActive = s.startedAt
	s.generation++
	s.stop = make(chan struct{})
	s.clockRunning = false
}

func copyCatalog(c domain.Catalog) domain.Catalog {
	out := c
	out.Questions = make([]domain.Question, len(c.Questions))
	for i, q := range c.Questions {
		q.Options = append([]string(nil), q.Options...)
		out.Questions[i] = q
	}
	return out
}

func (s *Session) isCompleteLocked() bool {
	return s.cursor == len(s.catalog.Questions)
}

// IsComplete reports whether the completion gate has fired.
func (s *Session) IsComplete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isCompleteLocked()
}

func (s *Session) touchLocked() {
	s.lastActive = s.now()
}

// LastActive returns the time of the last user action.
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

// GoTo moves the cursor to index when 0 <= index <= len(catalog). Moving to
// len(catalog) completes the session. Out-of-range indexes and navigation
// after completion are ignored. It reports whether this call completed the
// session.
func (s *Session) GoTo(index int) bool {
	_, done := s.goTo(index)
	return done
}

// goTo is GoTo returning the result of the run it completed, if any.
func (s *Session) goTo(index int) (domain.SessionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goToLocked(index)
}

func (s *Session) goToLocked(index int) (domain.SessionResult, bool) {
	if s.discarded || s.isCompleteLocked() {
		return domain.SessionResult{}, false
	}
	if index < 0 || index > len(s.catalog.Questions) {
		return domain.SessionResult{}, false
	}
	s.touchLocked()
	if index == len(s.catalog.Questions) {
		return s.completeLocked()
	}
	s.cursor = index
	s.syncPageLocked()
	s.broadcastLocked()
	return domain.SessionResult{}, false
}

// Next advances one question; past the last question it completes the session.
func (s *Session) Next() bool {
	_, done := s.next()
	return done
}

func (s *Session) next() (domain.SessionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goToLocked(s.cursor + 1)
}

// Prev moves back one question, saturating at the first.
func (s *Session) Prev() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor > 0 {
		s.goToLocked(s.cursor - 1)
	}
}

// Finish completes the session regardless of the cursor position.
func (s *Session) Finish() bool {
	_, done := s.finish()
	return done
}

func (s *Session) finish() (domain.SessionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return domain.SessionResult{}, false
	}
	s.touchLocked()
	return s.completeLocked()
}

// completeLocked fires the completion gate once: the cursor moves to the
// complete sentinel, the clock stops and answers become read-only. The
// result of the completed run is taken under the same lock so a later
// Restart cannot replace it.
func (s *Session) completeLocked() (domain.SessionResult, bool) {
	if s.isCompleteLocked() {
		return domain.SessionResult{}, false
	}
	s.cursor = len(s.catalog.Questions)
	s.endedAt = s.now()
	s.stopClockLocked()
	s.syncPageLocked()
	s.broadcastLocked()
	return s.resultLocked(), true
}

// Restart discards all progress and starts over on catalog. A nil catalog
// reuses the current one. The clock must be started again by the caller.
func (s *Session) Restart(catalog *domain.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return
	}
	s.stopClockLocked()
	next := s.catalog
	if catalog != nil {
		next = *catalog
	}
	s.resetLocked(next)
	s.broadcastLocked()
}

// SelectPage shows the selector window for page without moving the cursor.
func (s *Session) SelectPage(page int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded || page < 0 || page >= s.pageCountLocked() {
		return false
	}
	s.touchLocked()
	s.page = page
	s.broadcastLocked()
	return true
}

func (s *Session) pageCountLocked() int {
	n := len(s.catalog.Questions)
	return (n + s.pageSize - 1) / s.pageSize
}

func (s *Session) syncPageLocked() {
	page := s.cursor / s.pageSize
	if last := s.pageCountLocked() - 1; page > last {
		page = last
	}
	if page < 0 {
		page = 0
	}
	s.page = page
}

func (s *Session) question(questionID string) (domain.Question, bool) {
	i, ok := s.positions[questionID]
	if !ok {
		return domain.Question{}, false
	}
	return s.catalog.Questions[i], true
}

// Submit records value as the answer to questionID.
func (s *Session) Submit(questionID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discarded {
		return domain.ErrSessionNotFound
	}
	q, ok := s.question(questionID)
	if !ok {
		return domain.ErrQuestionNotFound
	}
	if s.isCompleteLocked() {
		return domain.ErrSessionComplete
	}
	if q.Kind == domain.KindSingleChoice && !q.HasOption(value) {
		return domain.ErrOptionNotFound
	}
	if _, answered := s.answers[questionID]; answered && !s.opts.AllowAnswerChange {
		return domain.ErrAnswerLocked
	}
	s.touchLocked()
	s.answers[questionID] = value
	s.broadcastLocked()
	return nil
}

// Clear returns questionID to the unanswered state.
func (s *Session) Clear(questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discarded {
		return domain.ErrSessionNotFound
	}
	if _, ok := s.question(questionID); !ok {
		return domain.ErrQuestionNotFound
	}
	if s.isCompleteLocked() {
		return domain.ErrSessionComplete
	}
	if !s.opts.AllowAnswerChange {
		if _, answered := s.answers[questionID]; answered {
			return domain.ErrAnswerLocked
		}
	}
	s.touchLocked()
	delete(s.answers, questionID)
	s.broadcastLocked()
	return nil
}

// Answer returns the recorded answer for questionID and whether one exists.
func (s *Session) Answer(questionID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.answers[questionID]
	return v, ok
}

// ToggleReview flips the review flag on questionID.
func (s *Session) ToggleReview(questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discarded {
		return domain.ErrSessionNotFound
	}
	if _, ok := s.question(questionID); !ok {
		return domain.ErrQuestionNotFound
	}
	s.touchLocked()
	if _, flagged := s.reviewFlags[questionID]; flagged {
		delete(s.reviewFlags, questionID)
	} else {
		s.reviewFlags[questionID] = struct{}{}
	}
	s.broadcastLocked()
	return nil
}

// AddStroke appends a stroke to the scratchpad.
func (s *Session) AddStroke(stroke domain.Stroke) error {
	if len(stroke.Points) == 0 {
		return domain.ErrInvalidStroke
	}
	switch stroke.Tool {
	case domain.ToolPen, domain.ToolEraser:
	default:
		return domain.ErrInvalidStroke
	}
	stroke.Points = append([]domain.Point(nil), stroke.Points...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return domain.ErrSessionNotFound
	}
	s.touchLocked()
	s.strokes = append(s.strokes, stroke)
	s.broadcastLocked()
	return nil
}

// ClearStrokes wipes the scratchpad.
func (s *Session) ClearStrokes() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return
	}
	s.touchLocked()
	s.strokes = nil
	s.broadcastLocked()
}

// Strokes returns the scratchpad strokes in drawing order.
func (s *Session) Strokes() []domain.Stroke {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Stroke(nil), s.strokes...)
}

// Discard stops the clock and closes every subscription. A discarded session
// ignores navigation and rejects answer, flag and stroke changes with
// domain.ErrSessionNotFound.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return
	}
	s.discarded = true
	s.stopClockLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// Snapshot returns the current read-only view.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Result summarises the session for recording. It is meaningful once the
// session is complete.
func (s *Session) Result() domain.SessionResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resultLocked()
}

func (s *Session) resultLocked() domain.SessionResult {
	card := Score(s.catalog, s.answers)
	result := domain.SessionResult{
		SessionID:      s.id,
		Run:            s.generation,
		CatalogID:      s.catalog.ID,
		UserID:         s.userID,
		SkillID:        s.catalog.SkillID,
		Difficulty:     s.catalog.Difficulty,
		StartedAt:      s.startedAt,
		EndedAt:        s.endedAt,
		ElapsedSeconds: s.elapsed,
		TotalQuestions: card.Total,
		TotalCorrect:   card.Score,
		Attempts:       make([]domain.AttemptRecord, 0, len(s.catalog.Questions)),
	}
	for i, q := range s.catalog.Questions {
		answer := s.answers[q.ID]
		verdict := card.Results[i]
		if verdict.Answered {
			result.TotalAnswered++
		}
		result.Attempts = append(result.Attempts, domain.AttemptRecord{
			Position:      i,
			QuestionID:    q.ID,
			Prompt:        q.Prompt,
			CorrectAnswer: q.CorrectAnswer,
			StudentAnswer: answer,
			Answered:      verdict.Answered,
			Correct:       verdict.Correct,
		})
	}
	return result
}

func (s *Session) subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 8)

	s.mu.Lock()
	if s.discarded {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	// the buffer is empty, so this never blocks
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() {
	if len(s.subscribers) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// slow subscriber: replace its oldest pending snapshot
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) snapshotLocked() domain.Snapshot {
	card := Score(s.catalog, s.answers)
	complete := s.isCompleteLocked()

	answers := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	flags := make([]string, 0, len(s.reviewFlags))
	for _, q := range s.catalog.Questions {
		if _, ok := s.reviewFlags[q.ID]; ok {
			flags = append(flags, q.ID)
		}
	}

	snap := domain.Snapshot{
		SessionID:         s.id,
		CatalogID:         s.catalog.ID,
		UserID:            s.userID,
		Cursor:            s.cursor,
		Total:             len(s.catalog.Questions),
		Answers:           answers,
		ReviewFlags:       flags,
		ElapsedSeconds:    s.elapsed,
		Elapsed:           FormatElapsed(s.elapsed),
		Score:             card.Score,
		Results:           card.Results,
		IsComplete:        complete,
		Page:              s.pageLocked(),
		AllowAnswerChange: s.opts.AllowAnswerChange,
		Strokes:           len(s.strokes),
		UpdatedAt:         s.now(),
	}
	if !complete {
		view := s.viewLocked(s.cursor, card.Results[s.cursor])
		snap.CurrentQuestion = &view
	}
	return snap
}

func (s *Session) pageLocked() domain.Page {
	start := s.page * s.pageSize
	end := start + s.pageSize
	if end > len(s.catalog.Questions) {
		end = len(s.catalog.Questions)
	}
	ids := make([]string, 0, end-start)
	for _, q := range s.catalog.Questions[start:end] {
		ids = append(ids, q.ID)
	}
	return domain.Page{
		Index:       s.page,
		Size:        s.pageSize,
		Count:       s.pageCountLocked(),
		QuestionIDs: ids,
	}
}

func (s *Session) viewLocked(index int, verdict domain.QuestionResult) domain.QuestionView {
	q := s.catalog.Questions[index]
	_, flagged := s.reviewFlags[q.ID]
	view := domain.QuestionView{
		ID:          q.ID,
		Number:      index + 1,
		Kind:        q.Kind,
		Prompt:      q.Prompt,
		ImageURL:    q.ImageURL,
		Placeholder: q.Placeholder,
		Hint:        q.Hint,
		Answer:      s.answers[q.ID],
		Answered:    verdict.Answered,
		Correct:     verdict.Correct,
		Flagged:     flagged,
	}
	if verdict.Answered && !s.opts.AllowAnswerChange {
		// locked answers reveal the expected value
		view.CorrectAnswer = q.CorrectAnswer
	}
	for i, opt := range q.Options {
		view.Options = append(view.Options, domain.OptionView{Label: optionLabel(i), Value: opt})
	}
	return view
}

// optionLabel maps 0, 1, 2... to A, B, C... and AA, AB... past Z.
func optionLabel(i int) string {
	label := ""
	for i >= 0 {
		label = string(rune('A'+i%26)) + label
		i = i/26 - 1
	}
	return label
}
