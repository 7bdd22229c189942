package app

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"quiz-session-service/internal/domain"
)

// SessionRepository abstracts where live sessions are kept (in-memory, Redis-backed, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
	List() []*Session
}

// CatalogRepository loads catalog content (from cache/backing store).
type CatalogRepository interface {
	GetCatalog(ctx context.Context, catalogID string) (domain.Catalog, error)
}

// ResultRecorder persists completed sessions and the derived skill progress.
type ResultRecorder interface {
	Record(ctx context.Context, result domain.SessionResult) error
	Progress(ctx context.Context, userID string) ([]domain.SkillProgress, error)
	RecentResults(ctx context.Context, userID string, limit int) ([]domain.SessionResult, error)
}

// StartRequest describes a new session.
type StartRequest struct {
	CatalogID         string
	UserID            string
	AllowAnswerChange bool
}

// SessionService contains the quiz session use cases.
type SessionService struct {
	sessions SessionRepository
	catalogs CatalogRepository
	results  ResultRecorder

	logger       logrus.FieldLogger
	pageSize     int
	tickInterval time.Duration
	allowChange  bool
	now          func() time.Time
	newID        func() string
}

// Option configures a SessionService.
type Option func(*SessionService)

// WithPageSize sets the question selector page size.
func WithPageSize(n int) Option { return func(s *SessionService) { s.pageSize = n } }

// WithTickInterval sets the clock interval; zero disables background ticking.
func WithTickInterval(d time.Duration) Option { return func(s *SessionService) { s.tickInterval = d } }

// WithAnswerChange lets every new session overwrite and clear answers, not
// only those that ask for it.
func WithAnswerChange(allow bool) Option { return func(s *SessionService) { s.allowChange = allow } }

// WithLogger sets the service logger.
func WithLogger(l logrus.FieldLogger) Option { return func(s *SessionService) { s.logger = l } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *SessionService) { s.now = now } }

// WithIDGenerator overrides session id generation.
func WithIDGenerator(gen func() string) Option { return func(s *SessionService) { s.newID = gen } }

// NewSessionService wires the use cases. results may be nil when nothing is recorded.
func NewSessionService(store SessionRepository, catalogs CatalogRepository, results ResultRecorder, opts ...Option) *SessionService {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &SessionService{
		sessions:     store,
		catalogs:     catalogs,
		results:      results,
		logger:       discard,
		pageSize:     DefaultPageSize,
		tickInterval: time.Second,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start loads the catalog and opens a new session with a running clock.
func (s *SessionService) Start(ctx context.Context, req StartRequest) (domain.Snapshot, error) {
	catalog, err := s.catalogs.GetCatalog(ctx, req.CatalogID)
	if err != nil {
		return domain.Snapshot{}, err
	}

	session := NewSessionWithClock(s.newID(), req.UserID, catalog,
		domain.SessionOptions{AllowAnswerChange: req.AllowAnswerChange || s.allowChange}, s.pageSize, s.now)
	s.sessions.Put(session)
	session.StartClock(s.tickInterval)

	s.logger.WithFields(logrus.Fields{
		"session_id": session.ID(),
		"catalog_id": catalog.ID,
		"user_id":    req.UserID,
	}).Info("session started")
	return session.Snapshot(), nil
}

// Catalog returns the answer-free summary of a catalog.
func (s *SessionService) Catalog(ctx context.Context, catalogID string) (domain.CatalogSummary, error) {
	catalog, err := s.catalogs.GetCatalog(ctx, catalogID)
	if err != nil {
		return domain.CatalogSummary{}, err
	}
	return catalog.Summary(), nil
}

func (s *SessionService) session(sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Snapshot returns the current view of a session.
func (s *SessionService) Snapshot(_ context.Context, sessionID string) (domain.Snapshot, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return session.Snapshot(), nil
}

// SubmitAnswer records an answer for the given question.
func (s *SessionService) SubmitAnswer(_ context.Context, sessionID, questionID, value string) (domain.Snapshot, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if err := session.Submit(questionID, value); err != nil {
		return session.Snapshot(), err
	}
	return session.Snapshot(), nil
}

// ClearAnswer returns a question to the unanswered state.
func (s *SessionService) ClearAnswer(_ context.Context, sessionID, questionID string) (domain.Snapshot, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if err := session.Clear(questionID); err != nil {
		return session.Snapshot(), err
	}
	return session.Snapshot(), nil
}

// ToggleReview flips the review flag of a question.
func (s *SessionService) ToggleReview(_ context.Context, sessionID, questionID string) (domain.Snapshot, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if err := session.ToggleReview(questionID); err != nil {
		return session.Snapshot(), err
	}
	return session.Snapshot(), nil
}

// GoTo moves the cursor; out-of-range indexes are ignored.
func (s *SessionService) GoTo(ctx context.Context, sessionID string, index int) (domain.Snapshot, error) {
	return s.navigate(ctx, sessionID, func(session *Session) (domain.SessionResult, bool) { return session.goTo(index) })
}

// Next advances the cursor, completing the session past the last question.
func (s *SessionService) Next(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	return s.navigate(ctx, sessionID, (*Session).next)
}

// Prev moves the cursor back one question.
func (s *SessionService) Prev(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	return s.navigate(ctx, sessionID, func(session *Session) (domain.SessionResult, bool) {
		session.Prev()
		return domain.SessionResult{}, false
	})
}

// Finish completes the session early.
func (s *SessionService) Finish(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	return s.navigate(ctx, sessionID, (*Session).finish)
}

func (s *SessionService) navigate(ctx context.Context, sessionID string, move func(*Session) (domain.SessionResult, bool)) (domain.Snapshot, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if result, done := move(session); done {
		s.completed(ctx, result)
	}
	return session.Snapshot(), nil
}

// completed hands the final result to the recorder. Recording failures are
// logged; the session itself is already complete.
func (s *SessionService) completed(ctx context.Context, result domain.SessionResult) {
	log := s.logger.WithFields(logrus.Fields{
		"session_id": result.SessionID,
		"catalog_id": result.CatalogID,
		"user_id":    result.UserID,
	})
	log.WithFields(logrus.Fields{
		"score":   result.TotalCorrect,
		"total":   result.TotalQuestions,
		"elapsed": FormatElapsed(result.ElapsedSeconds),
	}).Info("session complete")

	if s.results == nil {
		return
	}
	if err := s.results.Record(ctx, result); err != nil {
		log.WithError(err).Error("record session result")
	}
}

// SelectPage changes the visible selector page without moving the cursor.
func (s *SessionService) SelectPage(_ context.Context, sessionID string, page int) (domain.Snapshot, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	session.SelectPage(page)
	return session.Snapshot(), nil
}

// Restart resets the session, optionally switching to another catalog.
func (s *SessionService) Restart(ctx context.Context, sessionID, catalogID string) (domain.Snapshot, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	var next *domain.Catalog
	if catalogID != "" {
		catalog, err := s.catalogs.GetCatalog(ctx, catalogID)
		if err != nil {
			return session.Snapshot(), err
		}
		next = &catalog
	}
	session.Restart(next)
	session.StartClock(s.tickInterval)

	snap := session.Snapshot()
	s.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"catalog_id": snap.CatalogID,
	}).Info("session restarted")
	return snap, nil
}

// AddStroke appends a scratchpad stroke.
func (s *SessionService) AddStroke(_ context.Context, sessionID string, stroke domain.Stroke) (domain.Snapshot, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if err := session.AddStroke(stroke); err != nil {
		return session.Snapshot(), err
	}
	return session.Snapshot(), nil
}

// ClearStrokes wipes the scratchpad.
func (s *SessionService) ClearStrokes(_ context.Context, sessionID string) (domain.Snapshot, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	session.ClearStrokes()
	return session.Snapshot(), nil
}

// Strokes returns the scratchpad content.
func (s *SessionService) Strokes(_ context.Context, sessionID string) ([]domain.Stroke, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return session.Strokes(), nil
}

// Subscribe returns a channel that receives snapshots for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *SessionService) Subscribe(_ context.Context, sessionID string) (<-chan domain.Snapshot, func(), error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Discard stops the session clock and forgets the session.
func (s *SessionService) Discard(_ context.Context, sessionID string) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	session.Discard()
	s.sessions.Delete(sessionID)
	s.logger.WithField("session_id", sessionID).Info("session discarded")
	return nil
}

// ExpireIdle discards sessions without user activity for longer than maxIdle
// and returns how many were removed.
func (s *SessionService) ExpireIdle(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	cutoff := s.now().Add(-maxIdle)
	expired := 0
	for _, session := range s.sessions.List() {
		if session.LastActive().After(cutoff) {
			continue
		}
		session.Discard()
		s.sessions.Delete(session.ID())
		expired++
	}
	if expired > 0 {
		s.logger.WithField("count", expired).Info("expired idle sessions")
	}
	return expired
}

// Progress lists a learner's skill progress.
func (s *SessionService) Progress(ctx context.Context, userID string) ([]domain.SkillProgress, error) {
	if s.results == nil {
		return []domain.SkillProgress{}, nil
	}
	return s.results.Progress(ctx, userID)
}

// RecentResults lists a learner's latest completed sessions, newest first.
func (s *SessionService) RecentResults(ctx context.Context, userID string, limit int) ([]domain.SessionResult, error) {
	if s.results == nil {
		return []domain.SessionResult{}, nil
	}
	if limit <= 0 {
		limit = 10
	}
	return s.results.RecentResults(ctx, userID, limit)
}
