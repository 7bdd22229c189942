package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-session-service/internal/domain"
)

// ResultRecorder keeps completed sessions and skill progress in process memory.
// Used when no Postgres URL is configured.
type ResultRecorder struct {
	mu       sync.RWMutex
	results  map[string][]domain.SessionResult
	progress map[string]map[string]*domain.SkillProgress
}

func NewResultRecorder() *ResultRecorder {
	return &ResultRecorder{
		results:  make(map[string][]domain.SessionResult),
		progress: make(map[string]map[string]*domain.SkillProgress),
	}
}

func (r *ResultRecorder) Record(_ context.Context, result domain.SessionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	result.Attempts = append([]domain.AttemptRecord(nil), result.Attempts...)
	r.results[result.UserID] = append(r.results[result.UserID], result)

	if !result.TracksProgress() {
		return nil
	}
	skills, ok := r.progress[result.UserID]
	if !ok {
		skills = make(map[string]*domain.SkillProgress)
		r.progress[result.UserID] = skills
	}
	p, ok := skills[result.SkillID]
	if !ok {
		p = &domain.SkillProgress{}
		skills[result.SkillID] = p
	}
	p.Apply(result)
	return nil
}

func (r *ResultRecorder) Progress(_ context.Context, userID string) ([]domain.SkillProgress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.SkillProgress, 0, len(r.progress[userID]))
	for _, p := range r.progress[userID] {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SkillID < out[j].SkillID })
	return out, nil
}

func (r *ResultRecorder) RecentResults(_ context.Context, userID string, limit int) ([]domain.SessionResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.results[userID]
	out := make([]domain.SessionResult, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, all[i])
	}
	return out, nil
}
