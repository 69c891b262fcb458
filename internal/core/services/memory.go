package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driven"
	"github.com/custodia-labs/papersoul/internal/core/ports/driving"
	"github.com/custodia-labs/papersoul/internal/logger"
)

// Ensure MemoryService implements the interface.
var _ driving.MemoryService = (*MemoryService)(nil)

const (
	// minTermRunes is the shortest query term that counts for matching.
	minTermRunes = 2

	// maxQueryTerms caps how many query terms are matched against facts.
	maxQueryTerms = 5
)

// MemoryService stores and ranks long-term facts per (session, role).
type MemoryService struct {
	store driven.FactStore

	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewMemoryService creates a memory service over a fact store.
func NewMemoryService(store driven.FactStore) *MemoryService {
	return &MemoryService{
		store: store,
		now:   time.Now,
	}
}

// timestamp returns the current time, never earlier than the previous one.
func (m *MemoryService) timestamp() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.now()
	if t.Before(m.last) {
		t = m.last
	}
	m.last = t
	return t
}

// Insert stores a fact for (session, role). Blank facts are ignored.
func (m *MemoryService) Insert(ctx context.Context, sessionID, roleID, fact string) error {
	fact = strings.TrimSpace(fact)
	if fact == "" {
		return nil
	}

	err := m.store.InsertFact(ctx, domain.Fact{
		SessionID: sessionID,
		RoleID:    roleID,
		Text:      fact,
		CreatedAt: m.timestamp(),
	})
	if err != nil {
		return fmt.Errorf("%w: insert fact: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Retrieve returns up to k facts of (session, role) ranked for the query.
// A pair without facts yields an empty slice.
func (m *MemoryService) Retrieve(ctx context.Context, sessionID, roleID, query string, k int) ([]string, error) {
	if k <= 0 {
		k = domain.DefaultMemoryTopK
	}

	facts, err := m.store.ListFacts(ctx, sessionID, roleID)
	if err != nil {
		return nil, fmt.Errorf("%w: list facts: %w", domain.ErrRetrieval, err)
	}

	ranked := RankFacts(facts, query, k)
	logger.Debug("Memory: %d facts stored, %d selected for %q", len(facts), len(ranked), query)
	return ranked, nil
}

// Count returns the number of facts owned by (session, role).
func (m *MemoryService) Count(ctx context.Context, sessionID, roleID string) (int, error) {
	facts, err := m.store.ListFacts(ctx, sessionID, roleID)
	if err != nil {
		return 0, fmt.Errorf("%w: list facts: %w", domain.ErrRetrieval, err)
	}
	return len(facts), nil
}

// QueryTerms splits a query on whitespace, keeps terms of at least two
// characters and returns the first five.
func QueryTerms(query string) []string {
	terms := make([]string, 0, maxQueryTerms)
	for _, t := range strings.Fields(query) {
		if utf8.RuneCountInString(t) < minTermRunes {
			continue
		}
		terms = append(terms, t)
		if len(terms) == maxQueryTerms {
			break
		}
	}
	return terms
}

// RankFacts orders facts by the number of query terms they contain, newest
// first among equal scores, and returns the top k texts. Facts without any
// match still fill the result when fewer than k facts match.
func RankFacts(facts []domain.Fact, query string, k int) []string {
	if k <= 0 || len(facts) == 0 {
		return []string{}
	}

	terms := QueryTerms(query)

	type scored struct {
		fact  domain.Fact
		score int
	}
	ranked := make([]scored, len(facts))
	for i, f := range facts {
		score := 0
		for _, t := range terms {
			if strings.Contains(f.Text, t) {
				score++
			}
		}
		ranked[i] = scored{fact: f, score: score}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].fact.CreatedAt.After(ranked[j].fact.CreatedAt)
	})

	n := min(k, len(ranked))
	out := make([]string, n)
	for i := range n {
		out[i] = ranked[i].fact.Text
	}
	return out
}
