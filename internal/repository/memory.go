package repository

import (
	"context"
	"sort"
	"sync"

	"lending_gateway/internal/domain"
)

// MemoryProfileRepository is an in-memory ProfileRepository for tests and
// local development without Postgres.
type MemoryProfileRepository struct {
	mu            sync.RWMutex
	profiles      map[string]domain.Principal          // keyed by principal id
	verifications map[string]domain.VerificationRecord // keyed by principal id
}

func NewMemoryProfileRepository() *MemoryProfileRepository {
	return &MemoryProfileRepository{
		profiles:      make(map[string]domain.Principal),
		verifications: make(map[string]domain.VerificationRecord),
	}
}

func (r *MemoryProfileRepository) Insert(ctx context.Context, p *domain.Principal) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[p.ID]; exists {
		return domain.ErrDuplicateProfile
	}
	for _, existing := range r.profiles {
		if existing.Email == p.Email {
			return domain.ErrDuplicateProfile
		}
	}
	r.profiles[p.ID] = *p
	return nil
}

func (r *MemoryProfileRepository) GetByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.profiles {
		if p.Email == email {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryProfileRepository) UpsertVerification(ctx context.Context, rec *domain.VerificationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.verifications[rec.PrincipalID] = *rec
	return nil
}

func (r *MemoryProfileRepository) GetVerification(ctx context.Context, principalID string) (*domain.VerificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.verifications[principalID]
	if !ok {
		return nil, nil
	}
	cp := rec
	return &cp, nil
}

// MemoryLoanRepository is an in-memory LoanRepository.
type MemoryLoanRepository struct {
	mu       sync.RWMutex
	requests map[string]domain.LoanRequest
	offers   map[string]domain.LoanOffer
}

func NewMemoryLoanRepository() *MemoryLoanRepository {
	return &MemoryLoanRepository{
		requests: make(map[string]domain.LoanRequest),
		offers:   make(map[string]domain.LoanOffer),
	}
}

func (r *MemoryLoanRepository) CreateRequest(ctx context.Context, req *domain.LoanRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[req.ID] = *req
	return nil
}

func (r *MemoryLoanRepository) GetRequest(ctx context.Context, id string) (*domain.LoanRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, nil
	}
	cp := req
	return &cp, nil
}

func (r *MemoryLoanRepository) ListOpenRequests(ctx context.Context, limit *int32, offset *int32) ([]*domain.LoanRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*domain.LoanRequest, 0, len(r.requests))
	for _, req := range r.requests {
		cp := req
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	start := 0
	if offset != nil && int(*offset) < len(all) {
		start = int(*offset)
	} else if offset != nil {
		start = len(all)
	}
	end := len(all)
	if limit != nil && start+int(*limit) < end {
		end = start + int(*limit)
	}
	return all[start:end], nil
}

func (r *MemoryLoanRepository) SaveOffer(ctx context.Context, offer *domain.LoanOffer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers[offer.ID] = *offer
	return nil
}

// GetOffer returns a stored offer, or nil when absent.
func (r *MemoryLoanRepository) GetOffer(id string) *domain.LoanOffer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	offer, ok := r.offers[id]
	if !ok {
		return nil
	}
	cp := offer
	return &cp
}
