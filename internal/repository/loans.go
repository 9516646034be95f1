package repository

import (
	"context"
	"fmt"
	"time"

	"lending_gateway/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LoanRepository persists borrower loan requests and submitted lender offers.
type LoanRepository interface {
	CreateRequest(ctx context.Context, req *domain.LoanRequest) error
	GetRequest(ctx context.Context, id string) (*domain.LoanRequest, error)
	ListOpenRequests(ctx context.Context, limit *int32, offset *int32) ([]*domain.LoanRequest, error)
	SaveOffer(ctx context.Context, offer *domain.LoanOffer) error
}

type loanRepository struct {
	db     DB
	logger *zap.Logger
}

func NewLoanRepository(db DB, logger *zap.Logger) LoanRepository {
	return &loanRepository{
		db:     db,
		logger: logger,
	}
}

func (r *loanRepository) CreateRequest(ctx context.Context, req *domain.LoanRequest) error {
	query := `
		INSERT INTO loan_requests (id, borrower_id, amount, tenure_months, created_at)
		VALUES ($1, $2, $3::numeric, $4, $5)
	`

	_, err := r.db.Exec(ctx, query,
		req.ID, req.BorrowerID, req.Amount.String(), req.TenureMonths, req.CreatedAt)
	if err != nil {
		r.logger.Error("failed to create loan request", zap.Error(err), zap.String("request_id", req.ID))
		return fmt.Errorf("failed to create loan request: %w", err)
	}

	return nil
}

func (r *loanRepository) GetRequest(ctx context.Context, id string) (*domain.LoanRequest, error) {
	query := `
		SELECT id, borrower_id, amount::text, tenure_months, created_at
		FROM loan_requests
		WHERE id = $1
	`

	req, err := scanLoanRequest(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		r.logger.Error("failed to get loan request", zap.Error(err), zap.String("request_id", id))
		return nil, fmt.Errorf("failed to get loan request: %w", err)
	}

	return req, nil
}

func (r *loanRepository) ListOpenRequests(ctx context.Context, limit *int32, offset *int32) ([]*domain.LoanRequest, error) {
	query := `
		SELECT id, borrower_id, amount::text, tenure_months, created_at
		FROM loan_requests
		ORDER BY created_at DESC
	`

	if limit != nil || offset != nil {
		if limit != nil && offset != nil {
			query += fmt.Sprintf(" LIMIT %d OFFSET %d", *limit, *offset)
		} else if limit != nil {
			query += fmt.Sprintf(" LIMIT %d", *limit)
		} else if offset != nil {
			query += fmt.Sprintf(" OFFSET %d", *offset)
		}
	}

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("failed to list loan requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list loan requests: %w", err)
	}
	defer rows.Close()

	var requests []*domain.LoanRequest
	for rows.Next() {
		req, err := scanLoanRequest(rows)
		if err != nil {
			r.logger.Error("failed to scan loan request", zap.Error(err))
			continue
		}
		requests = append(requests, req)
	}

	return requests, nil
}

func (r *loanRepository) SaveOffer(ctx context.Context, offer *domain.LoanOffer) error {
	query := `
		INSERT INTO loan_offers (id, loan_request_id, lender_id, roi_percent, emi, status, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		offer.ID, offer.LoanRequestID, offer.LenderID,
		offer.ROIPercent.String(), offer.EMI.String(),
		string(offer.Status), offer.CreatedAt)
	if err != nil {
		r.logger.Error("failed to save loan offer", zap.Error(err), zap.String("offer_id", offer.ID))
		return fmt.Errorf("failed to save loan offer: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoanRequest(row rowScanner) (*domain.LoanRequest, error) {
	var req domain.LoanRequest
	var amount string
	var createdAt time.Time
	if err := row.Scan(&req.ID, &req.BorrowerID, &amount, &req.TenureMonths, &createdAt); err != nil {
		return nil, err
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}
	req.Amount = parsed
	req.CreatedAt = createdAt
	return &req, nil
}
