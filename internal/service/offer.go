package service

import (
	"context"
	"fmt"
	"time"

	"lending_gateway/internal/domain"
	"lending_gateway/internal/messaging"
	"lending_gateway/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Accepted ROI band for lender offers.
var (
	roiFloor   = decimal.NewFromInt(5)
	roiCeiling = decimal.NewFromInt(24)
)

var one = decimal.NewFromInt(1)

// ComputeEMI evaluates the reducing-balance amortization formula
//
//	emi = amount * r * (1+r)^n / ((1+r)^n - 1), r = roi/1200
//
// rounded half-up to two decimals. The rate floor of 5% keeps r strictly
// positive, so the formula's r=0 singularity cannot be reached.
func ComputeEMI(amount decimal.Decimal, tenureMonths int, roiPercent decimal.Decimal) (decimal.Decimal, error) {
	if amount.Sign() <= 0 {
		return decimal.Zero, &domain.ValidationError{Field: "amount", Reason: "loan amount must be positive"}
	}
	if tenureMonths <= 0 {
		return decimal.Zero, &domain.ValidationError{Field: "tenure_months", Reason: "tenure must be positive"}
	}
	if roiPercent.LessThan(roiFloor) || roiPercent.GreaterThan(roiCeiling) {
		return decimal.Zero, &domain.InvalidRateError{ROIPercent: roiPercent}
	}

	monthlyRate := roiPercent.Div(decimal.NewFromInt(1200))
	growth := one.Add(monthlyRate).Pow(decimal.NewFromInt(int64(tenureMonths)))
	emi := amount.Mul(monthlyRate).Mul(growth).Div(growth.Sub(one))
	return emi.Round(2), nil
}

// OfferService handles borrower loan requests and lender offers.
type OfferService interface {
	ComputeEMI(amount decimal.Decimal, tenureMonths int, roiPercent decimal.Decimal) (decimal.Decimal, error)
	SubmitOffer(ctx context.Context, loanRequestID, lenderID string, roiPercent, lastComputedEMI decimal.Decimal) (*domain.LoanOffer, error)
	CreateLoanRequest(ctx context.Context, borrowerID string, amount decimal.Decimal, tenureMonths int) (*domain.LoanRequest, error)
	ListOpenRequests(ctx context.Context, limit *int32, offset *int32) ([]*domain.LoanRequest, error)
}

type offerService struct {
	loans  repository.LoanRepository
	events messaging.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

func NewOfferService(loans repository.LoanRepository, events messaging.EventPublisher, logger *zap.Logger) OfferService {
	return &offerService{
		loans:  loans,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

func (s *offerService) ComputeEMI(amount decimal.Decimal, tenureMonths int, roiPercent decimal.Decimal) (decimal.Decimal, error) {
	return ComputeEMI(amount, tenureMonths, roiPercent)
}

// SubmitOffer re-validates the rate at submit time and rejects an EMI that
// was not computed from the rate being submitted, so a stale figure can
// never be sent alongside a since-changed rate.
func (s *offerService) SubmitOffer(ctx context.Context, loanRequestID, lenderID string, roiPercent, lastComputedEMI decimal.Decimal) (*domain.LoanOffer, error) {
	if lenderID == "" {
		return nil, domain.ErrNotAuthenticated
	}

	req, err := s.loans.GetRequest(ctx, loanRequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load loan request: %w", err)
	}
	if req == nil {
		return nil, &domain.ValidationError{Field: "loan_request_id", Reason: fmt.Sprintf("loan request not found: %s", loanRequestID)}
	}

	currentEMI, err := ComputeEMI(req.Amount, req.TenureMonths, roiPercent)
	if err != nil {
		return nil, err
	}
	if !currentEMI.Equal(lastComputedEMI) {
		return nil, &domain.StaleOfferError{SubmittedEMI: lastComputedEMI, CurrentEMI: currentEMI}
	}

	offer := &domain.LoanOffer{
		ID:            uuid.New().String(),
		LoanRequestID: req.ID,
		LenderID:      lenderID,
		ROIPercent:    roiPercent,
		EMI:           currentEMI,
		Status:        domain.OfferSubmitted,
		CreatedAt:     s.now(),
	}

	if err := s.loans.SaveOffer(ctx, offer); err != nil {
		return nil, fmt.Errorf("failed to save offer: %w", err)
	}

	if err := s.events.PublishOfferSubmitted(ctx, offer); err != nil {
		s.logger.Error("failed to publish offer submitted event",
			zap.String("offer_id", offer.ID),
			zap.Error(err))
	}

	s.logger.Info("offer submitted",
		zap.String("offer_id", offer.ID),
		zap.String("loan_request_id", req.ID),
		zap.String("roi_percent", roiPercent.String()))
	return offer, nil
}

func (s *offerService) CreateLoanRequest(ctx context.Context, borrowerID string, amount decimal.Decimal, tenureMonths int) (*domain.LoanRequest, error) {
	if borrowerID == "" {
		return nil, domain.ErrNotAuthenticated
	}
	if amount.Sign() <= 0 {
		return nil, &domain.ValidationError{Field: "amount", Reason: "loan amount must be positive"}
	}
	if tenureMonths <= 0 {
		return nil, &domain.ValidationError{Field: "tenure_months", Reason: "tenure must be positive"}
	}

	req := &domain.LoanRequest{
		ID:           uuid.New().String(),
		BorrowerID:   borrowerID,
		Amount:       amount,
		TenureMonths: tenureMonths,
		CreatedAt:    s.now(),
	}

	if err := s.loans.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create loan request: %w", err)
	}

	s.logger.Info("loan request created",
		zap.String("request_id", req.ID),
		zap.String("amount", amount.String()),
		zap.Int("tenure_months", tenureMonths))
	return req, nil
}

func (s *offerService) ListOpenRequests(ctx context.Context, limit *int32, offset *int32) ([]*domain.LoanRequest, error) {
	if limit != nil && *limit < 0 {
		return nil, &domain.ValidationError{Field: "limit", Reason: "limit must be non-negative"}
	}
	if offset != nil && *offset < 0 {
		return nil, &domain.ValidationError{Field: "offset", Reason: "offset must be non-negative"}
	}

	return s.loans.ListOpenRequests(ctx, limit, offset)
}
