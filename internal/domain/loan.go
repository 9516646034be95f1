package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanRequest is a borrower's funding request. Immutable once created.
type LoanRequest struct {
	ID           string
	BorrowerID   string
	Amount       decimal.Decimal
	TenureMonths int
	CreatedAt    time.Time
}

// OfferStatus tracks a lender offer's lifecycle.
type OfferStatus string

const (
	OfferDraft     OfferStatus = "draft"
	OfferInvalid   OfferStatus = "invalid"
	OfferSubmitted OfferStatus = "submitted"
)

// LoanOffer is a lender's priced response to a loan request. EMI is defined
// only while the rate sits inside the accepted band.
type LoanOffer struct {
	ID            string
	LoanRequestID string
	LenderID      string
	ROIPercent    decimal.Decimal
	EMI           decimal.Decimal
	Status        OfferStatus
	CreatedAt     time.Time
}
