package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNotAuthenticated is returned when no principal is present; a submission
// is never attempted in that case.
var ErrNotAuthenticated = errors.New("no authenticated principal")

// ErrDuplicateProfile is returned by profile insert when a row for the
// principal or email already exists.
var ErrDuplicateProfile = errors.New("profile already exists")

// ValidationError is a user-correctable input defect. It is always resolved
// locally and never reaches an external collaborator.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// UploadError wraps a single slot's artifact-store failure.
type UploadError struct {
	Kind SlotKind
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %s failed: %v", e.Kind, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// PartialUploadError aborts a submission when at least one slot failed to
// upload. It names every failed kind so the user can diagnose and retry.
type PartialUploadError struct {
	Failed []*UploadError
}

func (e *PartialUploadError) Error() string {
	kinds := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		kinds = append(kinds, string(f.Kind))
	}
	return fmt.Sprintf("artifact upload failed for: %s", strings.Join(kinds, ", "))
}

// FailedKinds lists the slot kinds that failed, in canonical order.
func (e *PartialUploadError) FailedKinds() []SlotKind {
	kinds := make([]SlotKind, 0, len(e.Failed))
	for _, f := range e.Failed {
		kinds = append(kinds, f.Kind)
	}
	return kinds
}

// CommitError means the persistence upsert failed after every upload
// succeeded. The uploaded artifacts stay orphaned in storage.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("verification commit failed: %v", e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// InvalidRateError rejects an ROI outside the accepted 5–24% band.
type InvalidRateError struct {
	ROIPercent decimal.Decimal
}

func (e *InvalidRateError) Error() string {
	return fmt.Sprintf("roi %s%% is outside the accepted range of 5%% to 24%%", e.ROIPercent.String())
}

// StaleOfferError rejects an offer whose EMI was computed from a rate other
// than the one being submitted.
type StaleOfferError struct {
	SubmittedEMI decimal.Decimal
	CurrentEMI   decimal.Decimal
}

func (e *StaleOfferError) Error() string {
	return fmt.Sprintf("submitted emi %s does not match emi %s for the current rate", e.SubmittedEMI.StringFixed(2), e.CurrentEMI.StringFixed(2))
}
