package domain

import (
	"fmt"
	"time"
)

// Principal is the authenticated identity on whose behalf verification and
// offer actions run. It is issued by the identity provider; the gateway only
// reads it.
type Principal struct {
	ID       string
	FullName string
	Email    string
	Phone    string
}

// IDType enumerates the accepted identity document types.
type IDType string

const (
	IDTypeAadhaar  IDType = "aadhaar"
	IDTypePassport IDType = "passport"
	IDTypeLicense  IDType = "license"
)

// ParseIDType validates a raw id type value.
func ParseIDType(raw string) (IDType, error) {
	switch IDType(raw) {
	case IDTypeAadhaar, IDTypePassport, IDTypeLicense:
		return IDType(raw), nil
	}
	return "", &ValidationError{Field: "id_type", Reason: fmt.Sprintf("unknown id type %q", raw)}
}

// SlotKind names one of the four document-upload positions of a
// verification request.
type SlotKind string

const (
	SlotKindIDProof      SlotKind = "id_proof"
	SlotKindAddressProof SlotKind = "address_proof"
	SlotKindIncomeProof  SlotKind = "income_proof"
	SlotKindPhoto        SlotKind = "photo"
)

// SlotKinds returns the fixed set of artifact slots in canonical order.
func SlotKinds() []SlotKind {
	return []SlotKind{SlotKindIDProof, SlotKindAddressProof, SlotKindIncomeProof, SlotKindPhoto}
}

// SlotStatus tracks the upload lifecycle of a single artifact slot.
type SlotStatus string

const (
	SlotEmpty     SlotStatus = "empty"
	SlotSelected  SlotStatus = "selected"
	SlotUploading SlotStatus = "uploading"
	SlotUploaded  SlotStatus = "uploaded"
	SlotFailed    SlotStatus = "failed"
)

// ArtifactSlot is one named document position. Its status only moves forward
// along empty → selected → uploading → uploaded; failed is terminal for the
// attempt and can only be cleared by a fresh resubmission.
type ArtifactSlot struct {
	Kind      SlotKind
	Filename  string
	Payload   []byte
	RemoteURL string
	Status    SlotStatus
	Err       error
}

// HasPayload reports whether the user attached a file to this slot.
func (s *ArtifactSlot) HasPayload() bool {
	return len(s.Payload) > 0
}

// Select attaches a file to the slot. Re-selecting before upload starts
// replaces the previous choice.
func (s *ArtifactSlot) Select(filename string, payload []byte) error {
	if s.Status != SlotEmpty && s.Status != SlotSelected {
		return fmt.Errorf("slot %s: cannot select file in status %s", s.Kind, s.Status)
	}
	if filename == "" {
		return &ValidationError{Field: string(s.Kind), Reason: "artifact filename cannot be empty"}
	}
	if len(payload) == 0 {
		return &ValidationError{Field: string(s.Kind), Reason: "artifact payload cannot be empty"}
	}
	s.Filename = filename
	s.Payload = payload
	s.Status = SlotSelected
	return nil
}

// BeginUpload marks the slot as in flight.
func (s *ArtifactSlot) BeginUpload() error {
	if s.Status != SlotSelected {
		return fmt.Errorf("slot %s: cannot begin upload in status %s", s.Kind, s.Status)
	}
	s.Status = SlotUploading
	return nil
}

// MarkUploaded records the public URL of the stored artifact.
func (s *ArtifactSlot) MarkUploaded(url string) error {
	if s.Status != SlotUploading {
		return fmt.Errorf("slot %s: cannot mark uploaded in status %s", s.Kind, s.Status)
	}
	s.RemoteURL = url
	s.Status = SlotUploaded
	return nil
}

// MarkFailed records the upload failure. Failed is terminal for this attempt.
func (s *ArtifactSlot) MarkFailed(err error) error {
	if s.Status != SlotUploading {
		return fmt.Errorf("slot %s: cannot mark failed in status %s", s.Kind, s.Status)
	}
	s.Err = err
	s.Status = SlotFailed
	return nil
}

// VerificationRequest holds the identity fields and the four artifact slots
// collected by the wizard. One request lives for one wizard session and is
// discarded once a submission attempt resolves.
type VerificationRequest struct {
	IDType         IDType
	IDNumber       string
	PANNumber      string
	CurrentAddress string

	IDProof      ArtifactSlot
	AddressProof ArtifactSlot
	IncomeProof  ArtifactSlot
	Photo        ArtifactSlot
}

// NewVerificationRequest returns a request with all four slots empty.
func NewVerificationRequest() *VerificationRequest {
	return &VerificationRequest{
		IDProof:      ArtifactSlot{Kind: SlotKindIDProof, Status: SlotEmpty},
		AddressProof: ArtifactSlot{Kind: SlotKindAddressProof, Status: SlotEmpty},
		IncomeProof:  ArtifactSlot{Kind: SlotKindIncomeProof, Status: SlotEmpty},
		Photo:        ArtifactSlot{Kind: SlotKindPhoto, Status: SlotEmpty},
	}
}

// Slot returns the slot for the given kind.
func (r *VerificationRequest) Slot(kind SlotKind) (*ArtifactSlot, error) {
	switch kind {
	case SlotKindIDProof:
		return &r.IDProof, nil
	case SlotKindAddressProof:
		return &r.AddressProof, nil
	case SlotKindIncomeProof:
		return &r.IncomeProof, nil
	case SlotKindPhoto:
		return &r.Photo, nil
	}
	return nil, fmt.Errorf("unknown artifact slot kind %q", kind)
}

// Slots returns all four slots in canonical order.
func (r *VerificationRequest) Slots() []*ArtifactSlot {
	return []*ArtifactSlot{&r.IDProof, &r.AddressProof, &r.IncomeProof, &r.Photo}
}

// Attach selects a file into the named slot.
func (r *VerificationRequest) Attach(kind SlotKind, filename string, payload []byte) error {
	slot, err := r.Slot(kind)
	if err != nil {
		return err
	}
	return slot.Select(filename, payload)
}

// ValidateIdentity checks the fields required before document upload.
// PAN number is deliberately optional at this stage.
func (r *VerificationRequest) ValidateIdentity() error {
	if r.IDType == "" {
		return &ValidationError{Field: "id_type", Reason: "id type is required"}
	}
	if _, err := ParseIDType(string(r.IDType)); err != nil {
		return err
	}
	if r.IDNumber == "" {
		return &ValidationError{Field: "id_number", Reason: "id number is required"}
	}
	if r.CurrentAddress == "" {
		return &ValidationError{Field: "current_address", Reason: "current address is required"}
	}
	return nil
}

// VerificationRecord is the single committed row per principal. URL fields
// are empty for slots that carried no payload.
type VerificationRecord struct {
	PrincipalID    string
	FullName       string
	Email          string
	Phone          string
	IDType         IDType
	IDNumber       string
	PANNumber      string
	CurrentAddress string

	IDProofURL      string
	AddressProofURL string
	IncomeProofURL  string
	PhotoURL        string

	SubmittedAt time.Time
}
