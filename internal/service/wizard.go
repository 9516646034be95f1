package service

import (
	"context"
	"fmt"

	"lending_gateway/internal/domain"
)

// WizardState names a step of the verification flow.
type WizardState string

const (
	WizardIdentity  WizardState = "identity"
	WizardDocuments WizardState = "documents"
	WizardSuccess   WizardState = "success"
)

// Wizard sequences a single verification session: identity entry, then
// document selection, then the atomic submission. One wizard drives one
// VerificationRequest; after success a new wizard must be created to
// submit again.
type Wizard struct {
	pipeline SubmissionPipeline
	state    WizardState
	request  *domain.VerificationRequest
}

func NewWizard(pipeline SubmissionPipeline) *Wizard {
	return &Wizard{
		pipeline: pipeline,
		state:    WizardIdentity,
		request:  domain.NewVerificationRequest(),
	}
}

func (w *Wizard) State() WizardState { return w.state }

// Request exposes the in-progress verification request.
func (w *Wizard) Request() *domain.VerificationRequest { return w.request }

// SetIdentity records the identity fields. Allowed only on the identity step.
func (w *Wizard) SetIdentity(idType, idNumber, panNumber, address string) error {
	if w.state != WizardIdentity {
		return fmt.Errorf("cannot edit identity fields in state %s", w.state)
	}

	if idType != "" {
		parsed, err := domain.ParseIDType(idType)
		if err != nil {
			return err
		}
		w.request.IDType = parsed
	} else {
		w.request.IDType = ""
	}
	w.request.IDNumber = idNumber
	w.request.PANNumber = panNumber
	w.request.CurrentAddress = address
	return nil
}

// Continue moves from identity entry to document upload. It is blocked
// until id type, id number and current address are all populated; PAN
// number is not required here.
func (w *Wizard) Continue() error {
	if w.state != WizardIdentity {
		return fmt.Errorf("cannot continue from state %s", w.state)
	}
	if err := w.request.ValidateIdentity(); err != nil {
		return err
	}
	w.state = WizardDocuments
	return nil
}

// Back returns to identity entry. Entered fields and selected documents
// are retained.
func (w *Wizard) Back() error {
	if w.state != WizardDocuments {
		return fmt.Errorf("cannot go back from state %s", w.state)
	}
	w.state = WizardIdentity
	return nil
}

// Attach selects a file into one of the four document slots.
func (w *Wizard) Attach(kind domain.SlotKind, filename string, payload []byte) error {
	if w.state != WizardDocuments {
		return fmt.Errorf("cannot attach documents in state %s", w.state)
	}
	return w.request.Attach(kind, filename, payload)
}

// Submit runs the submission pipeline. This is the only edge that performs
// durable I/O; the wizard reaches success only when the pipeline does.
func (w *Wizard) Submit(ctx context.Context, principal *domain.Principal) (*domain.VerificationRecord, error) {
	if w.state != WizardDocuments {
		return nil, fmt.Errorf("cannot submit in state %s", w.state)
	}

	rec, err := w.pipeline.Submit(ctx, principal, w.request)
	if err != nil {
		return nil, err
	}
	w.state = WizardSuccess
	return rec, nil
}
