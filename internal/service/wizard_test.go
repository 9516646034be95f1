package service

import (
	"context"
	"errors"
	"testing"

	"lending_gateway/internal/domain"
	"lending_gateway/internal/repository"
	"lending_gateway/internal/storage"

	"go.uber.org/zap/zaptest"
)

func testWizard(t *testing.T) *Wizard {
	t.Helper()
	pipeline := NewSubmissionPipeline(storage.NewMemoryStore(), repository.NewMemoryProfileRepository(), &mockEventPublisher{}, zaptest.NewLogger(t), 4)
	return NewWizard(pipeline)
}

func TestWizardContinueGuard(t *testing.T) {
	tests := []struct {
		name     string
		idType   string
		idNumber string
		pan      string
		address  string
		allowed  bool
	}{
		{
			name:    "all_empty_blocked",
			allowed: false,
		},
		{
			name:     "missing_id_type_blocked",
			idNumber: "1234",
			address:  "12 Lake Road",
			allowed:  false,
		},
		{
			name:    "missing_id_number_blocked",
			idType:  "aadhaar",
			address: "12 Lake Road",
			allowed: false,
		},
		{
			name:     "missing_address_blocked",
			idType:   "aadhaar",
			idNumber: "1234",
			allowed:  false,
		},
		{
			name:     "complete_without_pan_allowed",
			idType:   "aadhaar",
			idNumber: "1234",
			address:  "12 Lake Road",
			allowed:  true,
		},
		{
			name:     "complete_with_pan_allowed",
			idType:   "passport",
			idNumber: "P1234567",
			pan:      "ABCDE1234F",
			address:  "12 Lake Road",
			allowed:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testWizard(t)
			if err := w.SetIdentity(tt.idType, tt.idNumber, tt.pan, tt.address); err != nil {
				t.Fatalf("set identity failed: %v", err)
			}

			err := w.Continue()
			if tt.allowed {
				if err != nil {
					t.Fatalf("expected transition to documents, got %v", err)
				}
				if w.State() != WizardDocuments {
					t.Fatalf("expected state %s, got %s", WizardDocuments, w.State())
				}
				return
			}

			var validation *domain.ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected ValidationError, got %T: %v", err, err)
			}
			if w.State() != WizardIdentity {
				t.Fatalf("blocked transition must keep state %s, got %s", WizardIdentity, w.State())
			}
		})
	}
}

func TestWizardRejectsUnknownIDType(t *testing.T) {
	w := testWizard(t)

	err := w.SetIdentity("voter-card", "1234", "", "12 Lake Road")
	var validation *domain.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
}

func TestWizardBackRetainsFields(t *testing.T) {
	w := testWizard(t)

	if err := w.SetIdentity("aadhaar", "1234", "ABCDE1234F", "12 Lake Road"); err != nil {
		t.Fatalf("set identity failed: %v", err)
	}
	if err := w.Continue(); err != nil {
		t.Fatalf("continue failed: %v", err)
	}
	if err := w.Attach(domain.SlotKindPhoto, "photo.jpg", []byte("jpeg")); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	if err := w.Back(); err != nil {
		t.Fatalf("back failed: %v", err)
	}
	if w.State() != WizardIdentity {
		t.Fatalf("expected state %s, got %s", WizardIdentity, w.State())
	}

	req := w.Request()
	if req.IDNumber != "1234" || req.CurrentAddress != "12 Lake Road" || req.PANNumber != "ABCDE1234F" {
		t.Fatal("identity fields must survive back navigation")
	}
	if req.Photo.Status != domain.SlotSelected {
		t.Fatal("selected documents must survive back navigation")
	}
}

func TestWizardAttachOnlyInDocuments(t *testing.T) {
	w := testWizard(t)

	err := w.Attach(domain.SlotKindPhoto, "photo.jpg", []byte("jpeg"))
	if err == nil {
		t.Fatal("attach must be rejected on the identity step")
	}
}

func TestWizardSubmitLifecycle(t *testing.T) {
	w := testWizard(t)
	principal := testPrincipal()

	// Submitting from the identity step is not a legal transition.
	if _, err := w.Submit(context.Background(), principal); err == nil {
		t.Fatal("submit must be rejected on the identity step")
	}

	if err := w.SetIdentity("license", "DL-0420110012345", "", "4 Beach Road"); err != nil {
		t.Fatalf("set identity failed: %v", err)
	}
	if err := w.Continue(); err != nil {
		t.Fatalf("continue failed: %v", err)
	}

	rec, err := w.Submit(context.Background(), principal)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a committed record")
	}
	if w.State() != WizardSuccess {
		t.Fatalf("expected state %s, got %s", WizardSuccess, w.State())
	}

	// Success is terminal; a new wizard is needed to submit again.
	if _, err := w.Submit(context.Background(), principal); err == nil {
		t.Fatal("no transition may exist out of success")
	}
	if err := w.Back(); err == nil {
		t.Fatal("no transition may exist out of success")
	}
}

func TestWizardStaysInDocumentsOnFailure(t *testing.T) {
	store := &mockArtifactStore{
		uploadFunc: func(ctx context.Context, path string, data []byte) error {
			return errors.New("storage unavailable")
		},
	}
	pipeline := NewSubmissionPipeline(store, repository.NewMemoryProfileRepository(), &mockEventPublisher{}, zaptest.NewLogger(t), 4)
	w := NewWizard(pipeline)

	if err := w.SetIdentity("aadhaar", "1234", "", "12 Lake Road"); err != nil {
		t.Fatalf("set identity failed: %v", err)
	}
	if err := w.Continue(); err != nil {
		t.Fatalf("continue failed: %v", err)
	}
	if err := w.Attach(domain.SlotKindIDProof, "id.pdf", []byte("pdf")); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	_, err := w.Submit(context.Background(), testPrincipal())
	var partial *domain.PartialUploadError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialUploadError, got %T: %v", err, err)
	}
	if w.State() != WizardDocuments {
		t.Fatalf("failed submission must keep state %s, got %s", WizardDocuments, w.State())
	}
}
