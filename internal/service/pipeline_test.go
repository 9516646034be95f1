package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"lending_gateway/internal/domain"
	"lending_gateway/internal/messaging"
	"lending_gateway/internal/repository"
	"lending_gateway/internal/storage"

	"go.uber.org/zap/zaptest"
)

func contains(s, substr string) bool {
	return strings.Contains(s, substr)
}

// Mock for messaging.EventPublisher
type mockEventPublisher struct {
	verificationsPublished int
	offersPublished        int
	publishVerificationErr error
	publishOfferErr        error
}

func (m *mockEventPublisher) PublishVerificationSubmitted(ctx context.Context, rec *domain.VerificationRecord) error {
	m.verificationsPublished++
	return m.publishVerificationErr
}

func (m *mockEventPublisher) PublishOfferSubmitted(ctx context.Context, offer *domain.LoanOffer) error {
	m.offersPublished++
	return m.publishOfferErr
}

func (m *mockEventPublisher) SubscribeToVerificationReviewed(ctx context.Context, handler func(messaging.VerificationReviewedMessage)) error {
	return nil
}

func (m *mockEventPublisher) Close() {}

// Mock for storage.ArtifactStore
type mockArtifactStore struct {
	uploadFunc func(ctx context.Context, path string, data []byte) error
}

func (m *mockArtifactStore) Upload(ctx context.Context, path string, data []byte) error {
	if m.uploadFunc != nil {
		return m.uploadFunc(ctx, path, data)
	}
	return nil
}

func (m *mockArtifactStore) PublicURL(path string) string {
	return "https://artifacts.test/" + path
}

// Mock for repository.ProfileRepository
type mockProfileRepository struct {
	upsertFunc func(ctx context.Context, rec *domain.VerificationRecord) error
}

func (m *mockProfileRepository) Insert(ctx context.Context, p *domain.Principal) error { return nil }

func (m *mockProfileRepository) GetByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	return nil, nil
}

func (m *mockProfileRepository) UpsertVerification(ctx context.Context, rec *domain.VerificationRecord) error {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, rec)
	}
	return nil
}

func (m *mockProfileRepository) GetVerification(ctx context.Context, principalID string) (*domain.VerificationRecord, error) {
	return nil, nil
}

func testPrincipal() *domain.Principal {
	return &domain.Principal{
		ID:       "principal-1",
		FullName: "Asha Kumar",
		Email:    "asha@example.com",
		Phone:    "+911234567890",
	}
}

func fullRequest(t *testing.T) *domain.VerificationRequest {
	t.Helper()
	req := domain.NewVerificationRequest()
	req.IDType = domain.IDTypeAadhaar
	req.IDNumber = "1234-5678-9012"
	req.PANNumber = "ABCDE1234F"
	req.CurrentAddress = "12 Lake Road, Chennai"

	for _, kind := range domain.SlotKinds() {
		if err := req.Attach(kind, fmt.Sprintf("%s.pdf", kind), []byte("content of "+string(kind))); err != nil {
			t.Fatalf("failed to attach %s: %v", kind, err)
		}
	}
	return req
}

func TestSubmitSuccess(t *testing.T) {
	store := storage.NewMemoryStore()
	profiles := repository.NewMemoryProfileRepository()
	events := &mockEventPublisher{}
	pipeline := NewSubmissionPipeline(store, profiles, events, zaptest.NewLogger(t), 4)

	principal := testPrincipal()
	req := fullRequest(t)

	rec, err := pipeline.Submit(context.Background(), principal, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.PrincipalID != principal.ID {
		t.Fatalf("expected principal id %s, got %s", principal.ID, rec.PrincipalID)
	}
	if rec.Email != principal.Email || rec.FullName != principal.FullName || rec.Phone != principal.Phone {
		t.Fatal("contact fields were not copied from the principal")
	}
	if rec.IDNumber != req.IDNumber || rec.PANNumber != req.PANNumber || rec.CurrentAddress != req.CurrentAddress {
		t.Fatal("identity fields were not copied from the request")
	}

	for _, url := range []string{rec.IDProofURL, rec.AddressProofURL, rec.IncomeProofURL, rec.PhotoURL} {
		if url == "" {
			t.Fatal("expected a remote url for every uploaded slot")
		}
	}
	for _, slot := range req.Slots() {
		if slot.Status != domain.SlotUploaded {
			t.Fatalf("slot %s should be uploaded, got %s", slot.Kind, slot.Status)
		}
	}
	if store.Len() != 4 {
		t.Fatalf("expected 4 stored artifacts, got %d", store.Len())
	}

	stored, err := profiles.GetVerification(context.Background(), principal.ID)
	if err != nil {
		t.Fatalf("failed to load record: %v", err)
	}
	if stored == nil {
		t.Fatal("record was not committed")
	}
	if events.verificationsPublished != 1 {
		t.Fatalf("expected 1 submitted event, got %d", events.verificationsPublished)
	}
}

func TestSubmitRequiresPrincipal(t *testing.T) {
	pipeline := NewSubmissionPipeline(storage.NewMemoryStore(), repository.NewMemoryProfileRepository(), &mockEventPublisher{}, zaptest.NewLogger(t), 4)

	tests := []struct {
		name      string
		principal *domain.Principal
	}{
		{name: "nil_principal", principal: nil},
		{name: "empty_principal_id", principal: &domain.Principal{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pipeline.Submit(context.Background(), tt.principal, fullRequest(t))
			if !errors.Is(err, domain.ErrNotAuthenticated) {
				t.Fatalf("expected ErrNotAuthenticated, got %v", err)
			}
		})
	}
}

func TestSubmitValidatesBeforeUploading(t *testing.T) {
	uploads := 0
	store := &mockArtifactStore{
		uploadFunc: func(ctx context.Context, path string, data []byte) error {
			uploads++
			return nil
		},
	}
	pipeline := NewSubmissionPipeline(store, repository.NewMemoryProfileRepository(), &mockEventPublisher{}, zaptest.NewLogger(t), 4)

	req := fullRequest(t)
	req.CurrentAddress = ""

	_, err := pipeline.Submit(context.Background(), testPrincipal(), req)

	var validation *domain.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
	if uploads != 0 {
		t.Fatalf("validation errors must not reach the artifact store, saw %d uploads", uploads)
	}
}

func TestSubmitPartialUploadFailure(t *testing.T) {
	store := &mockArtifactStore{
		uploadFunc: func(ctx context.Context, path string, data []byte) error {
			if strings.Contains(path, string(domain.SlotKindIncomeProof)) {
				return errors.New("storage unavailable")
			}
			return nil
		},
	}
	profiles := repository.NewMemoryProfileRepository()
	events := &mockEventPublisher{}
	pipeline := NewSubmissionPipeline(store, profiles, events, zaptest.NewLogger(t), 4)

	principal := testPrincipal()
	req := fullRequest(t)

	_, err := pipeline.Submit(context.Background(), principal, req)

	var partial *domain.PartialUploadError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialUploadError, got %T: %v", err, err)
	}
	kinds := partial.FailedKinds()
	if len(kinds) != 1 || kinds[0] != domain.SlotKindIncomeProof {
		t.Fatalf("expected failed kinds [income_proof], got %v", kinds)
	}
	if req.IncomeProof.Status != domain.SlotFailed {
		t.Fatalf("failed slot should be marked failed, got %s", req.IncomeProof.Status)
	}

	// Commit must never be attempted.
	stored, err := profiles.GetVerification(context.Background(), principal.ID)
	if err != nil {
		t.Fatalf("failed to check record: %v", err)
	}
	if stored != nil {
		t.Fatal("no record may exist after a partial upload failure")
	}
	if events.verificationsPublished != 0 {
		t.Fatal("no event may be published after a partial upload failure")
	}
}

func TestSubmitVacuousSlots(t *testing.T) {
	store := storage.NewMemoryStore()
	profiles := repository.NewMemoryProfileRepository()
	pipeline := NewSubmissionPipeline(store, profiles, &mockEventPublisher{}, zaptest.NewLogger(t), 4)

	req := domain.NewVerificationRequest()
	req.IDType = domain.IDTypePassport
	req.IDNumber = "P1234567"
	req.CurrentAddress = "5 Hill Street"

	rec, err := pipeline.Submit(context.Background(), testPrincipal(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.Len() != 0 {
		t.Fatalf("expected no uploads for empty slots, got %d", store.Len())
	}
	for _, url := range []string{rec.IDProofURL, rec.AddressProofURL, rec.IncomeProofURL, rec.PhotoURL} {
		if url != "" {
			t.Fatalf("expected empty url for vacuous slot, got %q", url)
		}
	}
	if rec.PANNumber != "" {
		t.Fatalf("pan number should be empty, got %q", rec.PANNumber)
	}
}

func TestSubmitCommitFailure(t *testing.T) {
	profiles := &mockProfileRepository{
		upsertFunc: func(ctx context.Context, rec *domain.VerificationRecord) error {
			return errors.New("connection reset")
		},
	}
	pipeline := NewSubmissionPipeline(storage.NewMemoryStore(), profiles, &mockEventPublisher{}, zaptest.NewLogger(t), 4)

	_, err := pipeline.Submit(context.Background(), testPrincipal(), fullRequest(t))

	var commit *domain.CommitError
	if !errors.As(err, &commit) {
		t.Fatalf("expected CommitError, got %T: %v", err, err)
	}
}

func TestSubmitIdempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	profiles := repository.NewMemoryProfileRepository()
	pipeline := &submissionPipeline{
		store:       store,
		profiles:    profiles,
		events:      &mockEventPublisher{},
		logger:      zaptest.NewLogger(t),
		maxParallel: 4,
		now:         func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) },
	}

	principal := testPrincipal()

	first, err := pipeline.Submit(context.Background(), principal, fullRequest(t))
	if err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
	second, err := pipeline.Submit(context.Background(), principal, fullRequest(t))
	if err != nil {
		t.Fatalf("second submission failed: %v", err)
	}

	if *first != *second {
		t.Fatalf("identical submissions produced different records:\n%+v\n%+v", first, second)
	}

	stored, err := profiles.GetVerification(context.Background(), principal.ID)
	if err != nil {
		t.Fatalf("failed to load record: %v", err)
	}
	if *stored != *first {
		t.Fatal("stored record differs from the submission result")
	}
}

func TestSubmitPublishFailureDoesNotFailSubmission(t *testing.T) {
	events := &mockEventPublisher{publishVerificationErr: errors.New("nats down")}
	profiles := repository.NewMemoryProfileRepository()
	pipeline := NewSubmissionPipeline(storage.NewMemoryStore(), profiles, events, zaptest.NewLogger(t), 4)

	principal := testPrincipal()
	rec, err := pipeline.Submit(context.Background(), principal, fullRequest(t))
	if err != nil {
		t.Fatalf("submission must not fail on publish error: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a committed record")
	}

	stored, _ := profiles.GetVerification(context.Background(), principal.ID)
	if stored == nil {
		t.Fatal("record must be committed despite publish failure")
	}
}

func TestSubmitBoundedConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0

	store := &mockArtifactStore{
		uploadFunc: func(ctx context.Context, path string, data []byte) error {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
			return nil
		},
	}
	pipeline := NewSubmissionPipeline(store, repository.NewMemoryProfileRepository(), &mockEventPublisher{}, zaptest.NewLogger(t), 2)

	_, err := pipeline.Submit(context.Background(), testPrincipal(), fullRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Fatalf("upload parallelism ceiling violated: peak %d > 2", peak)
	}
}
