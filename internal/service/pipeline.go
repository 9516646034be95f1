package service

import (
	"context"
	"fmt"
	"time"

	"lending_gateway/internal/domain"
	"lending_gateway/internal/messaging"
	"lending_gateway/internal/repository"
	"lending_gateway/internal/storage"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultMaxParallelUploads = 4

// SubmissionPipeline uploads a verification request's artifacts and commits
// a single verification record only if the submission as a whole succeeds.
type SubmissionPipeline interface {
	Submit(ctx context.Context, principal *domain.Principal, req *domain.VerificationRequest) (*domain.VerificationRecord, error)
}

type submissionPipeline struct {
	store       storage.ArtifactStore
	profiles    repository.ProfileRepository
	events      messaging.EventPublisher
	logger      *zap.Logger
	maxParallel int
	now         func() time.Time
}

func NewSubmissionPipeline(store storage.ArtifactStore, profiles repository.ProfileRepository, events messaging.EventPublisher, logger *zap.Logger, maxParallel int) SubmissionPipeline {
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallelUploads
	}
	return &submissionPipeline{
		store:       store,
		profiles:    profiles,
		events:      events,
		logger:      logger,
		maxParallel: maxParallel,
		now:         time.Now,
	}
}

// Submit runs the all-or-nothing submission: every slot that carries a
// payload must upload before the record is upserted. Slots without a
// payload are skipped. Artifacts uploaded before a sibling slot fails are
// left orphaned in storage; they are logged but never deleted here.
func (p *submissionPipeline) Submit(ctx context.Context, principal *domain.Principal, req *domain.VerificationRequest) (*domain.VerificationRecord, error) {
	if principal == nil || principal.ID == "" {
		return nil, domain.ErrNotAuthenticated
	}
	if req == nil {
		return nil, &domain.ValidationError{Reason: "verification request is required"}
	}
	if err := req.ValidateIdentity(); err != nil {
		return nil, err
	}

	submittedAt := p.now()
	pending := make([]*domain.ArtifactSlot, 0, 4)
	for _, slot := range req.Slots() {
		if !slot.HasPayload() {
			continue
		}
		if err := slot.BeginUpload(); err != nil {
			return nil, err
		}
		pending = append(pending, slot)
	}

	// Launched uploads run to completion or failure; one slot failing does
	// not cancel its siblings.
	g := new(errgroup.Group)
	g.SetLimit(p.maxParallel)
	for _, slot := range pending {
		slot := slot
		g.Go(func() error {
			path := artifactPath(principal.ID, slot, submittedAt)
			if err := p.store.Upload(ctx, path, slot.Payload); err != nil {
				p.logger.Error("artifact upload failed",
					zap.String("principal_id", principal.ID),
					zap.String("kind", string(slot.Kind)),
					zap.Error(err))
				return slot.MarkFailed(err)
			}
			return slot.MarkUploaded(p.store.PublicURL(path))
		})
	}
	if err := g.Wait(); err != nil {
		// Only illegal slot transitions end up here, which is a bug.
		return nil, fmt.Errorf("submission state corrupted: %w", err)
	}

	var failed []*domain.UploadError
	var orphaned []string
	for _, slot := range pending {
		switch slot.Status {
		case domain.SlotFailed:
			failed = append(failed, &domain.UploadError{Kind: slot.Kind, Err: slot.Err})
		case domain.SlotUploaded:
			orphaned = append(orphaned, slot.RemoteURL)
		}
	}
	if len(failed) > 0 {
		if len(orphaned) > 0 {
			p.logger.Warn("aborting submission, uploaded artifacts left orphaned",
				zap.String("principal_id", principal.ID),
				zap.Strings("orphaned", orphaned))
		}
		return nil, &domain.PartialUploadError{Failed: failed}
	}

	rec := &domain.VerificationRecord{
		PrincipalID:     principal.ID,
		FullName:        principal.FullName,
		Email:           principal.Email,
		Phone:           principal.Phone,
		IDType:          req.IDType,
		IDNumber:        req.IDNumber,
		PANNumber:       req.PANNumber,
		CurrentAddress:  req.CurrentAddress,
		IDProofURL:      req.IDProof.RemoteURL,
		AddressProofURL: req.AddressProof.RemoteURL,
		IncomeProofURL:  req.IncomeProof.RemoteURL,
		PhotoURL:        req.Photo.RemoteURL,
		SubmittedAt:     submittedAt,
	}

	if err := p.profiles.UpsertVerification(ctx, rec); err != nil {
		p.logger.Error("verification commit failed, uploaded artifacts left orphaned",
			zap.String("principal_id", principal.ID),
			zap.Error(err))
		return nil, &domain.CommitError{Err: err}
	}

	// The record is durable at this point; a lost event must not fail the
	// submission.
	if err := p.events.PublishVerificationSubmitted(ctx, rec); err != nil {
		p.logger.Error("failed to publish verification submitted event",
			zap.String("principal_id", principal.ID),
			zap.Error(err))
	}

	p.logger.Info("verification committed",
		zap.String("principal_id", principal.ID),
		zap.Int("uploaded_artifacts", len(pending)))
	return rec, nil
}

// artifactPath composes the deterministic storage path for one slot:
// principal id, slot kind, upload timestamp, original filename. Concurrent
// resubmissions cannot collide and the layout stays human-auditable.
func artifactPath(principalID string, slot *domain.ArtifactSlot, at time.Time) string {
	return fmt.Sprintf("kyc/%s/%s/%d_%s", principalID, slot.Kind, at.Unix(), slot.Filename)
}
