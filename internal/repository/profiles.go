package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lending_gateway/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// ProfileRepository persists principals and their committed verification
// records. Insert fails on duplicate key; the verification upsert is
// idempotent, last-write-wins, keyed by principal id.
type ProfileRepository interface {
	Insert(ctx context.Context, p *domain.Principal) error
	GetByEmail(ctx context.Context, email string) (*domain.Principal, error)
	UpsertVerification(ctx context.Context, rec *domain.VerificationRecord) error
	GetVerification(ctx context.Context, principalID string) (*domain.VerificationRecord, error)
}

type profileRepository struct {
	db     DB
	logger *zap.Logger
}

func NewProfileRepository(db DB, logger *zap.Logger) ProfileRepository {
	return &profileRepository{
		db:     db,
		logger: logger,
	}
}

const pgUniqueViolation = "23505"

func (r *profileRepository) Insert(ctx context.Context, p *domain.Principal) error {
	query := `
		INSERT INTO profiles (id, full_name, email, phone)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.Exec(ctx, query, p.ID, p.FullName, p.Email, p.Phone)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrDuplicateProfile
		}
		r.logger.Error("failed to insert profile", zap.Error(err), zap.String("principal_id", p.ID))
		return fmt.Errorf("failed to insert profile: %w", err)
	}

	return nil
}

func (r *profileRepository) GetByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	query := `
		SELECT id, full_name, email, phone
		FROM profiles
		WHERE email = $1
	`

	var p domain.Principal
	err := r.db.QueryRow(ctx, query, email).
		Scan(&p.ID, &p.FullName, &p.Email, &p.Phone)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("failed to get profile", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &p, nil
}

func (r *profileRepository) UpsertVerification(ctx context.Context, rec *domain.VerificationRecord) error {
	query := `
		INSERT INTO verifications (
			principal_id, full_name, email, phone,
			id_type, id_number, pan_number, current_address,
			id_proof_url, address_proof_url, income_proof_url, photo_url,
			submitted_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (principal_id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			id_type = EXCLUDED.id_type,
			id_number = EXCLUDED.id_number,
			pan_number = EXCLUDED.pan_number,
			current_address = EXCLUDED.current_address,
			id_proof_url = EXCLUDED.id_proof_url,
			address_proof_url = EXCLUDED.address_proof_url,
			income_proof_url = EXCLUDED.income_proof_url,
			photo_url = EXCLUDED.photo_url,
			submitted_at = EXCLUDED.submitted_at
	`

	_, err := r.db.Exec(ctx, query,
		rec.PrincipalID, rec.FullName, rec.Email, rec.Phone,
		string(rec.IDType), rec.IDNumber, nullableText(rec.PANNumber), rec.CurrentAddress,
		nullableText(rec.IDProofURL), nullableText(rec.AddressProofURL),
		nullableText(rec.IncomeProofURL), nullableText(rec.PhotoURL),
		rec.SubmittedAt,
	)
	if err != nil {
		r.logger.Error("failed to upsert verification", zap.Error(err), zap.String("principal_id", rec.PrincipalID))
		return fmt.Errorf("failed to upsert verification: %w", err)
	}

	return nil
}

func (r *profileRepository) GetVerification(ctx context.Context, principalID string) (*domain.VerificationRecord, error) {
	query := `
		SELECT principal_id, full_name, email, phone,
			id_type, id_number, COALESCE(pan_number, ''), current_address,
			COALESCE(id_proof_url, ''), COALESCE(address_proof_url, ''),
			COALESCE(income_proof_url, ''), COALESCE(photo_url, ''),
			submitted_at
		FROM verifications
		WHERE principal_id = $1
	`

	var rec domain.VerificationRecord
	var idType string
	var submittedAt time.Time
	err := r.db.QueryRow(ctx, query, principalID).
		Scan(&rec.PrincipalID, &rec.FullName, &rec.Email, &rec.Phone,
			&idType, &rec.IDNumber, &rec.PANNumber, &rec.CurrentAddress,
			&rec.IDProofURL, &rec.AddressProofURL, &rec.IncomeProofURL, &rec.PhotoURL,
			&submittedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("failed to get verification", zap.Error(err), zap.String("principal_id", principalID))
		return nil, fmt.Errorf("failed to get verification: %w", err)
	}
	rec.IDType = domain.IDType(idType)
	rec.SubmittedAt = submittedAt

	return &rec, nil
}

// nullableText maps empty strings to SQL NULL.
func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
