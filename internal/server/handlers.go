package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lending_gateway/internal/domain"
	"lending_gateway/internal/identity"
	"lending_gateway/internal/repository"
	"lending_gateway/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Handlers exposes the gateway's HTTP surface: account registration, the
// KYC submission flow and the lender offer flow.
type Handlers struct {
	logger       *zap.Logger
	sessions     *identity.SessionRegistry
	profiles     repository.ProfileRepository
	pipeline     service.SubmissionPipeline
	offers       service.OfferService
	maxFileBytes int64
}

func NewHandlers(logger *zap.Logger, sessions *identity.SessionRegistry, profiles repository.ProfileRepository, pipeline service.SubmissionPipeline, offers service.OfferService, maxFileBytes int64) *Handlers {
	if maxFileBytes <= 0 {
		maxFileBytes = 10 << 20
	}
	return &Handlers{
		logger:       logger,
		sessions:     sessions,
		profiles:     profiles,
		pipeline:     pipeline,
		offers:       offers,
		maxFileBytes: maxFileBytes,
	}
}

func (h *Handlers) principal(r *http.Request) (*domain.Principal, error) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		return nil, nil
	}
	return h.sessions.CurrentPrincipal(r.Context(), token)
}

type registerRequest struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	AgreeTerms      bool   `json:"agree_terms"`
}

type sessionResponse struct {
	Token       string `json:"token"`
	PrincipalID string `json:"principal_id"`
}

func (h *Handlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch {
	case req.FullName == "":
		writeError(w, http.StatusBadRequest, "full name is required")
		return
	case req.Email == "":
		writeError(w, http.StatusBadRequest, "email is required")
		return
	case req.Password == "":
		writeError(w, http.StatusBadRequest, "password is required")
		return
	case req.Password != req.ConfirmPassword:
		writeError(w, http.StatusBadRequest, "passwords do not match")
		return
	case !req.AgreeTerms:
		writeError(w, http.StatusBadRequest, "terms must be accepted")
		return
	}

	principal := domain.Principal{
		ID:       uuid.New().String(),
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
	}

	if err := h.sessions.SignUp(principal, req.Password); err != nil {
		if errors.Is(err, domain.ErrDuplicateProfile) {
			writeError(w, http.StatusConflict, "an account with this email already exists")
			return
		}
		h.logger.Error("sign up failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	if err := h.profiles.Insert(r.Context(), &principal); err != nil {
		if errors.Is(err, domain.ErrDuplicateProfile) {
			writeError(w, http.StatusConflict, "an account with this email already exists")
			return
		}
		h.logger.Error("profile insert failed", zap.Error(err), zap.String("principal_id", principal.ID))
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	token, _, err := h.sessions.SignIn(req.Email, req.Password)
	if err != nil {
		h.logger.Error("post-registration sign in failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	respondJSON(w, http.StatusCreated, sessionResponse{Token: token, PrincipalID: principal.ID})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, principal, err := h.sessions.SignIn(req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	respondJSON(w, http.StatusOK, sessionResponse{Token: token, PrincipalID: principal.ID})
}

func (h *Handlers) handleKYC(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.submitKYC(w, r)
	case http.MethodGet:
		h.getKYC(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// slotFields maps multipart file field names onto artifact slot kinds.
var slotFields = map[string]domain.SlotKind{
	"id_proof":      domain.SlotKindIDProof,
	"address_proof": domain.SlotKindAddressProof,
	"income_proof":  domain.SlotKindIncomeProof,
	"photo":         domain.SlotKindPhoto,
}

type verificationResponse struct {
	PrincipalID     string `json:"principal_id"`
	IDType          string `json:"id_type"`
	IDNumber        string `json:"id_number"`
	PANNumber       string `json:"pan_number,omitempty"`
	CurrentAddress  string `json:"current_address"`
	IDProofURL      string `json:"id_proof_url,omitempty"`
	AddressProofURL string `json:"address_proof_url,omitempty"`
	IncomeProofURL  string `json:"income_proof_url,omitempty"`
	PhotoURL        string `json:"photo_url,omitempty"`
	SubmittedAt     string `json:"submitted_at"`
}

func toVerificationResponse(rec *domain.VerificationRecord) verificationResponse {
	return verificationResponse{
		PrincipalID:     rec.PrincipalID,
		IDType:          string(rec.IDType),
		IDNumber:        rec.IDNumber,
		PANNumber:       rec.PANNumber,
		CurrentAddress:  rec.CurrentAddress,
		IDProofURL:      rec.IDProofURL,
		AddressProofURL: rec.AddressProofURL,
		IncomeProofURL:  rec.IncomeProofURL,
		PhotoURL:        rec.PhotoURL,
		SubmittedAt:     rec.SubmittedAt.UTC().Format(time.RFC3339),
	}
}

// submitKYC drives a full wizard session from one multipart request:
// identity fields, then document slots, then the atomic submission.
func (h *Handlers) submitKYC(w http.ResponseWriter, r *http.Request) {
	principal, err := h.principal(r)
	if err != nil {
		h.logger.Error("failed to resolve principal", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to resolve session")
		return
	}
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := r.ParseMultipartForm(h.maxFileBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	wizard := service.NewWizard(h.pipeline)
	if err := wizard.SetIdentity(
		r.FormValue("id_type"),
		r.FormValue("id_number"),
		r.FormValue("pan_number"),
		r.FormValue("current_address"),
	); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := wizard.Continue(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	for field, kind := range slotFields {
		file, header, err := r.FormFile(field)
		if err == http.ErrMissingFile {
			continue
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid file for "+field)
			return
		}
		payload, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read file for "+field)
			return
		}
		if err := wizard.Attach(kind, header.Filename, payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	rec, err := wizard.Submit(r.Context(), principal)
	if err != nil {
		h.writeSubmissionError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toVerificationResponse(rec))
}

func (h *Handlers) writeSubmissionError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	var partial *domain.PartialUploadError
	var commit *domain.CommitError

	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &partial):
		kinds := make([]string, 0, len(partial.Failed))
		for _, k := range partial.FailedKinds() {
			kinds = append(kinds, string(k))
		}
		respondJSON(w, http.StatusBadGateway, map[string]any{
			"error":        "artifact upload failed, please resubmit",
			"failed_kinds": kinds,
		})
	case errors.As(err, &commit):
		writeError(w, http.StatusInternalServerError, "verification could not be saved, please retry")
	default:
		h.logger.Error("kyc submission failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "submission failed")
	}
}

func (h *Handlers) getKYC(w http.ResponseWriter, r *http.Request) {
	principal, err := h.principal(r)
	if err != nil {
		h.logger.Error("failed to resolve principal", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to resolve session")
		return
	}
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	rec, err := h.profiles.GetVerification(r.Context(), principal.ID)
	if err != nil {
		h.logger.Error("failed to load verification", zap.Error(err), zap.String("principal_id", principal.ID))
		writeError(w, http.StatusInternalServerError, "failed to load verification")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "no verification on file")
		return
	}

	respondJSON(w, http.StatusOK, toVerificationResponse(rec))
}

type loanRequestBody struct {
	Amount       decimal.Decimal `json:"amount"`
	TenureMonths int             `json:"tenure_months"`
}

type loanRequestResponse struct {
	ID           string `json:"id"`
	BorrowerID   string `json:"borrower_id"`
	Amount       string `json:"amount"`
	TenureMonths int    `json:"tenure_months"`
	CreatedAt    string `json:"created_at"`
}

func toLoanRequestResponse(req *domain.LoanRequest) loanRequestResponse {
	return loanRequestResponse{
		ID:           req.ID,
		BorrowerID:   req.BorrowerID,
		Amount:       req.Amount.String(),
		TenureMonths: req.TenureMonths,
		CreatedAt:    req.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handlers) handleLoanRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createLoanRequest(w, r)
	case http.MethodGet:
		h.listLoanRequests(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *Handlers) createLoanRequest(w http.ResponseWriter, r *http.Request) {
	principal, err := h.principal(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve session")
		return
	}
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var body loanRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := h.offers.CreateLoanRequest(r.Context(), principal.ID, body.Amount, body.TenureMonths)
	if err != nil {
		h.writeOfferError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toLoanRequestResponse(req))
}

func (h *Handlers) listLoanRequests(w http.ResponseWriter, r *http.Request) {
	var limit, offset *int32
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		l := int32(parsed)
		limit = &l
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		o := int32(parsed)
		offset = &o
	}

	requests, err := h.offers.ListOpenRequests(r.Context(), limit, offset)
	if err != nil {
		h.writeOfferError(w, err)
		return
	}

	out := make([]loanRequestResponse, 0, len(requests))
	for _, req := range requests {
		out = append(out, toLoanRequestResponse(req))
	}
	respondJSON(w, http.StatusOK, out)
}

type computeEMIRequest struct {
	Amount       decimal.Decimal `json:"amount"`
	TenureMonths int             `json:"tenure_months"`
	ROIPercent   decimal.Decimal `json:"roi_percent"`
}

func (h *Handlers) handleComputeEMI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req computeEMIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	emi, err := h.offers.ComputeEMI(req.Amount, req.TenureMonths, req.ROIPercent)
	if err != nil {
		h.writeOfferError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"emi": emi.StringFixed(2)})
}

type submitOfferRequest struct {
	LoanRequestID string          `json:"loan_request_id"`
	ROIPercent    decimal.Decimal `json:"roi_percent"`
	EMI           decimal.Decimal `json:"emi"`
}

type offerResponse struct {
	ID            string `json:"id"`
	LoanRequestID string `json:"loan_request_id"`
	LenderID      string `json:"lender_id"`
	ROIPercent    string `json:"roi_percent"`
	EMI           string `json:"emi"`
	Status        string `json:"status"`
}

func (h *Handlers) handleSubmitOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	principal, err := h.principal(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve session")
		return
	}
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req submitOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	offer, err := h.offers.SubmitOffer(r.Context(), req.LoanRequestID, principal.ID, req.ROIPercent, req.EMI)
	if err != nil {
		h.writeOfferError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, offerResponse{
		ID:            offer.ID,
		LoanRequestID: offer.LoanRequestID,
		LenderID:      offer.LenderID,
		ROIPercent:    offer.ROIPercent.String(),
		EMI:           offer.EMI.StringFixed(2),
		Status:        string(offer.Status),
	})
}

func (h *Handlers) writeOfferError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	var invalidRate *domain.InvalidRateError
	var stale *domain.StaleOfferError

	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.As(err, &invalidRate):
		writeError(w, http.StatusUnprocessableEntity, invalidRate.Error())
	case errors.As(err, &stale):
		writeError(w, http.StatusConflict, stale.Error())
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	default:
		h.logger.Error("offer operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "operation failed")
	}
}
