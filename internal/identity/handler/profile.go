package handler

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"virtual-wallet/backend/internal/account/domain"
	"virtual-wallet/backend/internal/identity/service"
	"virtual-wallet/backend/internal/server/middleware"
	"virtual-wallet/backend/internal/server/respond"
)

// CreatedAtLayout renders created_at in UTC with millisecond precision.
const CreatedAtLayout = "2006-01-02T15:04:05.000Z"

// KYCSignatureHeader carries the hex HMAC-SHA256 of the raw callback body, keyed with the shared secret.
// An optional "sha256=" prefix is accepted.
const KYCSignatureHeader = "X-KYC-Signature"

// SignKYCPayload returns the KYCSignatureHeader value for body.
func SignKYCPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *ProfileHandler) validSignature(header string, body []byte) bool {
	got, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(header), "sha256="))
	if err != nil || len(got) != sha256.Size {
		return false
	}
	mac := hmac.New(sha256.New, h.callbackSecret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// ProfileHandler serves the authenticated account's profile and the KYC provider callback.
type ProfileHandler struct {
	profiles       *service.ProfileService
	callbackSecret []byte
	log            *zap.Logger
}

// NewProfileHandler returns a ProfileHandler. An empty callbackSecret disables the KYC callback.
func NewProfileHandler(profiles *service.ProfileService, callbackSecret string, log *zap.Logger) *ProfileHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileHandler{profiles: profiles, callbackSecret: []byte(callbackSecret), log: log}
}

type profileResponse struct {
	UserID     string  `json:"user_id"`
	Phone      string  `json:"phone"`
	Email      *string `json:"email"`
	Name       *string `json:"name"`
	KYCStatus  string  `json:"kyc_status"`
	MFAEnabled bool    `json:"mfa_enabled"`
	CreatedAt  string  `json:"created_at"`
}

func profileResponseOf(p *service.Profile) profileResponse {
	return profileResponse{
		UserID:     p.UserID,
		Phone:      p.Phone,
		Email:      p.Email,
		Name:       p.Name,
		KYCStatus:  string(p.KYCStatus),
		MFAEnabled: p.MFAEnabled,
		CreatedAt:  p.CreatedAt.UTC().Format(CreatedAtLayout),
	}
}

type setMFARequest struct {
	Enabled *bool `json:"enabled"`
}

type kycCallbackRequest struct {
	UserID *string `json:"user_id"`
	Status *string `json:"status"`
}

// Me handles GET /users/me. Requires middleware.RequireAccess.
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.AccountID(r.Context())
	p, err := h.profiles.GetProfile(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, profileResponseOf(p))
}

// SetMFA handles PUT /users/me/mfa. Requires middleware.RequireAccess.
func (h *ProfileHandler) SetMFA(w http.ResponseWriter, r *http.Request) {
	var req setMFARequest
	if !decodeBody(w, r, &req) {
		return
	}
	if missing := missingFields(field{"enabled", req.Enabled}); len(missing) > 0 {
		respond.Validation(w, missing...)
		return
	}
	id, _ := middleware.AccountID(r.Context())
	p, err := h.profiles.SetMFA(r.Context(), id, *req.Enabled)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, profileResponseOf(p))
}

// KYCCallback handles POST /kyc/callback from the verification provider.
func (h *ProfileHandler) KYCCallback(w http.ResponseWriter, r *http.Request) {
	if len(h.callbackSecret) == 0 {
		respond.Detail(w, http.StatusNotFound, "Not Found")
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respond.Detail(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	if !h.validSignature(r.Header.Get(KYCSignatureHeader), raw) {
		respond.Detail(w, http.StatusUnauthorized, "Invalid signature")
		return
	}
	var req kycCallbackRequest
	if !decodeFrom(w, bytes.NewReader(raw), &req) {
		return
	}
	if missing := missingFields(field{"user_id", req.UserID}, field{"status", req.Status}); len(missing) > 0 {
		respond.Validation(w, missing...)
		return
	}
	status, ok := domain.ParseVerificationStatus(*req.Status)
	if !ok {
		respond.Validation(w, respond.BodyIssue("status", "Status must be one of pending, approved, rejected"))
		return
	}
	p, err := h.profiles.ApplyVerification(r.Context(), *req.UserID, status)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, profileResponseOf(p))
}
