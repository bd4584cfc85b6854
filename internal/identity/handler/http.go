package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"virtual-wallet/backend/internal/account/domain"
	"virtual-wallet/backend/internal/identity/service"
	"virtual-wallet/backend/internal/mfa"
	"virtual-wallet/backend/internal/server/respond"
)

const maxBodyBytes = 1 << 20

// AuthHandler serves registration, login and MFA verification.
type AuthHandler struct {
	auth *service.AuthService
	log  *zap.Logger
}

// NewAuthHandler returns an AuthHandler.
func NewAuthHandler(auth *service.AuthService, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{auth: auth, log: log}
}

type registerRequest struct {
	Phone    *string `json:"phone"`
	Password *string `json:"password"`
	Email    *string `json:"email"`
	Name     *string `json:"name"`
}

type registerResponse struct {
	UserID string `json:"user_id"`
}

type loginRequest struct {
	Phone    *string `json:"phone"`
	Password *string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

type mfaRequiredResponse struct {
	MFARequired bool   `json:"mfa_required"`
	TempToken   string `json:"temp_token"`
	Message     string `json:"message"`
}

type verifyMFARequest struct {
	TempToken *string `json:"temp_token"`
	Code      *string `json:"code"`
}

type invalidCodeResponse struct {
	Detail            string `json:"detail"`
	AttemptsRemaining int    `json:"attempts_remaining"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if missing := missingFields(field{"phone", req.Phone}, field{"password", req.Password}); len(missing) > 0 {
		respond.Validation(w, missing...)
		return
	}
	id, err := h.auth.Register(r.Context(), service.RegisterInput{
		Phone:    *req.Phone,
		Password: *req.Password,
		Email:    req.Email,
		Name:     req.Name,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, registerResponse{UserID: id})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if missing := missingFields(field{"phone", req.Phone}, field{"password", req.Password}); len(missing) > 0 {
		respond.Validation(w, missing...)
		return
	}
	res, err := h.auth.Login(r.Context(), *req.Phone, *req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if res.MFARequired {
		respond.JSON(w, http.StatusOK, mfaRequiredResponse{
			MFARequired: true,
			TempToken:   res.TempToken,
			Message:     "MFA verification required",
		})
		return
	}
	respond.JSON(w, http.StatusOK, tokenResponseOf(res.Tokens))
}

// VerifyMFA handles POST /auth/mfa/verify.
func (h *AuthHandler) VerifyMFA(w http.ResponseWriter, r *http.Request) {
	var req verifyMFARequest
	if !decodeBody(w, r, &req) {
		return
	}
	if missing := missingFields(field{"temp_token", req.TempToken}, field{"code", req.Code}); len(missing) > 0 {
		respond.Validation(w, missing...)
		return
	}
	if !mfa.WellFormedCode(*req.Code) {
		respond.Validation(w, respond.BodyIssue("code", "Code must be exactly 6 digits"))
		return
	}
	pair, err := h.auth.VerifyMFA(r.Context(), *req.TempToken, *req.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, tokenResponseOf(pair))
}

func tokenResponseOf(p *service.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    p.TokenType,
		ExpiresIn:    p.ExpiresIn,
	}
}

// writeError maps service errors to status codes. Unknown errors are logged and reported as 500.
func (h *AuthHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeServiceError(w, r, h.log, err)
}

func writeServiceError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var fieldErr *service.ValidationError
	var codeErr *service.InvalidMFACodeError
	switch {
	case errors.As(err, &fieldErr):
		respond.Validation(w, respond.BodyIssue(fieldErr.Field, fieldErr.Message))
	case errors.Is(err, service.ErrMalformedPhone):
		respond.Validation(w, respond.BodyIssue("phone", err.Error()))
	case errors.Is(err, service.ErrDuplicatePhone):
		respond.Detail(w, http.StatusConflict, "Phone number already registered")
	case errors.Is(err, service.ErrVerificationRejected):
		respond.Detail(w, http.StatusBadRequest, "KYC verification rejected for this phone number")
	case errors.Is(err, service.ErrUserNotFound):
		respond.Detail(w, http.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrInvalidCredentials):
		respond.Detail(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, service.ErrAccountLocked):
		respond.Detail(w, http.StatusLocked, "Account is locked")
	case errors.As(err, &codeErr):
		respond.JSON(w, http.StatusUnauthorized, invalidCodeResponse{
			Detail:            "Invalid MFA code",
			AttemptsRemaining: codeErr.AttemptsRemaining,
		})
	case errors.Is(err, service.ErrTempTokenExpired):
		respond.Detail(w, http.StatusUnauthorized, "Temporary token expired or invalid")
	case errors.Is(err, service.ErrTooManyAttempts):
		respond.Detail(w, http.StatusTooManyRequests, "Too many MFA attempts, try again later")
	case errors.Is(err, domain.ErrInvalidTransition):
		respond.Detail(w, http.StatusConflict, "Invalid verification status transition")
	default:
		log.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		respond.Detail(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeBody reads a JSON object into dst and answers 422 when the body is not valid JSON.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decodeFrom(w, http.MaxBytesReader(w, r.Body, maxBodyBytes), dst)
}

func decodeFrom(w http.ResponseWriter, body io.Reader, dst any) bool {
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		msg := "Invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "Request body is required"
		}
		respond.Validation(w, respond.FieldIssue{Loc: []string{"body"}, Msg: msg, Type: "value_error"})
		return false
	}
	return true
}

type field struct {
	name  string
	value any
}

// missingFields reports required fields that were absent or null.
func missingFields(fields ...field) []respond.FieldIssue {
	var issues []respond.FieldIssue
	for _, f := range fields {
		if isNil(f.value) {
			issues = append(issues, respond.FieldIssue{Loc: []string{"body", f.name}, Msg: "Field required", Type: "missing"})
		}
	}
	return issues
}

func isNil(v any) bool {
	switch p := v.(type) {
	case *string:
		return p == nil
	case *bool:
		return p == nil
	}
	return v == nil
}
