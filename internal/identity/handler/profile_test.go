package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"virtual-wallet/backend/internal/account/domain"
	accountrepo "virtual-wallet/backend/internal/account/repository"
	"virtual-wallet/backend/internal/identity/service"
	"virtual-wallet/backend/internal/server/middleware"
)

const testSecret = "s3cret"

func newProfileFixture(t *testing.T, secret string) (*ProfileHandler, *domain.Account) {
	t.Helper()
	repo := accountrepo.NewMemoryRepository()
	created := time.Date(2026, 3, 4, 5, 6, 7, 891_000_000, time.UTC)
	acc, err := repo.Create(t.Context(), &domain.Account{
		Phone:        "+573001234567",
		PasswordHash: "hash",
		Status:       domain.VerificationPending,
		CreatedAt:    created,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return NewProfileHandler(service.NewProfileService(repo, nil, nil), secret, nil), acc
}

func authed(method, body string, acc *domain.Account) *http.Request {
	req := httptest.NewRequest(method, "/api/v1/users/me", strings.NewReader(body))
	return req.WithContext(middleware.WithIdentity(req.Context(), acc.ID, acc.Phone))
}

func TestMe(t *testing.T) {
	h, acc := newProfileFixture(t, "")
	rec := httptest.NewRecorder()
	h.Me(rec, authed(http.MethodGet, "", acc))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["user_id"] != acc.ID || body["phone"] != acc.Phone || body["kyc_status"] != "pending" || body["mfa_enabled"] != false {
		t.Errorf("body = %v", body)
	}
	if body["created_at"] != "2026-03-04T05:06:07.891Z" {
		t.Errorf("created_at = %v", body["created_at"])
	}
	for _, k := range []string{"email", "name"} {
		if v, ok := body[k]; !ok || v != nil {
			t.Errorf("%s = %v, present %v; want explicit null", k, v, ok)
		}
	}
	if strings.Contains(rec.Body.String(), "hash") {
		t.Error("password hash leaked")
	}
}

func TestMe_AccountGone(t *testing.T) {
	h, _ := newProfileFixture(t, "")
	rec := httptest.NewRecorder()
	h.Me(rec, authed(http.MethodGet, "", &domain.Account{ID: "deleted", Phone: "+573001234567"}))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSetMFA(t *testing.T) {
	h, acc := newProfileFixture(t, "")

	rec := httptest.NewRecorder()
	h.SetMFA(rec, authed(http.MethodPut, `{}`, acc))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing enabled: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.SetMFA(rec, authed(http.MethodPut, `{"enabled":true}`, acc))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"mfa_enabled":true`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func kycRequest(body, sig string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/kyc/callback", strings.NewReader(body))
	if sig != "" {
		req.Header.Set(KYCSignatureHeader, sig)
	}
	return req
}

// signedKYC returns a callback request signed with testSecret.
func signedKYC(body string) *http.Request {
	return kycRequest(body, SignKYCPayload(testSecret, []byte(body)))
}

func TestKYCCallback_Signature(t *testing.T) {
	h, acc := newProfileFixture(t, testSecret)
	body := `{"user_id":"` + acc.ID + `","status":"approved"}`
	good := SignKYCPayload(testSecret, []byte(body))

	for name, sig := range map[string]string{
		"missing":        "",
		"raw secret":     testSecret,
		"not hex":        "zz" + good[2:],
		"truncated":      good[:32],
		"wrong secret":   SignKYCPayload("other", []byte(body)),
		"different body": SignKYCPayload(testSecret, []byte(body+" ")),
	} {
		rec := httptest.NewRecorder()
		h.KYCCallback(rec, kycRequest(body, sig))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d", name, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.KYCCallback(rec, kycRequest(body, "sha256="+strings.ToUpper(good)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"kyc_status":"approved"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestKYCCallback_Disabled(t *testing.T) {
	h, acc := newProfileFixture(t, "")
	rec := httptest.NewRecorder()
	h.KYCCallback(rec, kycRequest(`{"user_id":"`+acc.ID+`","status":"approved"}`, "anything"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestKYCCallback_Validation(t *testing.T) {
	h, acc := newProfileFixture(t, testSecret)
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"missing status", `{"user_id":"` + acc.ID + `"}`, http.StatusUnprocessableEntity},
		{"unknown status", `{"user_id":"` + acc.ID + `","status":"maybe"}`, http.StatusUnprocessableEntity},
		{"unknown user", `{"user_id":"nobody","status":"approved"}`, http.StatusNotFound},
		{"same status", `{"user_id":"` + acc.ID + `","status":"pending"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.KYCCallback(rec, signedKYC(tt.body))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestKYCCallback_FinalStatusIsImmutable(t *testing.T) {
	h, acc := newProfileFixture(t, testSecret)
	rec := httptest.NewRecorder()
	h.KYCCallback(rec, signedKYC(`{"user_id":"`+acc.ID+`","status":"rejected"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("reject: status = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.KYCCallback(rec, signedKYC(`{"user_id":"`+acc.ID+`","status":"approved"}`))
	if rec.Code != http.StatusConflict {
		t.Fatalf("approve after reject: status = %d", rec.Code)
	}
}

func TestCreatedAtLayout(t *testing.T) {
	got := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("COT", -5*3600)).UTC().Format(CreatedAtLayout)
	if !regexp.MustCompile(`^2026-01-02T08:04:05\.000Z$`).MatchString(got) {
		t.Errorf("formatted = %q", got)
	}
}
