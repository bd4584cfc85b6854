package kyc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"virtual-wallet/backend/internal/account/domain"
)

func TestSuffixVerifier(t *testing.T) {
	tests := []struct {
		phone string
		want  domain.VerificationStatus
	}{
		{"+573001234500", domain.VerificationRejected},
		{"+573001234599", domain.VerificationApproved},
		{"+573001234567", domain.VerificationPending},
		{"+573001234509", domain.VerificationPending},
		{"+573001234590", domain.VerificationPending},
	}
	for _, tt := range tests {
		got, err := SuffixVerifier{}.Verify(context.Background(), tt.phone)
		if err != nil {
			t.Fatalf("Verify(%q): %v", tt.phone, err)
		}
		if got != tt.want {
			t.Errorf("Verify(%q) = %q, want %q", tt.phone, got, tt.want)
		}
	}
}

func TestHTTPVerifier(t *testing.T) {
	var gotAuth, gotPhone string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var body verifyRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotPhone = body.Phone
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "approved"})
	}))
	defer srv.Close()

	v := NewHTTPVerifier(srv.URL, "k3y", time.Second)
	status, err := v.Verify(context.Background(), "+573001234567")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if status != domain.VerificationApproved {
		t.Errorf("status = %q, want approved", status)
	}
	if gotAuth != "Bearer k3y" || gotPhone != "+573001234567" {
		t.Errorf("request: auth=%q phone=%q", gotAuth, gotPhone)
	}
}

func TestHTTPVerifier_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { http.Error(w, "down", http.StatusBadGateway) }},
		{"unknown status", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"status":"maybe"}`)) }},
		{"bad json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`not json`)) }},
		{"slow", func(w http.ResponseWriter, r *http.Request) { time.Sleep(200 * time.Millisecond) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			v := NewHTTPVerifier(srv.URL, "", 50*time.Millisecond)
			if _, err := v.Verify(context.Background(), "+573001234567"); err == nil {
				t.Fatal("Verify should fail")
			}
		})
	}
}
