package domain

import "testing"

func TestAccount_TransitionTo(t *testing.T) {
	tests := []struct {
		from, to VerificationStatus
		wantErr  bool
	}{
		{VerificationPending, VerificationApproved, false},
		{VerificationPending, VerificationRejected, false},
		{VerificationPending, VerificationPending, false},
		{VerificationApproved, VerificationApproved, false},
		{VerificationApproved, VerificationRejected, true},
		{VerificationRejected, VerificationApproved, true},
		{VerificationApproved, VerificationPending, true},
	}
	for _, tt := range tests {
		a := &Account{Status: tt.from}
		err := a.TransitionTo(tt.to)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s -> %s: err = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
		}
		if err == nil && a.Status != tt.to {
			t.Errorf("%s -> %s: status = %s", tt.from, tt.to, a.Status)
		}
	}
}

func TestAccount_Locked(t *testing.T) {
	if (&Account{Status: VerificationPending}).Locked() {
		t.Error("pending should not be locked")
	}
	if !(&Account{Status: VerificationRejected}).Locked() {
		t.Error("rejected should be locked")
	}
}

func TestParseVerificationStatus(t *testing.T) {
	if s, ok := ParseVerificationStatus("approved"); !ok || s != VerificationApproved {
		t.Errorf("approved: got %q %v", s, ok)
	}
	if _, ok := ParseVerificationStatus("APPROVED"); ok {
		t.Error("status parsing is case sensitive")
	}
}
