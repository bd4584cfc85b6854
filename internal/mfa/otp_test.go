package mfa

import (
	"context"
	"testing"
)

func TestStaticCodeChecker(t *testing.T) {
	c := NewStaticCodeChecker("123456")
	ctx := context.Background()
	tests := []struct {
		code string
		want bool
	}{
		{"123456", true},
		{"000000", false},
		{"12345", false},
		{"1234567", false},
		{"12345a", false},
		{"", false},
		{" 123456", false},
	}
	for _, tt := range tests {
		if got := c.Check(ctx, "acc-1", tt.code); got != tt.want {
			t.Errorf("Check(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestWellFormedCode(t *testing.T) {
	if !WellFormedCode("987654") {
		t.Error("six digits should be well formed")
	}
	if WellFormedCode("９８７６５４") {
		t.Error("full-width digits are not ASCII")
	}
}
