package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadKeyPair_Inline(t *testing.T) {
	kp, err := LoadKeyPair(testPrivateKeyPEM, testPublicKeyPEM)
	if err != nil {
		t.Fatalf("LoadKeyPair: %v", err)
	}
	if KeyAlg(kp.Public) != "RS256" {
		t.Errorf("KeyAlg = %q, want RS256", KeyAlg(kp.Public))
	}
}

func TestLoadKeyPair_EscapedNewlines(t *testing.T) {
	priv := strings.ReplaceAll(testPrivateKeyPEM, "\n", `\n`)
	pub := strings.ReplaceAll(testPublicKeyPEM, "\n", `\n`)
	if _, err := LoadKeyPair(priv, pub); err != nil {
		t.Fatalf("LoadKeyPair with escaped newlines: %v", err)
	}
}

func TestLoadKeyPair_FromFiles(t *testing.T) {
	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")
	if err := os.WriteFile(privPath, []byte(testPrivateKeyPEM), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pubPath, []byte(testPublicKeyPEM), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadKeyPair(privPath, pubPath); err != nil {
		t.Fatalf("LoadKeyPair: %v", err)
	}
}

func TestLoadKeyPair_Mismatch(t *testing.T) {
	other, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(other.Public)
	if err != nil {
		t.Fatal(err)
	}
	otherPub := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
	if _, err := LoadKeyPair(testPrivateKeyPEM, otherPub); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("want ErrInvalidKey, got %v", err)
	}
}

func TestParsePrivateKey_EC(t *testing.T) {
	k, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	der, err := x509.MarshalECPrivateKey(k)
	if err != nil {
		t.Fatal(err)
	}
	s := string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))
	signer, err := ParsePrivateKey(s)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	if KeyAlg(signer.Public()) != "ES256" {
		t.Errorf("KeyAlg = %q, want ES256", KeyAlg(signer.Public()))
	}

	p384, _ := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	der, _ = x509.MarshalECPrivateKey(p384)
	if _, err := ParsePrivateKey(string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("P-384: want ErrInvalidKey, got %v", err)
	}
}

func TestParseKeys_Invalid(t *testing.T) {
	for _, s := range []string{"", "   ", "-----BEGIN NOTHING-----\n-----END NOTHING-----", "-----BEGIN junk"} {
		if _, err := ParsePrivateKey(s); err == nil {
			t.Errorf("ParsePrivateKey(%q) should fail", s)
		}
		if _, err := ParsePublicKey(s); err == nil {
			t.Errorf("ParsePublicKey(%q) should fail", s)
		}
	}
	if _, err := ParsePrivateKey(filepath.Join(t.TempDir(), "missing.pem")); err == nil {
		t.Error("missing file should fail")
	}
}
