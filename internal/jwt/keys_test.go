package jwt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dropDatabas3/keysmith/internal/store/core"
)

func TestGenerateRSA_FreshMaterialPerCall(t *testing.T) {
	priv1, kid1, pem1, err := GenerateRSA()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	priv2, kid2, pem2, err := GenerateRSA()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if kid1 == kid2 {
		t.Fatal("kid reused between generations")
	}
	if priv1.N.Cmp(priv2.N) == 0 {
		t.Fatal("rsa modulus reused between generations")
	}
	if pem1 == pem2 {
		t.Fatal("public pem reused between generations")
	}
}

func TestPublicKeyPEM_RoundTrip(t *testing.T) {
	priv, _, pemStr, err := GenerateRSA()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	pub, err := ParsePublicKeyPEM(pemStr)
	if err != nil {
		t.Fatalf("parse pem: %v", err)
	}
	if pub.N.Cmp(priv.N) != 0 || pub.E != priv.E {
		t.Fatal("parsed public key does not match generated keypair")
	}
}

func TestParsePublicKeyPEM_Garbage(t *testing.T) {
	if _, err := ParsePublicKeyPEM("not pem at all"); err == nil {
		t.Fatal("expected error for garbage input")
	}
}

func TestBuildJWKS(t *testing.T) {
	_, kid, pemStr, err := GenerateRSA()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	now := time.Now().UTC()
	recs := []core.KeyRecord{
		{Keyring: "default", KID: kid, PublicKeyPEM: pemStr, CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
		{Keyring: "default", KID: "broken", PublicKeyPEM: "garbage", CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
	}

	var doc JWKS
	if err := json.Unmarshal(BuildJWKS(recs), &doc); err != nil {
		t.Fatalf("unmarshal jwks: %v", err)
	}
	if len(doc.Keys) != 1 {
		t.Fatalf("expected the broken record skipped, got %d keys", len(doc.Keys))
	}
	k := doc.Keys[0]
	if k.Kid != kid || k.Kty != "RSA" || k.Alg != "RS256" || k.Use != "sig" {
		t.Errorf("unexpected jwk fields: %+v", k)
	}
	if k.N == "" || k.E == "" {
		t.Error("jwk missing modulus or exponent")
	}
}

func TestBuildJWKS_Empty(t *testing.T) {
	got := string(BuildJWKS(nil))
	if got != `{"keys":[]}` {
		t.Fatalf("empty jwks: got %s", got)
	}
}
