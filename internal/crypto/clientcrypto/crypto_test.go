package clientcrypto

import (
	"bytes"
	"crypto/subtle"
	"strings"
	"testing"
)

func TestRand_LengthUniq(t *testing.T) {
	t.Parallel()
	const n = 48
	a, err := Rand(n)
	if err != nil {
		t.Fatalf("Rand: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, _ := Rand(n)
	if bytes.Equal(a, b) {
		t.Fatalf("Rand produced equal slices")
	}
}

func TestDeriveMaster_DeterministicAndSaltDependent(t *testing.T) {
	t.Parallel()
	pw := []byte("secret-pass")
	k1 := DeriveMaster(pw, []byte("salt-1"))
	k2 := DeriveMaster(pw, []byte("salt-1"))
	if subtle.ConstantTimeCompare(k1, k2) != 1 {
		t.Fatalf("DeriveMaster not deterministic")
	}
	if subtle.ConstantTimeCompare(k1, DeriveMaster(pw, []byte("salt-2"))) != 0 {
		t.Fatalf("DeriveMaster must change with salt")
	}
}

func TestDerivePurposeKey_Separation(t *testing.T) {
	t.Parallel()
	master := DeriveMaster([]byte("pw"), []byte("salt"))
	a, err := DerivePurposeKey(master, "sync-token")
	if err != nil {
		t.Fatalf("DerivePurposeKey: %v", err)
	}
	b, _ := DerivePurposeKey(master, "other")
	if len(a) != KeyLen || bytes.Equal(a, b) {
		t.Fatalf("purpose keys must be %d bytes and distinct", KeyLen)
	}
}

func TestSealOpen_RoundTripAndAAD(t *testing.T) {
	t.Parallel()
	key, _ := Rand(KeyLen)

	sealed, err := Seal(key, []byte("ghp_token"), []byte("syncCredentials"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !IsSealed(sealed) || strings.Contains(sealed, "ghp_token") {
		t.Fatalf("sealed value leaks plaintext or lacks prefix: %s", sealed)
	}

	pt, err := Open(key, sealed, []byte("syncCredentials"))
	if err != nil || string(pt) != "ghp_token" {
		t.Fatalf("Open: %q %v", pt, err)
	}
	if _, err := Open(key, sealed, []byte("other")); err == nil {
		t.Fatalf("Open must fail with different AAD")
	}
	other, _ := Rand(KeyLen)
	if _, err := Open(other, sealed, []byte("syncCredentials")); err == nil {
		t.Fatalf("Open must fail with wrong key")
	}
}

func TestOpen_Malformed(t *testing.T) {
	t.Parallel()
	key, _ := Rand(KeyLen)
	for _, v := range []string{"plain", sealedPrefix + "!!!", sealedPrefix + "AAAA"} {
		if _, err := Open(key, v, nil); err == nil {
			t.Fatalf("Open(%q) must fail", v)
		}
	}
	if _, err := Seal([]byte("short"), []byte("x"), nil); err == nil {
		t.Fatalf("Seal must reject short key")
	}
}
