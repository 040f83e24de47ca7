package compositekey

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestRawKeyDeterministic(t *testing.T) {
	ck := New()
	ck.Add(PasswordComponent{Password: "correct horse"})

	k1, err := ck.RawKey()
	if err != nil {
		t.Fatalf("RawKey: %v", err)
	}
	k2, err := ck.RawKey()
	if err != nil {
		t.Fatalf("RawKey: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatalf("raw key is not deterministic")
	}
	if len(k1) != 32 {
		t.Fatalf("raw key length = %d, want 32", len(k1))
	}
}

func TestOrderIsSignificant(t *testing.T) {
	pw := PasswordComponent{Password: "correct horse"}
	kf := KeyFileComponent{}
	_ = kf

	a := New()
	a.Add(pw)
	a.Add(PasswordComponent{Password: "battery staple"})

	b := New()
	b.Add(PasswordComponent{Password: "battery staple"})
	b.Add(pw)

	eq, err := Equal(a, b)
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}
	if eq {
		t.Fatalf("reordering components must change the raw key")
	}
}

func TestEqualByValue(t *testing.T) {
	a := New()
	a.Add(PasswordComponent{Password: "hunter2"})
	b := New()
	b.Add(PasswordComponent{Password: "hunter2"})

	eq, err := Equal(a, b)
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}
	if !eq {
		t.Fatalf("identical single-password composites must be equal")
	}
}

func TestKeyFileRawBinary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keyfile.bin")
	raw := bytes.Repeat([]byte{0xAB}, 32)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatal(err)
	}

	kf := KeyFileComponent{Path: path}
	seed, err := kf.Seed()
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if !bytes.Equal(seed[:], raw) {
		t.Fatalf("raw 32-byte key file should be used verbatim")
	}
}

func TestKeyFileHexEncoded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keyfile.hex")
	hexKey := bytes.Repeat([]byte("ab"), 32)
	if err := os.WriteFile(path, hexKey, 0o600); err != nil {
		t.Fatal(err)
	}

	kf := KeyFileComponent{Path: path}
	seed, err := kf.Seed()
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	want := bytes.Repeat([]byte{0xab}, 32)
	if !bytes.Equal(seed[:], want) {
		t.Fatalf("hex key file decoded incorrectly")
	}
}

func TestKeyFileArbitraryFallsBackToHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keyfile.txt")
	if err := os.WriteFile(path, []byte("not a key file at all"), 0o600); err != nil {
		t.Fatal(err)
	}

	kf := KeyFileComponent{Path: path}
	seed, err := kf.Seed()
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if seed == ([32]byte{}) {
		t.Fatalf("expected a non-zero hash fallback")
	}
}
