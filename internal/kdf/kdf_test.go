package kdf

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestAESKDFDeterministic(t *testing.T) {
	k := &AESKDF{Rounds: 200}
	if err := k.RandomizeSeed(); err != nil {
		t.Fatalf("RandomizeSeed: %v", err)
	}
	composite := bytes.Repeat([]byte{0x42}, KeySize)

	out1, err := k.Transform(context.Background(), composite)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	out2, err := k.Transform(context.Background(), composite)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if !bytes.Equal(out1, out2) {
		t.Fatalf("transform is not deterministic for the same seed/composite")
	}
	if len(out1) != KeySize {
		t.Fatalf("transformed key length = %d, want %d", len(out1), KeySize)
	}
}

func TestAESKDFDifferentSeedsDiffer(t *testing.T) {
	composite := bytes.Repeat([]byte{0x01}, KeySize)

	k1 := &AESKDF{Rounds: 200}
	if err := k1.RandomizeSeed(); err != nil {
		t.Fatal(err)
	}
	k2 := &AESKDF{Rounds: 200}
	if err := k2.RandomizeSeed(); err != nil {
		t.Fatal(err)
	}

	out1, _ := k1.Transform(context.Background(), composite)
	out2, _ := k2.Transform(context.Background(), composite)
	if bytes.Equal(out1, out2) {
		t.Fatalf("different seeds produced identical transformed keys")
	}
}

func TestAESKDFCancellation(t *testing.T) {
	k := &AESKDF{Rounds: 10_000_000}
	if err := k.RandomizeSeed(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := k.Transform(ctx, bytes.Repeat([]byte{0x07}, KeySize))
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func TestArgon2Deterministic(t *testing.T) {
	a := &Argon2{Memory: 8 * 1024, Iterations: 1, Parallelism: 1}
	if err := a.RandomizeSeed(); err != nil {
		t.Fatal(err)
	}
	composite := bytes.Repeat([]byte{0x11}, KeySize)

	out1, err := a.Transform(context.Background(), composite)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	out2, err := a.Transform(context.Background(), composite)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if !bytes.Equal(out1, out2) {
		t.Fatalf("argon2 transform is not deterministic")
	}
}

func TestArgon2RejectsZeroParams(t *testing.T) {
	a := &Argon2{Memory: 0, Iterations: 1, Parallelism: 1}
	if err := a.RandomizeSeed(); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Transform(context.Background(), bytes.Repeat([]byte{0x01}, KeySize)); err == nil {
		t.Fatalf("expected error for zero memory parameter")
	}
}

func TestRoundsSerializeRoundTrip(t *testing.T) {
	want := uint64(123_456)
	got, err := ParseRounds(SerializeRounds(want))
	if err != nil {
		t.Fatalf("ParseRounds: %v", err)
	}
	if got != want {
		t.Fatalf("round trip = %d, want %d", got, want)
	}
}

func TestBenchmarkReturnsPositiveRounds(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping benchmark calibration in short mode")
	}
	rounds, err := Benchmark(context.Background(), 50*time.Millisecond.Milliseconds())
	if err != nil {
		t.Fatalf("Benchmark: %v", err)
	}
	if rounds == 0 {
		t.Fatalf("expected nonzero round count")
	}
}
