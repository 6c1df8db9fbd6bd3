package embedding

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestMockEmbedder_EmptyInputShortCircuits(t *testing.T) {
	mock := NewMockEmbedder(4)
	for _, in := range []string{"", "   ", "\n\t"} {
		if _, err := mock.Embed(context.Background(), in); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Embed(%q): expected ErrEmptyInput, got %v", in, err)
		}
	}
	if mock.Calls() != 0 {
		t.Errorf("empty input must not reach the service, got %d calls", mock.Calls())
	}
}

func TestMockEmbedder_DeterministicUnitVectors(t *testing.T) {
	mock := NewMockEmbedder(16)
	ctx := context.Background()
	a, _ := mock.Embed(ctx, "Předmět: Operační analýza 1 (OA1)")
	b, _ := mock.Embed(ctx, "Předmět: Operační analýza 1 (OA1)")
	c, _ := mock.Embed(ctx, "Předmět: Operační analýza 2 (OA2)")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text should embed identically")
		}
	}
	var norm, diff float64
	for i := range a {
		norm += float64(a[i] * a[i])
		diff += math.Abs(float64(a[i] - c[i]))
	}
	if math.Abs(norm-1) > 1e-4 {
		t.Errorf("expected unit length, got %f", norm)
	}
	if diff == 0 {
		t.Error("different texts should embed differently")
	}
}

func TestNewOpenAIEmbedder_EmptyInput(t *testing.T) {
	e, err := NewOpenAIEmbedder(OpenAIConfig{BaseURL: "http://127.0.0.1:1/v1", Model: "text-embedding-3-small"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(context.Background(), " "); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
}
