package trim

import (
	"context"
	"testing"

	"github.com/custodia-labs/papersoul/internal/core/domain"
)

func TestProcessor_Process(t *testing.T) {
	chunks := []domain.Chunk{
		{ID: "a", Content: "  first \n", Position: 0},
		{ID: "b", Content: " \n\t ", Position: 1},
		{ID: "c", Content: "second", Position: 2},
	}

	out, err := New().Process(context.Background(), &domain.Document{}, chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(out))
	}
	if out[0].Content != "first" || out[1].Content != "second" {
		t.Errorf("unexpected contents: %q, %q", out[0].Content, out[1].Content)
	}
	if out[1].ID != "c" || out[1].Position != 1 {
		t.Errorf("expected chunk c renumbered to 1, got %+v", out[1])
	}
}

func TestProcessor_Process_AllBlank(t *testing.T) {
	out, err := New().Process(context.Background(), &domain.Document{}, []domain.Chunk{{Content: "  "}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != nil {
		t.Errorf("expected nil, got %v", out)
	}
}

func TestProcessor_Name(t *testing.T) {
	if New().Name() != "trim" {
		t.Error("expected name 'trim'")
	}
}
