package observability

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestWithOpID_GeneratesUUID(t *testing.T) {
	ctx := WithOpID(context.Background())
	id := OpID(ctx)
	if id == "" {
		t.Fatal("expected op id")
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("op id %q is not a UUID: %v", id, err)
	}
}

func TestWithOpID_Unique(t *testing.T) {
	a := OpID(WithOpID(context.Background()))
	b := OpID(WithOpID(context.Background()))
	if a == b {
		t.Errorf("expected distinct op ids, got %q twice", a)
	}
}

func TestOpID_Missing(t *testing.T) {
	if got := OpID(context.Background()); got != "" {
		t.Errorf("OpID() = %q, want empty", got)
	}
}

func TestWithGivenOpID(t *testing.T) {
	ctx := WithGivenOpID(context.Background(), "req-42")
	if got := OpID(ctx); got != "req-42" {
		t.Errorf("OpID() = %q, want req-42", got)
	}
}
