package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureContext(t *testing.T) {
	ctx := EnsureContext(context.Background())
	id := FromContext(ctx)
	assert.NotEmpty(t, id)

	// 已有 trace_id 时保持不变
	assert.Equal(t, id, FromContext(EnsureContext(ctx)))
}

func TestFromContext_Empty(t *testing.T) {
	assert.Equal(t, "", FromContext(context.Background()))
}
