package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ConnectionIDFromContext(ctx))

	ctx = WithConnectionID(ctx, "opc-east-1")
	assert.Equal(t, "opc-east-1", ConnectionIDFromContext(ctx))
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = WithRequestID(ctx, "req-7")
	assert.Equal(t, "req-7", RequestIDFromContext(ctx))
}

func TestContextFields(t *testing.T) {
	t.Run("empty context yields no fields", func(t *testing.T) {
		assert.Empty(t, ContextFields(context.Background()))
	})

	t.Run("correlation ids become fields", func(t *testing.T) {
		ctx := WithConnectionID(context.Background(), "plant-a")
		ctx = WithRequestID(ctx, "req-9")

		fields := ContextFields(ctx)
		keys := make(map[string]string, len(fields))
		for _, f := range fields {
			keys[f.Key] = f.String
		}
		assert.Equal(t, "plant-a", keys["connection.id"])
		assert.Equal(t, "req-9", keys["request.id"])
	})
}
