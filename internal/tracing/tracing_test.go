package tracing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInitIgnoresUnknownOutput(t *testing.T) {
	assert.NoError(t, Init("test", ""))
	assert.NoError(t, Init("test", "otlp"))
}

func TestSpansAreExported(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithWriter("approvals-test", &buf))

	_, span := StartSpan(context.Background(), "approval.materialize", attribute.String("request.id", "r1"))
	EndSpan(span, errors.New("catalog unavailable"))

	out := buf.String()
	assert.Contains(t, out, "approval.materialize")
	assert.Contains(t, out, "catalog unavailable")
	assert.Contains(t, out, "r1")
}
