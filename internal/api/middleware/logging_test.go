package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPolling(t *testing.T) {
	t.Parallel()

	assert.True(t, isPolling("/api/v1/jobs/3/status"))
	assert.True(t, isPolling("/api/v1/training/3/status?x=1"))
	assert.True(t, isPolling("/metrics"))
	assert.False(t, isPolling("/api/v1/jobs"))
	assert.False(t, isPolling("/api/v1/jobs/3/segments"))
}
