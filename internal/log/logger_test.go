package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(NewWithWriter("production", &buf), "session")

	logger.Debug().Msg("hidden")
	logger.Info().Msg("restored")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "restored")
	assert.Contains(t, out, "component=session")
	assert.Contains(t, out, "env=production")
}
