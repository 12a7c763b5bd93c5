package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_DevelopmentEnablesDebugLevel(t *testing.T) {
	log, err := New(true)
	require.NoError(t, err)
	defer log.Sync()

	assert.True(t, log.Core().Enabled(zap.DebugLevel))
}

func TestNew_ProductionDisablesDebugLevel(t *testing.T) {
	log, err := New(false)
	require.NoError(t, err)
	defer log.Sync()

	assert.False(t, log.Core().Enabled(zap.DebugLevel))
	assert.True(t, log.Core().Enabled(zap.InfoLevel))
}
