package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Run("ShouldHonourLevel", func(t *testing.T) {
		log, err := New("debug", "json")
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("ShouldFallBackToInfo", func(t *testing.T) {
		for _, level := range []string{"", "loud"} {
			log, err := New(level, "console")
			require.NoError(t, err)
			assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
			assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
		}
	})
}

func TestContext(t *testing.T) {
	log := zap.NewExample()
	ctx := WithLogger(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
