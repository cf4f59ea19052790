package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromZapWritesKeyValues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	l.Info("vault created", "vault", "0x01", "years", 1)
	l.Warn("withdraw rejected", "reason", "locked")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "vault created", entries[0].Message)
	assert.Equal(t, "0x01", entries[0].ContextMap()["vault"])
	assert.Equal(t, int64(1), entries[0].ContextMap()["years"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestNewDevelopment(t *testing.T) {
	l, err := New("development")
	require.NoError(t, err)
	l.Debug("debug message")
	Sync(l)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	nop := Nop()
	assert.Equal(t, nop, OrNop(nop))
	assert.NotNil(t, FromZap(nil))
}
