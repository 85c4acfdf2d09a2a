package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHelpersAreNoopWithoutLogger(t *testing.T) {
	SetLogger(nil)
	assert.NotPanics(t, func() {
		Debug("debug")
		Info("info", String("k", "v"))
		Warn("warn", ErrorField(errors.New("boom")))
		Sync()
	})
}

func TestHelpersWriteToInstalledLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	Info("clip moved", String("clipId", "c1"), Float64("start", 2.5), Strings("links", []string{"l1", "l2"}))
	Error("preview failed", ErrorField(errors.New("ffmpeg exited")))

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "clip moved", entries[0].Message)
		assert.Equal(t, "c1", entries[0].ContextMap()["clipId"])
		assert.Equal(t, []interface{}{"l1", "l2"}, entries[0].ContextMap()["links"])
		assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, parseLevel(WarnLevel))
	assert.Equal(t, zapcore.DebugLevel, parseLevel("verbose"))
}
