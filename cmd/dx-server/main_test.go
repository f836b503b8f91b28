package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestExitCode(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	assert.Equal(t, 0, exitCode(base, nil))
	assert.Equal(t, 0, logs.Len())

	assert.Equal(t, 1, exitCode(base, errors.New("listen tcp :8080: address already in use")))
	entries := logs.FilterMessage("Server failed").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
		assert.Equal(t, "listen tcp :8080: address already in use", entries[0].ContextMap()["error"])
	}
}

func TestNewZap(t *testing.T) {
	logger, err := newZap("debug")
	if assert.NoError(t, err) {
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	}

	_, err = newZap("loud")
	assert.Error(t, err)
}
