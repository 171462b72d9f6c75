package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type syncBuffer struct {
	bytes.Buffer
	synced int
}

func (b *syncBuffer) Sync() error {
	b.synced++
	return nil
}

func newBufferedLogger(t *testing.T, buf *syncBuffer) *zap.Logger {
	// Buffered output only reaches buf on Sync.
	ws := &zapcore.BufferedWriteSyncer{WS: buf, Size: 4096}
	t.Cleanup(func() { _ = ws.Stop() })
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), ws, zap.InfoLevel)
	return zap.New(core)
}

func TestFinish_FlushesBeforeExit(t *testing.T) {
	var buf syncBuffer
	log := newBufferedLogger(t, &buf)

	code := finish(log, errors.New("bind: address already in use"))
	assert.Equal(t, 1, code)
	assert.Positive(t, buf.synced)
	assert.Contains(t, buf.String(), "server stopped")
	assert.Contains(t, buf.String(), "address already in use")
}

func TestFinish_CleanShutdown(t *testing.T) {
	var buf syncBuffer
	log := newBufferedLogger(t, &buf)

	assert.Zero(t, finish(log, nil))
	assert.Positive(t, buf.synced)
	assert.Empty(t, buf.String())
}
