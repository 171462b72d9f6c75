package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/anniejean/castingdesk/internal/services"
)

type fakeBackfiller struct {
	calls atomic.Int32
	rep   services.BackfillReport
	err   error
}

func (f *fakeBackfiller) BackfillSizes(ctx context.Context) (services.BackfillReport, error) {
	f.calls.Add(1)
	return f.rep, f.err
}

func TestBackfillLoop_RunsAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := &fakeBackfiller{rep: services.BackfillReport{Processed: 3}}
	ctx, cancel := context.WithCancel(context.Background())
	done := StartBackfillLoop(ctx, f, 5*time.Millisecond, zap.NewNop())

	assert.Eventually(t, func() bool { return f.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestBackfillLoop_Disabled(t *testing.T) {
	f := &fakeBackfiller{}
	done := StartBackfillLoop(context.Background(), f, 0, zap.NewNop())
	<-done
	assert.Zero(t, f.calls.Load())
}

func TestRunBackfill_Logs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	runBackfill(context.Background(), &fakeBackfiller{err: errors.New("disk full")}, log)
	runBackfill(context.Background(), &fakeBackfiller{rep: services.BackfillReport{Skipped: []uint{4}}}, log)
	runBackfill(context.Background(), &fakeBackfiller{rep: services.BackfillReport{Processed: 1}}, log)

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
		assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	}
}
