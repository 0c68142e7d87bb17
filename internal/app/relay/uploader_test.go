package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUploadWithoutHandleSpools(t *testing.T) {
	obs := newRecObs()
	spool := &fakeSpool{}
	u := NewUploader(spool, obs, 0)

	ok := u.Upload(context.Background(), nil, testReading("1000", "512", "640"))

	assert.False(t, ok)
	assert.Equal(t, 1, spool.Depth())
	assert.Equal(t, 1.0, obs.counter("soilwire_readings_spooled_total"))
	assert.Equal(t, 0.0, obs.counter("soilwire_readings_uploaded_total"))
}

func TestUploadFailureSpools(t *testing.T) {
	obs := newRecObs()
	spool := &fakeSpool{}
	u := NewUploader(spool, obs, 0)
	h := &fakeHandle{appendErr: errors.New("socket closed")}

	ok := u.Upload(context.Background(), h, testReading("1000", "512", "640"))

	assert.False(t, ok)
	assert.Equal(t, 1, spool.Depth())
	assert.True(t, obs.hasWarn("upload_failed"))
}

func TestUploadSuccess(t *testing.T) {
	obs := newRecObs()
	spool := &fakeSpool{}
	u := NewUploader(spool, obs, 0)
	h := &fakeHandle{}

	ok := u.Upload(context.Background(), h, testReading("1000", "512", "640"))

	assert.True(t, ok)
	assert.Equal(t, 0, spool.Depth())
	assert.Len(t, h.received(), 1)
	assert.Equal(t, 1.0, obs.counter("soilwire_readings_uploaded_total"))
}

func TestAttemptFailureDoesNotSpool(t *testing.T) {
	obs := newRecObs()
	spool := &fakeSpool{}
	u := NewUploader(spool, obs, 0)
	h := &fakeHandle{appendErr: errors.New("socket closed")}

	ok := u.Attempt(context.Background(), h, testReading("1000", "512", "640"))

	// The drain path owns re-queueing; Attempt must not double-spool.
	assert.False(t, ok)
	assert.Equal(t, 0, spool.Depth())
}

func TestAttemptPauseRespectsCancellation(t *testing.T) {
	obs := newRecObs()
	u := NewUploader(&fakeSpool{}, obs, time.Hour)
	h := &fakeHandle{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan bool, 1)
	go func() { done <- u.Attempt(ctx, h, testReading("1000", "512", "640")) }()

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("Attempt slept through a cancelled context")
	}
}
