package serialtap

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soilwire/soilwire/internal/domain"
	"github.com/soilwire/soilwire/internal/ports"
)

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)            {}
func (nopObs) LogWarn(string, ...ports.Field)            {}
func (nopObs) LogError(string, error, ...ports.Field)    {}
func (nopObs) LogCritical(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)                {}
func (nopObs) SetGauge(string, float64)                  {}
func (nopObs) ObserveLatency(string, float64)            {}

func testCollector(t *testing.T, open openFunc) *Collector {
	t.Helper()
	c, err := NewCollector(Config{
		Device:         "/dev/test",
		Channels:       2,
		IdleSleep:      time.Millisecond,
		ReopenAttempts: 1,
		ReopenDelay:    time.Millisecond,
	}, nopObs{})
	require.NoError(t, err)
	c.open = open
	return c
}

func collectAll(t *testing.T, out <-chan domain.Reading) []domain.Reading {
	t.Helper()
	var got []domain.Reading
	timeout := time.After(5 * time.Second)
	for {
		select {
		case r, ok := <-out:
			if !ok {
				return got
			}
			got = append(got, r)
		case <-timeout:
			t.Fatal("collector never closed its output channel")
		}
	}
}

func TestCollectorEmitsWellFormedLines(t *testing.T) {
	opened := false
	c := testCollector(t, func(string) (io.ReadCloser, error) {
		if opened {
			return nil, errors.New("gone")
		}
		opened = true
		return io.NopCloser(strings.NewReader("1000,512,640\n\n2000,513,641\n")), nil
	})

	out := make(chan domain.Reading, 8)
	require.NoError(t, c.Start(out))
	got := collectAll(t, out)

	require.Len(t, got, 2)
	assert.Equal(t, "1000", got[0].SourceTimestamp)
	assert.Equal(t, []string{"512", "640"}, got[0].Values)
	assert.Equal(t, "2000", got[1].SourceTimestamp)
	assert.False(t, got[0].ObservedAt.IsZero())
	require.NoError(t, c.Stop())
}

func TestCollectorDropsMalformedLines(t *testing.T) {
	opened := false
	c := testCollector(t, func(string) (io.ReadCloser, error) {
		if opened {
			return nil, errors.New("gone")
		}
		opened = true
		return io.NopCloser(strings.NewReader("1000,512\nnot-a-reading\n2000,513,641\n")), nil
	})

	out := make(chan domain.Reading, 8)
	require.NoError(t, c.Start(out))
	got := collectAll(t, out)

	require.Len(t, got, 1)
	assert.Equal(t, "2000", got[0].SourceTimestamp)
	require.NoError(t, c.Stop())
}

func TestCollectorTrimsWhitespaceInFields(t *testing.T) {
	opened := false
	c := testCollector(t, func(string) (io.ReadCloser, error) {
		if opened {
			return nil, errors.New("gone")
		}
		opened = true
		return io.NopCloser(strings.NewReader(" 1000 , 512 , 640 \r\n")), nil
	})

	out := make(chan domain.Reading, 8)
	require.NoError(t, c.Start(out))
	got := collectAll(t, out)

	require.Len(t, got, 1)
	assert.Equal(t, "1000", got[0].SourceTimestamp)
	assert.Equal(t, []string{"512", "640"}, got[0].Values)
	require.NoError(t, c.Stop())
}

func TestCollectorClosesOutputWhenReopenBudgetExhausted(t *testing.T) {
	c := testCollector(t, func(string) (io.ReadCloser, error) {
		return nil, errors.New("no such device")
	})

	out := make(chan domain.Reading, 1)
	require.NoError(t, c.Start(out))

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("output channel never closed")
	}
	require.NoError(t, c.Stop())
}

func TestCollectorStopUnblocksPendingRead(t *testing.T) {
	pr, pw := io.Pipe()
	c := testCollector(t, func(string) (io.ReadCloser, error) {
		return pr, nil
	})

	out := make(chan domain.Reading, 1)
	require.NoError(t, c.Start(out))

	go func() { _, _ = pw.Write([]byte("1000,512,640\n")) }()
	select {
	case r := <-out:
		assert.Equal(t, "1000", r.SourceTimestamp)
	case <-time.After(5 * time.Second):
		t.Fatal("reading never arrived")
	}

	// No more input: the scanner is parked on a pipe read. Stop must still
	// return promptly.
	done := make(chan struct{})
	go func() {
		require.NoError(t, c.Stop())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop hung on a blocked read")
	}
}

func TestCollectorStartTwiceFails(t *testing.T) {
	c := testCollector(t, func(string) (io.ReadCloser, error) {
		return nil, errors.New("no such device")
	})
	out := make(chan domain.Reading, 1)
	require.NoError(t, c.Start(out))
	assert.Error(t, c.Start(out))
	require.NoError(t, c.Stop())
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Channels: 2}
	assert.Error(t, cfg.Validate())

	cfg = Config{Device: "/dev/ttyACM0"}
	assert.Error(t, cfg.Validate())

	cfg = Config{Device: "/dev/ttyACM0", Channels: 2}
	assert.NoError(t, cfg.Validate())
}
