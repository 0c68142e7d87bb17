package spool

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soilwire/soilwire/internal/adapters/csvjournal"
	"github.com/soilwire/soilwire/internal/domain"
	"github.com/soilwire/soilwire/internal/ports"
)

var testHeader = domain.Header([]string{"moisture_value_a0", "moisture_value_a1"})

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)            {}
func (nopObs) LogWarn(string, ...ports.Field)            {}
func (nopObs) LogError(string, error, ...ports.Field)    {}
func (nopObs) LogCritical(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)                {}
func (nopObs) SetGauge(string, float64)                  {}
func (nopObs) ObserveLatency(string, float64)            {}

func testReading(ts string, values ...string) domain.Reading {
	return domain.Reading{
		SourceTimestamp: ts,
		ObservedAt:      time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC),
		Values:          values,
	}
}

func durableRows(t *testing.T, path string) []domain.Reading {
	t.Helper()
	j, err := csvjournal.New(path, testHeader)
	require.NoError(t, err)
	rows, err := j.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestEnqueueMirrorsBothTiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unsent.csv")
	s, err := New(path, testHeader, nopObs{})
	require.NoError(t, err)

	require.NoError(t, s.Enqueue(testReading("1000", "512", "640")))
	require.NoError(t, s.Enqueue(testReading("2000", "513", "641")))

	assert.Equal(t, 2, s.Depth())
	assert.Len(t, durableRows(t, path), 2)
}

func TestDrainDeliversOldestFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unsent.csv")
	s, err := New(path, testHeader, nopObs{})
	require.NoError(t, err)

	for _, ts := range []string{"1000", "2000", "3000"} {
		require.NoError(t, s.Enqueue(testReading(ts, "512", "640")))
	}

	var seq []string
	ok := s.Drain(func(r domain.Reading) bool {
		seq = append(seq, r.SourceTimestamp)
		return true
	})
	assert.True(t, ok)

	// The volatile tier drains first, then the durable mirror of the same
	// readings; the sink dedupes the repeats.
	assert.Equal(t, []string{"1000", "2000", "3000", "1000", "2000", "3000"}, seq)
	assert.Equal(t, 0, s.Depth())
	assert.Empty(t, durableRows(t, path))
}

func TestDrainStopsAtFirstVolatileFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unsent.csv")
	s, err := New(path, testHeader, nopObs{})
	require.NoError(t, err)

	for _, ts := range []string{"1000", "2000", "3000"} {
		require.NoError(t, s.Enqueue(testReading(ts, "512", "640")))
	}

	calls := 0
	ok := s.Drain(func(r domain.Reading) bool {
		calls++
		return calls == 1
	})
	assert.True(t, ok)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, s.Depth())
	// The durable tier was never reached, so its rows are untouched.
	assert.Len(t, durableRows(t, path), 3)
}

func TestDrainRequeuesDurableRemainder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unsent.csv")
	s, err := New(path, testHeader, nopObs{})
	require.NoError(t, err)

	for _, ts := range []string{"1000", "2000", "3000"} {
		require.NoError(t, s.PersistOnly(testReading(ts, "512", "640")))
	}
	assert.Equal(t, 0, s.Depth())

	calls := 0
	ok := s.Drain(func(r domain.Reading) bool {
		calls++
		return calls == 1
	})
	assert.True(t, ok)

	rows := durableRows(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, "2000", rows[0].SourceTimestamp)
	assert.Equal(t, "3000", rows[1].SourceTimestamp)
}

func TestDrainAfterRestartDeliversDurableBacklog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unsent.csv")
	s, err := New(path, testHeader, nopObs{})
	require.NoError(t, err)
	require.NoError(t, s.Enqueue(testReading("1000", "512", "640")))
	require.NoError(t, s.Enqueue(testReading("2000", "513", "641")))

	// A fresh instance on the same file starts with an empty volatile tier.
	s2, err := New(path, testHeader, nopObs{})
	require.NoError(t, err)
	assert.Equal(t, 0, s2.Depth())

	var seq []string
	ok := s2.Drain(func(r domain.Reading) bool {
		seq = append(seq, r.SourceTimestamp)
		return true
	})
	assert.True(t, ok)
	assert.Equal(t, []string{"1000", "2000"}, seq)
	assert.Empty(t, durableRows(t, path))
}

func TestDrainEmptySpoolReturnsFalse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unsent.csv")
	s, err := New(path, testHeader, nopObs{})
	require.NoError(t, err)

	ok := s.Drain(func(domain.Reading) bool { return true })
	assert.False(t, ok)
}

func TestEnqueueDuringDrainKeepsTiersConsistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unsent.csv")
	s, err := New(path, testHeader, nopObs{})
	require.NoError(t, err)

	require.NoError(t, s.Enqueue(testReading("1000", "512", "640")))
	require.NoError(t, s.Enqueue(testReading("2000", "513", "641")))

	drainStarted := make(chan struct{})
	enqueueStarted := make(chan struct{})
	var once sync.Once
	var seq []string

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Drain(func(r domain.Reading) bool {
			once.Do(func() {
				close(drainStarted)
				// Let the competing Enqueue park on the spool mutex
				// before the pass continues.
				<-enqueueStarted
				time.Sleep(20 * time.Millisecond)
			})
			seq = append(seq, r.SourceTimestamp)
			return true
		})
	}()

	<-drainStarted
	wg.Add(1)
	go func() {
		defer wg.Done()
		close(enqueueStarted)
		assert.NoError(t, s.Enqueue(testReading("3000", "514", "642")))
	}()
	wg.Wait()

	// The pass sees only what was queued when it took the lock; the late
	// reading waits for the next pass and sits in both tiers meanwhile.
	assert.Equal(t, []string{"1000", "2000", "1000", "2000"}, seq)
	assert.Equal(t, 1, s.Depth())
	rows := durableRows(t, path)
	require.Len(t, rows, 1)
	assert.Equal(t, "3000", rows[0].SourceTimestamp)
}

func TestConcurrentEnqueueKeepsTiersConsistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unsent.csv")
	s, err := New(path, testHeader, nopObs{})
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Enqueue(testReading("1000", "512", "640"))
		}()
	}
	wg.Wait()

	assert.Equal(t, n, s.Depth())
	assert.Len(t, durableRows(t, path), n)
}
