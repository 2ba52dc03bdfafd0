package mock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailFrom(t *testing.T) {
	m := New("fries", nil, FailFrom(3))
	m.Start()

	for i := 0; i < 2; i++ {
		p, err := m.GetProduct()
		require.NoError(t, err)
		require.NotNil(t, p)
	}

	_, err := m.GetProduct()
	require.ErrorIs(t, err, ErrMachineFailure)
	assert.Equal(t, 2, m.Produced())
	assert.Equal(t, 3, m.Calls())
}

func TestFailWithNilProduct(t *testing.T) {
	m := New("cola", nil, FailFrom(1), FailWithNilProduct())

	p, err := m.GetProduct()
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestReturnProduct(t *testing.T) {
	m := New("burger", nil)
	p, err := m.GetProduct()
	require.NoError(t, err)

	require.NoError(t, m.ReturnProduct(p))
	assert.Equal(t, 1, m.Returned())

	failing := New("burger", nil, FailReturns())
	require.ErrorIs(t, failing.ReturnProduct(p), ErrMachineFailure)
}

func TestMaxInFlightTracksOverlap(t *testing.T) {
	// Called directly, without the coordinator's serialization, overlap
	// is expected and must be visible.
	release := make(chan struct{})
	m := New("shake", nil, BlockUntil(release))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.GetProduct()
		}()
	}

	deadline := time.Now().Add(5 * time.Second)
	for m.MaxInFlight() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("calls never overlapped")
		}
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	assert.Equal(t, 3, m.MaxInFlight())
}
