package countdown_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/mutker/kerntune/internal/countdown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

func TestRemaining(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Unix(1000, 0))
	cd := countdown.Start(clk, 10*time.Second)

	assert.Equal(t, 10*time.Second, cd.Remaining())
	clk.Step(4 * time.Second)
	assert.Equal(t, 6*time.Second, cd.Remaining())
	clk.Step(7 * time.Second)
	assert.Equal(t, time.Duration(0), cd.Remaining())
	assert.True(t, cd.Expired())
}

func TestWaitUntilDeadline(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Unix(1000, 0))
	cd := countdown.Start(clk, 5*time.Second)

	done := make(chan error, 1)
	go func() { done <- cd.Wait(context.Background()) }()

	require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)
	clk.Step(5 * time.Second)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("wait did not return")
	}
}

func TestSleepCanceled(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Unix(1000, 0))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- countdown.Sleep(ctx, clk, time.Hour) }()

	require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sleep ignored cancellation")
	}
}

func TestSleepZero(t *testing.T) {
	assert.NoError(t, countdown.Sleep(context.Background(), clocktesting.NewFakeClock(time.Now()), 0))
}
