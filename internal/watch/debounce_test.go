// Copyright (C) 2019 The CodeActual Go Environment Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package watch_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	testkit_time "github.com/LukasKalbertodt/floof/internal/cage/testkit/time"
	"github.com/LukasKalbertodt/floof/internal/watch"
)

// TestDebounceCoalescesBurst verifies that several calls made before the timer
// expires collapse into exactly one invocation of the debounced function, carrying
// the most recent value.
func TestDebounceCoalescesBurst(t *testing.T) {
	timer, clock, writeCh, roCh := testkit_time.NewDebounceTimer(&testkit_time.DebounceTimerOption{
		ResetReturnTrue: true,
	})
	timer.On("C").Return(roCh)

	var mu sync.Mutex
	var calls []interface{}

	debounced := watch.Debounce(clock, 50*time.Millisecond, func(v interface{}) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, v)
	})

	debounced("a")
	debounced("b")
	debounced("c")

	require.Eventually(t, func() bool {
		return len(clock.Calls) >= 1
	}, time.Second, time.Millisecond)

	clock.AssertCalled(t, "NewTimer", mock.AnythingOfType("time.Duration"))
	timer.AssertCalled(t, "Reset", mock.AnythingOfType("time.Duration"))

	writeCh <- time.Now()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) == 1
	}, time.Second, time.Millisecond)

	mu.Lock()
	require.Equal(t, "c", calls[0])
	mu.Unlock()

	timer.AssertCalled(t, "Stop")
}

// TestDebounceFiresAgainAfterSettling verifies that once the timer has expired and
// cleared, a subsequent call starts a fresh debounce window.
func TestDebounceFiresAgainAfterSettling(t *testing.T) {
	timer, clock, writeCh, roCh := testkit_time.NewDebounceTimer(nil)
	timer.On("C").Return(roCh)

	calls := make(chan interface{}, 2)
	debounced := watch.Debounce(clock, 50*time.Millisecond, func(v interface{}) {
		calls <- v
	})

	debounced("first")
	writeCh <- time.Now()
	require.Equal(t, "first", <-calls)

	debounced("second")
	writeCh <- time.Now()
	require.Equal(t, "second", <-calls)

	clock.AssertNumberOfCalls(t, "NewTimer", 2)
}
