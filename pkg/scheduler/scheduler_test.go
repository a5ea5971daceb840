// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/ripple/pkg/clock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestCronJobFiresOnSimulatedTime(t *testing.T) {
	clk := clock.New(epoch, 0, true, zaptest.NewLogger(t))
	require.NoError(t, clk.Start())
	defer clk.Stop()

	s := New(clk, zaptest.NewLogger(t))

	var mu sync.Mutex
	var firings []time.Time
	require.NoError(t, s.AddCron("hourly", "0 * * * *", func(_ context.Context, now time.Time) {
		mu.Lock()
		firings = append(firings, now)
		mu.Unlock()
	}))
	require.NoError(t, s.Start(context.Background()))

	// Walk the clock three and a half simulated hours, then stop.
	clk.Acquire()
	require.NoError(t, clk.SleepUntil(context.Background(), epoch.Add(3*time.Hour+30*time.Minute)))
	// Stop while still holding the token so the clock cannot run ahead
	// and squeeze in an extra firing.
	s.Stop()
	clk.Release()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, firings, 3, "hourly job fires at 10:00, 11:00, 12:00")
	assert.Equal(t, epoch.Add(time.Hour), firings[0])
	assert.Equal(t, epoch.Add(3*time.Hour), firings[2])
}

func TestIntervalJob(t *testing.T) {
	clk := clock.New(epoch, 0, true, zaptest.NewLogger(t))
	require.NoError(t, clk.Start())
	defer clk.Stop()

	s := New(clk, zaptest.NewLogger(t))
	var mu sync.Mutex
	count := 0
	require.NoError(t, s.AddInterval("tick", 15*time.Minute, func(_ context.Context, _ time.Time) {
		mu.Lock()
		count++
		mu.Unlock()
	}))
	require.NoError(t, s.Start(context.Background()))

	clk.Acquire()
	require.NoError(t, clk.SleepUntil(context.Background(), epoch.Add(time.Hour+time.Minute)))
	s.Stop()
	clk.Release()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 4, count)
}

func TestAddValidation(t *testing.T) {
	clk := clock.New(epoch, 0, true, zaptest.NewLogger(t))
	defer clk.Stop()
	s := New(clk, zaptest.NewLogger(t))

	assert.Error(t, s.AddCron("bad", "not a cron spec", func(context.Context, time.Time) {}))
	assert.Error(t, s.AddInterval("bad", 0, func(context.Context, time.Time) {}))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.Error(t, s.AddInterval("late", time.Minute, func(context.Context, time.Time) {}),
		"jobs cannot be added after start")
	assert.Error(t, s.Start(context.Background()), "double start must fail")
}

func TestStopIsIdempotent(t *testing.T) {
	clk := clock.New(epoch, 0, true, zaptest.NewLogger(t))
	require.NoError(t, clk.Start())
	defer clk.Stop()

	s := New(clk, zaptest.NewLogger(t))
	require.NoError(t, s.AddInterval("tick", time.Hour, func(context.Context, time.Time) {}))
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	s.Stop()
}
