// Copyright (C) 2020  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package schedule runs periodic work on cron schedules.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Parse accepts a plain duration ("30s"), a descriptor ("@every 30s", "@hourly") or a standard
// five field cron expression.
func Parse(spec string) (cron.Schedule, error) {
	if period, err := time.ParseDuration(spec); err == nil {
		if period <= 0 {
			return nil, fmt.Errorf("period must be positive, got %s", spec)
		}

		return cron.Every(period), nil
	}

	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	return schedule, nil
}

// Loop calls fn right away and then whenever the schedule fires or a value arrives on wake. It
// returns once ctx is done. fn is never called concurrently with itself.
func Loop(ctx context.Context, schedule cron.Schedule, wake <-chan struct{}, fn func(context.Context)) {
	for {
		if ctx.Err() != nil {
			return
		}

		fn(ctx)

		timer := time.NewTimer(time.Until(schedule.Next(time.Now())))

		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case <-timer.C:

		case <-wake:
			timer.Stop()
		}
	}
}

// Poke sends a non-blocking signal on wake. Signals are coalesced when wake is buffered and
// already holds one.
func Poke(wake chan<- struct{}) {
	select {
	case wake <- struct{}{}:
	default:
	}
}
