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

package log

import (
	"context"

	"github.com/rs/zerolog"
)

type fieldOrigin struct{}
type fieldJob struct{}
type fieldUser struct{}

// WithOrigin adds the name of the pipeline stage to the context.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, fieldOrigin{}, origin)
}

// WithJob adds the job identifier to the context.
func WithJob(ctx context.Context, job string) context.Context {
	return context.WithValue(ctx, fieldJob{}, job)
}

// WithUser adds the user id to the context.
func WithUser(ctx context.Context, user int64) context.Context {
	return context.WithValue(ctx, fieldUser{}, user)
}

// appendContextFields adds defined fields in the context to the log event.
func appendContextFields(ctx context.Context, event *zerolog.Event) *zerolog.Event {
	if origin, ok := ctx.Value(fieldOrigin{}).(string); ok {
		event.Str("origin", origin)
	}

	if job, ok := ctx.Value(fieldJob{}).(string); ok {
		event.Str("job", job)
	}

	if user, ok := ctx.Value(fieldUser{}).(int64); ok {
		event.Int64("user", user)
	}

	return event
}
