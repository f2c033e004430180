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

package grading

import (
	"bytes"
	"sync"
)

const truncatedNotice = "\n[output truncated]"

// limitedBuffer keeps the first limit bytes written to it and silently drops the rest. Stdout and
// stderr of a subprocess are copied concurrently, so writes are synchronized.
type limitedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newLimitedBuffer(limit int) *limitedBuffer {
	return &limitedBuffer{limit: limit}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if remaining := b.limit - b.buf.Len(); len(p) > remaining {
		b.buf.Write(p[:max(remaining, 0)])
		b.truncated = true
	} else {
		b.buf.Write(p)
	}

	// the subprocess must never see a short write
	return len(p), nil
}

// WriteString appends s regardless of the limit.
func (b *limitedBuffer) WriteString(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf.WriteString(s)
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.truncated {
		return b.buf.String() + truncatedNotice
	}

	return b.buf.String()
}
