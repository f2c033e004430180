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
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

func init() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.buffer", 1024)
	viper.SetDefault("log.grace", "2s")
}

// Sink is the logging channel. Records written to it are queued and written to the underlying
// output by a single consumer in the order they were submitted. Writers only block when the
// queue is full, never on the output itself.
type Sink struct {
	out     io.Writer
	records chan []byte
	done    chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewSink creates a sink with room for capacity pending records and starts its consumer.
func NewSink(out io.Writer, capacity int) *Sink {
	s := &Sink{
		out:     out,
		records: make(chan []byte, capacity),
		done:    make(chan struct{}),
	}

	go s.drain()
	return s
}

// NewSinkFromViper creates a sink writing to out using the configured buffer size.
func NewSinkFromViper(out io.Writer) *Sink {
	return NewSink(out, viper.GetInt("log.buffer"))
}

// Write enqueues a copy of p. zerolog reuses its buffers, so the record has to be copied before
// it leaves the calling goroutine. Records written after Close are dropped and counted, since
// the consumer may still be flushing older records.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.RLock()

	if s.closed {
		s.mu.RUnlock()
		s.dropped.Add(1)
		return len(p), nil
	}

	record := make([]byte, len(p))
	copy(record, p)

	s.records <- record
	s.mu.RUnlock()

	return len(p), nil
}

// WriteLevel implements zerolog.LevelWriter. The level does not affect ordering.
func (s *Sink) WriteLevel(_ zerolog.Level, p []byte) (int, error) {
	return s.Write(p)
}

// Close stops accepting records and waits up to grace for pending records to be flushed. It
// returns false if the grace period elapsed first.
func (s *Sink) Close(grace time.Duration) bool {
	s.mu.Lock()

	if !s.closed {
		s.closed = true
		close(s.records)
	}

	s.mu.Unlock()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-s.done:
		return true
	case <-timer.C:
		return false
	}
}

// Dropped returns the number of records written after Close.
func (s *Sink) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Sink) drain() {
	defer close(s.done)

	for record := range s.records {
		// a broken output has nowhere else to report to
		_, _ = s.out.Write(record)
	}
}
