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

package dispatch

import (
	"context"
	"sync"
)

type sentMail struct {
	from string
	to   []string
	data []byte
}

// mockTransport fails with the queued errors before it accepts a message.
type mockTransport struct {
	mu       sync.Mutex
	errs     []error
	attempts int
	sent     []sentMail
}

func (m *mockTransport) Send(ctx context.Context, from string, to []string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts++

	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return err
	}

	m.sent = append(m.sent, sentMail{from: from, to: to, data: data})
	return nil
}
