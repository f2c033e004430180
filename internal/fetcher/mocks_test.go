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

package fetcher

import (
	"context"
	"fmt"
	"sync"
)

type mockDialer struct {
	mailbox *mockMailbox
	err     error
	dials   int
}

func (m *mockDialer) Dial(ctx context.Context) (Mailbox, error) {
	m.dials++

	if m.err != nil {
		return nil, m.err
	}

	return m.mailbox, nil
}

// mockMailbox keeps the seen flag of its messages in memory.
type mockMailbox struct {
	mu       sync.Mutex
	messages []RawMessage
	seen     map[uint32]bool
	unseen   []uint32
	closed   int
}

func newMockMailbox(messages ...RawMessage) *mockMailbox {
	return &mockMailbox{
		messages: messages,
		seen:     make(map[uint32]bool),
	}
}

func (m *mockMailbox) Unseen(ctx context.Context) ([]RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var unseen []RawMessage
	for _, message := range m.messages {
		if !m.seen[message.UID] {
			unseen = append(unseen, message)
		}
	}

	return unseen, nil
}

func (m *mockMailbox) MarkSeen(ctx context.Context, uid uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seen[uid] = true
	return nil
}

func (m *mockMailbox) MarkUnseen(ctx context.Context, uids []uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, uid := range uids {
		delete(m.seen, uid)
	}

	m.unseen = append(m.unseen, uids...)
	return nil
}

func (m *mockMailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed++
	return nil
}

func (m *mockMailbox) isSeen(uid uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.seen[uid]
}

type mockIDGenerator struct {
	mu   sync.Mutex
	next int
}

func (m *mockIDGenerator) GenerateID() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	return fmt.Sprintf("job-%d", m.next), nil
}
