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

package database

import (
	"context"
	"sync"
)

// UserLocks serializes writers per user. Different users never wait for each other.
type UserLocks struct {
	entries map[int64]*userLock
	mu      sync.Mutex
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewUserLocks creates a new, empty set of locks.
func NewUserLocks() *UserLocks {
	return &UserLocks{
		entries: make(map[int64]*userLock),
	}
}

// Lock blocks until the lock of a user is acquired.
func (l *UserLocks) Lock(userID int64) {
	l.mu.Lock()

	entry, ok := l.entries[userID]
	if !ok {
		entry = new(userLock)
		l.entries[userID] = entry
	}

	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
}

// Unlock releases the lock of a user.
func (l *UserLocks) Unlock(userID int64) {
	l.mu.Lock()

	entry := l.entries[userID]
	entry.refs--

	if entry.refs == 0 {
		delete(l.entries, userID)
	}

	l.mu.Unlock()

	entry.mu.Unlock()
}

// WithUserLock runs fn inside of a transaction while holding the lock of a user.
func WithUserLock(ctx context.Context, c Conn, locks *UserLocks, userID int64, fn func(Tx) error) error {
	locks.Lock(userID)
	defer locks.Unlock(userID)

	return InTx(ctx, c, fn)
}
