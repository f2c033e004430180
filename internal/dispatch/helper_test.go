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

	"github.com/spf13/viper"
	"github.com/stretchr/testify/suite"

	"github.com/lukasdietrich/autosub/internal/course"
	"github.com/lukasdietrich/autosub/internal/database"
)

type baseDispatchTestSuite struct {
	suite.Suite

	ctx  context.Context
	conn database.Conn
}

func (s *baseDispatchTestSuite) SetupTest() {
	viper.Set("storage.database.filename", ":memory:")
	viper.Set("storage.database.journalmode", "memory")

	conn, err := database.OpenConnection()
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.conn = conn

	messages, err := course.DefaultMessages()
	s.Require().NoError(err)

	messageDao := database.NewMessageDao()
	for i := range messages {
		s.Require().NoError(messageDao.InsertIfAbsent(s.ctx, s.conn, &messages[i]))
	}
}

func (s *baseDispatchTestSuite) TearDownTest() {
	s.Require().NoError(s.conn.Close())
}

func (s *baseDispatchTestSuite) requireExec(query string) {
	_, err := s.conn.ExecContext(s.ctx, query)
	s.Require().NoError(err)
}
