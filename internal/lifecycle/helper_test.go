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

package lifecycle

import (
	"context"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/suite"

	"github.com/lukasdietrich/autosub/internal/database"
	"github.com/lukasdietrich/autosub/internal/models"
)

type baseLifecycleTestSuite struct {
	suite.Suite

	ctx   context.Context
	conn  database.Conn
	locks *database.UserLocks
}

func (s *baseLifecycleTestSuite) SetupTest() {
	viper.Set("storage.database.filename", ":memory:")
	viper.Set("storage.database.journalmode", "memory")

	conn, err := database.OpenConnection()
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.conn = conn
	s.locks = database.NewUserLocks()

	// task 1 and 2 overlap, task 3 opens after both closed and task 4 is inactive
	s.requireExec(`
		insert into "tasks" ( "nr", "start_at", "deadline_at", "path", "generator", "test", "active" )
		values
			( 1, 100, 200, 'tasks/1', '', 'tasks/1/test.sh', 1 ) ,
			( 2, 150, 300, 'tasks/2', 'tasks/2/generate.sh', 'tasks/2/test.sh', 1 ) ,
			( 3, 400, 500, 'tasks/3', '', 'tasks/3/test.sh', 1 ) ,
			( 4, 100, 900, 'tasks/4', '', 'tasks/4/test.sh', 0 ) ;

		insert into "users" ( "id", "name", "email", "first_mail" )
		values
			( 1, 'Jane', 'jane@example.com', 90 ) ,
			( 2, 'John', 'john@example.com', 90 ) ;
	`)
}

func (s *baseLifecycleTestSuite) TearDownTest() {
	s.Require().NoError(s.conn.Close())
}

func (s *baseLifecycleTestSuite) requireExec(query string, args ...interface{}) {
	_, err := s.conn.ExecContext(s.ctx, query, args...)
	s.Require().NoError(err)
}

func (s *baseLifecycleTestSuite) clock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func (s *baseLifecycleTestSuite) complete(userID, taskNr int64) {
	s.requireExec(`
		insert into "user_tasks" ( "user_id", "task_nr", "nr_submissions", "first_successful" )
		values ( $1, $2, 1, 1 ) ;
	`, userID, taskNr)
}

func (s *baseLifecycleTestSuite) findUser(userID int64) *models.UserEntity {
	user, err := database.NewUserDao().FindByID(s.ctx, s.conn, userID)
	s.Require().NoError(err)
	return user
}

func (s *baseLifecycleTestSuite) findAssignment(userID, taskNr int64) *models.TaskAssignmentEntity {
	assignment, err := database.NewAssignmentDao().Find(s.ctx, s.conn, userID, taskNr)
	s.Require().NoError(err)
	return assignment
}

func (s *baseLifecycleTestSuite) countRows(table string) int {
	var count int
	s.Require().NoError(s.conn.QueryRowxContext(s.ctx, `select count(*) from "`+table+`" ;`).Scan(&count))
	return count
}
