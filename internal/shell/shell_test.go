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

package shell

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/lukasdietrich/autosub/internal/course"
	"github.com/lukasdietrich/autosub/internal/database"
)

func TestLookup(t *testing.T) {
	s := NewShell(nil, nil, nil, nil, nil, nil)

	cmd, ok := s.commands.lookup([]string{"user", "info"})
	assert.True(t, ok)
	assert.Equal(t, "info", cmd.name)
	assert.NotNil(t, cmd.action)

	cmd, ok = s.commands.lookup([]string{"settings"})
	assert.True(t, ok)
	assert.Nil(t, cmd.action)
	assert.Len(t, cmd.children, 3)

	_, ok = s.commands.lookup([]string{"user", "delete"})
	assert.False(t, ok)

	_, ok = s.commands.lookup(nil)
	assert.False(t, ok)
}

func TestShellTestSuite(t *testing.T) {
	suite.Run(t, new(ShellTestSuite))
}

type ShellTestSuite struct {
	suite.Suite

	ctx   context.Context
	conn  database.Conn
	shell *Shell
}

func (s *ShellTestSuite) SetupTest() {
	viper.Set("storage.database.filename", ":memory:")
	viper.Set("storage.database.journalmode", "memory")

	conn, err := database.OpenConnection()
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.conn = conn

	configDao := database.NewConfigDao()
	s.shell = NewShell(
		conn,
		database.NewUserDao(),
		database.NewProgressDao(),
		database.NewWhitelistDao(),
		configDao,
		course.NewSettingsReader(configDao),
	)
}

func (s *ShellTestSuite) TearDownTest() {
	s.Require().NoError(s.conn.Close())
}

func (s *ShellTestSuite) requireExec(query string, args ...interface{}) {
	_, err := s.conn.ExecContext(s.ctx, query, args...)
	s.Require().NoError(err)
}

func (s *ShellTestSuite) run(p prompter, args ...string) ([]string, error) {
	cmd, ok := s.shell.commands.lookup(args)
	s.Require().True(ok)

	return s.shell.executeCommand(s.ctx, p, cmd)
}

func (s *ShellTestSuite) seedUsers() {
	s.requireExec(`
		insert into "tasks" ( "nr", "start_at", "deadline_at", "path", "generator", "test", "active" )
		values
			( 1, 100, 200, 'tasks/1', '', 'tasks/1/test.sh', 1 ) ,
			( 2, 150, 300, 'tasks/2', '', 'tasks/2/test.sh', 1 ) ;

		insert into "users" ( "id", "name", "email", "first_mail", "current_task" )
		values
			( 1, 'Jane', 'jane@example.com', 90, 2 ) ,
			( 2, 'John', 'john@example.com', 90, null ) ;

		insert into "user_tasks" ( "user_id", "task_nr", "nr_submissions", "first_successful" )
		values
			( 1, 1, 2, 120 ) ,
			( 1, 2, 1, null ) ;
	`)
}

func (s *ShellTestSuite) TestListUsers() {
	s.seedUsers()

	lines, err := s.run(&mockPrompter{}, "user", "list")
	s.Require().NoError(err)
	s.Equal([]string{
		"(2) Users",
		"     1  Jane <jane@example.com>  task 2",
		"     2  John <john@example.com>  no task",
	}, lines)
}

func (s *ShellTestSuite) TestInfoUser() {
	s.seedUsers()

	lines, err := s.run(&mockPrompter{choice: 0}, "user", "info")
	s.Require().NoError(err)
	s.Contains(lines, `Name:       "Jane"`)
	s.Contains(lines, "Current:    task 2")
	s.Contains(lines, "  Task 1: solved on 1970-01-01 00:02 UTC after 2 submissions")
	s.Contains(lines, "  Task 2: not solved, 1 submissions")
}

func (s *ShellTestSuite) TestInfoUserWithoutUsers() {
	_, err := s.run(&mockPrompter{}, "user", "info")
	s.ErrorIs(err, errNoUsers)
}

func (s *ShellTestSuite) TestAddWhitelist() {
	_, err := s.run(&mockPrompter{answers: []string{" new@example.com "}}, "whitelist", "add")
	s.Require().NoError(err)

	lines, err := s.run(&mockPrompter{}, "whitelist", "list")
	s.Require().NoError(err)
	s.Equal([]string{"(1) Addresses", "  new@example.com"}, lines)
}

func (s *ShellTestSuite) TestAddWhitelistInvalid() {
	_, err := s.run(&mockPrompter{answers: []string{"not-an-address"}}, "whitelist", "add")
	s.Error(err)
}

func (s *ShellTestSuite) TestSettings() {
	lines, err := s.run(&mockPrompter{}, "settings", "show")
	s.Require().NoError(err)
	s.Equal([]string{
		"Admin:                 none",
		"Registration deadline: none",
	}, lines)

	admin := &mockPrompter{answers: []string{"admin@example.com"}}
	_, err = s.run(admin, "settings", "admin")
	s.Require().NoError(err)
	s.Equal([]string{clearValue}, admin.defaults)

	deadline := &mockPrompter{answers: []string{"2020-10-01T12:00:00+02:00"}}
	_, err = s.run(deadline, "settings", "deadline")
	s.Require().NoError(err)

	lines, err = s.run(&mockPrompter{}, "settings", "show")
	s.Require().NoError(err)
	s.Equal([]string{
		"Admin:                 admin@example.com",
		"Registration deadline: 2020-10-01 10:00 UTC",
	}, lines)

	reset := &mockPrompter{answers: []string{clearValue}}
	_, err = s.run(reset, "settings", "deadline")
	s.Require().NoError(err)
	s.Equal([]string{"2020-10-01T10:00:00Z"}, reset.defaults)

	lines, err = s.run(&mockPrompter{}, "settings", "show")
	s.Require().NoError(err)
	s.Equal("Registration deadline: none", lines[1])
}

func (s *ShellTestSuite) TestSetDeadlineInvalid() {
	_, err := s.run(&mockPrompter{answers: []string{"tomorrow"}}, "settings", "deadline")
	s.Error(err)

	lines, err := s.run(&mockPrompter{}, "settings", "show")
	s.Require().NoError(err)
	s.Equal("Registration deadline: none", lines[1])
}
