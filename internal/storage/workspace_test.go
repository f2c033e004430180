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

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/lukasdietrich/autosub/internal/models"
)

func TestNewFilesystem(t *testing.T) {
	fs := NewFilesystem()

	assert.NotNil(t, fs)
	assert.Implements(t, (*afero.Fs)(nil), fs)
}

func TestWorkspacesOptionsFromViper(t *testing.T) {
	viper.Set("storage.workspace.foldername", "/very-secret/workspaces")
	viper.Set("storage.archive.foldername", "/very-secret/archive")

	expected := WorkspacesOptions{
		Foldername:        "/very-secret/workspaces",
		ArchiveFoldername: "/very-secret/archive",
	}
	actual := WorkspacesOptionsFromViper()
	assert.Equal(t, expected, actual)
}

func TestNewWorkspacesInvalidOptions(t *testing.T) {
	_, err := NewWorkspaces(afero.NewMemMapFs(), new(mockIDGenerator), WorkspacesOptions{})
	assert.Error(t, err)
}

func TestNewWorkspacesRelativeFolders(t *testing.T) {
	wd, err := os.Getwd()
	assert.NoError(t, err)

	idGen := new(mockIDGenerator)
	idGen.On("GenerateID").Return("relative", nil)

	workspaces, err := NewWorkspaces(afero.NewMemMapFs(), idGen, WorkspacesOptions{
		Foldername:        "data/workspaces",
		ArchiveFoldername: "data/archive",
	})
	assert.NoError(t, err)

	ws, err := workspaces.Create(context.Background(), "body", nil)
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "data/workspaces/relative"), ws.Path)
	assert.True(t, filepath.IsAbs(ws.Path))
}

func TestResolve(t *testing.T) {
	wd, err := os.Getwd()
	assert.NoError(t, err)

	paths, err := Resolve("tasks/1", "", "/srv/tasks/2")
	assert.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(wd, "tasks/1"), "", "/srv/tasks/2"}, paths)
}

func TestWorkspacesTestSuite(t *testing.T) {
	suite.Run(t, new(WorkspacesTestSuite))
}

type WorkspacesTestSuite struct {
	suite.Suite

	ctx        context.Context
	fs         afero.Fs
	idGen      *mockIDGenerator
	workspaces *Workspaces
}

func (s *WorkspacesTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.fs = afero.NewMemMapFs()
	s.idGen = new(mockIDGenerator)

	workspaces, err := NewWorkspaces(s.fs, s.idGen, WorkspacesOptions{
		Foldername:        "/test/workspaces",
		ArchiveFoldername: "/test/archive",
	})
	s.Require().NoError(err)
	s.Require().NotNil(workspaces)

	s.workspaces = workspaces
}

func (s *WorkspacesTestSuite) TearDownTest() {
	mock.AssertExpectationsForObjects(s.T(), s.idGen)
}

func (s *WorkspacesTestSuite) assertFileContent(filename string, expectedContent string) {
	actualContent, err := afero.ReadFile(s.fs, filename)
	s.Require().NoError(err)
	s.Assert().Equal(expectedContent, string(actualContent))
}

func (s *WorkspacesTestSuite) TestCreate() {
	s.idGen.On("GenerateID").Return("TestCreate", nil)

	ws, err := s.workspaces.Create(s.ctx, "Hello", []models.Attachment{
		{Filename: "solution.c", Content: []byte("int main() {}")},
		{Filename: "../../etc/passwd", Content: []byte("nope")},
		{Filename: "", Content: []byte("anonymous")},
		{Filename: "mail.txt", Content: []byte("shadowing")},
	})
	s.Require().NoError(err)
	s.Assert().Equal("TestCreate", ws.ID)
	s.Assert().Equal("/test/workspaces/TestCreate", ws.Path)

	s.assertFileContent("/test/workspaces/TestCreate/mail.txt", "Hello")
	s.assertFileContent("/test/workspaces/TestCreate/solution.c", "int main() {}")
	s.assertFileContent("/test/workspaces/TestCreate/passwd", "nope")
	s.assertFileContent("/test/workspaces/TestCreate/attachment-2", "anonymous")
	s.assertFileContent("/test/workspaces/TestCreate/attachment-3", "shadowing")
}

func (s *WorkspacesTestSuite) TestCreate_duplicateNames() {
	s.idGen.On("GenerateID").Return("TestCreate_duplicateNames", nil)

	ws, err := s.workspaces.Create(s.ctx, "", []models.Attachment{
		{Filename: "a.txt", Content: []byte("first")},
		{Filename: "dir/a.txt", Content: []byte("second")},
	})
	s.Require().NoError(err)

	s.assertFileContent(ws.Path+"/a.txt", "first")
	s.assertFileContent(ws.Path+"/1-a.txt", "second")

	exists, err := afero.Exists(s.fs, ws.Path+"/mail.txt")
	s.Require().NoError(err)
	s.Assert().False(exists)
}

func (s *WorkspacesTestSuite) TestCreate_idError() {
	s.idGen.On("GenerateID").Return("", errors.New("no entropy"))

	_, err := s.workspaces.Create(s.ctx, "Hello", nil)
	s.Assert().Error(err)
}

func (s *WorkspacesTestSuite) TestCollect() {
	s.idGen.On("GenerateID").Return("TestCollect", nil)

	ws, err := s.workspaces.Create(s.ctx, "", []models.Attachment{
		{Filename: "b.txt", Content: []byte("b")},
		{Filename: "a.txt", Content: []byte("a")},
	})
	s.Require().NoError(err)
	s.Require().NoError(s.fs.MkdirAll(ws.Path+"/nested", 0700))

	attachments, err := s.workspaces.Collect(s.ctx, ws)
	s.Require().NoError(err)
	s.Assert().Equal([]models.Attachment{
		{Filename: "a.txt", Content: []byte("a")},
		{Filename: "b.txt", Content: []byte("b")},
	}, attachments)
}

func (s *WorkspacesTestSuite) TestArchive() {
	s.idGen.On("GenerateID").Return("TestArchive", nil)

	ws, err := s.workspaces.Create(s.ctx, "Result 3", []models.Attachment{
		{Filename: "solution.c", Content: []byte("int main() {}")},
	})
	s.Require().NoError(err)

	s.Require().NoError(s.workspaces.Archive(s.ctx, ws, 7, 3))

	s.assertFileContent("/test/archive/user7/task3/TestArchive/mail.txt", "Result 3")
	s.assertFileContent("/test/archive/user7/task3/TestArchive/solution.c", "int main() {}")

	exists, err := afero.DirExists(s.fs, ws.Path)
	s.Require().NoError(err)
	s.Assert().False(exists)
}

func (s *WorkspacesTestSuite) TestRemove() {
	s.idGen.On("GenerateID").Return("TestRemove", nil)

	ws, err := s.workspaces.Create(s.ctx, "Hello", nil)
	s.Require().NoError(err)

	s.Require().NoError(s.workspaces.Remove(s.ctx, ws))
	s.Require().NoError(s.workspaces.Remove(s.ctx, ws))

	exists, err := afero.DirExists(s.fs, ws.Path)
	s.Require().NoError(err)
	s.Assert().False(exists)
}
