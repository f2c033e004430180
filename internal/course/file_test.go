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

package course

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukasdietrich/autosub/internal/models"
)

const testCourseFile = `
admin_email = "Staff@Example.com"
registration_deadline = 2020-10-31T23:59:59Z
whitelist = [ "jane@example.com", "JOHN@example.com" ]

[[tasks]]
nr = 1
start = 2020-10-01T00:00:00Z
deadline = 2020-10-15T00:00:00Z
path = "tasks/1"
test = "tasks/1/test.sh"
score = 5
operator = "tutor@example.com"

[[tasks]]
nr = 2
start = 2020-10-15T00:00:00Z
deadline = 2020-11-01T00:00:00Z
path = "tasks/2"
generator = "tasks/2/generator.sh"
test = "tasks/2/test.sh"
active = false
`

func TestParse(t *testing.T) {
	course, err := Parse(strings.NewReader(testCourseFile), "/course")
	require.NoError(t, err)

	assert.Equal(t, "staff@example.com", course.AdminEmail.String())
	assert.Equal(t, time.Date(2020, 10, 31, 23, 59, 59, 0, time.UTC), course.RegistrationDeadline.UTC())
	assert.Equal(t, []models.Address{
		models.MustParse("jane@example.com"),
		models.MustParse("john@example.com"),
	}, course.Whitelist)

	assert.Equal(t, []models.TaskEntity{
		{
			Nr:         1,
			StartAt:    time.Date(2020, 10, 1, 0, 0, 0, 0, time.UTC).Unix(),
			DeadlineAt: time.Date(2020, 10, 15, 0, 0, 0, 0, time.UTC).Unix(),
			Path:       "/course/tasks/1",
			Test:       "/course/tasks/1/test.sh",
			Score:      5,
			Operator:   "tutor@example.com",
			Active:     true,
		},
		{
			Nr:         2,
			StartAt:    time.Date(2020, 10, 15, 0, 0, 0, 0, time.UTC).Unix(),
			DeadlineAt: time.Date(2020, 11, 1, 0, 0, 0, 0, time.UTC).Unix(),
			Path:       "/course/tasks/2",
			Generator:  "/course/tasks/2/generator.sh",
			Test:       "/course/tasks/2/test.sh",
			Active:     false,
		},
	}, course.Tasks)
}

func TestParseInvalid(t *testing.T) {
	for name, content := range map[string]string{
		"syntax": `tasks = [`,
		"deadlineBeforeStart": `
			[[tasks]]
			nr = 1
			start = 2020-10-15T00:00:00Z
			deadline = 2020-10-01T00:00:00Z
			path = "tasks/1"
			test = "tasks/1/test.sh"
		`,
		"missingTest": `
			[[tasks]]
			nr = 1
			start = 2020-10-01T00:00:00Z
			deadline = 2020-10-15T00:00:00Z
			path = "tasks/1"
		`,
		"zeroNumber": `
			[[tasks]]
			start = 2020-10-01T00:00:00Z
			deadline = 2020-10-15T00:00:00Z
			path = "tasks/1"
			test = "tasks/1/test.sh"
		`,
		"duplicateNumber": `
			[[tasks]]
			nr = 1
			start = 2020-10-01T00:00:00Z
			deadline = 2020-10-15T00:00:00Z
			path = "tasks/1"
			test = "tasks/1/test.sh"

			[[tasks]]
			nr = 1
			start = 2020-10-01T00:00:00Z
			deadline = 2020-10-15T00:00:00Z
			path = "tasks/1b"
			test = "tasks/1b/test.sh"
		`,
		"invalidWhitelist": `whitelist = [ "not-an-address" ]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(content), "/course")
			assert.Error(t, err)
		})
	}
}

func TestLoadFromViper(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/course/course.toml", []byte(testCourseFile), 0600))

	viper.Set("course.filename", "/course/course.toml")

	course, err := LoadFromViper(fs)
	require.NoError(t, err)
	assert.Len(t, course.Tasks, 2)
	assert.Equal(t, "/course/tasks/1/test.sh", course.Tasks[0].Test)

	viper.Set("course.filename", "/course/missing.toml")

	_, err = LoadFromViper(fs)
	assert.Error(t, err)
}

func TestParseKeepsAbsolutePaths(t *testing.T) {
	course, err := Parse(strings.NewReader(`
		[[tasks]]
		nr = 1
		start = 2020-10-01T00:00:00Z
		deadline = 2020-10-15T00:00:00Z
		path = "/srv/tasks/1"
		test = "check.sh"
	`), "/course")
	require.NoError(t, err)

	assert.Equal(t, "/srv/tasks/1", course.Tasks[0].Path)
	assert.Equal(t, "/course/check.sh", course.Tasks[0].Test)
	assert.Empty(t, course.Tasks[0].Generator)
}

func TestLoadFromViperRelativeFilename(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "courses/course.toml", []byte(testCourseFile), 0600))

	viper.Set("course.filename", "courses/course.toml")

	course, err := LoadFromViper(fs)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "courses/tasks/1"), course.Tasks[0].Path)
}
