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

// Package course loads the course definition and brings the database in line with it.
package course

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/autosub/internal/config"
	"github.com/lukasdietrich/autosub/internal/models"
)

func init() {
	viper.SetDefault("course.filename", "course.toml")
}

// admin_email = "staff@example.com"
// registration_deadline = 2020-10-31T23:59:59Z
// whitelist = [ "student@example.com" ]
//
// [[tasks]]
// nr = 1
// start = 2020-10-01T00:00:00Z
// deadline = 2020-10-15T00:00:00Z
// path = "tasks/1"
// generator = "tasks/1/generator.sh"
// test = "tasks/1/test.sh"
// score = 5
// operator = "tutor@example.com"

type fileFormat struct {
	AdminEmail           string       `toml:"admin_email"`
	RegistrationDeadline time.Time    `toml:"registration_deadline"`
	Whitelist            []string     `toml:"whitelist"`
	Tasks                []taskFormat `toml:"tasks" validate:"dive"`
}

type taskFormat struct {
	Nr        int64     `toml:"nr" validate:"gt=0"`
	Start     time.Time `toml:"start" validate:"required"`
	Deadline  time.Time `toml:"deadline" validate:"required,gtfield=Start"`
	Path      string    `toml:"path" validate:"required"`
	Generator string    `toml:"generator"`
	Test      string    `toml:"test" validate:"required"`
	Score     int64     `toml:"score" validate:"gte=0"`
	Operator  string    `toml:"operator"`
	Active    *bool     `toml:"active"`
}

// Course is the static definition of a course offering.
type Course struct {
	AdminEmail           models.Address
	RegistrationDeadline time.Time
	Whitelist            []models.Address
	Tasks                []models.TaskEntity
}

// LoadFromViper reads the course file named by `course.filename`. Relative task paths are
// resolved against the folder of the course file.
func LoadFromViper(fs afero.Fs) (*Course, error) {
	fileName := viper.GetString("course.filename")

	dir, err := filepath.Abs(filepath.Dir(fileName))
	if err != nil {
		return nil, fmt.Errorf("could not resolve course folder: %w", err)
	}

	f, err := fs.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("could not open course file: %w", err)
	}

	defer f.Close()

	course, err := Parse(f, dir)
	if err != nil {
		return nil, fmt.Errorf("could not parse course file %q: %w", fileName, err)
	}

	return course, nil
}

// Parse decodes and validates a course definition. Relative task paths are resolved against dir.
func Parse(r io.Reader, dir string) (*Course, error) {
	var data fileFormat

	if _, err := toml.NewDecoder(r).Decode(&data); err != nil {
		return nil, err
	}

	if err := config.Validate(data); err != nil {
		return nil, err
	}

	course := Course{
		RegistrationDeadline: data.RegistrationDeadline,
	}

	if data.AdminEmail != "" {
		addr, err := models.ParseNormalized(data.AdminEmail)
		if err != nil {
			return nil, fmt.Errorf("admin_email: %w", err)
		}

		course.AdminEmail = addr
	}

	for _, raw := range data.Whitelist {
		addr, err := models.ParseNormalized(raw)
		if err != nil {
			return nil, fmt.Errorf("whitelist %q: %w", raw, err)
		}

		course.Whitelist = append(course.Whitelist, addr)
	}

	seen := make(map[int64]bool)

	for _, task := range data.Tasks {
		if seen[task.Nr] {
			return nil, fmt.Errorf("task %d is defined more than once", task.Nr)
		}

		seen[task.Nr] = true
		course.Tasks = append(course.Tasks, task.entity(dir))
	}

	return &course, nil
}

func (t taskFormat) entity(dir string) models.TaskEntity {
	active := true
	if t.Active != nil {
		active = *t.Active
	}

	return models.TaskEntity{
		Nr:         t.Nr,
		StartAt:    t.Start.Unix(),
		DeadlineAt: t.Deadline.Unix(),
		Path:       resolve(dir, t.Path),
		Generator:  resolve(dir, t.Generator),
		Test:       resolve(dir, t.Test),
		Score:      t.Score,
		Operator:   t.Operator,
		Active:     active,
	}
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(dir, path)
}
