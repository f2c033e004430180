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
	"context"
	"time"

	"github.com/lukasdietrich/autosub/internal/database"
	"github.com/lukasdietrich/autosub/internal/models"
)

// Settings are the course wide configuration items, that may be edited while the system is
// running.
type Settings struct {
	AdminEmail           models.Address
	RegistrationDeadline time.Time
}

// RegistrationOver reports whether new users may no longer register.
func (s *Settings) RegistrationOver(now time.Time) bool {
	return !s.RegistrationDeadline.IsZero() && !now.Before(s.RegistrationDeadline)
}

// SettingsReader reads the current Settings from the database.
type SettingsReader struct {
	configDao database.ConfigDao
}

// NewSettingsReader creates a new SettingsReader.
func NewSettingsReader(configDao database.ConfigDao) *SettingsReader {
	return &SettingsReader{configDao: configDao}
}

// Read returns the current settings. Missing or empty items are left at their zero value.
func (r *SettingsReader) Read(ctx context.Context, q database.Queryer) (*Settings, error) {
	var settings Settings

	deadline, err := r.item(ctx, q, models.ConfigRegistrationDeadline)
	if err != nil {
		return nil, err
	}

	if deadline != "" {
		if settings.RegistrationDeadline, err = time.Parse(time.RFC3339, deadline); err != nil {
			return nil, err
		}
	}

	admin, err := r.item(ctx, q, models.ConfigAdminEmail)
	if err != nil {
		return nil, err
	}

	if admin != "" {
		if settings.AdminEmail, err = models.Parse(admin); err != nil {
			return nil, err
		}
	}

	return &settings, nil
}

func (r *SettingsReader) item(ctx context.Context, q database.Queryer, item string) (string, error) {
	entry, err := r.configDao.Find(ctx, q, item)
	if err != nil {
		if database.IsErrNoRows(err) {
			return "", nil
		}

		return "", err
	}

	return entry.Content, nil
}
