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
	"path/filepath"

	"github.com/spf13/afero"
)

// NewFilesystem returns the filesystem of the operating system.
func NewFilesystem() afero.Fs {
	return afero.NewOsFs()
}

// Resolve makes every non-empty path absolute against the current working directory.
// Subprocesses run inside of a workspace, so relative paths handed to them would resolve
// against the wrong folder.
func Resolve(paths ...string) ([]string, error) {
	resolved := make([]string, len(paths))

	for i, path := range paths {
		if path == "" {
			continue
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}

		resolved[i] = abs
	}

	return resolved, nil
}
