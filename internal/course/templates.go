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
	"embed"
	"fmt"
	"strings"

	"github.com/lukasdietrich/autosub/internal/models"
)

//go:embed templates/*.txt
var templateFolder embed.FS

// DefaultMessages returns the built-in text of every message kind. The first line of a text is
// the subject of the mail.
func DefaultMessages() ([]models.SpecialMessageEntity, error) {
	messages := make([]models.SpecialMessageEntity, 0, len(models.MessageKinds))

	for _, kind := range models.MessageKinds {
		fileName := fmt.Sprintf("templates/%s.txt", strings.ToLower(string(kind)))

		content, err := templateFolder.ReadFile(fileName)
		if err != nil {
			return nil, fmt.Errorf("no default text for %s: %w", kind, err)
		}

		messages = append(messages, models.SpecialMessageEntity{
			EventName: kind,
			EventText: string(content),
		})
	}

	return messages, nil
}
