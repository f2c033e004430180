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

package fetcher

import (
	"strings"
)

// rawMail builds a plain text message.
func rawMail(from, subject, body string) []byte {
	return crlf(`From: ` + from + `
To: course@example.com
Subject: ` + subject + `
Date: Thu, 01 Oct 2020 12:00:00 +0000
Content-Type: text/plain; charset=utf-8

` + body + `
`)
}

// rawSubmission builds a multipart message with a single attachment.
func rawSubmission(from, subject, filename, content string) []byte {
	return crlf(`From: ` + from + `
To: course@example.com
Subject: ` + subject + `
Date: Thu, 01 Oct 2020 12:00:00 +0000
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary=frontier

--frontier
Content-Type: text/plain; charset=utf-8

see attachment
--frontier
Content-Type: text/plain
Content-Disposition: attachment; filename=` + filename + `

` + content + `
--frontier--
`)
}

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}
