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
	"regexp"
	"strconv"
	"strings"
)

// Command is the intent of a mail, derived from its subject.
type Command int

const (
	// CommandUnknown is any subject not understood.
	CommandUnknown Command = iota
	// CommandSubmission is a solution for a task.
	CommandSubmission
	// CommandQuestion is forwarded to the course staff.
	CommandQuestion
	// CommandStatus requests a progress report.
	CommandStatus
)

func (c Command) String() string {
	switch c {
	case CommandSubmission:
		return "submission"
	case CommandQuestion:
		return "question"
	case CommandStatus:
		return "status"
	default:
		return "unknown"
	}
}

var (
	replyPrefix       = regexp.MustCompile(`(?i)^((re|aw|fwd?|wg)\s*:\s*)+`)
	submissionSubject = regexp.MustCompile(`(?i)^(result|task)\s*#?\s*(\d+)\b`)
)

// Classify maps a subject to a command. Submissions also return the task number.
func Classify(subject string) (Command, int64) {
	subject = replyPrefix.ReplaceAllString(strings.TrimSpace(subject), "")

	if match := submissionSubject.FindStringSubmatch(subject); match != nil {
		nr, err := strconv.ParseInt(match[2], 10, 64)
		if err == nil {
			return CommandSubmission, nr
		}
	}

	switch lower := strings.ToLower(subject); {
	case strings.HasPrefix(lower, "question"):
		return CommandQuestion, 0
	case strings.HasPrefix(lower, "status"):
		return CommandStatus, 0
	default:
		return CommandUnknown, 0
	}
}
