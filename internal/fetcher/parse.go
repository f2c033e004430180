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
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/lukasdietrich/autosub/internal/models"
)

// ErrNoSender is returned for messages without a usable From header. Nobody can be notified
// about them.
var ErrNoSender = errors.New("message has no sender")

// Mail is the relevant content of an inbound message.
type Mail struct {
	From        models.Address
	FromName    string
	Subject     string
	Date        time.Time
	Body        string
	Attachments []models.Attachment
}

// ParseMail reads a message. If the sender could be determined before a later part of the
// message failed to parse, the partial Mail is returned along with the error.
func ParseMail(r io.Reader) (*Mail, error) {
	reader, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("%w: %w", ErrNoSender, err)
	}

	defer reader.Close()

	from, err := reader.Header.AddressList("From")
	if err != nil || len(from) == 0 {
		return nil, ErrNoSender
	}

	address, err := models.ParseNormalized(from[0].Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoSender, err)
	}

	m := Mail{
		From:     address,
		FromName: from[0].Name,
	}

	if m.Subject, err = reader.Header.Subject(); err != nil {
		return &m, err
	}

	m.Subject = strings.TrimSpace(m.Subject)

	if m.Date, err = reader.Header.Date(); err != nil {
		m.Date = time.Time{}
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}

		if err != nil && !message.IsUnknownCharset(err) {
			return &m, err
		}

		if err := m.readPart(part); err != nil {
			return &m, err
		}
	}

	return &m, nil
}

func (m *Mail) readPart(part *mail.Part) error {
	switch header := part.Header.(type) {
	case *mail.InlineHeader:
		if m.Body != "" || !isPlainText(header) {
			return nil
		}

		body, err := io.ReadAll(part.Body)
		if err != nil {
			return err
		}

		m.Body = strings.TrimSpace(string(body))

	case *mail.AttachmentHeader:
		filename, err := header.Filename()
		if err != nil {
			return err
		}

		content, err := io.ReadAll(part.Body)
		if err != nil {
			return err
		}

		m.Attachments = append(m.Attachments, models.Attachment{
			Filename: filename,
			Content:  content,
		})
	}

	return nil
}

func isPlainText(header *mail.InlineHeader) bool {
	if !header.Has("Content-Type") {
		return true
	}

	contentType, _, err := header.ContentType()
	return err == nil && contentType == "text/plain"
}
