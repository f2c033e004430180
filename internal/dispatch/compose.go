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

package dispatch

import (
	"bytes"
	"io"
	"mime"
	"path/filepath"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/lukasdietrich/autosub/internal/models"
)

// compose builds an RFC 5322 message with a plain text body and one part per attachment.
func compose(from, to models.Address, subject, body string, attachments []models.Attachment, date time.Time) ([]byte, error) {
	var header mail.Header
	header.SetDate(date)
	header.SetAddressList("From", []*mail.Address{{Address: from.String()}})
	header.SetAddressList("To", []*mail.Address{{Address: to.String()}})
	header.SetSubject(subject)
	header.Set("Auto-Submitted", "auto-generated")

	if err := header.GenerateMessageID(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	w, err := mail.CreateWriter(&buf, header)
	if err != nil {
		return nil, err
	}

	var textHeader mail.InlineHeader
	textHeader.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	part, err := w.CreateSingleInline(textHeader)
	if err != nil {
		return nil, err
	}

	if err := writePart(part, []byte(body)); err != nil {
		return nil, err
	}

	for _, attachment := range attachments {
		var attachmentHeader mail.AttachmentHeader
		attachmentHeader.SetContentType(contentType(attachment.Filename))
		attachmentHeader.SetFilename(attachment.Filename)

		part, err := w.CreateAttachment(attachmentHeader)
		if err != nil {
			return nil, err
		}

		if err := writePart(part, attachment.Content); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func writePart(w io.WriteCloser, content []byte) error {
	if _, err := w.Write(content); err != nil {
		w.Close()
		return err
	}

	return w.Close()
}

// contentType guesses the media type of an attachment by its extension.
func contentType(filename string) (string, map[string]string) {
	t, params, err := mime.ParseMediaType(mime.TypeByExtension(filepath.Ext(filename)))
	if err != nil {
		return "application/octet-stream", nil
	}

	return t, params
}
