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
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPOptionsFromViper(t *testing.T) {
	viper.Set("smtp.address", "mail.example.com:587")
	viper.Set("smtp.hostname", "autosub.example.com")
	viper.Set("smtp.username", "autosub")
	viper.Set("smtp.password", "secret")
	viper.Set("smtp.timeout", "10s")

	assert.Equal(t, SMTPOptions{
		Address:  "mail.example.com:587",
		Hostname: "autosub.example.com",
		Username: "autosub",
		Password: "secret",
		Timeout:  10 * time.Second,
	}, SMTPOptionsFromViper())
}

func TestNewSMTPTransportInvalidOptions(t *testing.T) {
	_, err := NewSMTPTransport(SMTPOptions{Address: "no port", Hostname: "localhost", Timeout: time.Second})
	assert.Error(t, err)
}

func TestErrorClassification(t *testing.T) {
	for _, tc := range []struct {
		err       error
		permanent bool
		transient bool
	}{
		{&textproto.Error{Code: 550}, true, false},
		{fmt.Errorf("wrapped: %w", &textproto.Error{Code: 554}), true, false},
		{&textproto.Error{Code: 451}, false, true},
		{&net.OpError{Op: "dial", Err: errors.New("connection refused")}, false, true},
		{io.EOF, false, true},
		{errors.New("tls: bad certificate"), false, false},
		{&sessionError{step: "auth", err: &textproto.Error{Code: 535}}, false, true},
		{&sessionError{step: "auth", err: errors.New("unencrypted connection")}, false, true},
		{fmt.Errorf("wrapped: %w", &sessionError{step: "starttls", err: io.EOF}), false, true},
	} {
		assert.Equal(t, tc.permanent, isPermanentErr(tc.err), tc.err.Error())
		assert.Equal(t, tc.transient, isTransientErr(tc.err), tc.err.Error())
	}
}

// serveSMTP answers a single session. Recipients are answered with rcptCode and the data of
// every accepted mail is sent to received.
func serveSMTP(ln net.Listener, rcptCode int, received chan<- string) {
	conn, err := ln.Accept()
	if err != nil {
		return
	}

	defer conn.Close()

	tp := textproto.NewConn(conn)
	tp.PrintfLine("220 localhost ESMTP")

	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}

		verb, _, _ := strings.Cut(line, " ")

		switch strings.ToUpper(verb) {
		case "EHLO", "HELO":
			tp.PrintfLine("250 localhost")
		case "AUTH":
			tp.PrintfLine("535 authentication failed")
		case "MAIL":
			tp.PrintfLine("250 sender ok")
		case "RCPT":
			tp.PrintfLine("%d recipient", rcptCode)
		case "DATA":
			tp.PrintfLine("354 go ahead")

			data, err := tp.ReadDotBytes()
			if err != nil {
				return
			}

			received <- string(data)
			tp.PrintfLine("250 queued")
		case "QUIT":
			tp.PrintfLine("221 bye")
			return
		default:
			tp.PrintfLine("502 not implemented")
		}
	}
}

func sendToFakeServer(t *testing.T, rcptCode int) (string, error) {
	return sendToFakeServerAs(t, rcptCode, "")
}

func sendToFakeServerAs(t *testing.T, rcptCode int, username string) (string, error) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	defer ln.Close()

	received := make(chan string, 1)
	go serveSMTP(ln, rcptCode, received)

	transport, err := NewSMTPTransport(SMTPOptions{
		Address:  ln.Addr().String(),
		Hostname: "autosub.test",
		Timeout:  5 * time.Second,
		Username: username,
		Password: "secret",
	})
	require.NoError(t, err)

	err = transport.Send(context.Background(), "course@example.com", []string{"jane@example.com"},
		[]byte("Subject: hello\r\n\r\nbody\r\n"))

	select {
	case data := <-received:
		return data, err
	default:
		return "", err
	}
}

func TestSMTPTransportSend(t *testing.T) {
	data, err := sendToFakeServer(t, 250)
	require.NoError(t, err)

	assert.Equal(t, "Subject: hello\n\nbody\n", data)
}

func TestSMTPTransportRejectedRecipient(t *testing.T) {
	_, err := sendToFakeServer(t, 550)
	require.Error(t, err)

	assert.True(t, isPermanentErr(err))
}

func TestSMTPTransportRejectedAuth(t *testing.T) {
	_, err := sendToFakeServerAs(t, 250, "course")
	require.Error(t, err)

	var protoErr *textproto.Error
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, 535, protoErr.Code)

	assert.False(t, isPermanentErr(err))
	assert.True(t, isTransientErr(err))
}

func TestSMTPTransportUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	address := ln.Addr().String()
	require.NoError(t, ln.Close())

	transport, err := NewSMTPTransport(SMTPOptions{Address: address, Hostname: "autosub.test", Timeout: time.Second})
	require.NoError(t, err)

	err = transport.Send(context.Background(), "course@example.com", []string{"jane@example.com"}, nil)
	require.Error(t, err)

	assert.True(t, isTransientErr(err))
}
