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
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"net/textproto"
	"time"

	"github.com/spf13/viper"

	"github.com/lukasdietrich/autosub/internal/config"
	"github.com/lukasdietrich/autosub/internal/log"
)

func init() {
	viper.SetDefault("smtp.address", "localhost:25")
	viper.SetDefault("smtp.hostname", "localhost")
	viper.SetDefault("smtp.timeout", "30s")
}

// Transport delivers a composed message.
type Transport interface {
	Send(ctx context.Context, from string, to []string, data []byte) error
}

// SMTPOptions configure the connection to the relay.
type SMTPOptions struct {
	// Address is the host and port of the relay.
	Address string `validate:"required,hostname_port"`
	// Hostname is sent to the relay with EHLO.
	Hostname string `validate:"required"`
	// Username and Password enable PLAIN authentication if set.
	Username string
	Password string
	// Timeout bounds a single delivery attempt.
	Timeout time.Duration `validate:"gt=0"`
}

// SMTPOptionsFromViper reads the relay options from viper.
//
// `smtp.address` is the host and port of the relay.
// `smtp.hostname` is the name sent with EHLO.
// `smtp.username` and `smtp.password` are the credentials of the relay.
// `smtp.timeout` bounds a single delivery attempt.
func SMTPOptionsFromViper() SMTPOptions {
	return SMTPOptions{
		Address:  viper.GetString("smtp.address"),
		Hostname: viper.GetString("smtp.hostname"),
		Username: viper.GetString("smtp.username"),
		Password: viper.GetString("smtp.password"),
		Timeout:  viper.GetDuration("smtp.timeout"),
	}
}

// NewSMTPTransport creates a Transport delivering every message through a single relay.
func NewSMTPTransport(opts SMTPOptions) (Transport, error) {
	if err := config.Validate(opts); err != nil {
		return nil, err
	}

	return &smtpTransport{opts: opts}, nil
}

type smtpTransport struct {
	opts SMTPOptions
}

func (t *smtpTransport) Send(ctx context.Context, from string, to []string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, t.opts.Timeout)
	defer cancel()

	var dialer net.Dialer

	conn, err := dialer.DialContext(ctx, "tcp", t.opts.Address)
	if err != nil {
		return err
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	host, _, _ := net.SplitHostPort(t.opts.Address)

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}

	defer client.Close()

	if err := t.initClient(client, host); err != nil {
		return err
	}

	if err := copyEnvelope(client, from, to); err != nil {
		return err
	}

	if err := copyData(client, data); err != nil {
		return err
	}

	if err := client.Quit(); err != nil {
		log.DebugContext(ctx).Err(err).Msg("relay did not accept quit")
	}

	return nil
}

// initClient says hello to the relay, upgrades to tls if available and authenticates if
// credentials are configured.
func (t *smtpTransport) initClient(client *smtp.Client, host string) error {
	if err := client.Hello(t.opts.Hostname); err != nil {
		return err
	}

	if ok, _ := client.Extension("STARTTLS"); ok {
		config := tls.Config{
			ServerName: host,
		}

		if err := client.StartTLS(&config); err != nil {
			return &sessionError{step: "starttls", err: err}
		}
	}

	if t.opts.Username != "" {
		auth := smtp.PlainAuth("", t.opts.Username, t.opts.Password, host)

		if err := client.Auth(auth); err != nil {
			return &sessionError{step: "auth", err: err}
		}
	}

	return nil
}

// copyEnvelope sends the return- and forward-paths of the mail.
func copyEnvelope(client *smtp.Client, from string, to []string) error {
	if err := client.Mail(from); err != nil {
		return err
	}

	for _, recipient := range to {
		if err := client.Rcpt(recipient); err != nil {
			return err
		}
	}

	return nil
}

// copyData writes the mail content.
func copyData(client *smtp.Client, data []byte) error {
	w, err := client.Data()
	if err != nil {
		return err
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return err
	}

	return w.Close()
}

// sessionError is a failed tls upgrade or authentication. A relay rejecting credentials or
// a handshake usually recovers once it or its configuration is fixed, so it is retried even
// when the relay answered with a 5xx code.
type sessionError struct {
	step string
	err  error
}

func (e *sessionError) Error() string {
	return fmt.Sprintf("smtp %s failed: %v", e.step, e.err)
}

func (e *sessionError) Unwrap() error {
	return e.err
}

// isPermanentErr tests if an error is an smtp error and if it has a 5xx code.
func isPermanentErr(err error) bool {
	var sessionErr *sessionError
	if errors.As(err, &sessionErr) {
		return false
	}

	var protoError *textproto.Error
	if errors.As(err, &protoError) {
		return protoError.Code >= 500 && protoError.Code < 600
	}

	return false
}

// isTransientErr tests if an error is a session error, an smtp error with a 4xx code or a
// network error.
func isTransientErr(err error) bool {
	var sessionErr *sessionError
	if errors.As(err, &sessionErr) {
		return true
	}

	var protoError *textproto.Error
	if errors.As(err, &protoError) {
		return protoError.Code >= 400 && protoError.Code < 500
	}

	var netError net.Error
	return errors.As(err, &netError) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
