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
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sort"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/autosub/internal/config"
)

func init() {
	viper.SetDefault("imap.address", "localhost:993")
	viper.SetDefault("imap.mailbox", "INBOX")
	viper.SetDefault("imap.tls", true)
	viper.SetDefault("imap.timeout", "30s")
}

// RawMessage is an unseen message as stored in the mailbox.
type RawMessage struct {
	UID  uint32
	Data []byte
}

// Mailbox is an open connection to the inbound mailbox.
type Mailbox interface {
	// Unseen returns all messages without the seen flag, ordered by uid. Fetching does not set
	// the flag.
	Unseen(ctx context.Context) ([]RawMessage, error)
	// MarkSeen sets the seen flag of a message.
	MarkSeen(ctx context.Context, uid uint32) error
	// MarkUnseen clears the seen flag of messages, so that they are fetched again.
	MarkUnseen(ctx context.Context, uids []uint32) error
	// Close logs out and closes the connection.
	Close() error
}

// Dialer opens connections to the inbound mailbox.
type Dialer interface {
	Dial(ctx context.Context) (Mailbox, error)
}

// IMAPOptions configure the connection to the inbound mailbox.
type IMAPOptions struct {
	// Address is the host and port of the imap server.
	Address string `validate:"required,hostname_port"`
	// Username and Password are the credentials of the mailbox.
	Username string `validate:"required"`
	Password string
	// Mailbox is the folder that receives submissions.
	Mailbox string `validate:"required"`
	// TLS enables implicit tls.
	TLS bool
	// Timeout bounds every imap command.
	Timeout time.Duration `validate:"gt=0"`
}

// IMAPOptionsFromViper reads the mailbox options from viper.
//
// `imap.address` is the host and port of the imap server.
// `imap.username` and `imap.password` are the credentials of the mailbox.
// `imap.mailbox` is the folder that receives submissions.
// `imap.tls` enables implicit tls.
// `imap.timeout` bounds every imap command.
func IMAPOptionsFromViper() IMAPOptions {
	return IMAPOptions{
		Address:  viper.GetString("imap.address"),
		Username: viper.GetString("imap.username"),
		Password: viper.GetString("imap.password"),
		Mailbox:  viper.GetString("imap.mailbox"),
		TLS:      viper.GetBool("imap.tls"),
		Timeout:  viper.GetDuration("imap.timeout"),
	}
}

// NewIMAPDialer creates a Dialer logging into an imap server.
func NewIMAPDialer(opts IMAPOptions) (Dialer, error) {
	if err := config.Validate(opts); err != nil {
		return nil, err
	}

	return &imapDialer{opts: opts}, nil
}

type imapDialer struct {
	opts IMAPOptions
}

func (d *imapDialer) Dial(ctx context.Context) (Mailbox, error) {
	dialer := net.Dialer{Timeout: d.opts.Timeout}

	var (
		c   *client.Client
		err error
	)

	if d.opts.TLS {
		host, _, _ := net.SplitHostPort(d.opts.Address)
		c, err = client.DialWithDialerTLS(&dialer, d.opts.Address, &tls.Config{ServerName: host})
	} else {
		c, err = client.DialWithDialer(&dialer, d.opts.Address)
	}

	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", d.opts.Address, err)
	}

	c.Timeout = d.opts.Timeout

	if err := c.Login(d.opts.Username, d.opts.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("could not login as %s: %w", d.opts.Username, err)
	}

	if _, err := c.Select(d.opts.Mailbox, false); err != nil {
		c.Logout()
		return nil, fmt.Errorf("could not select %s: %w", d.opts.Mailbox, err)
	}

	return &imapMailbox{client: c}, nil
}

type imapMailbox struct {
	client *client.Client
}

func (m *imapMailbox) Unseen(ctx context.Context) ([]RawMessage, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	uids, err := m.client.UidSearch(criteria)
	if err != nil || len(uids) == 0 {
		return nil, err
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	fetched := make(chan *imap.Message, 16)
	done := make(chan error, 1)

	go func() {
		done <- m.client.UidFetch(seqset, items, fetched)
	}()

	var (
		messages []RawMessage
		readErr  error
	)

	// the channel is drained completely, even after a failed read
	for message := range fetched {
		body := message.GetBody(section)
		if body == nil || readErr != nil {
			continue
		}

		data, err := io.ReadAll(body)
		if err != nil {
			readErr = err
			continue
		}

		messages = append(messages, RawMessage{UID: message.Uid, Data: data})
	}

	if err := <-done; err != nil {
		return nil, err
	}

	if readErr != nil {
		return nil, readErr
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].UID < messages[j].UID
	})

	return messages, nil
}

func (m *imapMailbox) MarkSeen(ctx context.Context, uid uint32) error {
	return m.storeSeen(imap.AddFlags, uid)
}

func (m *imapMailbox) MarkUnseen(ctx context.Context, uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}

	return m.storeSeen(imap.RemoveFlags, uids...)
}

func (m *imapMailbox) storeSeen(op imap.FlagsOp, uids ...uint32) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	return m.client.UidStore(seqset, imap.FormatFlagsOp(op, true), []interface{}{imap.SeenFlag}, nil)
}

func (m *imapMailbox) Close() error {
	return m.client.Logout()
}
