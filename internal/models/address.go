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

package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrInvalidAddressFormat is used for addresses of zero length or without an "@" sign.
	ErrInvalidAddressFormat = errors.New("address: invalid format")

	// ErrPathTooLong is used for addresses, that are too long according to RFC#5321.
	ErrPathTooLong = errors.New("address: path too long")

	// ZeroAddress is an invalid, zero value Address.
	ZeroAddress Address
)

// Address is the email address of a student, an operator or the system itself. Users are
// identified by the normalized form, so that "Jane.Doe@Example.com" and "jane.doe@example.com"
// end up being the same student.
type Address struct {
	raw string
	at  int
}

// Parse checks the basic shape of an address without altering it.
func Parse(raw string) (Address, error) {
	raw = strings.TrimSpace(raw)

	if len(raw) == 0 {
		return ZeroAddress, ErrInvalidAddressFormat
	}

	at := strings.LastIndex(raw, "@")
	if at <= 0 || at == len(raw)-1 {
		return ZeroAddress, ErrInvalidAddressFormat
	}

	// see RFC#5321 4.5.3.1
	if at > 64 || len(raw)-at > 256 || len(raw) > 256 {
		return ZeroAddress, ErrPathTooLong
	}

	return Address{raw, at}, nil
}

// ParseNormalized parses an address and returns its normalized form.
func ParseNormalized(raw string) (Address, error) {
	addr, err := Parse(raw)
	if err != nil {
		return addr, err
	}

	return addr.Normalized()
}

// MustParse is like Parse but panics on invalid input. It is meant for constants and tests.
func MustParse(raw string) Address {
	addr, err := Parse(raw)
	if err != nil {
		panic(err)
	}

	return addr
}

func (a Address) String() string {
	return a.raw
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a.raw == ""
}

// LocalPart returns everything before the last "@".
func (a Address) LocalPart() string {
	return a.raw[:a.at]
}

// Domain returns everything after the last "@".
func (a Address) Domain() string {
	return a.raw[a.at+1:]
}

// Normalized case folds the local part and maps the domain to its unicode form.
func (a Address) Normalized() (Address, error) {
	domain, err := DomainToUnicode(a.Domain())
	if err != nil {
		return ZeroAddress, err
	}

	localPart := NormalizeLocalPart(a.LocalPart())

	return Address{
		raw: localPart + "@" + domain,
		at:  len(localPart),
	}, nil
}

// Scan implements sql.Scanner.
func (a *Address) Scan(src interface{}) error {
	var raw string

	switch src := src.(type) {
	case string:
		raw = src
	case []byte:
		raw = string(src)
	default:
		return fmt.Errorf("cannot scan %T into an address", src)
	}

	v, err := Parse(raw)
	if err != nil {
		return err
	}

	*a = v
	return nil
}

// Value implements driver.Valuer.
func (a Address) Value() (driver.Value, error) {
	return a.raw, nil
}

// DomainToUnicode maps a (possibly punycode encoded) domain to lower case unicode.
func DomainToUnicode(domain string) (string, error) {
	mapped, err := idna.Lookup.ToUnicode(domain)
	if err != nil {
		return domain, err
	}

	return norm.NFC.String(mapped), nil
}

// DomainToASCII maps a domain to its punycode form, as required on the wire.
func DomainToASCII(domain string) (string, error) {
	mapped, err := DomainToUnicode(domain)
	if err != nil {
		return domain, err
	}

	return idna.Lookup.ToASCII(mapped)
}

var fold = cases.Fold()

// NormalizeLocalPart case folds and compatibility normalizes a local part. Unlike mailbox
// lookups, "+suffix" tags are kept, because students may use them to tell courses apart.
func NormalizeLocalPart(localPart string) string {
	return norm.NFKC.String(fold.String(localPart))
}
