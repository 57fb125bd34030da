package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Identity is a known principal (e.g. a merchant) keyed by phone number.
// Created at registration; read-only to the confirmation and escalation flows.
type Identity struct {
	ID          string
	Phone       string // canonical E.164
	DisplayName string
	Persona     string // empty when the identity has no stored tone preference
	Language    string // empty when the identity has no stored language preference
	CreatedAt   time.Time
}

// ErrInvalidPhone is returned when a phone number is not in E.164 form.
var ErrInvalidPhone = errors.New("phone must be in E.164 format (e.g. +2250701020304)")

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

// NormalizePhone strips spaces, dashes, dots and parentheses and validates the E.164 shape.
// A leading "00" international prefix is rewritten to "+".
func NormalizePhone(raw string) (string, error) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '(', ')', '\t':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	if strings.HasPrefix(s, "00") {
		s = "+" + s[2:]
	}
	if !e164.MatchString(s) {
		return "", ErrInvalidPhone
	}
	return s, nil
}
