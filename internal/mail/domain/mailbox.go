package domain

import (
	"strings"

	"github.com/emersion/go-message/mail"
)

// Mailbox is the identity of the synchronized mailbox and the sender of outbound mail.
// It is built once at start-up and passed by value.
type Mailbox struct {
	Address     string
	DisplayName string
}

func NewMailbox(address, displayName string) Mailbox {
	return Mailbox{
		Address:     strings.ToLower(strings.TrimSpace(address)),
		DisplayName: strings.TrimSpace(displayName),
	}
}

// IsSelf reports whether a From header value names this mailbox.
func (m Mailbox) IsSelf(from string) bool {
	if m.Address == "" {
		return false
	}
	return AddressOf(from) == m.Address
}

// AddressOf extracts the lower-cased address from "Name <addr>" or a bare address.
func AddressOf(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(header); err == nil {
		return strings.ToLower(addr.Address)
	}
	if start := strings.LastIndex(header, "<"); start >= 0 {
		if end := strings.Index(header[start:], ">"); end > 0 {
			return strings.ToLower(strings.TrimSpace(header[start+1 : start+end]))
		}
	}
	return strings.ToLower(header)
}

// Formatted returns the mailbox as an RFC 5322 address.
func (m Mailbox) Formatted() *mail.Address {
	return &mail.Address{Name: m.DisplayName, Address: m.Address}
}
