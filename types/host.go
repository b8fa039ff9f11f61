package types

import (
	"fmt"
	"strings"
)

// Host identifies a deployment target as user@addr:port
type Host struct {
	User string `json:"user,omitempty"`
	Addr string `json:"addr"`
	Port string `json:"port,omitempty"`
}

// ParseHost parses "user@addr:port", where user and port are optional.
// IPv6 addresses use the bracketed "[addr]:port" form; a bare address
// with multiple colons is taken as an IPv6 address without a port.
func ParseHost(s string) (Host, error) {
	var h Host

	rest := s
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		h.User = rest[:at]
		rest = rest[at+1:]
	}

	switch {
	case strings.HasPrefix(rest, "["):
		end := strings.Index(rest, "]")
		if end < 0 {
			return Host{}, fmt.Errorf("invalid host string %q: unclosed bracket", s)
		}
		h.Addr = rest[1:end]
		if tail := rest[end+1:]; tail != "" {
			if !strings.HasPrefix(tail, ":") || len(tail) == 1 {
				return Host{}, fmt.Errorf("invalid host string %q: expected [addr]:port", s)
			}
			h.Port = tail[1:]
		}
	case strings.Count(rest, ":") > 1:
		h.Addr = rest
	default:
		if colon := strings.LastIndex(rest, ":"); colon >= 0 {
			h.Addr = rest[:colon]
			h.Port = rest[colon+1:]
		} else {
			h.Addr = rest
		}
	}

	if h.Addr == "" {
		return Host{}, fmt.Errorf("invalid host string %q: missing address", s)
	}
	return h, nil
}

// String formats the host back to user@addr:port form, bracketing
// IPv6 addresses so the result re-parses
func (h Host) String() string {
	var b strings.Builder
	if h.User != "" {
		b.WriteString(h.User)
		b.WriteByte('@')
	}
	if strings.Contains(h.Addr, ":") {
		b.WriteByte('[')
		b.WriteString(h.Addr)
		b.WriteByte(']')
	} else {
		b.WriteString(h.Addr)
	}
	if h.Port != "" {
		b.WriteByte(':')
		b.WriteString(h.Port)
	}
	return b.String()
}
