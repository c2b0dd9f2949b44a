package agent

import "strings"

// NormalizeURI returns the comparison form of a SIP sign-in address:
// trimmed, lowercased, with the sip: scheme and without URI parameters.
// "Alice@Contoso.com;transport=tls" and "sip:alice@contoso.com" normalize
// to the same key.
func NormalizeURI(address string) string {
	s := strings.ToLower(strings.TrimSpace(address))
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "sip:")
	if s == "" {
		return ""
	}
	return "sip:" + s
}
