package utils

import "strings"

// MaskEmail keeps the first character of the local part and the domain, for logs.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// MaskID keeps a short prefix of an opaque identifier, for logs.
func MaskID(id string) string {
	if len(id) <= 6 {
		return id
	}
	return id[:6] + "…"
}
