// Package redact strips sensitive or noisy fragments from strings
// before they are logged or surfaced in error responses: database
// connection strings, filesystem paths from subprocess failures, and
// host:port pairs.
package redact

import "regexp"

// Redaction placeholders
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedHostPlaceholder       = "[REDACTED_HOST]"
)

var (
	// Connection strings with embedded credentials.
	dbConnRegex = regexp.MustCompile(`(?i)(postgres|postgresql|mysql)://[^@\s]+@`)

	// Absolute filesystem paths, as leaked by exec and payload errors.
	unixPathRegex = regexp.MustCompile(`(/[\w.-]+){2,}`)
	winPathRegex  = regexp.MustCompile(`[A-Za-z]:\\[^\\\s]+(\\[^\\\s]+)+`)

	// Hostnames with ports.
	hostPortRegex = regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}:\d{1,5}\b`)
)

// String redacts sensitive fragments from the input string.
func String(input string) string {
	if input == "" {
		return input
	}

	result := dbConnRegex.ReplaceAllString(input, RedactedCredentialPlaceholder+"@")
	result = unixPathRegex.ReplaceAllString(result, RedactedPathPlaceholder)
	result = winPathRegex.ReplaceAllString(result, RedactedPathPlaceholder)
	result = hostPortRegex.ReplaceAllString(result, RedactedHostPlaceholder)
	return result
}

// Error redacts an error's message. A nil error yields an empty
// string.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
