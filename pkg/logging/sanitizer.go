package logging

import (
	"regexp"
)

// RedactedText is the replacement text for credentials.
const RedactedText = "[REDACTED]"

var (
	// password=xxx, pwd=xxx, pass=xxx up to the next delimiter
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// user:pass@host in URL-style DSNs
	connStringPattern = regexp.MustCompile(`://[^:]+:[^@]+@[^/\s]+`)
)

// SanitizeConnectionString removes credentials from a PostgreSQL DSN.
// SQLite paths pass through unchanged.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	return connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
}

// SanitizeError renders err with any embedded DSN credentials removed.
// Driver errors raised while connecting may echo the connection string.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeConnectionString(err.Error())
}
