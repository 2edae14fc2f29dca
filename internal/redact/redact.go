// Package redact scrubs sensitive material from strings before they are
// logged: credentials, connection strings, SQL fragments, tokens, file paths,
// addresses. Handlers log errors through Error so a driver message can never
// leak schema or credentials into the log stream.
package redact

import "regexp"

// Placeholders substituted for matched material.
const (
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
)

// rule pairs a pattern with its replacement. template may reference capture
// groups, which is how the SQL rules keep statement structure while dropping
// the values.
type rule struct {
	re       *regexp.Regexp
	template string
}

// rules apply in order, and order carries the policy: stack traces first
// (they embed paths and line numbers), then SQL (statements embed emails and
// UUIDs), then credential and token forms, then the literal identifiers, and
// host names last so earlier rules see addresses intact.
var rules = []rule{
	{regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`), "[STACK_TRACE_REDACTED]"},

	// SQL statements: keep the shape, drop the values.
	{regexp.MustCompile(`(?i)(INSERT\s+INTO\s+\w+\s*\([^)]*\)\s+VALUES)\s*\(.*\)`), "${1} [SQL_VALUES_REDACTED]"},
	{regexp.MustCompile(`(?i)(UPDATE\s+\w+\s+SET)\s+.*`), "${1} [SQL_VALUES_REDACTED]"},
	{regexp.MustCompile(`(?i)(DELETE\s+FROM\s+\w+)\s+WHERE\s+.*`), "${1} [SQL_WHERE_REDACTED]"},
	{regexp.MustCompile(`(?i)SELECT\s+.+?\s+FROM\s+.*`), "SELECT FROM... [SQL_VALUES_REDACTED]"},

	// Credentials and tokens.
	{regexp.MustCompile(`(?i)(postgres|mysql|mongodb|db|database|connection)://[^@]+@`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`(?i)(api[_-]?key|token|secret|key|access|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`(AKIA|AccessKey(Id)?)([^a-zA-Z0-9])?[A-Z0-9]{8,}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), "[REDACTED_JWT]"},

	// Identifiers.
	{regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`), "[REDACTED_UUID]"},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`), "[REDACTED_EMAIL]"},

	// Filesystem and environment detail.
	{regexp.MustCompile(`(/[\w.-]+){2,}`), RedactedPathPlaceholder},
	{regexp.MustCompile(`[A-Za-z]:\\[^\\]+(\\[^\\]+)+`), RedactedPathPlaceholder},
	{regexp.MustCompile(`(?:at )?line ?\d+`), "[REDACTED_LINE_NUMBER]"},
	{regexp.MustCompile(`(?i)syntax error|syntax problem|parse error`), "[REDACTED_SYNTAX_ERROR]"},
	{regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}(?::\d{1,5})?\b`), "[REDACTED_HOST]"},
	{regexp.MustCompile(`(?i)(?:no such file|file not found|can't open|cannot open|file error)`), "[REDACTED_FILE_ERROR]"},
}

// String returns input with every sensitive fragment replaced by its
// placeholder.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.re.ReplaceAllString(result, r.template)
	}
	return result
}

// Error redacts err's message. Nil yields the empty string.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
