package logger

import "strings"

// secretKeyHints flags field names whose values are credentials.
var secretKeyHints = []string{"token", "secret", "api_key", "apikey", "password", "credential"}

// redactSecretValue masks credential-bearing fields so access tokens never
// reach the log stream in full.
func redactSecretValue(key, val string) string {
	lower := strings.ToLower(key)
	for _, hint := range secretKeyHints {
		if strings.Contains(lower, hint) {
			return RedactToken(val)
		}
	}
	return val
}

// RedactToken masks a credential for safe logging, keeping just enough of
// the prefix to correlate entries against a known key.
// "shpat_a1b2c3d4e5" → "shpa***"
func RedactToken(token string) string {
	if len(token) <= 4 {
		return "***"
	}
	return token[:4] + "***"
}
