package receipt

import (
	"regexp"
	"strings"
)

// flags whose values are never stored
var sensitiveFlags = map[string]bool{
	"token":       true,
	"key":         true,
	"password":    true,
	"secret":      true,
	"api-key":     true,
	"apikey":      true,
	"auth":        true,
	"credential":  true,
	"credentials": true,
	"bearer":      true,
	"private-key": true,
	"sign-key":    true,
}

// attribute key fragments that mark a value as sensitive
var sensitiveKeyFragments = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"api_key",
	"apikey",
	"credential",
	"ssn",
	"private_key",
}

// value prefixes of well-known secret formats
var sensitivePrefixes = []string{
	"sk-",
	"ghp_",
	"github_pat_",
	"xoxb-",
	"xoxp-",
	"AKIA",
	"ya29.",
	"AIza",
	"-----BEGIN",
}

// heuristic; dotted identifiers can false-positive
var jwtRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}$`)

var longSecretRegex = regexp.MustCompile(`^[A-Za-z0-9+/=_-]{32,}$`)

const redactedValue = "[REDACTED]"

// RedactArgs returns args with sensitive values replaced and whether anything changed.
func RedactArgs(args []string) ([]string, bool) {
	if len(args) == 0 {
		return args, false
	}

	redacted := make([]string, len(args))
	changed := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// --flag=value
		if eq := strings.Index(arg, "="); eq > 0 && strings.HasPrefix(arg, "-") {
			if sensitiveFlags[flagName(arg[:eq])] || isSensitiveValue(arg[eq+1:]) {
				redacted[i] = arg[:eq+1] + redactedValue
				changed = true
				continue
			}
			redacted[i] = arg
			continue
		}

		// --flag value
		if strings.HasPrefix(arg, "-") && sensitiveFlags[flagName(arg)] && i+1 < len(args) {
			redacted[i] = arg
			i++
			redacted[i] = redactedValue
			changed = true
			continue
		}

		if isSensitiveValue(arg) {
			redacted[i] = redactedValue
			changed = true
			continue
		}
		redacted[i] = arg
	}

	return redacted, changed
}

// RedactAttributes copies attrs, masking values under sensitive keys or that look like secrets.
func RedactAttributes(attrs map[string]string) map[string]string {
	if attrs == nil {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		if isSensitiveKey(k) || isSensitiveValue(v) {
			out[k] = redactedValue
			continue
		}
		out[k] = v
	}
	return out
}

func flagName(s string) string {
	s = strings.TrimPrefix(s, "--")
	s = strings.TrimPrefix(s, "-")
	return strings.ToLower(s)
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(strings.ReplaceAll(key, "-", "_"))
	for _, frag := range sensitiveKeyFragments {
		if strings.Contains(k, frag) {
			return true
		}
	}
	return false
}

func isSensitiveValue(value string) bool {
	for _, prefix := range sensitivePrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	if jwtRegex.MatchString(value) {
		return true
	}
	// paths and URLs are long but not secret
	if len(value) >= 32 && !strings.ContainsAny(value, "/.") {
		return longSecretRegex.MatchString(value)
	}
	return false
}
