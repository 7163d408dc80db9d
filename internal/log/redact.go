package log

import (
	"net/url"
	"regexp"
	"strings"
)

// MaskValue replaces every redacted value.
const MaskValue = "[REDACTED]"

// sensitiveNames are field, header and query parameter names whose value is
// always masked. Names are compared in lower case.
var sensitiveNames = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"x-csrf-token":        true,
	"postdata":            true,
	"postdataentries":     true,
	"password":            true,
	"passwd":              true,
	"api_key":             true,
	"apikey":              true,
	"sid":                 true,
	"sessionid":           true,
	"session_id":          true,
}

// sensitiveFragments mask any name that contains them.
var sensitiveFragments = []string{"password", "secret", "token", "credential", "cookie"}

// headerContainers hold header name to value maps, or arrays of
// {name, value} entries in the Fetch domain.
var headerContainers = map[string]bool{
	"headers":          true,
	"extrahttpheaders": true,
	"requestheaders":   true,
	"responseheaders":  true,
}

// sensitivePatterns match credential-shaped strings regardless of where they
// appear.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	regexp.MustCompile(`(?i)^bearer\s+\S+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`),
}

// isSensitiveName reports whether a field, header or parameter called name
// holds a credential.
func isSensitiveName(name string) bool {
	lower := strings.ToLower(name)
	if sensitiveNames[lower] {
		return true
	}
	for _, fragment := range sensitiveFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// isSensitiveValue reports whether s looks like a credential.
func isSensitiveValue(s string) bool {
	for _, p := range sensitivePatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// Redact returns a copy of a decoded JSON value with credentials masked.
// v is expected to hold the types encoding/json decodes into; anything else
// is returned unchanged.
func Redact(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return redactObject(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = Redact(e)
		}
		return out
	case string:
		if isSensitiveValue(v) {
			return MaskValue
		}
		return v
	default:
		return v
	}
}

func redactObject(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	cookie := isCookie(m)

	for k, v := range m {
		lower := strings.ToLower(k)
		switch {
		case headerContainers[lower]:
			out[k] = redactHeaders(v)
		case lower == "cookies":
			out[k] = Redact(v)
		case cookie && lower == "value":
			out[k] = MaskValue
		case isSensitiveName(k):
			out[k] = MaskValue
		case strings.HasSuffix(lower, "url"):
			if s, ok := v.(string); ok {
				out[k] = RedactURL(s)
				continue
			}
			out[k] = Redact(v)
		default:
			out[k] = Redact(v)
		}
	}

	if entry, ok := headerEntry(m); ok && isSensitiveName(entry) {
		out["value"] = MaskValue
	}
	return out
}

// redactHeaders masks credential headers in a header map or entry array and
// keeps the rest.
func redactHeaders(v any) any {
	switch h := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(h))
		for name, value := range h {
			if isSensitiveName(name) {
				out[name] = MaskValue
				continue
			}
			out[name] = Redact(value)
		}
		return out
	case []any:
		return Redact(h)
	default:
		return Redact(v)
	}
}

// isCookie reports whether m has the shape of a protocol Cookie or
// CookieParam: a name and value scoped by domain, path or url.
func isCookie(m map[string]any) bool {
	if _, ok := m["name"].(string); !ok {
		return false
	}
	if _, ok := m["value"]; !ok {
		return false
	}
	for _, k := range []string{"domain", "path", "url"} {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

// headerEntry returns the header name of a {name, value} entry.
func headerEntry(m map[string]any) (string, bool) {
	if len(m) != 2 {
		return "", false
	}
	name, ok := m["name"].(string)
	if !ok {
		return "", false
	}
	_, ok = m["value"]
	return name, ok
}

// RedactURL masks query parameter values with credential names and any
// userinfo password. Unparsable URLs are returned unchanged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || (u.RawQuery == "" && u.User == nil) {
		return raw
	}

	changed := false
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), MaskValue)
		changed = true
	}

	if u.RawQuery != "" {
		q := u.Query()
		for name := range q {
			if isSensitiveName(name) {
				q.Set(name, MaskValue)
				changed = true
			}
		}
		if changed {
			u.RawQuery = q.Encode()
		}
	}

	if !changed {
		return raw
	}
	return u.String()
}
