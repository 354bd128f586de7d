package protocol

import (
	"net/http"
	"strings"
)

// Cookie is one name/value pair of a cookie-jar blob.
type Cookie struct {
	Name  string
	Value string
}

// ParseCookies splits "k1=v1; k2=v2" into ordered pairs. Segments without
// '=' are dropped; the last occurrence of a duplicated name wins while
// keeping the position of the first.
func ParseCookies(blob string) []Cookie {
	var out []Cookie
	idx := map[string]int{}
	for _, part := range strings.Split(blob, ";") {
		part = strings.TrimSpace(part)
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if i, seen := idx[name]; seen {
			out[i].Value = value
			continue
		}
		idx[name] = len(out)
		out = append(out, Cookie{Name: name, Value: value})
	}
	return out
}

// FormatCookies joins pairs back into a blob.
func FormatCookies(cs []Cookie) string {
	var b strings.Builder
	for i, c := range cs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(c.Name)
		b.WriteByte('=')
		b.WriteString(c.Value)
	}
	return b.String()
}

// CookieValue returns the value of name in blob, or "".
func CookieValue(blob, name string) string {
	for _, c := range ParseCookies(blob) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// MergeSetCookie applies response cookies onto blob. Names the response
// did not set are preserved in place; new names are appended.
func MergeSetCookie(blob string, set []*http.Cookie) string {
	if len(set) == 0 {
		return blob
	}
	cs := ParseCookies(blob)
	idx := make(map[string]int, len(cs))
	for i, c := range cs {
		idx[c.Name] = i
	}
	for _, sc := range set {
		if sc == nil || sc.Name == "" {
			continue
		}
		if i, ok := idx[sc.Name]; ok {
			cs[i].Value = sc.Value
			continue
		}
		idx[sc.Name] = len(cs)
		cs = append(cs, Cookie{Name: sc.Name, Value: sc.Value})
	}
	return FormatCookies(cs)
}
