// Package middleware contains shared Gin middleware used by the admin HTTP
// surface.
//
// This file implements RedactingLogger, the access logger of the admin API.
// Requests to it routinely carry marketplace cookie blobs and the admin
// token, so values are scrubbed before anything is logged:
//
//   - bodies are never logged;
//   - Authorization, Cookie, Set-Cookie and X-Admin-Token are fully masked,
//     plus any header named in RedactOptions.MaskHeaders;
//   - session cookies (unb, cookie2, _m_h5_tk, ...), mainland mobile
//     numbers and UUIDs are pattern-redacted inside query strings and the
//     remaining header values.
//
// The middleware also attaches a request-scoped logger (see LoggerFrom).
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// HeaderAdminToken carries the admin secret.
const HeaderAdminToken = "X-Admin-Token"

// RedactOptions configures extra masked headers for RedactingLogger.
type RedactOptions struct {
	MaskHeaders []string
}

var (
	uuidRE   = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	cookieRE = regexp.MustCompile(`(?i)\b(unb|cookie2|sgcookie|_m_h5_tk|_m_h5_tk_enc|t|cna|x5sec|tracknick|_tb_token_)=([^;&\s]+)`)
	mobileRE = regexp.MustCompile(`\b1[3-9]\d{9}\b`)
)

// redact scrubs identifiers from s. UUIDs go first so the mobile pattern
// never bites into their digit runs.
func redact(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = cookieRE.ReplaceAllString(s, "$1=[REDACTED]")
	s = mobileRE.ReplaceAllString(s, "[REDACTED:phone]")
	return s
}

// RedactingLogger returns the access-log middleware. Level is info, warn
// for 4xx and error for 5xx or when handlers recorded gin errors.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	mask := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
		strings.ToLower(HeaderAdminToken): {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			mask[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		safeQuery := redact(truncate(c.Request.URL.RawQuery, maxQueryLogLength))

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := mask[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = redact(strings.Join(vv, ", "))
		}

		reqID := asString(c.Value(requestIDKey))
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}
		l := log.With().
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		c.Set(loggerKey, &l)

		c.Next()

		if rid := c.Writer.Header().Get(requestIDHeader); rid != "" {
			reqID = rid
		}
		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case len(c.Errors) > 0 || status >= 500:
			ev = log.Error()
			if len(c.Errors) > 0 {
				ev = ev.Str("errors", c.Errors.String())
			}
		case status >= 400:
			ev = log.Warn()
		}
		ev.
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", safeQuery).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
