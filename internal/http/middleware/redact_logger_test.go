package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRedact(t *testing.T) {
	cases := map[string]string{
		"unb=2200001; cookie2=abc; _m_h5_tk=tok_123": "unb=[REDACTED]; cookie2=[REDACTED]; _m_h5_tk=[REDACTED]",
		"phone=13812345678":                          "phone=[REDACTED:phone]",
		"id=123e4567-e89b-12d3-a456-426614174000":    "id=[REDACTED:id]",
		"page=2&page_size=20":                        "page=2&page_size=20",
	}
	for in, want := range cases {
		if got := redact(in); got != want {
			t.Errorf("redact(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRedactingLogger_MasksSecrets(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))
	r.PUT("/credentials/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodPut, "/credentials/c1?probe=unb%3D1&phone=13812345678", nil)
	req.Header.Set(HeaderAdminToken, "s3cret")
	req.Header.Set("Cookie", "unb=2200001")
	req.Header.Set("X-Api-Key", "shhh")
	req.Header.Set("X-Debug", "cookie2=abcdef")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, leak := range []string{"s3cret", "2200001", "shhh", "abcdef", "13812345678"} {
		if strings.Contains(out, leak) {
			t.Fatalf("log leaked %q:\n%s", leak, out)
		}
	}
	if !strings.Contains(out, `"path":"/credentials/:id"`) || !strings.Contains(out, `"level":"info"`) {
		t.Fatalf("unexpected log line:\n%s", out)
	}
}

func TestRedactingLogger_Levels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	for _, p := range []string{"/bad", "/boom", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	out := buf.String()
	if strings.Count(out, `"level":"warn"`) != 2 {
		t.Fatalf("expected two warn lines (400 and 404), got:\n%s", out)
	}
	if !strings.Contains(out, `"level":"error"`) || !strings.Contains(out, `"path":"/missing"`) {
		t.Fatalf("expected error line and raw path fallback, got:\n%s", out)
	}
}
