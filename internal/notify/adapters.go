package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/tbourn/xianyu-agent/internal/clock"
	"github.com/tbourn/xianyu-agent/internal/domain"
)

// ErrNoURL is returned when a channel config lacks its endpoint.
var ErrNoURL = errors.New("notify: channel config has no url")

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func postJSON(ctx context.Context, hc *http.Client, endpoint string, body any, headers map[string]string) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: %s returned %s", endpoint, resp.Status)
	}
	return nil
}

// Webhook posts {credential_id, kind, message, time} to config.url. When
// config.secret is set, X-Signature carries hex HMAC-SHA256 of the body.
type Webhook struct {
	HTTP *http.Client
}

func (w *Webhook) Send(ctx context.Context, ch domain.NotificationChannel, m Message) error {
	cfg := gjson.ParseBytes(ch.Config)
	endpoint := cfg.Get("url").String()
	if endpoint == "" {
		return ErrNoURL
	}
	body := map[string]string{
		"credential_id": m.CredentialID,
		"kind":          m.Kind,
		"message":       m.Text,
		"time":          m.At.UTC().Format(time.RFC3339),
	}
	headers := map[string]string{}
	if secret := cfg.Get("secret").String(); secret != "" {
		raw, _ := json.Marshal(body)
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(raw)
		headers["X-Signature"] = fmt.Sprintf("%x", mac.Sum(nil))
	}
	return postJSON(ctx, w.HTTP, endpoint, body, headers)
}

// DingTalk posts a markdown message to a custom robot webhook, signing the
// URL when config.secret is set.
type DingTalk struct {
	HTTP  *http.Client
	Clock clock.Clock
}

func (d *DingTalk) Send(ctx context.Context, ch domain.NotificationChannel, m Message) error {
	cfg := gjson.ParseBytes(ch.Config)
	endpoint := cfg.Get("url").String()
	if endpoint == "" {
		return ErrNoURL
	}
	if secret := cfg.Get("secret").String(); secret != "" {
		ts := strconv.FormatInt(d.Clock.Now().UnixMilli(), 10)
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(ts + "\n" + secret))
		u, err := url.Parse(endpoint)
		if err != nil {
			return err
		}
		q := u.Query()
		q.Set("timestamp", ts)
		q.Set("sign", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
		u.RawQuery = q.Encode()
		endpoint = u.String()
	}
	return postJSON(ctx, d.HTTP, endpoint, map[string]any{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": m.Title(),
			"text":  "### " + m.Title() + "\n\n" + m.Text,
		},
	}, nil)
}

// Feishu posts a text message to a custom bot webhook with the optional
// signature fields.
type Feishu struct {
	HTTP  *http.Client
	Clock clock.Clock
}

func (f *Feishu) Send(ctx context.Context, ch domain.NotificationChannel, m Message) error {
	cfg := gjson.ParseBytes(ch.Config)
	endpoint := cfg.Get("url").String()
	if endpoint == "" {
		return ErrNoURL
	}
	body := map[string]any{
		"msg_type": "text",
		"content":  map[string]string{"text": m.Title() + "\n" + m.Text},
	}
	if secret := cfg.Get("secret").String(); secret != "" {
		ts := strconv.FormatInt(f.Clock.Now().Unix(), 10)
		mac := hmac.New(sha256.New, []byte(ts+"\n"+secret))
		body["timestamp"] = ts
		body["sign"] = base64.StdEncoding.EncodeToString(mac.Sum(nil))
	}
	return postJSON(ctx, f.HTTP, endpoint, body, nil)
}

// LogAdapter writes notifications to the process log.
type LogAdapter struct{}

func (LogAdapter) Send(_ context.Context, ch domain.NotificationChannel, m Message) error {
	log.Info().
		Str("channel", ch.Name).
		Str("account", m.CredentialID).
		Str("kind", m.Kind).
		Msg(m.Text)
	return nil
}
