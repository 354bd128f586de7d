package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// ExternalReplier asks an outside system for a reply. It returns
// ErrExternalReply when the system answered without a usable message.
type ExternalReplier interface {
	Reply(ctx context.Context, req ExternalRequest) (string, error)
}

// ExternalRequest describes the inbound message forwarded to the replier.
type ExternalRequest struct {
	CredentialID string
	ChatID       string
	SenderID     string
	SenderName   string
	ItemID       string
	Message      string
	At           time.Time
}

// HTTPExternalReplier posts the request as JSON and expects
// {"code":200,"data":{"send_msg":"..."}}.
type HTTPExternalReplier struct {
	URL  string
	HTTP *http.Client
}

// NewHTTPExternalReplier returns a replier bounded by timeout.
func NewHTTPExternalReplier(url string, timeout time.Duration) *HTTPExternalReplier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPExternalReplier{URL: url, HTTP: &http.Client{Timeout: timeout}}
}

func (h *HTTPExternalReplier) Reply(ctx context.Context, req ExternalRequest) (string, error) {
	body, err := json.Marshal(map[string]string{
		"cookie_id":      req.CredentialID,
		"chat_id":        req.ChatID,
		"send_user_id":   req.SenderID,
		"send_user_name": req.SenderName,
		"item_id":        req.ItemID,
		"send_message":   req.Message,
		"msg_time":       strconv.FormatInt(req.At.Unix(), 10),
	})
	if err != nil {
		return "", err
	}
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	hr.Header.Set("Content-Type", "application/json")
	resp, err := h.HTTP.Do(hr)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("external reply: status %d: %w", resp.StatusCode, ErrExternalReply)
	}
	r := gjson.ParseBytes(raw)
	msg := r.Get("data.send_msg").String()
	if r.Get("code").Int() != 200 || msg == "" {
		return "", ErrExternalReply
	}
	return msg, nil
}
