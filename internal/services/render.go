package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/tbourn/xianyu-agent/internal/domain"
	"github.com/tbourn/xianyu-agent/internal/repo"
)

// deliveryPlaceholder marks where rendered content goes in a card
// description.
const deliveryPlaceholder = "{DELIVERY_CONTENT}"

const apiCardRetries = 3

// piece is one rendered message: text, or an image when ImageURL is set.
type piece struct {
	Text          string
	ImageURL      string
	Width, Height int
}

// orderFacts feeds the placeholders of API cards.
type orderFacts struct {
	OrderID      string
	ItemID       string
	BuyerID      string
	CredentialID string
	SpecName     string
	SpecValue    string
	Amount       string
	Quantity     int
	ItemDetail   string
}

func (f orderFacts) replacer() *strings.Replacer {
	return strings.NewReplacer(
		"{order_id}", f.OrderID,
		"{item_id}", f.ItemID,
		"{buyer_id}", f.BuyerID,
		"{cookie_id}", f.CredentialID,
		"{spec_name}", f.SpecName,
		"{spec_value}", f.SpecValue,
		"{order_amount}", f.Amount,
		"{order_quantity}", strconv.Itoa(f.Quantity),
		"{item_detail}", f.ItemDetail,
	)
}

// render produces one piece of card content.
func (p *DeliveryPipeline) render(ctx context.Context, card *domain.Card, f orderFacts) (piece, error) {
	var content string
	switch card.Kind {
	case domain.CardKindText:
		content = card.TextContent
	case domain.CardKindData:
		line, err := p.Store.PopCardLine(ctx, card.ID)
		if err != nil {
			if errors.Is(err, repo.ErrNoData) {
				return piece{}, fmt.Errorf("card %d queue empty: %w", card.ID, ErrRenderFailed)
			}
			return piece{}, err
		}
		content = line
	case domain.CardKindAPI:
		text, err := p.callCardAPI(ctx, card, f)
		if err != nil {
			return piece{}, err
		}
		content = text
	case domain.CardKindImage:
		if card.ImageURL == "" {
			return piece{}, fmt.Errorf("card %d has no image: %w", card.ID, ErrRenderFailed)
		}
		return piece{ImageURL: card.ImageURL, Width: defaultImageWidth, Height: defaultImageHeight}, nil
	default:
		return piece{}, fmt.Errorf("card %d kind %q: %w", card.ID, card.Kind, ErrRenderFailed)
	}
	if strings.TrimSpace(content) == "" {
		return piece{}, fmt.Errorf("card %d: %w", card.ID, ErrRenderFailed)
	}
	return piece{Text: applyTemplate(card.Description, content)}, nil
}

// applyTemplate wraps content in the card description.
func applyTemplate(desc, content string) string {
	if strings.TrimSpace(desc) == "" {
		return content
	}
	if strings.Contains(desc, deliveryPlaceholder) {
		return strings.ReplaceAll(desc, deliveryPlaceholder, content)
	}
	return desc + "\n\n" + content
}

// callCardAPI performs the HTTP call of an API card. 5xx responses and
// network errors are retried with a linear 2s/4s/6s backoff.
func (p *DeliveryPipeline) callCardAPI(ctx context.Context, card *domain.Card, f orderFacts) (string, error) {
	var cfg domain.CardAPIConfig
	if len(card.APIConfig) == 0 {
		return "", fmt.Errorf("card %d has no api config: %w", card.ID, ErrRenderFailed)
	}
	if err := json.Unmarshal(card.APIConfig, &cfg); err != nil || cfg.URL == "" {
		return "", fmt.Errorf("card %d api config: %w", card.ID, ErrRenderFailed)
	}
	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodGet
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	params, err := substituteParams(cfg.Params, f.replacer())
	if err != nil {
		return "", fmt.Errorf("card %d params: %w", card.ID, err)
	}

	var lastErr error
	for attempt := 0; attempt <= apiCardRetries; attempt++ {
		if attempt > 0 {
			if err := p.sleep(ctx, time.Duration(2*attempt)*time.Second); err != nil {
				return "", err
			}
		}
		status, body, err := p.doCardRequest(ctx, method, cfg, params, timeout)
		switch {
		case err != nil && !retryableNetErr(err):
			return "", err
		case err != nil:
			lastErr = err
		case status >= 500:
			lastErr = fmt.Errorf("card api status %d", status)
		case status != http.StatusOK:
			return "", fmt.Errorf("card api status %d: %w", status, ErrRenderFailed)
		default:
			text := extractCardText(body)
			if text == "" {
				return "", fmt.Errorf("card api empty body: %w", ErrRenderFailed)
			}
			return text, nil
		}
	}
	return "", fmt.Errorf("card api gave up: %v: %w", lastErr, ErrRenderFailed)
}

func (p *DeliveryPipeline) doCardRequest(ctx context.Context, method string, cfg domain.CardAPIConfig, params []byte, timeout time.Duration) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := cfg.URL
	var body io.Reader
	if method == http.MethodGet {
		u, err := url.Parse(cfg.URL)
		if err != nil {
			return 0, nil, err
		}
		q := u.Query()
		gjson.ParseBytes(params).ForEach(func(k, v gjson.Result) bool {
			q.Set(k.String(), v.String())
			return true
		})
		u.RawQuery = q.Encode()
		target = u.String()
	} else if len(params) > 0 {
		body = bytes.NewReader(params)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	hc := p.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

// extractCardText takes data, content or card from a JSON body, falling
// back to the raw body.
func extractCardText(body []byte) string {
	if gjson.ValidBytes(body) {
		r := gjson.ParseBytes(body)
		for _, k := range []string{"data", "content", "card"} {
			if v := r.Get(k); v.Exists() && strings.TrimSpace(v.String()) != "" {
				return strings.TrimSpace(v.String())
			}
		}
	}
	return strings.TrimSpace(string(body))
}

// substituteParams replaces placeholders in every string leaf of a JSON
// document, at any depth.
func substituteParams(params []byte, r *strings.Replacer) ([]byte, error) {
	if len(params) == 0 || !gjson.ValidBytes(params) {
		return params, nil
	}
	out := params
	var err error
	var walk func(path string, v gjson.Result)
	walk = func(path string, v gjson.Result) {
		if err != nil {
			return
		}
		switch {
		case v.IsObject():
			v.ForEach(func(k, child gjson.Result) bool {
				walk(joinPath(path, escapePath(k.String())), child)
				return err == nil
			})
		case v.IsArray():
			i := 0
			v.ForEach(func(_, child gjson.Result) bool {
				walk(joinPath(path, strconv.Itoa(i)), child)
				i++
				return err == nil
			})
		case v.Type == gjson.String && path != "":
			if s := r.Replace(v.String()); s != v.String() {
				out, err = sjson.SetBytes(out, path, s)
			}
		}
	}
	walk("", gjson.ParseBytes(params))
	return out, err
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

var pathEscaper = strings.NewReplacer(`\`, `\\`, ".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)

func escapePath(k string) string { return pathEscaper.Replace(k) }

func retryableNetErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
