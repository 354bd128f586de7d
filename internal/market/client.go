// Package market is the signed HTTP client for the marketplace H5 RPCs:
// access-token refresh, item detail and listing, shipment confirmation,
// free-shipping grants, order detail and image upload.
//
// Every RPC is a form POST of data=<json> to <base>/<api>/1.0/ with a
// signature over the JSON. Responses report status in ret[]; a token-expired
// marker triggers up to MaxStaleRetries re-signed retries, each preceded by
// reloading the credential so the rotated _m_h5_tk is used. When no response
// rotated it, the retry goes out without _m_h5_tk so the gateway hands out a
// fresh one. Set-Cookie headers are merged back into the stored credential
// on every response.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/tbourn/xianyu-agent/internal/cache"
	"github.com/tbourn/xianyu-agent/internal/clock"
	"github.com/tbourn/xianyu-agent/internal/protocol"
)

// MaxStaleRetries bounds the re-signed retries after a stale token.
const MaxStaleRetries = 3

// API names.
const (
	APIToken         = "mtop.taobao.idlemessage.pc.login.token"
	APIItemDetail    = "mtop.taobao.idle.pc.detail"
	APIItemList      = "mtop.idle.web.xyh.item.list"
	APIConfirm       = "mtop.taobao.idle.logistic.consign.dummy"
	APIFreeShipping  = "mtop.idle.groupon.activity.seller.freeshipping"
	APIOrderDetail   = "mtop.idle.web.trade.order.detail"
	DefaultUploadURL = "https://stream-upload.goofish.com/api/upload.api?floderId=0&appkey=xy_chat&_input_charset=utf-8"
)

const origin = "https://www.goofish.com"

// CookieJar loads and persists the credential blob of an account. Merges
// must be serialized per credential by the implementation.
type CookieJar interface {
	Cookies(ctx context.Context, credentialID string) (string, error)
	MergeCookies(ctx context.Context, credentialID string, set []*http.Cookie) (string, error)
}

// Client issues signed RPCs. The zero value is not usable; build it with
// New and adjust the exported fields before first use.
type Client struct {
	HTTP      *http.Client
	BaseURL   string // e.g. https://h5api.m.goofish.com/h5/
	UploadURL string
	UserAgent string
	Jar       CookieJar
	Clock     clock.Clock
	Limiter   *rate.Limiter

	// Confirmed remembers recently confirmed orders for ConfirmTTL.
	Confirmed  cache.Cache
	ConfirmTTL time.Duration

	// FreeShippingAPI overrides APIFreeShipping when set.
	FreeShippingAPI string
}

// Options configures New.
type Options struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	RPS        float64
	Confirmed  cache.Cache
	ConfirmTTL time.Duration
	Clock      clock.Clock
}

// New builds a Client backed by jar.
func New(jar CookieJar, o Options) *Client {
	if o.Timeout <= 0 {
		o.Timeout = 20 * time.Second
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Confirmed == nil {
		o.Confirmed = cache.NewMemoryCache(o.Clock, time.Minute)
	}
	if o.ConfirmTTL <= 0 {
		o.ConfirmTTL = 10 * time.Minute
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if o.RPS > 0 {
		lim = rate.NewLimiter(rate.Limit(o.RPS), int(o.RPS)+1)
	}
	return &Client{
		HTTP:       &http.Client{Timeout: o.Timeout},
		BaseURL:    o.BaseURL,
		UploadURL:  DefaultUploadURL,
		UserAgent:  o.UserAgent,
		Jar:        jar,
		Clock:      o.Clock,
		Limiter:    lim,
		Confirmed:  o.Confirmed,
		ConfirmTTL: o.ConfirmTTL,
	}
}

// call performs one RPC with stale-token retries and returns the data
// object of a successful response.
func (c *Client) call(ctx context.Context, credentialID, api string, payload any) (gjson.Result, error) {
	ctx, span := otel.Tracer("market").Start(ctx, "market."+api)
	defer span.End()
	span.SetAttributes(attribute.String("credential.id", credentialID))

	data, err := json.Marshal(payload)
	if err != nil {
		return gjson.Result{}, &Error{Kind: KindBusiness, API: api, Err: err}
	}

	var (
		last *Error
		used string
	)
	for attempt := 0; attempt <= MaxStaleRetries; attempt++ {
		blob, err := c.Jar.Cookies(ctx, credentialID)
		if err != nil {
			return gjson.Result{}, err
		}
		if attempt > 0 && protocol.SignToken(blob) == used {
			// nothing rotated the token; without one the gateway issues a new pair
			blob = withoutH5Token(blob)
		} else {
			used = protocol.SignToken(blob)
		}
		res, err := c.do(ctx, credentialID, api, blob, string(data))
		if err == nil {
			return res, nil
		}
		var me *Error
		if !errors.As(err, &me) || me.Kind != KindStaleToken {
			return gjson.Result{}, err
		}
		last = me
		log.Debug().Str("account", credentialID).Str("api", api).Int("attempt", attempt+1).
			Msg("stale token, retrying with refreshed cookies")
	}
	return gjson.Result{}, last
}

func (c *Client) do(ctx context.Context, credentialID, api, blob, data string) (gjson.Result, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return gjson.Result{}, &Error{Kind: KindTransient, API: api, Err: err}
	}

	t := protocol.Millis(c.Clock.Now())
	q := url.Values{}
	q.Set("jsv", "2.7.2")
	q.Set("appKey", protocol.H5AppKey)
	q.Set("t", t)
	q.Set("sign", protocol.Sign(t, protocol.SignToken(blob), data))
	q.Set("v", "1.0")
	q.Set("type", "originaljson")
	q.Set("accountSite", "xianyu")
	q.Set("dataType", "json")
	q.Set("timeout", "20000")
	q.Set("api", api)
	q.Set("sessionOption", "AutoLoginOnly")
	q.Set("spm_cnt", "a21ybx.im.0.0")

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/" + api + "/1.0/?" + q.Encode()
	form := url.Values{"data": {data}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return gjson.Result{}, &Error{Kind: KindBusiness, API: api, Err: err}
	}
	c.decorate(req, blob)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return gjson.Result{}, &Error{Kind: KindTransient, API: api, Err: err}
	}
	defer resp.Body.Close()

	if set := resp.Cookies(); len(set) > 0 {
		if _, err := c.Jar.MergeCookies(ctx, credentialID, set); err != nil {
			log.Warn().Err(err).Str("account", credentialID).Msg("persist set-cookie failed")
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return gjson.Result{}, &Error{Kind: KindTransient, API: api, Err: err}
	}
	if resp.StatusCode >= 500 {
		return gjson.Result{}, &Error{Kind: KindTransient, API: api, Err: errors.New(resp.Status)}
	}
	return classify(api, body)
}

func withoutH5Token(blob string) string {
	var keep []protocol.Cookie
	for _, ck := range protocol.ParseCookies(blob) {
		if ck.Name != "_m_h5_tk" && ck.Name != "_m_h5_tk_enc" {
			keep = append(keep, ck)
		}
	}
	return protocol.FormatCookies(keep)
}

func (c *Client) decorate(req *http.Request, blob string) {
	req.Header.Set("Cookie", blob)
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Origin", origin)
	req.Header.Set("Referer", origin+"/")
	req.Header.Set("Accept", "application/json")
}

// classify maps a response body onto success data or an *Error.
func classify(api string, body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, &Error{Kind: KindBusiness, API: api, Err: errors.New("invalid json response")}
	}
	r := gjson.ParseBytes(body)
	var ret []string
	for _, v := range r.Get("ret").Array() {
		ret = append(ret, v.String())
	}
	switch {
	case anyContains(ret, []string{successMarker}):
		return r.Get("data"), nil
	case anyContains(ret, staleMarkers):
		return gjson.Result{}, &Error{Kind: KindStaleToken, API: api, Ret: ret}
	case anyContains(ret, sessionMarkers):
		return gjson.Result{}, &Error{Kind: KindExpiredSession, API: api, Ret: ret}
	default:
		return gjson.Result{}, &Error{Kind: KindBusiness, API: api, Ret: ret}
	}
}
