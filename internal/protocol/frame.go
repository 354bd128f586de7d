package protocol

import (
	"errors"

	"github.com/tidwall/gjson"
)

// ErrBadFrame reports an inbound frame that is not a JSON object or whose
// payload could not be decoded.
var ErrBadFrame = errors.New("bad frame")

// FrameHeaders are the inbound headers echoed by acks.
type FrameHeaders struct {
	Mid    string
	Sid    string
	AppKey string
	UA     string
	DT     string
}

// Frame is an inbound push-gateway message.
type Frame struct {
	Raw     []byte
	LWP     string
	Code    int
	Headers FrameHeaders
}

// ParseFrame reads the envelope fields of an inbound text frame.
func ParseFrame(raw []byte) (Frame, error) {
	if !gjson.ValidBytes(raw) {
		return Frame{}, ErrBadFrame
	}
	r := gjson.ParseBytes(raw)
	if !r.IsObject() {
		return Frame{}, ErrBadFrame
	}
	h := r.Get("headers")
	return Frame{
		Raw:  raw,
		LWP:  r.Get("lwp").String(),
		Code: int(r.Get("code").Int()),
		Headers: FrameHeaders{
			Mid:    h.Get("mid").String(),
			Sid:    h.Get("sid").String(),
			AppKey: h.Get("app-key").String(),
			UA:     h.Get("ua").String(),
			DT:     h.Get("dt").String(),
		},
	}, nil
}

// NeedsAck reports whether the frame carries a mid.
func (f Frame) NeedsAck() bool { return f.Headers.Mid != "" }

// IsSync reports whether the frame is a sync package.
func (f Frame) IsSync() bool {
	return gjson.GetBytes(f.Raw, "body.syncPushPackage.data").IsArray()
}

// SyncData returns the base64 payloads of a sync package in order.
func (f Frame) SyncData() []string {
	var out []string
	gjson.GetBytes(f.Raw, "body.syncPushPackage.data").ForEach(func(_, v gjson.Result) bool {
		if s := v.Get("data").String(); s != "" {
			out = append(out, s)
		}
		return true
	})
	return out
}
