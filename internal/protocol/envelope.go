package protocol

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// WSAppKey is the application key presented on the push gateway.
const WSAppKey = "444e9908a51d1cb236a27862abc769c9"

// Known lwp paths.
const (
	LWPRegister  = "/reg"
	LWPHeartbeat = "/!"
	LWPAckDiff   = "/r/SyncStatus/ackDiff"
	LWPSend      = "/r/MessageSend/sendByReceiverScope"
)

const imUASuffix = " DingTalk(2.1.5) OS(Windows/10) Browser(Chrome/133.0.0.0) DingWeb/2.1.5 IMPaaS DingWeb/2.1.5"

// Envelope is an outbound request frame.
type Envelope struct {
	LWP     string            `json:"lwp"`
	Headers map[string]string `json:"headers"`
	Body    any               `json:"body,omitempty"`
}

// Ack answers an inbound frame.
type Ack struct {
	Code    int               `json:"code"`
	Headers map[string]string `json:"headers"`
}

// Register builds the /reg envelope.
func Register(token, userAgent, deviceID, mid string) Envelope {
	return Envelope{
		LWP: LWPRegister,
		Headers: map[string]string{
			"cache-header": "app-key token ua wv",
			"app-key":      WSAppKey,
			"token":        token,
			"ua":           userAgent + imUASuffix,
			"dt":           "j",
			"wv":           "im:3,au:3,sy:6",
			"sync":         "0,0;0;0;",
			"did":          deviceID,
			"mid":          mid,
		},
	}
}

type ackDiffBody struct {
	Pipeline    string `json:"pipeline"`
	TooLong2Tag string `json:"tooLong2Tag"`
	Channel     string `json:"channel"`
	Topic       string `json:"topic"`
	HighPts     int64  `json:"highPts"`
	Pts         int64  `json:"pts"`
	Seq         int64  `json:"seq"`
	Timestamp   int64  `json:"timestamp"`
}

// AckDiff builds the sync priming envelope sent right after /reg.
func AckDiff(now time.Time, mid string) Envelope {
	ms := now.UnixMilli()
	return Envelope{
		LWP:     LWPAckDiff,
		Headers: map[string]string{"mid": mid},
		Body: []ackDiffBody{{
			Pipeline:    "sync",
			TooLong2Tag: "PNM,1",
			Channel:     "sync",
			Topic:       "sync",
			Pts:         ms * 1000,
			Timestamp:   ms,
		}},
	}
}

// Heartbeat builds the /! envelope.
func Heartbeat(mid string) Envelope {
	return Envelope{LWP: LWPHeartbeat, Headers: map[string]string{"mid": mid}}
}

// AckFor echoes mid and sid plus the optional app-key, ua and dt headers.
func AckFor(h FrameHeaders) Ack {
	out := map[string]string{"mid": h.Mid, "sid": h.Sid}
	if h.AppKey != "" {
		out["app-key"] = h.AppKey
	}
	if h.UA != "" {
		out["ua"] = h.UA
	}
	if h.DT != "" {
		out["dt"] = h.DT
	}
	return Ack{Code: 200, Headers: out}
}

// TextPayload is the content of a text chat message.
type TextPayload struct {
	ContentType int `json:"contentType"`
	Text        struct {
		Text string `json:"text"`
	} `json:"text"`
}

// Pic describes one picture of an image message.
type Pic struct {
	Height int    `json:"height"`
	Type   int    `json:"type"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
}

// ImagePayload is the content of an image chat message.
type ImagePayload struct {
	ContentType int `json:"contentType"`
	Image       struct {
		Pics []Pic `json:"pics"`
	} `json:"image"`
}

// NewText wraps text as contentType 1.
func NewText(text string) TextPayload {
	p := TextPayload{ContentType: 1}
	p.Text.Text = text
	return p
}

// NewImage wraps a picture as contentType 2.
func NewImage(url string, width, height int) ImagePayload {
	p := ImagePayload{ContentType: 2}
	p.Image.Pics = []Pic{{Height: height, Type: 0, URL: url, Width: width}}
	return p
}

type customContent struct {
	Type int    `json:"type"`
	Data string `json:"data"`
}

type messageContent struct {
	ContentType int           `json:"contentType"`
	Custom      customContent `json:"custom"`
}

type message struct {
	UUID                 string            `json:"uuid"`
	CID                  string            `json:"cid"`
	ConversationType     int               `json:"conversationType"`
	Content              messageContent    `json:"content"`
	RedPointPolicy       int               `json:"redPointPolicy"`
	Extension            map[string]string `json:"extension"`
	Ctx                  map[string]string `json:"ctx"`
	Mtags                map[string]string `json:"mtags"`
	MsgReadStatusSetting int               `json:"msgReadStatusSetting"`
}

type receivers struct {
	ActualReceivers []string `json:"actualReceivers"`
}

// SendMessage builds a sendByReceiverScope envelope carrying payload
// (TextPayload or ImagePayload) from self to peer in chatID.
func SendMessage(now time.Time, mid, chatID, peerID, selfID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	msg := message{
		UUID:             NewMessageUUID(now),
		CID:              chatID + "@goofish",
		ConversationType: 1,
		Content: messageContent{
			ContentType: 101,
			Custom:      customContent{Type: 1, Data: base64.StdEncoding.EncodeToString(raw)},
		},
		Extension:            map[string]string{"extJson": "{}"},
		Ctx:                  map[string]string{"appVersion": "1.0", "platform": "web"},
		Mtags:                map[string]string{},
		MsgReadStatusSetting: 1,
	}
	return Envelope{
		LWP:     LWPSend,
		Headers: map[string]string{"mid": mid},
		Body: []any{msg, receivers{ActualReceivers: []string{
			peerID + "@goofish",
			selfID + "@goofish",
		}}},
	}, nil
}
