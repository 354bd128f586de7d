// Package classify turns a decoded sync payload into a typed Event. It is
// pure: no I/O, no clocks, no shared state.
package classify

import (
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/tbourn/xianyu-agent/internal/protocol"
)

// Kind tags an inbound event.
type Kind int

const (
	KindUnknown Kind = iota
	KindChat
	KindSelfEcho
	KindAutoDelivery
	KindFreeShipping
	KindIgnorable
	KindOrderState
	KindSystemNotice
	KindHeartbeatAck
	KindBadFrame
)

var kindNames = [...]string{
	"unknown", "chat", "self_echo", "auto_delivery", "free_shipping",
	"ignorable", "order_state", "system_notice", "heartbeat_ack", "bad_frame",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Rules are the configurable phrase sets.
type Rules struct {
	// AutoDeliveryTriggers are substrings of reminderContent that mean the
	// buyer has paid.
	AutoDeliveryTriggers []string
	// FreeShippingTitles are card titles that request a free-shipping grant.
	FreeShippingTitles []string
	// Ignorable are reminderContent values dropped silently.
	Ignorable []string
}

// Event is the classifier output.
type Event struct {
	Kind       Kind
	ChatID     string
	SenderID   string
	SenderName string
	Content    string
	ItemID     string
	OrderID    string
	// OrderStateHint is the red reminder (e.g. 等待卖家发货), when present.
	OrderStateHint string
	CardTitle      string
	Tree           any
}

const cardMessage = "[卡片消息]"

// Classify inspects a decoded tree on behalf of the seller selfID.
func Classify(tree any, selfID string, r Rules) Event {
	ev := Event{Tree: tree}
	ev.OrderStateHint = protocol.LookupString(tree, "3", "redReminder")

	content, isChat := protocol.Lookup(tree, "1", "10", "reminderContent")
	if !isChat {
		switch {
		case ev.OrderStateHint != "":
			ev.Kind = KindOrderState
		case isMapping(tree):
			ev.Kind = KindSystemNotice
		default:
			ev.Kind = KindUnknown
		}
		return ev
	}

	ev.Content = protocol.Scalar(content)
	ev.SenderID = protocol.LookupString(tree, "1", "10", "senderUserId")
	ev.SenderName = protocol.LookupString(tree, "1", "10", "reminderTitle")
	ev.ChatID = strings.TrimSuffix(protocol.LookupString(tree, "1", "2"), "@goofish")
	ev.ItemID = ItemID(tree)

	switch {
	case selfID != "" && ev.SenderID == selfID:
		ev.Kind = KindSelfEcho
	case containsExact(r.Ignorable, strings.TrimSpace(ev.Content)):
		ev.Kind = KindIgnorable
	case containsAny(ev.Content, r.AutoDeliveryTriggers):
		ev.Kind = KindAutoDelivery
		ev.OrderID = OrderID(tree)
	case ev.Content == cardMessage:
		ev.CardTitle = cardJSON(tree).Get("dxCard.item.main.exContent.title").String()
		if containsExact(r.FreeShippingTitles, ev.CardTitle) {
			ev.Kind = KindFreeShipping
			ev.OrderID = OrderID(tree)
		} else {
			ev.Kind = KindIgnorable
		}
	default:
		ev.Kind = KindChat
	}
	return ev
}

var (
	reItemInURL   = regexp.MustCompile(`itemId=(\d+)`)
	reLongNumeric = regexp.MustCompile(`^\d{10,}$`)
)

// ItemID extracts the item id from the reminder URL, falling back to the
// first 10+ digit value under an itemId, item_id or id key anywhere in tree,
// visiting map keys in sorted order.
func ItemID(tree any) string {
	if m := reItemInURL.FindStringSubmatch(protocol.LookupString(tree, "1", "10", "reminderUrl")); m != nil {
		return m[1]
	}
	return scanItemID(tree, 0)
}

func scanItemID(node any, depth int) string {
	if depth > 32 {
		return ""
	}
	switch n := node.(type) {
	case map[string]any:
		for _, k := range []string{"itemId", "item_id", "id"} {
			if v, ok := n[k]; ok {
				if s := protocol.Scalar(v); reLongNumeric.MatchString(s) {
					return s
				}
			}
		}
		for _, k := range slices.Sorted(maps.Keys(n)) {
			if s := scanItemID(n[k], depth+1); s != "" {
				return s
			}
		}
	case []any:
		for _, v := range n {
			if s := scanItemID(v, depth+1); s != "" {
				return s
			}
		}
	}
	return ""
}

var (
	reOrderIDParam = regexp.MustCompile(`orderId=(\d+)`)
	reOrderDetail  = regexp.MustCompile(`order_detail\?id=(\d+)`)

	fallbacks = []*regexp.Regexp{
		regexp.MustCompile(`orderId[=:](\d{10,})`),
		regexp.MustCompile(`order_detail\?id=(\d{10,})`),
		regexp.MustCompile(`"id":\s*"?(\d{10,})"?`),
		regexp.MustCompile(`bizOrderId[=:](\d{10,})`),
	}
)

// OrderID extracts the order id from the card JSON button and target URLs,
// then falls back to scanning the whole serialized tree.
func OrderID(tree any) string {
	card := cardJSON(tree)
	if card.Exists() {
		if m := reOrderIDParam.FindStringSubmatch(card.Get("dxCard.item.main.exContent.button.targetUrl").String()); m != nil {
			return m[1]
		}
		if m := reOrderDetail.FindStringSubmatch(card.Get("dxCard.item.main.targetUrl").String()); m != nil {
			return m[1]
		}
		if m := reOrderDetail.FindStringSubmatch(card.Get("dynamicOperation.changeContent.dxCard.item.main.exContent.button.targetUrl").String()); m != nil {
			return m[1]
		}
	}
	s := protocol.Stringify(tree)
	for _, re := range fallbacks {
		if m := re.FindStringSubmatch(s); m != nil {
			return m[1]
		}
	}
	return ""
}

// cardJSON parses the card payload embedded as a JSON string at 1.6.3.5.
func cardJSON(tree any) gjson.Result {
	raw := protocol.LookupString(tree, "1", "6", "3", "5")
	if raw == "" || !gjson.Valid(raw) {
		return gjson.Result{}
	}
	return gjson.Parse(raw)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func containsExact(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func isMapping(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}
