package market

import (
	"context"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/tbourn/xianyu-agent/internal/domain"
	"github.com/tbourn/xianyu-agent/internal/protocol"
)

// RefreshToken obtains a websocket access token for the credential.
func (c *Client) RefreshToken(ctx context.Context, credentialID, deviceID string) (domain.AccessToken, error) {
	data, err := c.call(ctx, credentialID, APIToken, map[string]string{
		"appKey":   protocol.WSAppKey,
		"deviceId": deviceID,
	})
	if err != nil {
		return domain.AccessToken{}, err
	}
	tok := data.Get("accessToken").String()
	if tok == "" {
		return domain.AccessToken{}, &Error{Kind: KindBusiness, API: APIToken, Err: ErrNoToken}
	}
	return domain.AccessToken{Value: tok, IssuedAt: c.Clock.Now()}, nil
}

// ItemDetail is the subset of the item page the agent caches.
type ItemDetail struct {
	ItemID      string
	Title       string
	Description string
	Category    string
	Price       string
	MultiSpec   bool
	Raw         string
}

// GetItemDetail fetches an item page.
func (c *Client) GetItemDetail(ctx context.Context, credentialID, itemID string) (ItemDetail, error) {
	data, err := c.call(ctx, credentialID, APIItemDetail, map[string]string{"itemId": itemID})
	if err != nil {
		return ItemDetail{}, err
	}
	it := data.Get("itemDO")
	return ItemDetail{
		ItemID:      itemID,
		Title:       it.Get("title").String(),
		Description: it.Get("desc").String(),
		Category:    first(it, "itemCatDTO.catName", "categoryName"),
		Price:       first(it, "soldPrice", "price"),
		MultiSpec:   len(it.Get("idleItemSkuList").Array()) > 1 || len(it.Get("skuList").Array()) > 1,
		Raw:         data.Raw,
	}, nil
}

// ItemSummary is one entry of the seller's item list.
type ItemSummary struct {
	ItemID string
	Title  string
	Price  string
}

// ListItems fetches one page of the seller's items and reports whether
// another page follows.
func (c *Client) ListItems(ctx context.Context, credentialID, userID string, page, size int) ([]ItemSummary, bool, error) {
	data, err := c.call(ctx, credentialID, APIItemList, map[string]any{
		"needGroupInfo": false,
		"pageNumber":    page,
		"userId":        userID,
		"pageSize":      size,
	})
	if err != nil {
		return nil, false, err
	}
	var out []ItemSummary
	for _, card := range data.Get("cardList").Array() {
		d := card.Get("cardData")
		id := d.Get("id").String()
		if id == "" {
			continue
		}
		out = append(out, ItemSummary{
			ItemID: id,
			Title:  d.Get("title").String(),
			Price:  first(d, "priceInfo.price", "price"),
		})
	}
	return out, data.Get("nextPage").Bool(), nil
}

// ConfirmShipment marks an order as shipped. A confirmation within
// ConfirmTTL of a previous one returns ErrRecentlyConfirmed without calling
// the marketplace.
func (c *Client) ConfirmShipment(ctx context.Context, credentialID, orderID string) error {
	key := "confirm:" + orderID
	stored, err := c.Confirmed.SetNX(ctx, key, []byte(credentialID), c.ConfirmTTL)
	if err != nil {
		return err
	}
	if !stored {
		return ErrRecentlyConfirmed
	}
	_, err = c.call(ctx, credentialID, APIConfirm, map[string]any{
		"orderId":      orderID,
		"tradeText":    "",
		"picList":      []string{},
		"newUnconsign": true,
	})
	if err != nil {
		_ = c.Confirmed.Delete(ctx, key)
		return err
	}
	return nil
}

// GrantFreeShipping grants free shipping on a group-buy order.
func (c *Client) GrantFreeShipping(ctx context.Context, credentialID, orderID, itemID, buyerID string) error {
	api := c.FreeShippingAPI
	if api == "" {
		api = APIFreeShipping
	}
	_, err := c.call(ctx, credentialID, api, map[string]string{
		"bizOrderId": orderID,
		"itemId":     itemID,
		"buyerId":    buyerID,
	})
	return err
}

// OrderDetail holds the per-order facts harvested for delivery.
type OrderDetail struct {
	OrderID   string
	ItemID    string
	BuyerID   string
	SpecName  string
	SpecValue string
	Quantity  int
	Amount    string
}

// OrderDetail fetches an order page and scrapes spec, quantity and amount.
// The page layout varies by order type, so every field is searched under
// several key names anywhere in the document.
func (c *Client) OrderDetail(ctx context.Context, credentialID, orderID string) (OrderDetail, error) {
	data, err := c.call(ctx, credentialID, APIOrderDetail, map[string]string{"orderId": orderID})
	if err != nil {
		return OrderDetail{}, err
	}
	od := OrderDetail{
		OrderID: orderID,
		ItemID:  findKey(data, "itemId", "itemID"),
		BuyerID: findKey(data, "buyerId", "buyerUserId"),
		Amount:  strings.TrimSpace(findKey(data, "payAmount", "totalPrice", "actualPaidFee", "price")),
	}
	if q, err := strconv.Atoi(findKey(data, "buyAmount", "quantity", "buyQuantity")); err == nil && q > 0 {
		od.Quantity = q
	}
	od.SpecName, od.SpecValue = parseSpec(findKey(data, "skuInfo", "skuText", "sku"))
	return od, nil
}

// parseSpec splits "颜色:红" (ASCII or full-width colon) into name and
// value. Multiple dimensions keep only the first.
func parseSpec(s string) (string, string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	if i := strings.IndexAny(s, ";；"); i >= 0 {
		s = s[:i]
	}
	s = strings.Replace(s, "：", ":", 1)
	name, value, ok := strings.Cut(s, ":")
	if !ok {
		return "", ""
	}
	return strings.TrimSpace(name), strings.TrimSpace(value)
}

func first(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// findKey returns the first scalar found under any of keys, searching the
// document depth first.
func findKey(r gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v, ok := walk(r, k); ok {
			return v
		}
	}
	return ""
}

func walk(r gjson.Result, key string) (string, bool) {
	var (
		out   string
		found bool
	)
	r.ForEach(func(k, v gjson.Result) bool {
		if k.String() == key && !v.IsObject() && !v.IsArray() && v.String() != "" {
			out, found = v.String(), true
			return false
		}
		if v.IsObject() || v.IsArray() {
			if s, ok := walk(v, key); ok {
				out, found = s, true
				return false
			}
		}
		return true
	})
	return out, found
}
