// Package services – DeliveryPipeline
//
// DeliveryPipeline fulfils paid orders announced in a conversation:
//
//  1. the item must belong to the account;
//  2. the order id is extracted from the trigger card or the frame;
//  3. the OrderGate admits one delivery per order and holds it afterwards;
//  4. multi-spec or multi-quantity items fetch (and cache) the order detail;
//  5. a delivery rule is matched, spec rules first, then the generic ones;
//  6. shipment is confirmed when the account enables it;
//  7. the card is rendered and sent, one piece per unit when allowed.
//
// The free-shipping variant stops after step 2 and grants free shipping.
//
// Observability: Handle is OpenTelemetry-instrumented and reports a result
// label through Observe.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/xianyu-agent/internal/classify"
	"github.com/tbourn/xianyu-agent/internal/clock"
	"github.com/tbourn/xianyu-agent/internal/domain"
	"github.com/tbourn/xianyu-agent/internal/market"
	"github.com/tbourn/xianyu-agent/internal/match"
	"github.com/tbourn/xianyu-agent/internal/notify"
	"github.com/tbourn/xianyu-agent/internal/repo"
	"github.com/tbourn/xianyu-agent/internal/store"
)

// Delivery results, as reported to Observe.
const (
	ResultDelivered          = "delivered"
	ResultHeld               = "held"
	ResultNotOwned           = "not_owned"
	ResultNoOrderID          = "no_order_id"
	ResultRuleMiss           = "rule_miss"
	ResultRenderFailed       = "render_failed"
	ResultError              = "error"
	ResultFreeShipping       = "free_shipping"
	ResultFreeShippingFailed = "free_shipping_failed"
)

// Rule match classes, as logged.
const (
	matchExact    = "精确匹配"
	matchFallback = "兜底"
	matchKeyword  = "关键词匹配"
	matchNone     = "无匹配"
)

const (
	pieceSpacing      = time.Second
	freeShippingDelay = 2 * time.Second
	localRetries      = 3
)

// Market is the slice of the marketplace client the delivery pipeline uses.
type Market interface {
	GetItemDetail(ctx context.Context, credentialID, itemID string) (market.ItemDetail, error)
	OrderDetail(ctx context.Context, credentialID, orderID string) (market.OrderDetail, error)
	ConfirmShipment(ctx context.Context, credentialID, orderID string) error
	GrantFreeShipping(ctx context.Context, credentialID, orderID, itemID, buyerID string) error
}

// Sender delivers messages into a conversation.
type Sender interface {
	SendText(ctx context.Context, chatID, peerID, text string) error
	SendImage(ctx context.Context, chatID, peerID, url string, width, height int) error
}

// Notifier receives operational events.
type Notifier interface {
	Notify(ctx context.Context, credentialID, kind, text string) notify.Outcome
}

// DeliveryPipeline delivers card content for one account.
type DeliveryPipeline struct {
	CredentialID string
	Store        *store.Store
	Market       Market
	Sender       Sender
	Notifier     Notifier
	Gate         *OrderGate
	Clock        clock.Clock

	// HTTP performs API-card calls; nil uses http.DefaultClient.
	HTTP *http.Client

	// Sleep waits between steps; nil sleeps on Clock.
	Sleep func(ctx context.Context, d time.Duration) error

	// Observe, when set, receives the result of every Handle call.
	Observe func(result string)
}

// Handle runs the pipeline for an auto-delivery or free-shipping event.
func (p *DeliveryPipeline) Handle(ctx context.Context, ev classify.Event) error {
	tr := otel.Tracer("services/DeliveryPipeline")
	ctx, span := tr.Start(ctx, "Handle",
		trace.WithAttributes(
			attribute.String("account", p.CredentialID),
			attribute.String("chat.id", ev.ChatID),
			attribute.String("item.id", ev.ItemID),
			attribute.String("event.kind", ev.Kind.String()),
		))
	defer span.End()

	var (
		result string
		err    error
	)
	if ev.Kind == classify.KindFreeShipping {
		result, err = p.freeShipping(ctx, ev)
	} else {
		result, err = p.deliver(ctx, ev)
	}
	span.SetAttributes(attribute.String("delivery.result", result))
	if err != nil && result == ResultError {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if p.Observe != nil {
		p.Observe(result)
	}
	return err
}

func (p *DeliveryPipeline) logger(ev classify.Event) zerolog.Logger {
	return log.With().
		Str("account", p.CredentialID).
		Str("chat_id", ev.ChatID).
		Str("item_id", ev.ItemID).
		Logger()
}

func (p *DeliveryPipeline) deliver(ctx context.Context, ev classify.Event) (string, error) {
	logger := p.logger(ev)

	item, err := p.owned(ctx, ev.ItemID)
	if err != nil {
		if errors.Is(err, ErrNotOwned) {
			logger.Info().Msg("item not owned by this account, skipping delivery")
			return ResultNotOwned, err
		}
		return ResultError, err
	}

	orderID := orderIDOf(ev)
	if orderID == "" {
		logger.Warn().Msg("no order id in delivery trigger")
		return ResultNoOrderID, ErrNoOrderID
	}
	logger = logger.With().Str("order_id", orderID).Logger()

	release, err := p.Gate.Acquire(orderID)
	if err != nil {
		logger.Info().Msg("order held, delivery skipped")
		return ResultHeld, err
	}
	defer release()

	cred, err := p.Store.Credential(ctx, p.CredentialID)
	if err != nil {
		return ResultError, err
	}

	// the live item detail decides whether the order detail is needed
	text, item := p.searchText(ctx, ev, item)
	order := p.orderFacts(ctx, orderID, ev, item)

	rule, class, ok := p.matchRule(ctx, text, order, cred.OwnerUserID)
	logger.Info().
		Str("match", class).
		Str("spec", order.SpecName+":"+order.SpecValue).
		Uint("rule_id", rule.ID).
		Msg("delivery rule " + class)
	if !ok {
		p.notify(ctx, notify.KindDeliveryFailed, fmt.Sprintf("订单 %s 未匹配到发货规则（商品 %s）", orderID, ev.ItemID))
		return ResultRuleMiss, ErrRuleMiss
	}
	card := rule.Card
	if card == nil {
		if card, err = repo.GetCard(ctx, p.Store.DB, rule.CardID); err != nil {
			return ResultError, err
		}
	}

	if cred.AutoConfirm {
		p.confirm(ctx, logger, orderID, card.DelaySeconds)
	}

	n := 1
	if item != nil && item.MultiQuantityDelivery && order.Quantity > 1 {
		n = order.Quantity
	}
	facts := orderFacts{
		OrderID:      orderID,
		ItemID:       firstNonEmpty(ev.ItemID, order.ItemID),
		BuyerID:      firstNonEmpty(order.BuyerID, ev.SenderID),
		CredentialID: p.CredentialID,
		SpecName:     order.SpecName,
		SpecValue:    order.SpecValue,
		Amount:       order.Amount,
		Quantity:     max(order.Quantity, 1),
	}
	if item != nil {
		facts.ItemDetail = firstNonEmpty(item.Detail, item.Description)
	}

	var pieces []piece
	for i := 0; i < n; i++ {
		pc, err := p.render(ctx, card, facts)
		if err != nil {
			logger.Warn().Err(err).Int("piece", i+1).Uint("card_id", card.ID).Msg("render failed")
			if errors.Is(err, context.Canceled) {
				break
			}
			continue
		}
		pieces = append(pieces, pc)
	}
	if len(pieces) == 0 {
		p.notify(ctx, notify.KindDeliveryFailed, fmt.Sprintf("订单 %s 发货内容生成失败（卡券 %s）", orderID, card.Name))
		return ResultRenderFailed, ErrRenderFailed
	}

	p.Gate.MarkDelivered(orderID)
	if err := repo.SetOrderStatus(ctx, p.Store.DB, p.CredentialID, orderID, domain.OrderStatusDelivered); err != nil {
		logger.Warn().Err(err).Msg("persist order status")
	}
	if err := repo.IncrementRuleDeliveryCount(ctx, p.Store.DB, rule.ID, len(pieces)); err != nil {
		logger.Warn().Err(err).Msg("bump delivery count")
	}

	peer := firstNonEmpty(ev.SenderID, order.BuyerID)
	sent := 0
	for i, pc := range pieces {
		if i > 0 {
			if err := p.sleep(ctx, pieceSpacing); err != nil {
				break
			}
		}
		if err := p.send(ctx, ev.ChatID, peer, pc); err != nil {
			logger.Error().Err(err).Int("piece", i+1).Msg("send delivery content")
			continue
		}
		sent++
	}
	logger.Info().Int("pieces", len(pieces)).Int("sent", sent).Uint("card_id", card.ID).Msg("order delivered")
	p.notify(ctx, notify.KindDeliverySucceeded, fmt.Sprintf("订单 %s 已自动发货 %d 份（卡券 %s）", orderID, sent, card.Name))
	return ResultDelivered, nil
}

func (p *DeliveryPipeline) freeShipping(ctx context.Context, ev classify.Event) (string, error) {
	logger := p.logger(ev)

	if _, err := p.owned(ctx, ev.ItemID); err != nil {
		if errors.Is(err, ErrNotOwned) {
			return ResultNotOwned, err
		}
		return ResultError, err
	}
	orderID := orderIDOf(ev)
	if orderID == "" {
		logger.Warn().Msg("no order id in free-shipping card")
		return ResultNoOrderID, ErrNoOrderID
	}
	if err := p.sleep(ctx, freeShippingDelay); err != nil {
		return ResultError, err
	}
	if err := p.Market.GrantFreeShipping(ctx, p.CredentialID, orderID, ev.ItemID, ev.SenderID); err != nil {
		logger.Error().Err(err).Str("order_id", orderID).Msg("grant free shipping")
		p.notify(ctx, notify.KindFreeShipping, fmt.Sprintf("订单 %s 小刀免邮失败：%v", orderID, err))
		return ResultFreeShippingFailed, err
	}
	logger.Info().Str("order_id", orderID).Msg("free shipping granted")
	return ResultFreeShipping, nil
}

// owned returns the cached item when itemID belongs to the account. An
// empty itemID passes with a nil item.
func (p *DeliveryPipeline) owned(ctx context.Context, itemID string) (*domain.Item, error) {
	if itemID == "" {
		return nil, nil
	}
	it, err := p.Store.Item(ctx, p.CredentialID, itemID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotOwned
		}
		return nil, err
	}
	return it, nil
}

func orderIDOf(ev classify.Event) string {
	if ev.OrderID != "" {
		return ev.OrderID
	}
	return classify.OrderID(ev.Tree)
}

// orderFacts returns what is known about the order. Multi-spec and
// multi-quantity items need the order detail, cached in the orders table
// until its amount is positive.
func (p *DeliveryPipeline) orderFacts(ctx context.Context, orderID string, ev classify.Event, item *domain.Item) domain.Order {
	base := domain.Order{
		OrderID:      orderID,
		CredentialID: p.CredentialID,
		ItemID:       ev.ItemID,
		BuyerID:      ev.SenderID,
		Quantity:     1,
	}
	if item == nil || !(item.IsMultiSpec || item.MultiQuantityDelivery) {
		if saved, err := repo.UpsertOrder(ctx, p.Store.DB, &base); err == nil {
			return *saved
		}
		return base
	}

	unlock := p.Gate.LockDetail(orderID)
	defer unlock()

	if cached, err := repo.GetOrder(ctx, p.Store.DB, orderID); err == nil && cached.Fresh() {
		return *cached
	}

	var detail market.OrderDetail
	err := p.retry(ctx, func() error {
		var err error
		detail, err = p.Market.OrderDetail(ctx, p.CredentialID, orderID)
		return err
	})
	if err != nil {
		log.Warn().Err(err).Str("account", p.CredentialID).Str("order_id", orderID).Msg("order detail unavailable")
		if saved, err := repo.UpsertOrder(ctx, p.Store.DB, &base); err == nil {
			return *saved
		}
		return base
	}

	o := base
	o.ItemID = firstNonEmpty(detail.ItemID, base.ItemID)
	o.BuyerID = firstNonEmpty(detail.BuyerID, base.BuyerID)
	o.SpecName = detail.SpecName
	o.SpecValue = detail.SpecValue
	o.Amount = detail.Amount
	if detail.Quantity > 0 {
		o.Quantity = detail.Quantity
	}
	if saved, err := repo.UpsertOrder(ctx, p.Store.DB, &o); err == nil {
		return *saved
	}
	return o
}

// searchText prefers the live item description, then the cached title and
// detail, then the bare item id. A live fetch refreshes the item cache,
// including the multi-spec flag, and the refreshed item is returned.
func (p *DeliveryPipeline) searchText(ctx context.Context, ev classify.Event, item *domain.Item) (string, *domain.Item) {
	if ev.ItemID != "" && p.Market != nil {
		d, err := p.Market.GetItemDetail(ctx, p.CredentialID, ev.ItemID)
		if err == nil {
			if fresh := p.captureItem(ctx, d); fresh != nil {
				item = fresh
			}
			if t := strings.TrimSpace(d.Title + " " + d.Description); t != "" {
				return t, item
			}
		} else {
			log.Debug().Err(err).Str("item_id", ev.ItemID).Msg("item detail fetch failed")
		}
	}
	if item != nil {
		if t := strings.TrimSpace(item.Title + " " + item.Detail); t != "" {
			return t, item
		}
	}
	return ev.ItemID, item
}

// captureItem stores a fetched item detail. The multi-spec flag follows the
// marketplace; multi-quantity delivery stays an operator setting.
func (p *DeliveryPipeline) captureItem(ctx context.Context, d market.ItemDetail) *domain.Item {
	it, err := p.Store.UpsertItem(ctx, &domain.Item{
		CredentialID: p.CredentialID,
		ItemID:       d.ItemID,
		Title:        d.Title,
		Description:  d.Description,
		Category:     d.Category,
		Price:        d.Price,
	})
	if err == nil && d.Description != "" {
		err = p.Store.UpdateItemDetail(ctx, p.CredentialID, d.ItemID, d.Description)
	}
	if err == nil {
		multiSpec := d.MultiSpec
		it, err = p.Store.SetItemFlags(ctx, p.CredentialID, d.ItemID, repo.ItemFlags{MultiSpec: &multiSpec})
	}
	if err != nil {
		log.Warn().Err(err).Str("item_id", d.ItemID).Msg("cache item detail")
		return nil
	}
	return it
}

// matchRule tries the spec rules of the order first, then falls back to
// the generic rules.
func (p *DeliveryPipeline) matchRule(ctx context.Context, text string, o domain.Order, owner *uint) (domain.DeliveryRule, string, bool) {
	hasSpec := o.SpecName != "" && o.SpecValue != ""
	if hasSpec {
		rules, err := repo.FindDeliveryRules(ctx, p.Store.DB, repo.RuleQuery{
			Owner: owner, Spec: true, SpecName: o.SpecName, SpecValue: o.SpecValue,
		})
		if err != nil {
			log.Error().Err(err).Msg("load spec delivery rules")
		}
		if r, ok := match.Best(text, rules); ok {
			return r, matchExact, true
		}
	}
	rules, err := repo.FindDeliveryRules(ctx, p.Store.DB, repo.RuleQuery{Owner: owner})
	if err != nil {
		log.Error().Err(err).Msg("load delivery rules")
	}
	if r, ok := match.Best(text, rules); ok {
		if hasSpec {
			return r, matchFallback, true
		}
		return r, matchKeyword, true
	}
	return domain.DeliveryRule{}, matchNone, false
}

// confirm waits delaySeconds then confirms shipment. Failures are logged
// and never stop delivery.
func (p *DeliveryPipeline) confirm(ctx context.Context, logger zerolog.Logger, orderID string, delaySeconds int) {
	if delaySeconds > 0 {
		if err := p.sleep(ctx, time.Duration(delaySeconds)*time.Second); err != nil {
			return
		}
	}
	err := p.retry(ctx, func() error {
		return p.Market.ConfirmShipment(ctx, p.CredentialID, orderID)
	})
	switch {
	case err == nil:
		logger.Info().Msg("shipment confirmed")
	case errors.Is(err, market.ErrRecentlyConfirmed):
		logger.Debug().Msg("shipment recently confirmed")
	default:
		logger.Warn().Err(err).Msg("confirm shipment failed")
	}
}

func (p *DeliveryPipeline) send(ctx context.Context, chatID, peerID string, pc piece) error {
	if pc.ImageURL != "" {
		return p.Sender.SendImage(ctx, chatID, peerID, pc.ImageURL, pc.Width, pc.Height)
	}
	return p.Sender.SendText(ctx, chatID, peerID, pc.Text)
}

func (p *DeliveryPipeline) notify(ctx context.Context, kind, text string) {
	if p.Notifier != nil {
		p.Notifier.Notify(ctx, p.CredentialID, kind, text)
	}
}

// retry runs fn up to localRetries extra times while it fails with a
// transient marketplace error, one second apart.
func (p *DeliveryPipeline) retry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= localRetries; attempt++ {
		if attempt > 0 {
			if serr := p.sleep(ctx, time.Second); serr != nil {
				return err
			}
		}
		if err = fn(); err == nil || !market.IsTransient(err) {
			return err
		}
	}
	return err
}

func (p *DeliveryPipeline) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return clock.Sleep(ctx, clk, d)
}
