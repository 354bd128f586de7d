// Delivery configuration handlers.
//
//   - GET  /cards           (list, paginated)
//   - POST /cards           (create a card)
//   - GET  /delivery-rules  (list, paginated)
//   - POST /delivery-rules  (bind a keyword to a card)
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/tbourn/xianyu-agent/internal/domain"
	"github.com/tbourn/xianyu-agent/internal/repo"
)

// CreateCardRequest is a delivery card. Which content field is required
// depends on Kind.
type CreateCardRequest struct {
	Name string `json:"name" binding:"required,max=255" example:"月卡"`
	Kind string `json:"kind" binding:"required,oneof=api text data image" example:"data"`

	// APIConfig holds url, method, headers, params and timeout (seconds).
	APIConfig    json.RawMessage `json:"api_config" swaggertype:"object"`
	TextContent  string          `json:"text_content"`
	DataContent  string          `json:"data_content" example:"CODE-1\nCODE-2"`
	ImageURL     string          `json:"image_url"`
	Description  string          `json:"description" example:"您的卡密：{DELIVERY_CONTENT}"`
	DelaySeconds int             `json:"delay_seconds" binding:"min=0,max=3600"`

	// Enabled defaults to true.
	Enabled *bool `json:"enabled"`
}

// CreateDeliveryRuleRequest binds a keyword (optionally a spec) to a card.
type CreateDeliveryRuleRequest struct {
	Keyword     string `json:"keyword" binding:"required,max=255" example:"月卡"`
	CardID      uint   `json:"card_id" binding:"required"`
	Description string `json:"description"`
	SpecName    string `json:"spec_name" binding:"max=64" example:"时长"`
	SpecValue   string `json:"spec_value" binding:"max=128" example:"30天"`
	// Enabled defaults to true.
	Enabled *bool `json:"enabled"`
}

// ListCards godoc
// @ID          listCards
// @Summary     List delivery cards
// @Tags        Delivery
// @Produce     json
// @Security    AdminToken
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.Page[domain.Card]
// @Router      /cards [get]
func (h *Handlers) ListCards(c *gin.Context) {
	cards, err := repo.ListCards(c.Request.Context(), h.db, nil)
	if err != nil {
		failFor(c, err, "card")
		return
	}
	ok(c, http.StatusOK, paginate(c, cards))
}

// CreateCard godoc
// @ID          createCard
// @Summary     Create a delivery card
// @Description api cards need api_config.url; data cards need data_content (one line per unit).
// @Tags        Delivery
// @Accept      json
// @Produce     json
// @Security    AdminToken
// @Param       body  body  handlers.CreateCardRequest  true  "Card"
// @Success     201  {object}  domain.Card
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /cards [post]
func (h *Handlers) CreateCard(c *gin.Context) {
	var req CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid card: "+err.Error())
		return
	}
	card := &domain.Card{
		Name:         strings.TrimSpace(req.Name),
		Kind:         req.Kind,
		TextContent:  req.TextContent,
		DataContent:  req.DataContent,
		ImageURL:     strings.TrimSpace(req.ImageURL),
		Description:  req.Description,
		DelaySeconds: req.DelaySeconds,
		Enabled:      req.Enabled == nil || *req.Enabled,
	}
	if len(req.APIConfig) > 0 {
		card.APIConfig = []byte(req.APIConfig)
	}
	if msg := validateCard(card); msg != "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msg)
		return
	}
	if err := repo.CreateCard(c.Request.Context(), h.db, card); err != nil {
		failFor(c, err, "card")
		return
	}
	ok(c, http.StatusCreated, card)
}

// validateCard returns a client-facing reason when card cannot render.
func validateCard(card *domain.Card) string {
	switch card.Kind {
	case domain.CardKindAPI:
		if !gjson.ValidBytes(card.APIConfig) {
			return "api cards need a JSON api_config"
		}
		u := gjson.GetBytes(card.APIConfig, "url").String()
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return "api_config.url must be an http(s) URL"
		}
		if m := strings.ToUpper(gjson.GetBytes(card.APIConfig, "method").String()); m != "" && m != http.MethodGet && m != http.MethodPost {
			return "api_config.method must be GET or POST"
		}
	case domain.CardKindText:
		if strings.TrimSpace(card.TextContent) == "" {
			return "text cards need text_content"
		}
	case domain.CardKindData:
		if strings.TrimSpace(card.DataContent) == "" {
			return "data cards need data_content"
		}
	case domain.CardKindImage:
		if card.ImageURL == "" {
			return "image cards need image_url"
		}
	}
	return ""
}

// ListDeliveryRules godoc
// @ID          listDeliveryRules
// @Summary     List delivery rules
// @Tags        Delivery
// @Produce     json
// @Security    AdminToken
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.Page[domain.DeliveryRule]
// @Router      /delivery-rules [get]
func (h *Handlers) ListDeliveryRules(c *gin.Context) {
	rules, err := repo.ListDeliveryRules(c.Request.Context(), h.db)
	if err != nil {
		failFor(c, err, "delivery rule")
		return
	}
	ok(c, http.StatusOK, paginate(c, rules))
}

// CreateDeliveryRule godoc
// @ID          createDeliveryRule
// @Summary     Create a delivery rule
// @Description spec_name and spec_value go together; a rule with both only matches orders of that spec.
// @Tags        Delivery
// @Accept      json
// @Produce     json
// @Security    AdminToken
// @Param       body  body  handlers.CreateDeliveryRuleRequest  true  "Rule"
// @Success     201  {object}  domain.DeliveryRule
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /delivery-rules [post]
func (h *Handlers) CreateDeliveryRule(c *gin.Context) {
	var req CreateDeliveryRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid rule: "+err.Error())
		return
	}
	rule := &domain.DeliveryRule{
		Keyword:     strings.TrimSpace(req.Keyword),
		CardID:      req.CardID,
		Description: req.Description,
		SpecName:    strings.TrimSpace(req.SpecName),
		SpecValue:   strings.TrimSpace(req.SpecValue),
		Enabled:     req.Enabled == nil || *req.Enabled,
	}
	if rule.Keyword == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "keyword required")
		return
	}
	if (rule.SpecName == "") != (rule.SpecValue == "") {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "spec_name and spec_value go together")
		return
	}
	ctx := c.Request.Context()
	if _, err := repo.GetCard(ctx, h.db, rule.CardID); err != nil {
		failFor(c, err, "card")
		return
	}
	if err := repo.CreateDeliveryRule(ctx, h.db, rule); err != nil {
		failFor(c, err, "delivery rule")
		return
	}
	ok(c, http.StatusCreated, rule)
}
