// Reply configuration handlers.
//
//   - GET    /credentials/{id}/keywords        (list, paginated)
//   - POST   /credentials/{id}/keywords        (add a rule)
//   - DELETE /credentials/{id}/keywords/{kid}  (remove a rule)
//   - PUT    /credentials/{id}/default-reply   (set the fallback reply)
//   - PUT    /credentials/{id}/ai-settings     (configure the AI responder)
//
// Replies read these rows on every message, so changes apply without
// restarting the account.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/tbourn/xianyu-agent/internal/domain"
	"github.com/tbourn/xianyu-agent/internal/repo"
	"github.com/tbourn/xianyu-agent/internal/utils"
)

// CreateKeywordRequest is a keyword reply rule. ItemID scopes the rule to
// one item; empty means every item.
type CreateKeywordRequest struct {
	Keyword  string `json:"keyword" binding:"required,max=255" example:"发货"`
	Reply    string `json:"reply" example:"您好，付款后自动发货"`
	Kind     string `json:"kind" binding:"omitempty,oneof=text image" example:"text"`
	ImageURL string `json:"image_url"`
	ItemID   string `json:"item_id" binding:"max=32"`
}

// DefaultReplyRequest sets the reply used when no keyword matches.
type DefaultReplyRequest struct {
	Enabled      bool   `json:"enabled"`
	ReplyContent string `json:"reply_content" example:"亲，{send_user_name}，稍后回复您"`
	ReplyOnce    bool   `json:"reply_once"`
}

// AISettingsRequest configures the AI responder of an account. APIKey is
// write-only.
type AISettingsRequest struct {
	Enabled           bool            `json:"enabled"`
	ModelName         string          `json:"model_name" example:"qwen-plus"`
	APIKey            string          `json:"api_key"`
	BaseURL           string          `json:"base_url" example:"https://dashscope.aliyuncs.com/compatible-mode/v1"`
	MaxDiscountPct    int             `json:"max_discount_pct" binding:"min=0,max=100"`
	MaxDiscountAmount int             `json:"max_discount_amount" binding:"min=0"`
	MaxBargainRounds  int             `json:"max_bargain_rounds" binding:"min=0"`
	CustomPrompts     json.RawMessage `json:"custom_prompts" swaggertype:"object"`
}

// ListKeywords godoc
// @ID          listKeywords
// @Summary     List keyword rules of an account
// @Tags        Replies
// @Produce     json
// @Security    AdminToken
// @Param       id         path   string  true   "Credential ID"
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.Page[domain.Keyword]
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /credentials/{id}/keywords [get]
func (h *Handlers) ListKeywords(c *gin.Context) {
	id := c.Param("id")
	if !h.credentialExists(c, id) {
		return
	}
	kws, err := h.fleet.KeywordsOf(c.Request.Context(), id)
	if err != nil {
		failFor(c, err, "credential")
		return
	}
	ok(c, http.StatusOK, paginate(c, kws))
}

// CreateKeyword godoc
// @ID          createKeyword
// @Summary     Add a keyword rule
// @Tags        Replies
// @Accept      json
// @Produce     json
// @Security    AdminToken
// @Param       id    path  string                          true  "Credential ID"
// @Param       body  body  handlers.CreateKeywordRequest  true  "Rule"
// @Success     201  {object}  domain.Keyword
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /credentials/{id}/keywords [post]
func (h *Handlers) CreateKeyword(c *gin.Context) {
	id := c.Param("id")
	var req CreateKeywordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid keyword: "+err.Error())
		return
	}
	kw := &domain.Keyword{
		CredentialID: id,
		ItemID:       strings.TrimSpace(req.ItemID),
		Keyword:      strings.TrimSpace(req.Keyword),
		Reply:        req.Reply,
		Kind:         req.Kind,
		ImageURL:     strings.TrimSpace(req.ImageURL),
	}
	if kw.Kind == "" {
		kw.Kind = domain.KeywordKindText
	}
	switch {
	case kw.Keyword == "":
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "keyword required")
		return
	case kw.Kind == domain.KeywordKindImage && kw.ImageURL == "":
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "image keywords need image_url")
		return
	case kw.Kind == domain.KeywordKindText && strings.TrimSpace(kw.Reply) == "":
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text keywords need a reply")
		return
	}
	if !h.credentialExists(c, id) {
		return
	}
	if err := repo.CreateKeyword(c.Request.Context(), h.db, kw); err != nil {
		failFor(c, err, "keyword")
		return
	}
	ok(c, http.StatusCreated, kw)
}

// DeleteKeyword godoc
// @ID          deleteKeyword
// @Summary     Remove a keyword rule
// @Tags        Replies
// @Security    AdminToken
// @Param       id   path  string  true  "Credential ID"
// @Param       kid  path  int     true  "Keyword ID"
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /credentials/{id}/keywords/{kid} [delete]
func (h *Handlers) DeleteKeyword(c *gin.Context) {
	kid, valid := utils.ParseID(c.Param("kid"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "keyword id must be a positive integer")
		return
	}
	if err := repo.DeleteKeyword(c.Request.Context(), h.db, c.Param("id"), kid); err != nil {
		failFor(c, err, "keyword")
		return
	}
	noContent(c)
}

// PutDefaultReply godoc
// @ID          putDefaultReply
// @Summary     Set the default reply of an account
// @Tags        Replies
// @Accept      json
// @Produce     json
// @Security    AdminToken
// @Param       id    path  string                         true  "Credential ID"
// @Param       body  body  handlers.DefaultReplyRequest  true  "Default reply"
// @Success     200  {object}  domain.DefaultReply
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /credentials/{id}/default-reply [put]
func (h *Handlers) PutDefaultReply(c *gin.Context) {
	id := c.Param("id")
	var req DefaultReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid default reply")
		return
	}
	if req.Enabled && strings.TrimSpace(req.ReplyContent) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "reply_content required when enabled")
		return
	}
	if !h.credentialExists(c, id) {
		return
	}
	dr := &domain.DefaultReply{
		CredentialID: id,
		Enabled:      req.Enabled,
		ReplyContent: req.ReplyContent,
		ReplyOnce:    req.ReplyOnce,
	}
	if err := repo.UpsertDefaultReply(c.Request.Context(), h.db, dr); err != nil {
		failFor(c, err, "default reply")
		return
	}
	ok(c, http.StatusOK, dr)
}

// PutAISettings godoc
// @ID          putAISettings
// @Summary     Configure the AI responder of an account
// @Tags        Replies
// @Accept      json
// @Produce     json
// @Security    AdminToken
// @Param       id    path  string                       true  "Credential ID"
// @Param       body  body  handlers.AISettingsRequest  true  "AI settings"
// @Success     200  {object}  domain.AISettings
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /credentials/{id}/ai-settings [put]
func (h *Handlers) PutAISettings(c *gin.Context) {
	id := c.Param("id")
	var req AISettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid ai settings: "+err.Error())
		return
	}
	if len(req.CustomPrompts) > 0 && !json.Valid(req.CustomPrompts) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "custom_prompts must be a JSON object")
		return
	}
	if req.Enabled && strings.TrimSpace(req.APIKey) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "api_key required when enabled")
		return
	}
	if !h.credentialExists(c, id) {
		return
	}
	set := &domain.AISettings{
		CredentialID:      id,
		Enabled:           req.Enabled,
		ModelName:         strings.TrimSpace(req.ModelName),
		APIKey:            strings.TrimSpace(req.APIKey),
		BaseURL:           strings.TrimSpace(req.BaseURL),
		MaxDiscountPct:    req.MaxDiscountPct,
		MaxDiscountAmount: req.MaxDiscountAmount,
		MaxBargainRounds:  req.MaxBargainRounds,
	}
	if len(req.CustomPrompts) > 0 {
		set.CustomPrompts = datatypes.JSON(req.CustomPrompts)
	}
	if err := repo.UpsertAISettings(c.Request.Context(), h.db, set); err != nil {
		failFor(c, err, "ai settings")
		return
	}
	ok(c, http.StatusOK, set)
}

// credentialExists answers 404 itself when id is unknown.
func (h *Handlers) credentialExists(c *gin.Context, id string) bool {
	if _, err := repo.GetCredential(c.Request.Context(), h.db, id); err != nil {
		failFor(c, err, "credential")
		return false
	}
	return true
}
