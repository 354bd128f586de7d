// Notification routing handlers.
//
//   - POST /notification-channels                    (create a channel)
//   - PUT  /credentials/{id}/notification-bindings   (route an account)
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

// CreateChannelRequest is an outbound notification adapter. Every kind but
// log needs config.url.
type CreateChannelRequest struct {
	Name   string          `json:"name" binding:"required,max=64" example:"ops-dingtalk"`
	Kind   string          `json:"kind" binding:"required,oneof=webhook dingtalk feishu log" example:"dingtalk"`
	Config json.RawMessage `json:"config" swaggertype:"object"`

	// Enabled defaults to true.
	Enabled *bool `json:"enabled"`
}

// BindingsRequest replaces the channels an account notifies.
type BindingsRequest struct {
	ChannelIDs []uint `json:"channel_ids"`
}

// CreateChannel godoc
// @ID          createChannel
// @Summary     Create a notification channel
// @Tags        Notifications
// @Accept      json
// @Produce     json
// @Security    AdminToken
// @Param       body  body  handlers.CreateChannelRequest  true  "Channel"
// @Success     201  {object}  domain.NotificationChannel
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /notification-channels [post]
func (h *Handlers) CreateChannel(c *gin.Context) {
	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid channel: "+err.Error())
		return
	}
	if len(req.Config) > 0 && !gjson.ValidBytes(req.Config) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "config must be JSON")
		return
	}
	if req.Kind != domain.ChannelLog {
		u := gjson.GetBytes(req.Config, "url").String()
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "config.url must be an http(s) URL")
			return
		}
	}
	ch := &domain.NotificationChannel{
		Name:    strings.TrimSpace(req.Name),
		Kind:    req.Kind,
		Enabled: req.Enabled == nil || *req.Enabled,
	}
	if len(req.Config) > 0 {
		ch.Config = []byte(req.Config)
	}
	if err := repo.CreateChannel(c.Request.Context(), h.db, ch); err != nil {
		failFor(c, err, "channel")
		return
	}
	ok(c, http.StatusCreated, ch)
}

// PutBindings godoc
// @ID          putBindings
// @Summary     Route an account's notifications
// @Description Replaces the bound channels; an empty list silences the account.
// @Tags        Notifications
// @Accept      json
// @Security    AdminToken
// @Param       id    path  string                     true  "Credential ID"
// @Param       body  body  handlers.BindingsRequest  true  "Channel IDs"
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /credentials/{id}/notification-bindings [put]
func (h *Handlers) PutBindings(c *gin.Context) {
	id := c.Param("id")
	var req BindingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid bindings")
		return
	}
	if !h.credentialExists(c, id) {
		return
	}
	ctx := c.Request.Context()
	chans, err := repo.ListChannels(ctx, h.db)
	if err != nil {
		failFor(c, err, "channel")
		return
	}
	known := make(map[uint]struct{}, len(chans))
	for _, ch := range chans {
		known[ch.ID] = struct{}{}
	}
	for _, cid := range req.ChannelIDs {
		if _, ok := known[cid]; !ok {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "channel not found")
			return
		}
	}
	if err := repo.ReplaceBindings(ctx, h.db, id, req.ChannelIDs); err != nil {
		failFor(c, err, "binding")
		return
	}
	noContent(c)
}
