// Credential HTTP handlers.
//
//   - GET    /credentials                     (list with runtime status)
//   - POST   /credentials                     (add and start)
//   - PUT    /credentials/{id}                (rotate blob and/or settings)
//   - DELETE /credentials/{id}                (stop and delete)
//   - PUT    /credentials/{id}/enabled        (start/stop)
//   - GET    /credentials/{id}/status         (runtime status)
//   - POST   /credentials/{id}/items/refresh  (sync items from the market)
//   - PATCH  /credentials/{id}/items/{item_id} (delivery flags of an item)
//   - GET    /health                          (process and fleet health)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/xianyu-agent/internal/account"
	"github.com/tbourn/xianyu-agent/internal/domain"
	"github.com/tbourn/xianyu-agent/internal/fleet"
	"github.com/tbourn/xianyu-agent/internal/protocol"
	"github.com/tbourn/xianyu-agent/internal/repo"
)

// CreateCredentialRequest is the JSON payload for adding an account.
type CreateCredentialRequest struct {
	// ID is chosen by the operator and unique across the fleet.
	ID string `json:"id" binding:"required,max=64" example:"shop-a"`
	// Value is the cookie blob; it must carry unb.
	Value        string `json:"value" binding:"required" example:"unb=2200001; cookie2=...; _m_h5_tk=..."`
	AutoConfirm  bool   `json:"auto_confirm"`
	Remark       string `json:"remark" binding:"max=255"`

	// PauseMinutes defaults to 10; 0 disables pausing.
	PauseMinutes *int `json:"pause_minutes" binding:"omitempty,min=0" example:"10"`

	// Enabled defaults to true.
	Enabled *bool `json:"enabled"`
}

func (r CreateCredentialRequest) toCredential() *domain.Credential {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	pause := domain.DefaultPauseMinutes
	if r.PauseMinutes != nil {
		pause = *r.PauseMinutes
	}
	return &domain.Credential{
		ID:           r.ID,
		Value:        strings.TrimSpace(r.Value),
		PauseMinutes: pause,
		AutoConfirm:  r.AutoConfirm,
		Remark:       r.Remark,
		Enabled:      enabled,
	}
}

// UpdateCredentialRequest changes the blob and/or the settings of an
// account. Absent fields keep their value.
type UpdateCredentialRequest struct {
	Value        *string `json:"value"`
	PauseMinutes *int    `json:"pause_minutes" binding:"omitempty,min=0"`
	AutoConfirm  *bool   `json:"auto_confirm"`
	Remark       *string `json:"remark" binding:"omitempty,max=255"`
}

// SetEnabledRequest toggles an account.
type SetEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// RefreshItemsResponse reports how many items were stored.
type RefreshItemsResponse struct {
	Items int `json:"items"`
}

// HealthResponse summarizes the process and its accounts.
type HealthResponse struct {
	Status   string        `json:"status" example:"ok"`
	Accounts []fleet.Entry `json:"accounts"`
}

// ListCredentials godoc
// @ID          listCredentials
// @Summary     List accounts (paginated)
// @Tags        Credentials
// @Produce     json
// @Security    AdminToken
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.Page[fleet.Entry]
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /credentials [get]
func (h *Handlers) ListCredentials(c *gin.Context) {
	entries, err := h.fleet.List(c.Request.Context())
	if err != nil {
		failFor(c, err, "credential")
		return
	}
	ok(c, http.StatusOK, paginate(c, entries))
}

// CreateCredential godoc
// @ID          createCredential
// @Summary     Add an account
// @Description Persists the credential and starts its runtime unless enabled is false.
// @Tags        Credentials
// @Accept      json
// @Produce     json
// @Security    AdminToken
// @Param       body  body  handlers.CreateCredentialRequest  true  "Credential"
// @Success     201  {object}  domain.Credential
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse
// @Router      /credentials [post]
func (h *Handlers) CreateCredential(c *gin.Context) {
	var req CreateCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid credential: "+err.Error())
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id required")
		return
	}
	if protocol.CookieValue(req.Value, "unb") == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cookie blob has no unb")
		return
	}
	cred := req.toCredential()
	if err := h.fleet.Add(c.Request.Context(), cred); err != nil {
		failFor(c, err, "credential")
		return
	}
	ok(c, http.StatusCreated, cred)
}

// UpdateCredential godoc
// @ID          updateCredential
// @Summary     Update an account
// @Description A new cookie blob restarts the runtime; settings apply to the next event.
// @Tags        Credentials
// @Accept      json
// @Security    AdminToken
// @Param       id    path  string                               true  "Credential ID"
// @Param       body  body  handlers.UpdateCredentialRequest  true  "Changes"
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /credentials/{id} [put]
func (h *Handlers) UpdateCredential(c *gin.Context) {
	id := c.Param("id")
	var req UpdateCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid update: "+err.Error())
		return
	}
	ctx := c.Request.Context()

	if req.PauseMinutes != nil || req.AutoConfirm != nil || req.Remark != nil {
		cur, err := repo.GetCredential(ctx, h.db, id)
		if err != nil {
			failFor(c, err, "credential")
			return
		}
		pause, auto, remark := cur.PauseMinutes, cur.AutoConfirm, cur.Remark
		if req.PauseMinutes != nil {
			pause = *req.PauseMinutes
		}
		if req.AutoConfirm != nil {
			auto = *req.AutoConfirm
		}
		if req.Remark != nil {
			remark = *req.Remark
		}
		if err := repo.UpdateCredentialSettings(ctx, h.db, id, pause, auto, remark); err != nil {
			failFor(c, err, "credential")
			return
		}
	}

	if req.Value != nil {
		if protocol.CookieValue(*req.Value, "unb") == "" {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cookie blob has no unb")
			return
		}
		if err := h.fleet.Update(ctx, id, *req.Value); err != nil {
			failFor(c, err, "credential")
			return
		}
	}
	noContent(c)
}

// DeleteCredential godoc
// @ID          deleteCredential
// @Summary     Remove an account
// @Description Stops the runtime and deletes the credential with every row derived from it.
// @Tags        Credentials
// @Security    AdminToken
// @Param       id  path  string  true  "Credential ID"
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /credentials/{id} [delete]
func (h *Handlers) DeleteCredential(c *gin.Context) {
	if err := h.fleet.Remove(c.Request.Context(), c.Param("id")); err != nil {
		failFor(c, err, "credential")
		return
	}
	noContent(c)
}

// SetCredentialEnabled godoc
// @ID          setCredentialEnabled
// @Summary     Enable or disable an account
// @Tags        Credentials
// @Accept      json
// @Security    AdminToken
// @Param       id    path  string                        true  "Credential ID"
// @Param       body  body  handlers.SetEnabledRequest  true  "Flag"
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /credentials/{id}/enabled [put]
func (h *Handlers) SetCredentialEnabled(c *gin.Context) {
	var req SetEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "enabled required")
		return
	}
	if err := h.fleet.SetEnabled(c.Request.Context(), c.Param("id"), *req.Enabled); err != nil {
		failFor(c, err, "credential")
		return
	}
	noContent(c)
}

// CredentialStatusResponse is the runtime status plus stored counters.
type CredentialStatusResponse struct {
	account.Status
	Stats repo.CredentialStats `json:"stats"`
}

// CredentialStatus godoc
// @ID          credentialStatus
// @Summary     Runtime status of an account
// @Tags        Credentials
// @Produce     json
// @Security    AdminToken
// @Param       id  path  string  true  "Credential ID"
// @Success     200  {object}  handlers.CredentialStatusResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /credentials/{id}/status [get]
func (h *Handlers) CredentialStatus(c *gin.Context) {
	id := c.Param("id")
	st, err := h.fleet.Status(c.Request.Context(), id)
	if err != nil {
		failFor(c, err, "credential")
		return
	}
	stats, err := repo.StatsForCredential(c.Request.Context(), h.db, id)
	if err != nil {
		failFor(c, err, "credential")
		return
	}
	ok(c, http.StatusOK, CredentialStatusResponse{Status: st, Stats: stats})
}

// RefreshItems godoc
// @ID          refreshItems
// @Summary     Sync the item list of an account
// @Tags        Credentials
// @Produce     json
// @Security    AdminToken
// @Param       id  path  string  true  "Credential ID"
// @Success     200  {object}  handlers.RefreshItemsResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /credentials/{id}/items/refresh [post]
func (h *Handlers) RefreshItems(c *gin.Context) {
	n, err := h.items.Sync(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFor(c, err, "credential")
		return
	}
	ok(c, http.StatusOK, RefreshItemsResponse{Items: n})
}

// ItemFlagsRequest edits the delivery flags of a cached item. Omitted
// fields keep their value.
type ItemFlagsRequest struct {
	MultiSpec             *bool `json:"is_multi_spec"`
	MultiQuantityDelivery *bool `json:"multi_quantity_delivery"`
}

// PatchItemFlags godoc
// @ID          patchItemFlags
// @Summary     Set the delivery flags of an item
// @Description multi_quantity_delivery sends one card piece per purchased unit. is_multi_spec is normally learned from the item page.
// @Tags        Credentials
// @Accept      json
// @Produce     json
// @Security    AdminToken
// @Param       id       path  string                     true  "Credential ID"
// @Param       item_id  path  string                     true  "Item ID"
// @Param       body     body  handlers.ItemFlagsRequest  true  "Flags"
// @Success     200  {object}  domain.Item
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /credentials/{id}/items/{item_id} [patch]
func (h *Handlers) PatchItemFlags(c *gin.Context) {
	var req ItemFlagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid flags: "+err.Error())
		return
	}
	if req.MultiSpec == nil && req.MultiQuantityDelivery == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "no flag given")
		return
	}
	it, err := h.items.SetFlags(c.Request.Context(), c.Param("id"), c.Param("item_id"), req.MultiSpec, req.MultiQuantityDelivery)
	if err != nil {
		failFor(c, err, "item")
		return
	}
	ok(c, http.StatusOK, it)
}

// Health godoc
// @ID          health
// @Summary     Liveness with per-account status
// @Tags        Health
// @Produce     json
// @Success     200  {object}  handlers.HealthResponse
// @Failure     503  {object}  handlers.ErrorResponse
// @Router      /health [get]
func (h *Handlers) Health(c *gin.Context) {
	entries, err := h.fleet.List(c.Request.Context())
	if err != nil {
		failFor(c, err, "fleet")
		return
	}
	ok(c, http.StatusOK, HealthResponse{Status: "ok", Accounts: entries})
}
