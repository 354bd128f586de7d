// Settings handlers.
//
//   - GET  /system-settings/{key}             (read a process-wide setting)
//   - PUT  /system-settings/{key}             (upsert it)
//   - POST /users                             (add an operator)
//   - GET  /users/{uid}/settings/{key}        (read an operator setting)
//   - PUT  /users/{uid}/settings/{key}        (upsert it)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/xianyu-agent/internal/domain"
	"github.com/tbourn/xianyu-agent/internal/repo"
	"github.com/tbourn/xianyu-agent/internal/utils"
)

// SettingRequest carries the value of a key/value setting.
type SettingRequest struct {
	Value *string `json:"value" binding:"required" example:"dark"`
}

// SettingResponse is a key/value setting.
type SettingResponse struct {
	Key   string `json:"key" example:"theme"`
	Value string `json:"value" example:"dark"`
}

// CreateUserRequest adds an operator.
type CreateUserRequest struct {
	Username string `json:"username" binding:"required,max=64" example:"ops"`
	Email    string `json:"email" binding:"omitempty,email,max=255" example:"ops@example.com"`
	IsAdmin  bool   `json:"is_admin"`
}

// GetSystemSetting godoc
// @ID          getSystemSetting
// @Summary     Read a system setting
// @Tags        Settings
// @Produce     json
// @Security    AdminToken
// @Param       key  path  string  true  "Setting key"
// @Success     200  {object}  handlers.SettingResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /system-settings/{key} [get]
func (h *Handlers) GetSystemSetting(c *gin.Context) {
	key := c.Param("key")
	v, err := repo.GetSystemSetting(c.Request.Context(), h.db, key)
	if err != nil {
		failFor(c, err, "setting")
		return
	}
	ok(c, http.StatusOK, SettingResponse{Key: key, Value: v})
}

// PutSystemSetting godoc
// @ID          putSystemSetting
// @Summary     Upsert a system setting
// @Tags        Settings
// @Accept      json
// @Security    AdminToken
// @Param       key   path  string                   true  "Setting key"
// @Param       body  body  handlers.SettingRequest  true  "Value"
// @Success     204
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /system-settings/{key} [put]
func (h *Handlers) PutSystemSetting(c *gin.Context) {
	key, valid := settingKey(c)
	if !valid {
		return
	}
	var req SettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "value required")
		return
	}
	if err := repo.SetSystemSetting(c.Request.Context(), h.db, key, *req.Value); err != nil {
		failFor(c, err, "setting")
		return
	}
	noContent(c)
}

// CreateUser godoc
// @ID          createUser
// @Summary     Add an operator
// @Tags        Settings
// @Accept      json
// @Produce     json
// @Security    AdminToken
// @Param       body  body  handlers.CreateUserRequest  true  "User"
// @Success     201  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse
// @Router      /users [post]
func (h *Handlers) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid user: "+err.Error())
		return
	}
	u := &domain.User{
		Username: strings.TrimSpace(req.Username),
		Email:    req.Email,
		IsAdmin:  req.IsAdmin,
	}
	if u.Username == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username required")
		return
	}
	if err := repo.CreateUser(c.Request.Context(), h.db, u); err != nil {
		failFor(c, err, "user")
		return
	}
	ok(c, http.StatusCreated, u)
}

// GetUserSetting godoc
// @ID          getUserSetting
// @Summary     Read an operator setting
// @Tags        Settings
// @Produce     json
// @Security    AdminToken
// @Param       uid  path  int     true  "User ID"
// @Param       key  path  string  true  "Setting key"
// @Success     200  {object}  handlers.SettingResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /users/{uid}/settings/{key} [get]
func (h *Handlers) GetUserSetting(c *gin.Context) {
	uid, valid := utils.ParseID(c.Param("uid"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid user id")
		return
	}
	key := c.Param("key")
	v, err := repo.GetUserSetting(c.Request.Context(), h.db, uid, key)
	if err != nil {
		failFor(c, err, "setting")
		return
	}
	ok(c, http.StatusOK, SettingResponse{Key: key, Value: v})
}

// PutUserSetting godoc
// @ID          putUserSetting
// @Summary     Upsert an operator setting
// @Tags        Settings
// @Accept      json
// @Security    AdminToken
// @Param       uid   path  int                      true  "User ID"
// @Param       key   path  string                   true  "Setting key"
// @Param       body  body  handlers.SettingRequest  true  "Value"
// @Success     204
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /users/{uid}/settings/{key} [put]
func (h *Handlers) PutUserSetting(c *gin.Context) {
	uid, valid := utils.ParseID(c.Param("uid"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid user id")
		return
	}
	key, valid := settingKey(c)
	if !valid {
		return
	}
	var req SettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "value required")
		return
	}
	var n int64
	if err := h.db.WithContext(c.Request.Context()).Model(&domain.User{}).Where("id = ?", uid).Count(&n).Error; err != nil {
		failFor(c, err, "user")
		return
	}
	if n == 0 {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
		return
	}
	if err := repo.SetUserSetting(c.Request.Context(), h.db, uid, key, *req.Value); err != nil {
		failFor(c, err, "setting")
		return
	}
	noContent(c)
}

// settingKey validates the :key path parameter against the column width.
func settingKey(c *gin.Context) (string, bool) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" || len(key) > 64 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "key must be 1-64 bytes")
		return "", false
	}
	return key, true
}
