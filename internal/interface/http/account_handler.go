package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/campuslink/account-service/internal/application"
	"github.com/campuslink/account-service/pkg/response"
	"github.com/campuslink/account-service/pkg/validation"
)

const birthdayLayout = "2006-01-02"

type AccountHandler struct {
	Svc    *application.Service
	Logger *logrus.Logger
}

func NewAccountHandler(svc *application.Service, logger *logrus.Logger) *AccountHandler {
	return &AccountHandler{Svc: svc, Logger: logger}
}

type createUserRequest struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,pwd"`
	Description string `json:"description"`
	Birthday    string `json:"birthday" binding:"omitempty,datetime=2006-01-02"`
	Course      string `json:"course"`
	AvatarID    *int64 `json:"avatar_id"`
	IsAdmin     bool   `json:"is_admin"`
}

type updateUserRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email" binding:"omitempty,email"`
	Description *string `json:"description"`
	Birthday    *string `json:"birthday" binding:"omitempty,datetime=2006-01-02"`
	Course      *string `json:"course"`
	AvatarID    *int64  `json:"avatar_id"`
	OldPassword *string `json:"oldPassword"`
	Password    *string `json:"password" binding:"omitempty,pwd"`
	IsAdmin     *bool   `json:"is_admin"`
}

// statusFor maps workflow failure kinds to HTTP statuses. Unclassified
// errors become 500 with an opaque message.
func statusFor(err error) int {
	switch {
	case errors.Is(err, application.ErrAdminFieldForbidden),
		errors.Is(err, application.ErrInvalidTargetID),
		errors.Is(err, application.ErrAvatarNotFound):
		return http.StatusBadRequest
	case errors.Is(err, application.ErrIncorrectPassword):
		return http.StatusUnauthorized
	case errors.Is(err, application.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, application.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, application.ErrUserExists),
		errors.Is(err, application.ErrEmailRegistered):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *AccountHandler) fail(c *gin.Context, err error, internalMsg string) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		if h.Logger != nil {
			h.Logger.WithError(err).Error(internalMsg)
		}
		msg = internalMsg
	}
	resp := response.Error[any](c, status, msg, nil)
	c.JSON(resp.Status, resp)
}

func parseBirthday(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(birthdayLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create handles POST /api/users.
func (h *AccountHandler) Create(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}
	birthday, err := parseBirthday(req.Birthday)
	if err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", map[string]string{"birthday": "must match datetime format: " + birthdayLayout})
		c.JSON(resp.Status, resp)
		return
	}

	p, err := h.Svc.Create(c.Request.Context(), application.CreateInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		Description: req.Description,
		Birthday:    birthday,
		Course:      req.Course,
		AvatarID:    req.AvatarID,
		IsAdmin:     req.IsAdmin,
	})
	if err != nil {
		h.fail(c, err, "could not create user")
		return
	}
	resp := response.Success(c, http.StatusCreated, p, "user created", nil)
	c.JSON(resp.Status, resp)
}

// UpdateProfile handles PUT /api/profile for the authenticated actor.
func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	uid := c.GetInt64("userID")
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}

	in := application.UpdateInput{
		Name:        req.Name,
		Email:       req.Email,
		Description: req.Description,
		Course:      req.Course,
		AvatarID:    req.AvatarID,
		OldPassword: req.OldPassword,
		Password:    req.Password,
		IsAdmin:     req.IsAdmin,
	}
	if req.Birthday != nil {
		birthday, err := parseBirthday(*req.Birthday)
		if err != nil {
			resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", map[string]string{"birthday": "must match datetime format: " + birthdayLayout})
			c.JSON(resp.Status, resp)
			return
		}
		in.Birthday = birthday
	}

	p, err := h.Svc.Update(c.Request.Context(), uid, in)
	if err != nil {
		h.fail(c, err, "could not update user")
		return
	}
	resp := response.Success(c, http.StatusOK, p, "profile updated", nil)
	c.JSON(resp.Status, resp)
}

// Delete handles DELETE /api/users/:id; restricted to administrators.
func (h *AccountHandler) Delete(c *gin.Context) {
	uid := c.GetInt64("userID")
	id, err := h.Svc.Delete(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		h.fail(c, err, "could not delete user")
		return
	}
	resp := response.Success(c, http.StatusOK, gin.H{"id": id}, "user deleted", nil)
	c.JSON(resp.Status, resp)
}

// GetProfile handles GET /api/profile.
func (h *AccountHandler) GetProfile(c *gin.Context) {
	uid := c.GetInt64("userID")
	p, err := h.Svc.GetProfile(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, err, "could not load profile")
		return
	}
	resp := response.Success(c, http.StatusOK, p, "profile", nil)
	c.JSON(resp.Status, resp)
}

// UploadAvatar handles POST /api/profile/avatar (multipart field "avatar").
func (h *AccountHandler) UploadAvatar(c *gin.Context) {
	uid := c.GetInt64("userID")
	fh, err := c.FormFile("avatar")
	if err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "missing avatar file", nil)
		c.JSON(resp.Status, resp)
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.fail(c, err, "could not read avatar file")
		return
	}
	defer func() { _ = f.Close() }()

	a, err := h.Svc.UploadAvatar(c.Request.Context(), uid, f, fh.Filename, fh.Header.Get("Content-Type"))
	if err != nil {
		h.fail(c, err, "could not upload avatar")
		return
	}
	resp := response.Success(c, http.StatusOK, gin.H{"avatar_id": a.ID, "avatar_url": a.URL}, "avatar uploaded", nil)
	c.JSON(resp.Status, resp)
}

// Search handles GET /api/users/search?q=...&size=...
func (h *AccountHandler) Search(c *gin.Context) {
	q := c.Query("q")
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	res, err := h.Svc.SearchUsers(c.Request.Context(), q, size)
	if err != nil {
		h.fail(c, err, "search failed")
		return
	}
	resp := response.Success(c, http.StatusOK, res, "search results", map[string]any{"count": len(res)})
	c.JSON(resp.Status, resp)
}
