package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/adeilh/go-rakh-kv/auth"
	"github.com/adeilh/go-rakh-kv/httpx"
)

type UserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

func (h *Handler) createUser(c httpx.Context) error {
	var req UserRequest
	if err := c.Bind(&req); err != nil {
		return httpx.HTTPError(httpx.StatusBadRequest, "Invalid body")
	}
	if strings.TrimSpace(req.Email) == "" {
		return httpx.HTTPError(httpx.StatusBadRequest, "Missing email")
	}
	if req.Password == "" {
		return httpx.HTTPError(httpx.StatusBadRequest, "Missing password")
	}

	user, err := h.manager.Register(c.Request().Context(), req.Email, []byte(req.Password))
	if err != nil {
		return userError(err)
	}
	return c.JSON(httpx.StatusCreated, UserResponse{ID: user.ID, Email: user.Email})
}

func (h *Handler) connect(c httpx.Context) error {
	email, password, ok := c.Request().BasicAuth()
	if !ok || email == "" {
		return httpx.HTTPError(httpx.StatusUnauthorized, "Unauthorized")
	}
	token, err := h.manager.Connect(c.Request().Context(), email, []byte(password), auth.ConnectInfo{
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return userError(err)
	}
	return c.JSON(httpx.StatusOK, TokenResponse{Token: token.Descriptor().ID})
}

func (h *Handler) disconnect(c httpx.Context) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}
	if err := h.manager.Disconnect(c.Request().Context(), session.Descriptor().ID); err != nil {
		return userError(err)
	}
	return c.NoContent(httpx.StatusNoContent)
}

func (h *Handler) me(c httpx.Context) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}
	user, err := h.manager.CurrentUser(c.Request().Context(), session.Descriptor().ID)
	if err != nil {
		return userError(err)
	}
	return c.JSON(httpx.StatusOK, UserResponse{ID: user.ID, Email: user.Email})
}

func userError(err error) error {
	switch {
	case errors.Is(err, auth.ErrUserEmailInUse):
		return httpx.HTTPError(httpx.StatusConflict, "Already exist")
	case errors.Is(err, auth.ErrUserInvalidInput):
		return httpx.HTTPError(httpx.StatusBadRequest, "Invalid email")
	case errors.Is(err, auth.ErrPasswordTooShort), errors.Is(err, auth.ErrPasswordTooLong):
		return httpx.HTTPError(httpx.StatusBadRequest, err.Error())
	}
	code := auth.StatusForError(err)
	if code == httpx.StatusUnauthorized {
		return httpx.HTTPError(code, "Unauthorized")
	}
	return httpx.HTTPErrorWithCause(code, http.StatusText(code), err)
}
