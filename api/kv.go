package api

import (
	"time"

	"github.com/adeilh/go-rakh-kv/httpx"
)

// Entry is the JSON shape of a stored value. Value is base64 on the wire.
type Entry struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// PutRequest is the body of PUT /kv/:key. TTLSeconds <= 0 stores without
// expiry.
type PutRequest struct {
	Value      []byte `json:"value"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

func (h *Handler) getValue(c httpx.Context) error {
	key, err := keyParam(c)
	if err != nil {
		return err
	}
	if err := h.checkKey(key); err != nil {
		return err
	}
	value, err := h.store.Get(c.Request().Context(), key)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(httpx.StatusOK, Entry{Key: key, Value: value})
}

func (h *Handler) putValue(c httpx.Context) error {
	key, err := keyParam(c)
	if err != nil {
		return err
	}
	if err := h.checkKey(key); err != nil {
		return err
	}
	var req PutRequest
	if err := c.Bind(&req); err != nil {
		return httpx.HTTPError(httpx.StatusBadRequest, "Invalid body")
	}
	// Bound the seconds before converting; the product overflows otherwise.
	if req.TTLSeconds < 0 || req.TTLSeconds > int64(MaxTTL/time.Second) {
		return httpx.HTTPError(httpx.StatusBadRequest, "Invalid ttl_seconds")
	}
	ttl := time.Duration(req.TTLSeconds) * time.Second
	if err := h.store.Set(c.Request().Context(), key, req.Value, ttl); err != nil {
		return storeError(err)
	}
	return c.NoContent(httpx.StatusNoContent)
}

func (h *Handler) deleteValue(c httpx.Context) error {
	key, err := keyParam(c)
	if err != nil {
		return err
	}
	if err := h.checkKey(key); err != nil {
		return err
	}
	if err := h.store.Delete(c.Request().Context(), key); err != nil {
		return storeError(err)
	}
	return c.NoContent(httpx.StatusNoContent)
}
