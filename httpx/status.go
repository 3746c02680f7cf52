package httpx

import "net/http"

const (
	StatusOK                 = http.StatusOK
	StatusCreated            = http.StatusCreated
	StatusNoContent          = http.StatusNoContent
	StatusBadRequest         = http.StatusBadRequest
	StatusUnauthorized       = http.StatusUnauthorized
	StatusForbidden          = http.StatusForbidden
	StatusNotFound           = http.StatusNotFound
	StatusConflict           = http.StatusConflict
	StatusRequestTooLarge    = http.StatusRequestEntityTooLarge
	StatusInternalError      = http.StatusInternalServerError
	StatusServiceUnavailable = http.StatusServiceUnavailable // store unreachable
	StatusGatewayTimeout     = http.StatusGatewayTimeout     // store call timed out
)
