package auth

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrTokenNotFound     = errors.New("auth: token not found")
	ErrTokenInvalidInput = errors.New("auth: invalid token source")
)

// TokenHeader carries the session token issued by Connect.
const TokenHeader = "X-Token"

// TokenExtractor pulls a raw token from a request. It returns
// ErrTokenNotFound when its source is absent and ErrTokenInvalidInput when
// the source is present but malformed.
type TokenExtractor func(*http.Request) (string, error)

// DefaultTokenExtractor reads X-Token, falling back to a bearer token.
func DefaultTokenExtractor() TokenExtractor {
	return ChainExtractors(HeaderTokenExtractor(TokenHeader), BearerTokenExtractor())
}

func HeaderTokenExtractor(name string) TokenExtractor {
	return func(r *http.Request) (string, error) {
		return nonEmpty(r.Header.Get(name), ErrTokenNotFound)
	}
}

func BearerTokenExtractor() TokenExtractor {
	return func(r *http.Request) (string, error) {
		header := r.Header.Get("Authorization")
		if header == "" {
			return "", ErrTokenNotFound
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return "", ErrTokenInvalidInput
		}
		return nonEmpty(token, ErrTokenInvalidInput)
	}
}

func CookieTokenExtractor(name string) TokenExtractor {
	return func(r *http.Request) (string, error) {
		cookie, err := r.Cookie(name)
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrTokenNotFound
		}
		if err != nil {
			return "", err
		}
		return nonEmpty(cookie.Value, ErrTokenInvalidInput)
	}
}

// ChainExtractors returns the first token found. When none is found, a
// malformed source is reported ahead of absent ones.
func ChainExtractors(extractors ...TokenExtractor) TokenExtractor {
	chain := append([]TokenExtractor(nil), extractors...)
	return func(r *http.Request) (string, error) {
		err := ErrTokenNotFound
		for _, extract := range chain {
			if extract == nil {
				continue
			}
			token, e := extract(r)
			if e == nil {
				return token, nil
			}
			if errors.Is(err, ErrTokenNotFound) {
				err = e
			}
		}
		return "", err
	}
}

func nonEmpty(v string, missing error) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", missing
	}
	return v, nil
}
