package errx

import (
	"errors"
	"net/http"
)

// ErrRouteParse indicates the router model reply did not fit the routing schema.
// Per design, this is a hard failure of the turn; no default route is substituted.
var ErrRouteParse = errors.New("route decision parse failure")

// WrapRouteParse wraps a router structured-output failure.
func WrapRouteParse(err error) *Error {
	if err == nil {
		return nil
	}
	return New(errors.Join(ErrRouteParse, err), http.StatusBadGateway, RouteParseMessage)
}

// WrapModel wraps an upstream model provider failure.
func WrapModel(err error) *Error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, ModelErrorMessage)
}
