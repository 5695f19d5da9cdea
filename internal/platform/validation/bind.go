package validation

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// BindError maps an echo Bind failure to the response the handler should
// return. A 413 raised while the body was being read is passed through;
// anything else is a 400. echo may wrap the read error in its own 400, so
// the whole chain is searched.
func BindError(err error) error {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if he, ok := e.(*echo.HTTPError); ok && he.Code == http.StatusRequestEntityTooLarge {
			return he
		}
	}
	return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
}
