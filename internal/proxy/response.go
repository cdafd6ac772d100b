package proxy

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// statusFor maps a transaction error to the status sent before closing.
// Zero means close without a response.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusNotImplemented
	case errors.Is(err, ErrMalformedRequest), errors.Is(err, ErrBadURI):
		return http.StatusBadRequest
	case errors.Is(err, errOrigin):
		return http.StatusBadGateway
	default:
		return 0
	}
}

// writeError writes a minimal HTTP/1.0 error response.
func writeError(w io.Writer, code int, err error) error {
	_, werr := fmt.Fprintf(w, "HTTP/1.0 %d %s\r\nContent-Type: text/plain; charset=utf-8\r\nConnection: close\r\n\r\n%s\r\n",
		code, http.StatusText(code), err.Error())
	return werr
}
