package utils

import (
	"errors"
	"net/http"

	"github.com/stellar/go/clients/horizonclient"
)

// IsNotFound reports whether a Horizon call failed because the resource does not exist.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if horizonclient.IsNotFoundError(err) {
		return true
	}
	var hErr *horizonclient.Error
	if errors.As(err, &hErr) {
		if hErr.Problem.Status == http.StatusNotFound {
			return true
		}
		return hErr.Response != nil && hErr.Response.StatusCode == http.StatusNotFound
	}
	return false
}
