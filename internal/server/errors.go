package server

import (
	"errors"
	"net/http"

	"github.com/boshu2/regtest/internal/config"
	"github.com/boshu2/regtest/internal/review"
	"github.com/boshu2/regtest/internal/runner"
)

var (
	// ErrNonce is returned when a request carries the nonce of another
	// server instance.
	ErrNonce = errors.New("nonce did not match running server - reload the page")

	// ErrAction is returned for a missing or unknown action parameter.
	ErrAction = errors.New("unknown action")
)

// rerunHint is shown when review state has to be rebuilt by a run.
const rerunHint = "Current state is missing or invalid. Run the regression test for all corpora, " +
	"from the page or with regtest serve --run."

// statusOf maps an error to the HTTP status of its class.
func statusOf(err error) int {
	switch {
	case errors.Is(err, review.ErrStateMissing):
		return http.StatusPreconditionFailed
	case errors.Is(err, runner.ErrLockHeld):
		return http.StatusConflict
	case errors.Is(err, ErrNonce),
		errors.Is(err, ErrAction),
		errors.Is(err, review.ErrInvalidParam),
		errors.Is(err, config.ErrUnknownTest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
