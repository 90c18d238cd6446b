package apperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("missing")))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain error")))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(KindNotFound))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(KindAuthorization))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(KindUpstreamTransient))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindInternal))
}

func TestSafeMessage(t *testing.T) {
	assert.Equal(t, "missing", SafeMessage(NotFound("missing")))
	assert.Equal(t, "internal server error", SafeMessage(Internal("boom", errors.New("db down"))))
	assert.Equal(t, "internal server error", SafeMessage(errors.New("raw")))
}
