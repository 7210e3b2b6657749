package v1

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHealthcheckRouterReturnsNoContent(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	HealthcheckRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
}
