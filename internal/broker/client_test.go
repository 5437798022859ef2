package broker

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	c := New("app-key", "app-secret", "12345678-01", server.URL, zerolog.Nop())
	t.Cleanup(func() {
		c.Close()
		server.Close()
	})
	return c, server
}

func TestApprovalKeyParsesResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth2/Approval", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"approval_key": "abc123"})
	})

	key, err := c.ApprovalKey()
	require.NoError(t, err)
	require.Equal(t, "abc123", key)
}

func TestApprovalKeyRejectsEmptyResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	})

	_, err := c.ApprovalKey()
	require.Error(t, err)
}

func TestEnsureTokenCachesAcrossCalls(t *testing.T) {
	calls := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/tokenP" {
			calls++
			json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"rt_cd": "0"})
	})

	_, err := c.ensureToken()
	require.NoError(t, err)
	_, err = c.ensureToken()
	require.NoError(t, err)

	require.Equal(t, 1, calls, "token should be cached across calls")
}

func TestNonOKStatusReturnsError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	})

	_, err := c.call("GET", "/uapi/domestic-stock/v1/quotations/inquire-price", "FHKST01010100", nil, nil, false)
	require.Error(t, err)
}
