package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRouter_SessionRoundTrip(t *testing.T) {
	h, _ := newTestHandler(t, &stubChat{answer: "Bienvenue au Boraha !"})
	srv := httptest.NewServer(NewRouter(h))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/sessions", "application/json", nil)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Correlation-Id"))
	id := parseBody[sessionResponse](t, string(raw)).SessionID

	resp, err = http.Post(srv.URL+"/sessions/"+id+"/messages", "application/json", strings.NewReader(`{"message":"Bonjour"}`))
	require.NoError(t, err)
	raw, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.Equal(t, "Bienvenue au Boraha !", parseBody[sendResponse](t, string(raw)).Reply)
}

func TestRouter_EchoesCorrelationID(t *testing.T) {
	h, _ := newTestHandler(t, &stubChat{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-Id", "corr-42")
	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "corr-42", rec.Header().Get("X-Correlation-Id"))
}

func TestRouter_Preflight(t *testing.T) {
	h, store := newTestHandler(t, &stubChat{})

	req := httptest.NewRequest(http.MethodOptions, "/sessions", nil)
	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Zero(t, store.sweeps)
}
