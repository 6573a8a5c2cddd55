package ui

import (
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistFS_HasIndex(t *testing.T) {
	sub, err := DistFS()
	require.NoError(t, err)

	data, err := fs.ReadFile(sub, "index.html")
	require.NoError(t, err)
	assert.Contains(t, string(data), "/api/v1/reviews")
}

func serve(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	h, err := Handler()
	require.NoError(t, err)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestHandler_Index(t *testing.T) {
	w := serve(t, "GET", "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<title>MAGI reviews</title>")
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
}

func TestHandler_Asset(t *testing.T) {
	w := serve(t, "GET", "/style.css")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/css")
}

func TestHandler_PageFallback(t *testing.T) {
	w := serve(t, "GET", "/reviews/01HX")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "MAGI")
}

func TestHandler_MissingAsset(t *testing.T) {
	w := serve(t, "GET", "/app.js")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	w := serve(t, "POST", "/")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
