package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterSwagger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterSwagger(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		BasePath string                    `json:"basePath"`
		Paths    map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc), w.Body.String())
	assert.Equal(t, "/api/v1", doc.BasePath)

	routes := []struct{ path, method string }{
		{"/connection", "get"},
		{"/connection", "post"},
		{"/connection", "delete"},
		{"/connection/permission", "post"},
		{"/receiver/start", "post"},
		{"/receiver/stop", "post"},
		{"/frames", "post"},
		{"/axis-limits", "post"},
		{"/frames/latest", "get"},
		{"/pm", "get"},
	}
	for _, rt := range routes {
		assert.Contains(t, doc.Paths[rt.path], rt.method, "%s %s", rt.method, rt.path)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
