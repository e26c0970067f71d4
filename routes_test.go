package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"storesync/config"
)

func TestAuthRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	previous := config.Config.ApiSecret
	config.Config.ApiSecret = "sekrit"
	defer func() { config.Config.ApiSecret = previous }()

	r := gin.New()
	r.GET("/health", GetHealth)
	r.GET("/api/ping", AuthRequired(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	cases := []struct {
		path   string
		secret string
		want   int
	}{
		{"/health", "", http.StatusOK},
		{"/api/ping", "", http.StatusUnauthorized},
		{"/api/ping", "wrong", http.StatusUnauthorized},
		{"/api/ping", "sekrit", http.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.secret != "" {
			req.Header.Set("X-Storesync-Secret", tc.secret)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.want, w.Code, "%s with %q", tc.path, tc.secret)
	}
}
