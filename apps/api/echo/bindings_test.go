package echoapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func Test_changeMeta(t *testing.T) {
	tests := []struct {
		name   string
		realIP string
		wantIP string
	}{
		{name: "ipv4", realIP: "203.0.113.7", wantIP: "203.0.113.7"},
		{name: "ipv6 normalized", realIP: "2001:0db8:0000::0001", wantIP: "2001:db8::1"},
		{name: "empty", realIP: "", wantIP: ""},
		{name: "oversized", realIP: strings.Repeat("x", 100), wantIP: ""},
		{name: "with port", realIP: "203.0.113.7:8080", wantIP: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.IPExtractor = func(*http.Request) string { return tt.realIP }
			req := httptest.NewRequest(http.MethodPatch, "/", nil)
			req.Header.Set("User-Agent", "gradebook-test")

			meta := changeMeta(e.NewContext(req, httptest.NewRecorder()))
			assert.Equal(t, tt.wantIP, meta.IPAddress)
			assert.Equal(t, "gradebook-test", meta.UserAgent)
		})
	}
}
