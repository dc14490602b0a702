package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	Register(mux)

	tests := []struct {
		path        string
		status      int
		contentType string
		contains    string
	}{
		{path: "/", status: http.StatusOK, contentType: "text/html; charset=utf-8", contains: "<title>Buzzer</title>"},
		{path: "/assets/index.css", status: http.StatusOK, contentType: "text/css; charset=utf-8", contains: "#start"},
		{path: "/assets/index.js", status: http.StatusOK, contains: `send("start")`},
		{path: "/missing", status: http.StatusNotFound},
		{path: "/assets/missing.js", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, tt.status, rec.Code)

			if tt.contentType != "" {
				require.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			}

			body, err := io.ReadAll(rec.Body)
			require.NoError(t, err)
			require.Contains(t, string(body), tt.contains)
		})
	}
}
