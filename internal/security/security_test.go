package security

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizerText(t *testing.T) {
	s := NewSanitizer()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello board", "hello board"},
		{"script removed", `<script>alert(1)</script>hi`, "hi"},
		{"tags stripped", "<b>bold</b> <a href=\"https://x\">link</a>", "bold link"},
		{"trimmed", "   spaced  ", "spaced"},
		{"empty", "", ""},
		{"ampersand kept", "Tom & Jerry", "Tom & Jerry"},
		{"less than kept", "a < b", "a < b"},
		{"tags stripped around ampersand", "<b>x</b> & y", "x & y"},
		{"quotes kept", `say "hi" it's`, `say "hi" it's`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Text(tt.in))
		})
	}
}

func TestSafeClientBlocksLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("secret"))
	}))
	defer srv.Close()

	client := NewSafeClient(2 * time.Second)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	if resp != nil {
		resp.Body.Close()
	}
	assert.Error(t, err)
}
