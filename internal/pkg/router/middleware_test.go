package router

import (
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/shandysiswandi/smsotp/internal/pkg/config"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "TrueClientIP", headers: map[string]string{"True-Client-IP": "203.0.113.7"}, remote: "10.0.0.1:1234", want: "203.0.113.7"},
		{name: "ForwardedForFirstHop", headers: map[string]string{"X-Forwarded-For": "198.51.100.2, 10.0.0.1"}, remote: "10.0.0.1:1234", want: "198.51.100.2"},
		{name: "InvalidHeaderFallsBack", headers: map[string]string{"X-Real-IP": "not-an-ip"}, remote: "192.0.2.1:80", want: "192.0.2.1"},
		{name: "NothingUsable", remote: "garbage", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			if got := clientIP(r); got != tt.want {
				t.Fatalf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBodyMasker(t *testing.T) {
	cfg, err := config.NewViperFromBytes("yaml", []byte("instrument:\n  log_mask_fields: [code, Key]\n"))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	m := newBodyMasker(cfg)

	t.Run("MasksNestedKeys", func(t *testing.T) {

		// Act
		got := m.render([]byte(`{"code":"123456","userId":"u1","items":[{"key":"k"}]}`))

		// Assert
		want := map[string]any{
			"code":   "***",
			"userId": "u1",
			"items":  []any{map[string]any{"key": "***"}},
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("got %v, want %v", got, want)
		}
	})

	t.Run("NonJSON", func(t *testing.T) {
		if got := m.render([]byte("hello")); got != "<non-json body>" {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if got := m.render(nil); got != nil {
			t.Fatalf("got %v", got)
		}
	})
}

func TestPeekBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`))

	head := peekBody(r)
	rest, err := io.ReadAll(r.Body)

	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(head) != `{"a":1}` || string(rest) != `{"a":1}` {
		t.Fatalf("head = %q, rest = %q", head, rest)
	}
}

func TestMiddlewareMaintenance(t *testing.T) {
	cfg, err := config.NewViperFromBytes("yaml", []byte("app:\n  maintenance:\n    endpoints: [/echo]\n"))
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	r := NewRouter(Config{Config: cfg, UUID: uuidStub{}})
	r.POST("/echo", func(*Request) (any, error) { return pingResponse{}, nil })
	r.POST("/other", func(*Request) (any, error) { return pingResponse{}, nil })

	rec, env := do(t, r, http.MethodPost, "/echo", `{}`)
	if rec.Code != http.StatusServiceUnavailable || env.Error != "Service is under maintenance" {
		t.Fatalf("status = %d, env = %+v", rec.Code, env)
	}

	rec, _ = do(t, r, http.MethodPost, "/other", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
