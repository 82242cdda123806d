package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type adapterFunc func(ctx context.Context, req Request) (Result, error)

func (f adapterFunc) Execute(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

func TestHTTPAdapter_Execute(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/internal/actions/linkedin/connect", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(Result{Success: true, Data: map[string]any{"invite_id": "inv-1"}})
	}))
	defer srv.Close()

	a := NewHTTPAdapter(srv.URL+"/", srv.Client(), zap.NewNop())
	res, err := a.Execute(context.Background(), Request{
		ActionID:  "a1",
		Platform:  "linkedin",
		Kind:      "connect",
		TargetRef: "in/ada",
		Message:   "Hi Ada",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "inv-1", res.Data["invite_id"])
	assert.Equal(t, "in/ada", got.TargetRef)
	assert.Equal(t, "Hi Ada", got.Message)
}

func TestHTTPAdapter_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "session expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	a := NewHTTPAdapter(srv.URL, srv.Client(), zap.NewNop())
	_, err := a.Execute(context.Background(), Request{Platform: "linkedin", Kind: "connect"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "session expired")
}

func TestRegistry_RoutesByPlatform(t *testing.T) {
	r := NewRegistry(time.Second, zap.NewNop())
	r.Register("email", adapterFunc(func(context.Context, Request) (Result, error) {
		return Result{Success: true, Data: map[string]any{"via": "smtp"}}, nil
	}))
	r.SetFallback(NewDryRunAdapter(zap.NewNop()))

	res := r.Dispatch(context.Background(), Request{Platform: "email", Kind: "send_email"})
	assert.True(t, res.Success)
	assert.Equal(t, "smtp", res.Data["via"])

	res = r.Dispatch(context.Background(), Request{Platform: "twitter", Kind: "follow"})
	assert.True(t, res.Success)
	assert.Equal(t, true, res.Data["dry_run"])
}

func TestRegistry_FailuresBecomeResults(t *testing.T) {
	tests := []struct {
		name    string
		adapter Adapter
		want    string
	}{
		{
			name: "adapter error",
			adapter: adapterFunc(func(context.Context, Request) (Result, error) {
				return Result{}, errors.New("captcha required")
			}),
			want: "captcha required",
		},
		{
			name: "timeout",
			adapter: adapterFunc(func(ctx context.Context, _ Request) (Result, error) {
				<-ctx.Done()
				return Result{}, ctx.Err()
			}),
			want: "adapter timed out",
		},
		{
			name: "unsuccessful without reason",
			adapter: adapterFunc(func(context.Context, Request) (Result, error) {
				return Result{}, nil
			}),
			want: "adapter reported failure",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(20*time.Millisecond, zap.NewNop())
			r.Register("linkedin", tt.adapter)

			res := r.Dispatch(context.Background(), Request{Platform: "linkedin", Kind: "connect"})
			assert.False(t, res.Success)
			assert.Equal(t, tt.want, res.Error)
		})
	}
}

func TestRegistry_NoAdapter(t *testing.T) {
	r := NewRegistry(0, zap.NewNop())

	res := r.Dispatch(context.Background(), Request{Platform: "fax"})
	assert.False(t, res.Success)
	assert.Equal(t, `no adapter for platform "fax"`, res.Error)
}
