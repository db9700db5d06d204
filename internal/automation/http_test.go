package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clopapp/clop/internal/coordinator"
	"github.com/clopapp/clop/internal/corelog"
	"github.com/clopapp/clop/internal/optimise"
	"github.com/clopapp/clop/internal/settings"
)

func newTestHTTPServer(t *testing.T) (*HTTPServer, *settings.Store) {
	t.Helper()
	store := newTestStore(t)
	settings.Set(store, settings.AutomationHttpPort, 0)

	coord := coordinator.New(optimise.NewRegistry(), 2, corelog.New("automation-http-test"))
	coord.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = coord.Stop(ctx)
	})
	d := &Dispatcher{Settings: store, Coordinator: coord, Resolver: NewResolver(store)}

	srv := NewHTTPServer(store, d, corelog.New("automation-http-test"))
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})
	return srv, store
}

func TestHTTPStatus_AllowsRequestsWhenNoTokenConfigured(t *testing.T) {
	srv, _ := newTestHTTPServer(t)

	resp, err := http.Get("http://" + srv.Addr() + "/clop/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPStatus_RejectsGetWithPostMethod(t *testing.T) {
	srv, _ := newTestHTTPServer(t)

	resp, err := http.Post("http://"+srv.Addr()+"/clop/status", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHTTPOptimise_RejectsMissingBearerTokenWhenConfigured(t *testing.T) {
	srv, store := newTestHTTPServer(t)
	settings.Set(store, settings.AutomationAccessToken, "s3cret")

	body, _ := json.Marshal(OptimisePayload{Paths: []string{}})
	resp, err := http.Post("http://"+srv.Addr()+"/clop/optimise", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHTTPOptimise_AcceptsMatchingBearerToken(t *testing.T) {
	srv, store := newTestHTTPServer(t)
	settings.Set(store, settings.AutomationAccessToken, "s3cret")

	body, _ := json.Marshal(OptimisePayload{Paths: []string{}})
	req, err := http.NewRequest(http.MethodPost, "http://"+srv.Addr()+"/clop/optimise", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer s3cret")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPShare_IsAliasOfOptimise(t *testing.T) {
	srv, _ := newTestHTTPServer(t)

	body, _ := json.Marshal(OptimisePayload{Paths: []string{}})
	resp, err := http.Post("http://"+srv.Addr()+"/clop/share", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "ok", out.Status)
}

func TestHTTPTeamsCard_NotFoundWhenDisabled(t *testing.T) {
	srv, _ := newTestHTTPServer(t)

	resp, err := http.Post("http://"+srv.Addr()+"/clop/teams/card", "application/json", bytes.NewReader([]byte("{}")))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTPTeamsCard_ReturnsAdaptiveCardWhenEnabled(t *testing.T) {
	srv, store := newTestHTTPServer(t)
	settings.Set(store, settings.EnableTeamsAdaptiveCards, true)

	body, _ := json.Marshal(OptimisePayload{Paths: []string{}})
	resp, err := http.Post("http://"+srv.Addr()+"/clop/teams/card", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var card map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
	require.Equal(t, "AdaptiveCard", card["type"])
}
