package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/config"
	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/Ugender2729/F1-Mart-sub001/internal/logger"
	"github.com/Ugender2729/F1-Mart-sub001/internal/verification"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(t *testing.T, url, user string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getStatus(t *testing.T, url string) verification.Status {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st verification.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	return st
}

func TestApp_MemoryBackendEndToEnd(t *testing.T) {
	cfg := config.DefaultConfig()
	require.Equal(t, config.BackendMemory, cfg.Storage.Backend)
	cfg.Verification.WindowSeconds = 1
	cfg.Verification.RecoveryTick = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, logger.New(io.Discard, "error", "json"))
	require.NoError(t, err)
	defer a.Close()
	go a.scheduler.Run(ctx)

	srv := httptest.NewServer(a.router)
	defer srv.Close()
	api := srv.URL + "/api/v1"

	resp := post(t, api+"/cart/items", "u1", map[string]any{"item_id": "atta", "unit_price": "120.50"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	verified := uuid.New()
	resp = post(t, api+"/orders/"+verified.String()+"/delivered", "", map[string]any{"user_id": "u1", "total": "404"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = post(t, api+"/orders/"+verified.String()+"/verification/verify", "", map[string]string{"notes": "ok"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.VerificationVerified, getStatus(t, api+"/orders/"+verified.String()+"/verification").Verification.State)

	silent := uuid.New()
	resp = post(t, api+"/orders/"+silent.String()+"/delivered", "", map[string]any{"user_id": "u2"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Eventually(t, func() bool {
		resp, err := http.Get(api + "/orders/" + silent.String() + "/verification")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var st verification.Status
		if json.NewDecoder(resp.Body).Decode(&st) != nil || st.Verification == nil {
			return false
		}
		return st.Verification.State == domain.VerificationAutoVerified
	}, 3*time.Second, 50*time.Millisecond)

	events, err := a.store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
