package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle-admin/backend/internal/logging"
	"huddle-admin/backend/pkg/models"
)

func TestStaticEndpoints(t *testing.T) {
	ctx := context.Background()
	e := NewStaticEndpoints(map[string]string{"t1": "http://one/"}, "http://default")

	u, err := e.WorkerURL(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "http://one", u)

	u, err = e.WorkerURL(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, "http://default", u)

	_, err = NewStaticEndpoints(nil, "").WorkerURL(ctx, "t2")
	assert.ErrorIs(t, err, ErrWorkerUnavailable)
}

func TestHTTPWorkerClient_Trigger(t *testing.T) {
	var gotPath, gotTenant string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotTenant = body["tenantId"]
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"picked":3}`))
	}))
	defer srv.Close()

	sess := models.Session{UserID: "u", Role: models.RoleTenantAdmin, TenantID: "t1"}
	c := NewHTTPWorkerClient(NewStaticEndpoints(map[string]string{"t1": srv.URL}, ""), time.Second, 1, logging.NewNop())

	res, err := c.Trigger(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "/process", gotPath)
	assert.Equal(t, "t1", gotTenant)
	assert.Equal(t, http.StatusAccepted, res.StatusCode)
	assert.JSONEq(t, `{"picked":3}`, string(res.Body))

	_, err = c.Trigger(context.Background(), sess)
	assert.ErrorIs(t, err, ErrRateLimited)

	other := models.Session{UserID: "u", Role: models.RoleTenantAdmin, TenantID: "t2"}
	_, err = c.Trigger(context.Background(), other)
	assert.ErrorIs(t, err, ErrWorkerUnavailable)

	_, err = c.Trigger(context.Background(), models.Session{UserID: "u", Role: models.RoleRater, TenantID: "t1"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestHTTPWorkerClient_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	sess := models.Session{UserID: "u", Role: models.RoleTenantAdmin, TenantID: "t1"}
	c := NewHTTPWorkerClient(NewStaticEndpoints(nil, srv.URL), time.Second, 0, logging.NewNop())

	_, err := c.Trigger(context.Background(), sess)
	assert.ErrorIs(t, err, ErrWorkerUnavailable)
	_, err = c.Trigger(context.Background(), sess)
	assert.ErrorIs(t, err, ErrWorkerUnavailable)
}
