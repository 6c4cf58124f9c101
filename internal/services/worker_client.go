package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"huddle-admin/backend/internal/logging"
	"huddle-admin/backend/pkg/models"
)

// maxRelayBody bounds how much of the worker's reply is passed back.
const maxRelayBody = 1 << 20

// StaticEndpoints is a WorkerEndpoints backed by configuration.
type StaticEndpoints struct {
	byTenant map[string]string
	fallback string
}

// NewStaticEndpoints creates a StaticEndpoints. fallback serves tenants
// without their own entry and may be empty.
func NewStaticEndpoints(byTenant map[string]string, fallback string) *StaticEndpoints {
	m := make(map[string]string, len(byTenant))
	for k, v := range byTenant {
		m[k] = strings.TrimRight(v, "/")
	}
	return &StaticEndpoints{byTenant: m, fallback: strings.TrimRight(fallback, "/")}
}

// WorkerURL implements WorkerEndpoints.
func (s *StaticEndpoints) WorkerURL(_ context.Context, tenantID string) (string, error) {
	if u, ok := s.byTenant[tenantID]; ok && u != "" {
		return u, nil
	}
	if s.fallback != "" {
		return s.fallback, nil
	}
	return "", fmt.Errorf("no worker endpoint configured for tenant %s: %w", tenantID, ErrWorkerUnavailable)
}

// TriggerResult is the worker's reply, relayed verbatim.
type TriggerResult struct {
	StatusCode int             `json:"statusCode"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// HTTPWorkerClient relays queue triggers to the tenant's worker over HTTP.
// Each tenant has its own token bucket.
type HTTPWorkerClient struct {
	endpoints WorkerEndpoints
	client    *http.Client
	log       *logging.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewHTTPWorkerClient creates a new HTTPWorkerClient allowing perMinute
// triggers per tenant. A non-positive perMinute disables limiting.
func NewHTTPWorkerClient(endpoints WorkerEndpoints, timeout time.Duration, perMinute int, logger *logging.Logger) *HTTPWorkerClient {
	limit, burst := rate.Inf, 0
	if perMinute > 0 {
		limit, burst = rate.Every(time.Minute/time.Duration(perMinute)), perMinute
	}
	return &HTTPWorkerClient{
		endpoints: endpoints,
		client:    &http.Client{Timeout: timeout},
		log:       logger.With("service", "WorkerClient"),
		limiters:  map[string]*rate.Limiter{},
		limit:     limit,
		burst:     burst,
	}
}

func (c *HTTPWorkerClient) limiter(tenantID string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[tenantID]
	if !ok {
		l = rate.NewLimiter(c.limit, c.burst)
		c.limiters[tenantID] = l
	}
	return l
}

// Trigger POSTs to <worker>/process on behalf of the caller's tenant.
func (c *HTTPWorkerClient) Trigger(ctx context.Context, sess models.Session) (*TriggerResult, error) {
	tenantID, err := authorize(sess)
	if err != nil {
		return nil, err
	}
	if !c.limiter(tenantID).Allow() {
		return nil, ErrRateLimited
	}
	base, err := c.endpoints.WorkerURL(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	requestBody, err := json.Marshal(map[string]string{"tenantId": tenantID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/process", bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("worker trigger failed", "tenant_id", tenantID, "error", err)
		return nil, fmt.Errorf("%v: %w", err, ErrWorkerUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRelayBody))
	if err != nil {
		return nil, fmt.Errorf("read worker response: %v: %w", err, ErrWorkerUnavailable)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		c.log.Warn("worker returned an error", "tenant_id", tenantID, "status", resp.StatusCode)
		return nil, fmt.Errorf("worker status %d: %w", resp.StatusCode, ErrWorkerUnavailable)
	}

	res := &TriggerResult{StatusCode: resp.StatusCode}
	if json.Valid(body) {
		res.Body = body
	} else if len(body) > 0 {
		quoted, _ := json.Marshal(string(body))
		res.Body = quoted
	}
	c.log.Info("worker triggered", "tenant_id", tenantID, "status", resp.StatusCode)
	return res, nil
}
