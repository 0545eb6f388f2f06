package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nearwave/geocampaign/pkg/logger"
	"github.com/valyala/fasthttp"
)

var ErrNoAvailableEndpoints = errors.New("no available delivery endpoints")

// DeliveryOutcome is the provider-side acknowledgement state.
type DeliveryOutcome string

const (
	OutcomeDelivered DeliveryOutcome = "DELIVERED"
	OutcomeFailed    DeliveryOutcome = "FAILED"
	OutcomePending   DeliveryOutcome = "PENDING"
)

// DeliverRequest is one customer-level message handed to the provider.
type DeliverRequest struct {
	DeliveryID string `json:"delivery_id"`
	Phone      string `json:"phone"`
	Message    string `json:"message"`
	ImageURL   string `json:"image_url,omitempty"`
}

type DeliverResponse struct {
	DeliveryID  string          `json:"delivery_id"`
	Outcome     DeliveryOutcome `json:"outcome"`
	DeliveredAt *time.Time      `json:"delivered_at,omitempty"`
	ErrorCode   string          `json:"error_code,omitempty"`
	ErrorMsg    string          `json:"error_message,omitempty"`
	EndpointID  string          `json:"endpoint_id"`
	ProcessedAt time.Time       `json:"processed_at"`
}

type endpointMetrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	LastLatencyMs    atomic.Int64
	ConsecutiveFails atomic.Int32
	LastErrorTime    atomic.Int64
	LastSuccessTime  atomic.Int64

	mu             sync.RWMutex
	latencyHistory []int64
	maxHistorySize int
}

func newEndpointMetrics() *endpointMetrics {
	return &endpointMetrics{
		latencyHistory: make([]int64, 0, 100),
		maxHistorySize: 100,
	}
}

func (m *endpointMetrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.LastLatencyMs.Store(latencyMs)
	m.ConsecutiveFails.Store(0)
	m.LastSuccessTime.Store(time.Now().Unix())

	m.mu.Lock()
	if len(m.latencyHistory) >= m.maxHistorySize {
		m.latencyHistory = m.latencyHistory[1:]
	}
	m.latencyHistory = append(m.latencyHistory, latencyMs)
	m.mu.Unlock()
}

func (m *endpointMetrics) RecordFailure() {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.ConsecutiveFails.Add(1)
	m.LastErrorTime.Store(time.Now().Unix())
}

func (m *endpointMetrics) AvgLatencyMs() int64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / total
}

func (m *endpointMetrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

func (m *endpointMetrics) P95LatencyMs() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencyHistory) == 0 {
		return 0
	}

	sorted := make([]int64, len(m.latencyHistory))
	copy(sorted, m.latencyHistory)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted)) * 0.95)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

type EndpointState int

const (
	StateHealthy EndpointState = iota
	StateDegraded
	StateUnhealthy
	StateCircuitOpen
)

// Endpoint is one provider base URL with its own connection pool, health
// state and circuit breaker.
type Endpoint struct {
	name             string
	url              string
	client           *fasthttp.Client
	metrics          *endpointMetrics
	state            atomic.Int32
	weight           atomic.Int32
	lastHealthCheck  atomic.Int64
	circuitOpenUntil atomic.Int64
}

func NewEndpoint(name, url string, weight int, client *fasthttp.Client) *Endpoint {
	e := &Endpoint{
		name:    name,
		url:     url,
		client:  client,
		metrics: newEndpointMetrics(),
	}
	e.state.Store(int32(StateHealthy))
	e.weight.Store(int32(weight))
	return e
}

func (e *Endpoint) GetState() EndpointState {
	return EndpointState(e.state.Load())
}

func (e *Endpoint) SetState(state EndpointState) {
	e.state.Store(int32(state))
}

func (e *Endpoint) IsAvailable() bool {
	state := e.GetState()
	if state == StateCircuitOpen {
		if time.Now().Unix() > e.circuitOpenUntil.Load() {
			e.SetState(StateDegraded)
			return true
		}
		return false
	}
	return state != StateUnhealthy
}

// CalculateScore ranks the endpoint; higher is better. Success rate and
// latency dominate, the configured weight breaks ties, recent consecutive
// failures and a degraded state pull the score down.
func (e *Endpoint) CalculateScore() float64 {
	if !e.IsAvailable() {
		return 0.0
	}

	baseWeight := float64(e.weight.Load())
	successScore := e.metrics.SuccessRate() * 100

	latencyScore := 100.0
	if avg := e.metrics.AvgLatencyMs(); avg > 0 {
		latencyScore = 100.0 * (1.0 - (float64(avg) / 5000.0))
		if latencyScore < 0 {
			latencyScore = 0
		}
	}

	recentPenalty := 1.0 - (float64(e.metrics.ConsecutiveFails.Load()) * 0.1)
	if recentPenalty < 0.1 {
		recentPenalty = 0.1
	}

	statePenalty := 1.0
	switch e.GetState() {
	case StateDegraded:
		statePenalty = 0.5
	case StateUnhealthy, StateCircuitOpen:
		statePenalty = 0.0
	}

	return (successScore*0.4 + latencyScore*0.4 + baseWeight*0.2) * recentPenalty * statePenalty
}

type Config struct {
	Endpoints               []EndpointConfig
	Timeout                 time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	MaxConns                int
	ReadBufferSize          int
	WriteBufferSize         int
	HealthCheckInterval     time.Duration
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

type EndpointConfig struct {
	Name   string
	URL    string
	Weight int // Base priority weight (1-100)
}

// Client fans delivery requests out to the best scoring provider endpoint,
// with retries, health checking and per-endpoint circuit breaking.
type Client struct {
	config    *Config
	endpoints []*Endpoint
	mu        sync.RWMutex
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if len(config.Endpoints) == 0 {
		return nil, errors.New("at least one endpoint is required")
	}

	client := &Client{
		config:    config,
		endpoints: make([]*Endpoint, 0, len(config.Endpoints)),
		stopCh:    make(chan struct{}),
	}

	for _, ec := range config.Endpoints {
		httpClient := &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
			ReadBufferSize:      config.ReadBufferSize,
			WriteBufferSize:     config.WriteBufferSize,
		}

		client.endpoints = append(client.endpoints, NewEndpoint(ec.Name, ec.URL, ec.Weight, httpClient))
		logger.Info("Delivery endpoint initialized", "name", ec.Name, "url", ec.URL, "weight", ec.Weight)
	}

	client.wg.Add(2)
	go client.healthChecker()
	go client.stateEvaluator()

	logger.Info("Provider client initialized", "endpoints", len(client.endpoints), "timeout", config.Timeout)

	return client, nil
}

// SelectBestEndpoint picks the available endpoint with the highest score.
func (c *Client) SelectBestEndpoint() (*Endpoint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var best *Endpoint
	var bestScore float64

	for _, e := range c.endpoints {
		if !e.IsAvailable() {
			continue
		}
		if score := e.CalculateScore(); score > bestScore {
			bestScore = score
			best = e
		}
	}

	if best == nil {
		return nil, ErrNoAvailableEndpoints
	}

	logger.Debug("Selected delivery endpoint", "endpoint", best.name, "score", bestScore)

	return best, nil
}

// Deliver pushes one message through the best available endpoint, retrying
// on transport failures.
func (c *Client) Deliver(ctx context.Context, req *DeliverRequest) (*DeliverResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		endpoint, err := c.SelectBestEndpoint()
		if err != nil {
			lastErr = err
			continue
		}

		startTime := time.Now()
		response, err := c.doRequest(ctx, endpoint, "POST", "/api/v1/deliveries", reqBody)
		latency := time.Since(startTime).Milliseconds()

		if err != nil {
			endpoint.metrics.RecordFailure()
			c.checkCircuitBreaker(endpoint)

			logger.Warn("Delivery request failed, retrying", "error", err, "endpoint", endpoint.name, "attempt", attempt+1)

			lastErr = err
			continue
		}

		endpoint.metrics.RecordSuccess(latency)

		var resp DeliverResponse
		if err := json.Unmarshal(response, &resp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}

		logger.Info("Message handed to provider",
			"delivery_id", req.DeliveryID, "outcome", string(resp.Outcome), "endpoint", endpoint.name, "latency_ms", latency)

		return &resp, nil
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *Client) doRequest(ctx context.Context, endpoint *Endpoint, method, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(endpoint.url + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := endpoint.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode != fasthttp.StatusOK && statusCode != fasthttp.StatusAccepted {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", statusCode, resp.Body())
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())

	return result, nil
}

func (c *Client) checkCircuitBreaker(endpoint *Endpoint) {
	fails := endpoint.metrics.ConsecutiveFails.Load()
	if fails >= int32(c.config.CircuitBreakerThreshold) {
		endpoint.SetState(StateCircuitOpen)
		endpoint.circuitOpenUntil.Store(time.Now().Add(c.config.CircuitBreakerTimeout).Unix())

		logger.Warn("Circuit breaker opened", "endpoint", endpoint.name, "consecutive_fails", fails, "timeout", c.config.CircuitBreakerTimeout)
	}
}

func (c *Client) healthChecker() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.performHealthChecks()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Client) performHealthChecks() {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	c.mu.RLock()
	endpoints := make([]*Endpoint, len(c.endpoints))
	copy(endpoints, c.endpoints)
	c.mu.RUnlock()

	for _, endpoint := range endpoints {
		healthy := c.checkEndpointHealth(ctx, endpoint)
		endpoint.lastHealthCheck.Store(time.Now().Unix())

		oldState := endpoint.GetState()
		newState := oldState

		if healthy {
			if oldState == StateUnhealthy || oldState == StateDegraded {
				newState = StateHealthy
			}
		} else {
			newState = StateUnhealthy
		}

		if newState != oldState {
			endpoint.SetState(newState)
			logger.Info("Endpoint state changed", "endpoint", endpoint.name, "old_state", stateString(oldState), "new_state", stateString(newState))
		}
	}
}

func (c *Client) checkEndpointHealth(ctx context.Context, endpoint *Endpoint) bool {
	response, err := c.doRequest(ctx, endpoint, "GET", "/health", nil)
	if err != nil {
		return false
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(response, &health); err != nil {
		return false
	}

	return health.Status == "healthy"
}

// stateEvaluator periodically demotes slow or failing endpoints and
// promotes recovered ones.
func (c *Client) stateEvaluator() {
	defer c.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evaluateEndpoints()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Client) evaluateEndpoints() {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, endpoint := range c.endpoints {
		if endpoint.GetState() == StateCircuitOpen {
			continue
		}

		successRate := endpoint.metrics.SuccessRate()
		avgLatency := endpoint.metrics.AvgLatencyMs()

		if successRate < 0.8 || avgLatency > 5000 {
			if endpoint.GetState() != StateDegraded {
				endpoint.SetState(StateDegraded)
				logger.Warn("Endpoint degraded", "endpoint", endpoint.name, "success_rate", successRate, "avg_latency_ms", avgLatency)
			}
		} else if successRate > 0.95 && avgLatency < 2000 {
			if endpoint.GetState() != StateHealthy {
				endpoint.SetState(StateHealthy)
				logger.Info("Endpoint recovered to healthy state", "endpoint", endpoint.name)
			}
		}
	}
}

type EndpointStats struct {
	Name             string
	URL              string
	State            string
	Score            float64
	TotalRequests    int64
	SuccessfulReqs   int64
	FailedReqs       int64
	SuccessRate      float64
	AvgLatencyMs     int64
	P95LatencyMs     int64
	LastLatencyMs    int64
	ConsecutiveFails int32
}

// GetEndpointStats returns per-endpoint statistics, best score first.
func (c *Client) GetEndpointStats() []EndpointStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := make([]EndpointStats, 0, len(c.endpoints))
	for _, e := range c.endpoints {
		stats = append(stats, EndpointStats{
			Name:             e.name,
			URL:              e.url,
			State:            stateString(e.GetState()),
			Score:            e.CalculateScore(),
			TotalRequests:    e.metrics.TotalRequests.Load(),
			SuccessfulReqs:   e.metrics.SuccessfulReqs.Load(),
			FailedReqs:       e.metrics.FailedReqs.Load(),
			SuccessRate:      e.metrics.SuccessRate(),
			AvgLatencyMs:     e.metrics.AvgLatencyMs(),
			P95LatencyMs:     e.metrics.P95LatencyMs(),
			LastLatencyMs:    e.metrics.LastLatencyMs.Load(),
			ConsecutiveFails: e.metrics.ConsecutiveFails.Load(),
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Score > stats[j].Score
	})

	return stats
}

func (c *Client) Close() error {
	close(c.stopCh)
	c.wg.Wait()
	logger.Info("Provider client closed")
	return nil
}

func stateString(state EndpointState) string {
	switch state {
	case StateHealthy:
		return "HEALTHY"
	case StateDegraded:
		return "DEGRADED"
	case StateUnhealthy:
		return "UNHEALTHY"
	case StateCircuitOpen:
		return "CIRCUIT_OPEN"
	default:
		return "UNKNOWN"
	}
}
