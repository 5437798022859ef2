// Package broker implements the REST surface the core consumes
// (domain.Broker): order placement/cancellation, OHLCV history, the
// pre-open overnight snapshot, and the intraday rank endpoints. Requests
// are rate-limited through a single-worker queue, the same shape the
// examples use for their own broker SDK, since the upstream API enforces
// a per-second call budget regardless of caller concurrency.
package broker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	rateLimitDelay   = 250 * time.Millisecond
	requestQueueSize = 200
)

type requestJob struct {
	method   string
	path     string
	trID     string
	query    map[string]string
	body     any
	auth     bool
	resultCh chan requestResult
}

type requestResult struct {
	data json.RawMessage
	err  error
}

// Client is a REST client for the broker's domestic-equities trading API.
type Client struct {
	appKey    string
	appSecret string
	accountNo string
	baseURL   string

	httpClient *http.Client
	log        zerolog.Logger

	mu          sync.RWMutex
	accessToken string
	tokenExpiry time.Time

	requestQueue chan requestJob
	stopChan     chan struct{}
	workerDone   chan struct{}
	once         sync.Once
}

// New creates a Client. appKey/appSecret/accountNo authenticate against
// baseURL; accountNo is split into the 8-digit CANO and 2-digit product
// code by callers of order methods.
func New(appKey, appSecret, accountNo, baseURL string, log zerolog.Logger) *Client {
	c := &Client{
		appKey:       appKey,
		appSecret:    appSecret,
		accountNo:    accountNo,
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		log:          log.With().Str("component", "broker").Logger(),
		requestQueue: make(chan requestJob, requestQueueSize),
		stopChan:     make(chan struct{}),
		workerDone:   make(chan struct{}),
	}
	go c.worker()
	return c
}

// Close drains the request queue and stops the rate-limiting worker.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.stopChan)
		close(c.requestQueue)
		<-c.workerDone
	})
}

func (c *Client) worker() {
	defer close(c.workerDone)

	var last time.Time
	first := true

	run := func(job requestJob) {
		if !first {
			if elapsed := time.Since(last); elapsed < rateLimitDelay {
				time.Sleep(rateLimitDelay - elapsed)
			}
		}
		first = false
		data, err := c.doRequest(job)
		last = time.Now()
		job.resultCh <- requestResult{data: data, err: err}
	}

	for {
		select {
		case <-c.stopChan:
			for {
				select {
				case job, ok := <-c.requestQueue:
					if !ok {
						return
					}
					run(job)
				default:
					return
				}
			}
		case job, ok := <-c.requestQueue:
			if !ok {
				return
			}
			run(job)
		}
	}
}

// call enqueues a request and blocks for its result. Requests made after
// Close are rejected immediately.
func (c *Client) call(method, path, trID string, query map[string]string, body any, auth bool) (json.RawMessage, error) {
	resultCh := make(chan requestResult, 1)
	job := requestJob{method: method, path: path, trID: trID, query: query, body: body, auth: auth, resultCh: resultCh}

	select {
	case <-c.stopChan:
		return nil, fmt.Errorf("broker: client is closed")
	default:
	}

	select {
	case c.requestQueue <- job:
	case <-c.stopChan:
		return nil, fmt.Errorf("broker: client is closed")
	default:
		return nil, fmt.Errorf("broker: request queue is full")
	}

	result := <-resultCh
	return result.data, result.err
}

func (c *Client) doRequest(job requestJob) (json.RawMessage, error) {
	var reader io.Reader
	if job.body != nil {
		payload, err := json.Marshal(job.body)
		if err != nil {
			return nil, fmt.Errorf("broker: marshal body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	url := c.baseURL + job.path
	req, err := http.NewRequest(job.method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("broker: build request: %w", err)
	}

	q := req.URL.Query()
	for k, v := range job.query {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()

	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if job.trID != "" {
		req.Header.Set("tr_id", job.trID)
	}
	if job.auth {
		token, err := c.ensureToken()
		if err != nil {
			return nil, err
		}
		req.Header.Set("authorization", "Bearer "+token)
		req.Header.Set("appkey", c.appKey)
		req.Header.Set("appsecret", c.appSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("broker: request %s failed: %w", job.path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("broker: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Error().
			Int("status", resp.StatusCode).
			Str("path", job.path).
			Str("body", truncate(string(raw), 500)).
			Msg("broker API returned non-200")
		return nil, fmt.Errorf("broker: %s returned status %d", job.path, resp.StatusCode)
	}

	return raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
