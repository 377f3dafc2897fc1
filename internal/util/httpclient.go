package util

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"
)

var (
	sharedClient     *http.Client
	sharedClientOnce sync.Once

	// fastClient is used for the reconciliation index and validation probes
	fastClient     *http.Client
	fastClientOnce sync.Once

	// streamClient never times out on its own: media bodies are long lived
	// and bounded by the inbound request context instead.
	streamClient     *http.Client
	streamClientOnce sync.Once
)

// httpClientConfig holds configuration for creating HTTP clients
type httpClientConfig struct {
	timeout             time.Duration
	maxIdleConns        int
	maxIdleConnsPerHost int
	maxConnsPerHost     int
	idleConnTimeout     time.Duration
	tlsHandshakeTimeout time.Duration
	expectContinue      time.Duration
	keepAlive           time.Duration
	dialTimeout         time.Duration
}

// defaultConfig is used for scraping site pages
func defaultConfig() httpClientConfig {
	return httpClientConfig{
		timeout:             15 * time.Second,
		maxIdleConns:        200,
		maxIdleConnsPerHost: 20,
		maxConnsPerHost:     50,
		idleConnTimeout:     120 * time.Second,
		tlsHandshakeTimeout: 5 * time.Second,
		expectContinue:      1 * time.Second,
		keepAlive:           30 * time.Second,
		dialTimeout:         5 * time.Second,
	}
}

// fastConfig returns configuration optimized for quick requests
func fastConfig() httpClientConfig {
	return httpClientConfig{
		timeout:             10 * time.Second,
		maxIdleConns:        150,
		maxIdleConnsPerHost: 25,
		maxConnsPerHost:     40,
		idleConnTimeout:     90 * time.Second,
		tlsHandshakeTimeout: 5 * time.Second,
		expectContinue:      500 * time.Millisecond,
		keepAlive:           30 * time.Second,
		dialTimeout:         5 * time.Second,
	}
}

func streamConfig() httpClientConfig {
	cfg := defaultConfig()
	cfg.timeout = 0
	cfg.maxConnsPerHost = 100
	return cfg
}

// createTransport creates an HTTP transport with the given config
func createTransport(cfg httpClientConfig) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.dialTimeout,
			KeepAlive: cfg.keepAlive,
		}).DialContext,
		MaxIdleConns:          cfg.maxIdleConns,
		MaxIdleConnsPerHost:   cfg.maxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.maxConnsPerHost,
		IdleConnTimeout:       cfg.idleConnTimeout,
		TLSHandshakeTimeout:   cfg.tlsHandshakeTimeout,
		ExpectContinueTimeout: cfg.expectContinue,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
}

// NoFollowRedirects is a CheckRedirect policy that hands every 3xx back to
// the caller so redirect chains can be walked by hand.
func NoFollowRedirects(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// GetSharedClient returns the pooled client used for site scraping.
func GetSharedClient() *http.Client {
	sharedClientOnce.Do(func() {
		cfg := defaultConfig()
		sharedClient = &http.Client{
			Transport:     createTransport(cfg),
			Timeout:       cfg.timeout,
			CheckRedirect: NoFollowRedirects,
		}
	})
	return sharedClient
}

// GetFastClient returns an HTTP client for quick API requests.
func GetFastClient() *http.Client {
	fastClientOnce.Do(func() {
		cfg := fastConfig()
		fastClient = &http.Client{
			Transport: createTransport(cfg),
			Timeout:   cfg.timeout,
		}
	})
	return fastClient
}

// GetStreamClient returns the client used by the media proxy. It never
// follows redirects itself and has no overall timeout.
func GetStreamClient() *http.Client {
	streamClientOnce.Do(func() {
		cfg := streamConfig()
		streamClient = &http.Client{
			Transport:     createTransport(cfg),
			Timeout:       cfg.timeout,
			CheckRedirect: NoFollowRedirects,
		}
	})
	return streamClient
}

// ResponseCache provides a simple in-memory cache for API responses
type ResponseCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	maxAge  time.Duration
	maxSize int
}

type cacheEntry struct {
	data      []byte
	timestamp time.Time
}

// NewResponseCache creates a new response cache with the specified max age and size
func NewResponseCache(maxAge time.Duration, maxSize int) *ResponseCache {
	cache := &ResponseCache{
		entries: make(map[string]*cacheEntry, maxSize),
		maxAge:  maxAge,
		maxSize: maxSize,
	}
	// a zero or sub-2ns max age caches nothing and needs no sweeper
	if maxAge/2 > 0 {
		go cache.cleanupLoop()
	}
	return cache
}

// Get retrieves a cached response if it exists and is not expired
func (c *ResponseCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	if time.Since(entry.timestamp) > c.maxAge {
		return nil, false
	}

	return entry.data, true
}

// Set stores a response in the cache
func (c *ResponseCache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// at capacity: evict the oldest entry
	if len(c.entries) >= c.maxSize {
		var oldestKey string
		var oldestTime time.Time
		first := true
		for k, v := range c.entries {
			if first || v.timestamp.Before(oldestTime) {
				oldestKey = k
				oldestTime = v.timestamp
				first = false
			}
		}
		if oldestKey != "" {
			delete(c.entries, oldestKey)
		}
	}

	c.entries[key] = &cacheEntry{
		data:      data,
		timestamp: time.Now(),
	}
}

// cleanupLoop periodically removes expired entries
func (c *ResponseCache) cleanupLoop() {
	ticker := time.NewTicker(c.maxAge / 2)
	defer ticker.Stop()

	for range ticker.C {
		c.cleanup()
	}
}

// cleanup removes expired entries
func (c *ResponseCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.Sub(entry.timestamp) > c.maxAge {
			delete(c.entries, key)
		}
	}
}

// ParallelExecute executes multiple functions in parallel with a worker limit
// Returns when all functions complete. Safe for concurrent use.
func ParallelExecute(maxWorkers int, tasks ...func()) {
	if len(tasks) == 0 {
		return
	}
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	workers := maxWorkers
	if len(tasks) < workers {
		workers = len(tasks)
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, workers)

	for _, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			task()
		}()
	}

	wg.Wait()
}
