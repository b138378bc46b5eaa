package client

import (
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/zfogg/sidechain/live/pkg/config"
	"github.com/zfogg/sidechain/live/pkg/logger"
)

const userAgent = "Sidechain-Live/0.1.0"

var httpClient *resty.Client

// Init initializes the shared HTTP client from config
func Init() {
	httpClient = New(config.GetString("api.base_url"), time.Duration(config.GetInt("api.timeout"))*time.Second)
}

// New builds a resty client for baseURL with request/response logging
func New(baseURL string, timeout time.Duration) *resty.Client {
	c := resty.New()
	c.SetBaseURL(baseURL)
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	c.SetHeader("User-Agent", userAgent)
	c.SetHeader("Accept", "application/json")

	c.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		logger.Debug("HTTP Request", "method", req.Method, "url", req.URL)
		return nil
	})

	c.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		logger.Debug("HTTP Response", "status", resp.StatusCode(), "duration", resp.Time())
		return nil
	})

	return c
}

// GetClient returns the HTTP client
func GetClient() *resty.Client {
	if httpClient == nil {
		Init()
	}
	return httpClient
}

// SetAuthToken sets the authorization token
func SetAuthToken(token string) {
	GetClient().SetAuthToken(token)
}

// ClearAuthToken clears the authorization token
func ClearAuthToken() {
	// Re-init the client to clear auth headers
	Init()
}
