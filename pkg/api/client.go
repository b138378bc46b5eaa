package api

import (
	"github.com/go-resty/resty/v2"
	"github.com/zfogg/sidechain/live/pkg/client"
)

// Client issues relationship and roster requests over a resty client
type Client struct {
	http *resty.Client
}

// New wraps r. A nil r uses the shared client from pkg/client.
func New(r *resty.Client) *Client {
	if r == nil {
		r = client.GetClient()
	}
	return &Client{http: r}
}
