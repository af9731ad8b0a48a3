// Package animechan fetches random anime quotes from the AnimeChan API.
package animechan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultURL is the AnimeChan v1 API root.
const DefaultURL = "https://animechan.io/api/v1"

// ErrEmpty is returned when the API answers without a quote.
var ErrEmpty = errors.New("no quote available")

// Quote is one line with its speaker and source.
type Quote struct {
	Content   string
	Character string
	Anime     string
}

// Client calls AnimeChan.
type Client struct {
	client *resty.Client
}

// NewClient returns a client rooted at baseURL (DefaultURL when empty).
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	return &Client{client: c}
}

type randomResponse struct {
	Data struct {
		Content   string `json:"content"`
		Character struct {
			Name string `json:"name"`
		} `json:"character"`
		Anime struct {
			Name string `json:"name"`
		} `json:"anime"`
	} `json:"data"`
}

// Random returns a random quote. Missing speaker or source names come back
// as "Unknown".
func (c *Client) Random(ctx context.Context) (*Quote, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get("/quotes/random")
	if err != nil {
		return nil, fmt.Errorf("animechan request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("animechan status %d", resp.StatusCode())
	}

	var body randomResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	q := &Quote{
		Content:   strings.TrimSpace(body.Data.Content),
		Character: orUnknown(body.Data.Character.Name),
		Anime:     orUnknown(body.Data.Anime.Name),
	}
	if q.Content == "" {
		return nil, ErrEmpty
	}
	return q, nil
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "Unknown"
	}
	return s
}
