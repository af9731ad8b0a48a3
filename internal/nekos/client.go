// Package nekos fetches anime reaction GIFs from the nekos.best API.
package nekos

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

// DefaultURL is the nekos.best v2 API root.
const DefaultURL = "https://nekos.best/api/v2"

// ErrUnknownAction is returned for actions outside Actions.
var ErrUnknownAction = errors.New("unknown reaction")

// ErrEmpty is returned when the API answers without results.
var ErrEmpty = errors.New("no reaction available")

// Action describes one reaction endpoint and how it reads in a caption.
type Action struct {
	Name  string
	Verb  string
	Emoji string
}

// Actions lists the supported reactions in display order.
var Actions = []Action{
	{"hug", "hugs", "🤗"},
	{"pat", "pats", "😊"},
	{"slap", "slaps", "👋"},
	{"kiss", "kisses", "😘"},
	{"poke", "pokes", "👉"},
	{"wave", "waves at", "👋"},
	{"bite", "bites", "😬"},
	{"punch", "punches", "👊"},
	{"nod", "nods at", "🙂"},
	{"shoot", "shoots", "🔫"},
	{"wink", "winks at", "😉"},
}

// LookupAction returns the Action named name.
func LookupAction(name string) (Action, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, a := range Actions {
		if a.Name == name {
			return a, true
		}
	}
	return Action{}, false
}

// Reaction is one GIF with its attribution.
type Reaction struct {
	URL    string `json:"url"`
	Anime  string `json:"anime_name"`
	Artist string `json:"artist_name"`
}

// Client calls nekos.best.
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

// Random returns a random GIF for action.
func (c *Client) Random(ctx context.Context, action string) (*Reaction, error) {
	a, ok := LookupAction(action)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("action", a.Name).
		Get("/{action}")
	if err != nil {
		return nil, fmt.Errorf("nekos request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("nekos status %d", resp.StatusCode())
	}
	var body struct {
		Results []Reaction `json:"results"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(body.Results) == 0 || body.Results[0].URL == "" {
		return nil, ErrEmpty
	}
	return &body.Results[0], nil
}
