// Package catalog resolves free-text anime titles against the AniList GraphQL
// API. It is the title validation collaborator of the request pipeline.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/fallenrobot/fallenbot/internal/domain"
)

// DefaultURL is the public AniList GraphQL endpoint.
const DefaultURL = "https://graphql.anilist.co"

// ErrNoMatch is returned when AniList has no anime for the query.
var ErrNoMatch = errors.New("no matching title")

const mediaQuery = `query ($search: String) {
  Media(search: $search, type: ANIME) {
    id
    title { romaji english native }
    status
    episodes
    averageScore
    siteUrl
  }
}`

// AniList is a thin client for the Media search query.
type AniList struct {
	client *resty.Client
}

// NewAniList returns a client posting to url (DefaultURL when empty) with the
// given per-request timeout.
func NewAniList(url string, timeout time.Duration) *AniList {
	if url == "" {
		url = DefaultURL
	}
	c := resty.New().
		SetBaseURL(url).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	return &AniList{client: c}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type mediaResponse struct {
	Data struct {
		Media *struct {
			ID    int64 `json:"id"`
			Title struct {
				Romaji  string `json:"romaji"`
				English string `json:"english"`
				Native  string `json:"native"`
			} `json:"title"`
			Status       string `json:"status"`
			Episodes     *int   `json:"episodes"`
			AverageScore *int   `json:"averageScore"`
			SiteURL      string `json:"siteUrl"`
		} `json:"Media"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
		Status  int    `json:"status"`
	} `json:"errors"`
}

// Lookup returns the best AniList match for query. A 404 or an empty Media
// field yields ErrNoMatch; transport and decode failures are returned as-is.
func (a *AniList) Lookup(ctx context.Context, query string) (*domain.CatalogEntry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrNoMatch
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(&gqlRequest{Query: mediaQuery, Variables: map[string]any{"search": query}}).
		Post("")
	if err != nil {
		return nil, fmt.Errorf("anilist request: %w", err)
	}

	var mr mediaResponse
	if err := json.Unmarshal(resp.Body(), &mr); err != nil {
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("anilist status %d", resp.StatusCode())
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}
	// AniList answers unknown titles with 404 and a "Not Found." error.
	if resp.StatusCode() == http.StatusNotFound || (len(mr.Errors) > 0 && mr.Errors[0].Status == http.StatusNotFound) {
		return nil, ErrNoMatch
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("anilist status %d", resp.StatusCode())
	}
	if len(mr.Errors) > 0 {
		return nil, fmt.Errorf("anilist: %s", mr.Errors[0].Message)
	}
	m := mr.Data.Media
	if m == nil || m.ID == 0 {
		return nil, ErrNoMatch
	}

	e := &domain.CatalogEntry{
		ID:      m.ID,
		Romaji:  m.Title.Romaji,
		English: m.Title.English,
		Native:  m.Title.Native,
		Status:  HumanizeStatus(m.Status),
		URL:     m.SiteURL,
	}
	if m.Episodes != nil {
		e.Episodes = *m.Episodes
	}
	if m.AverageScore != nil {
		e.Score = *m.AverageScore
	}
	if e.URL == "" {
		e.URL = fmt.Sprintf("https://anilist.co/anime/%d", m.ID)
	}
	return e, nil
}

// HumanizeStatus turns AniList enum values like NOT_YET_RELEASED into
// "Not Yet Released". Empty input yields "Unknown".
func HumanizeStatus(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "_", " "))
	if s == "" {
		return "Unknown"
	}
	// Casers are stateful; build one per call.
	return cases.Title(language.English).String(strings.ToLower(s))
}
