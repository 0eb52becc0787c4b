package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
)

// Voice is one entry of the voice catalog.
type Voice struct {
	ID         string            `json:"voice_id"`
	Name       string            `json:"name"`
	Category   string            `json:"category"`
	Labels     map[string]string `json:"labels"`
	PreviewURL string            `json:"preview_url"`
}

// Model is a synthesis model that can be selected.
type Model struct {
	ID          string
	Name        string
	Description string
}

var models = []Model{
	{ID: "eleven_v3", Name: "Eleven v3", Description: "Most expressive, supports audio tags"},
	{ID: "eleven_turbo_v2_5", Name: "Turbo v2.5", Description: "Low latency, good quality"},
	{ID: "eleven_flash_v2_5", Name: "Flash v2.5", Description: "Fastest, lowest cost"},
	{ID: "eleven_multilingual_v2", Name: "Multilingual v2", Description: "Stable output across 29 languages"},
	{ID: "eleven_monolingual_v1", Name: "English v1", Description: "Legacy English model"},
}

// Models returns the selectable model catalog.
func Models() []Model {
	return append([]Model(nil), models...)
}

// ListVoices fetches the voices available to the API key, sorted by name.
func (c *Client) ListVoices(ctx context.Context) ([]Voice, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voice list request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, &RemoteError{Status: resp.StatusCode, Message: "Invalid API key"}
	case http.StatusTooManyRequests:
		return nil, &RemoteError{Status: resp.StatusCode, Message: "Rate limit exceeded"}
	default:
		return nil, readRemoteError(resp)
	}

	var body struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode voices: %w", err)
	}

	sort.Slice(body.Voices, func(i, j int) bool {
		return body.Voices[i].Name < body.Voices[j].Name
	})
	return body.Voices, nil
}
