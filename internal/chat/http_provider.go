package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPProvider implements Provider against the provider's REST API. It
// is constructed once at process start and shared; the underlying
// http.Client carries the connection pool.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// HTTPProviderConfig holds settings for the provider client.
type HTTPProviderConfig struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
}

// NewHTTPProvider creates a provider client.
func NewHTTPProvider(cfg HTTPProviderConfig, logger *slog.Logger) *HTTPProvider {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// CreateUser ensures a provider-side user exists. A 409 from the
// provider means the user is already there and is treated as success.
func (p *HTTPProvider) CreateUser(ctx context.Context, id, role string) error {
	err := p.do(ctx, http.MethodPost, "/users", User{ID: id, Role: role}, nil)
	if IsAlreadyExists(err) {
		return nil
	}
	return err
}

// QueryUsers returns the provider-side users among ids.
func (p *HTTPProvider) QueryUsers(ctx context.Context, ids []string) ([]User, error) {
	var resp struct {
		Users []User `json:"users"`
	}
	body := map[string][]string{"ids": ids}
	if err := p.do(ctx, http.MethodPost, "/users/query", body, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// CreateChannel creates a channel with a caller-chosen identifier.
func (p *HTTPProvider) CreateChannel(ctx context.Context, channelType, id string, input ChannelInput) (*Channel, error) {
	var resp struct {
		Channel Channel `json:"channel"`
	}
	path := fmt.Sprintf("/channels/%s/%s", channelType, id)
	if err := p.do(ctx, http.MethodPost, path, input, &resp); err != nil {
		return nil, err
	}
	return &resp.Channel, nil
}

// QueryChannels returns channels matching the filter.
func (p *HTTPProvider) QueryChannels(ctx context.Context, filter ChannelFilter) ([]Channel, error) {
	var resp struct {
		Channels []Channel `json:"channels"`
	}
	if err := p.do(ctx, http.MethodPost, "/channels/query", filter, &resp); err != nil {
		return nil, err
	}
	return resp.Channels, nil
}

// AddMembers adds members to a channel.
func (p *HTTPProvider) AddMembers(ctx context.Context, channelType, id string, members []string, systemMessage string) error {
	body := struct {
		Members       []string `json:"members"`
		SystemMessage string   `json:"system_message,omitempty"`
	}{Members: members, SystemMessage: systemMessage}
	path := fmt.Sprintf("/channels/%s/%s/members", channelType, id)
	return p.do(ctx, http.MethodPost, path, body, nil)
}

// SendSystemMessage posts a system message to a channel.
func (p *HTTPProvider) SendSystemMessage(ctx context.Context, channelType, id, text string) error {
	body := struct {
		Text   string `json:"text"`
		System bool   `json:"system"`
	}{Text: text, System: true}
	path := fmt.Sprintf("/channels/%s/%s/messages", channelType, id)
	return p.do(ctx, http.MethodPost, path, body, nil)
}

// AddModerator grants a user the moderator role on a channel.
func (p *HTTPProvider) AddModerator(ctx context.Context, channelType, id, userID string) error {
	body := map[string]string{"user_id": userID}
	path := fmt.Sprintf("/channels/%s/%s/moderators", channelType, id)
	return p.do(ctx, http.MethodPost, path, body, nil)
}

// do issues a JSON request and decodes the response into out when
// non-nil. Non-2xx responses become *APIError.
func (p *HTTPProvider) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling provider %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errBody); decodeErr == nil {
			apiErr.Code = errBody.Code
			apiErr.Message = errBody.Message
		}
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding provider response: %w", err)
		}
	}
	return nil
}
