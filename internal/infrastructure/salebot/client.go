// Package salebot talks to the upstream chat provider's HTTP API.
package salebot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/edcrm/chat-import/internal/domain/chat"
	"github.com/edcrm/chat-import/internal/httpx"
)

// Client calls the provider API. The API key is part of the URL path, which
// is the provider's convention, so requests go through the executor without
// its bearer auth.
type Client struct {
	exec    *httpx.Executor
	baseURL string
	groupID string
	logger  zerolog.Logger
}

func NewClient(exec *httpx.Executor, baseURL, apiKey, groupID string, logger zerolog.Logger) *Client {
	logger.Info().Str("base_url", baseURL).Msg("salebot client initialized")

	return &Client{
		exec:    exec,
		baseURL: baseURL + "/api/" + apiKey,
		groupID: groupID,
		logger:  logger,
	}
}

type remoteClientPayload struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type remoteMessagePayload struct {
	ID            int64  `json:"id"`
	Message       string `json:"message"`
	ClientReplica bool   `json:"client_replica"`
	CreatedAt     string `json:"created_at"`
}

// GetClients fetches one page of the upstream list.
func (c *Client) GetClients(ctx context.Context, listID string, offset, limit int64) ([]chat.RemoteClient, error) {
	resp := c.exec.Do(ctx, httpx.Request{
		URL:    c.baseURL + "/get_clients",
		Method: http.MethodPost,
		Body: map[string]any{
			"list":   listID,
			"offset": offset,
			"limit":  limit,
		},
	})
	if !resp.Success {
		return nil, fmt.Errorf("get_clients offset=%d: %s", offset, resp.Error)
	}

	var payload struct {
		Clients []remoteClientPayload `json:"clients"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return nil, fmt.Errorf("decode get_clients response: %w", err)
	}

	clients := make([]chat.RemoteClient, 0, len(payload.Clients))
	for _, rc := range payload.Clients {
		clients = append(clients, chat.RemoteClient{ID: rc.ID, Name: rc.Name, Phone: rc.Phone})
	}
	return clients, nil
}

// FindWhatsAppClientID tries each phone variant in order and accepts the
// first hit. A 404 on a variant means "unknown phone", not an error.
func (c *Client) FindWhatsAppClientID(ctx context.Context, variants []string) (int64, bool, error) {
	for _, variant := range variants {
		query := url.Values{}
		query.Set("phone", variant)
		query.Set("group_id", c.groupID)

		resp := c.exec.Do(ctx, httpx.Request{
			URL:     c.baseURL + "/whatsapp_client_id?" + query.Encode(),
			Method:  http.MethodGet,
			NoRetry: true,
		})
		if resp.Status == http.StatusNotFound {
			continue
		}
		if !resp.Success {
			return 0, false, fmt.Errorf("whatsapp_client_id phone=%s: %s", variant, resp.Error)
		}

		var payload struct {
			ClientID int64 `json:"client_id"`
		}
		if err := json.Unmarshal(resp.Data, &payload); err != nil {
			return 0, false, fmt.Errorf("decode whatsapp_client_id response: %w", err)
		}
		if payload.ClientID != 0 {
			return payload.ClientID, true, nil
		}
	}
	return 0, false, nil
}

// GetHistory fetches up to limit history messages for one upstream client.
func (c *Client) GetHistory(ctx context.Context, clientID int64, limit int64) ([]chat.RemoteMessage, error) {
	resp := c.exec.Do(ctx, httpx.Request{
		URL:    fmt.Sprintf("%s/get_history?client_id=%d&limit=%d", c.baseURL, clientID, limit),
		Method: http.MethodGet,
	})
	if !resp.Success {
		return nil, fmt.Errorf("get_history client_id=%d: %s", clientID, resp.Error)
	}

	var payload struct {
		Result []remoteMessagePayload `json:"result"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return nil, fmt.Errorf("decode get_history response: %w", err)
	}

	messages := make([]chat.RemoteMessage, 0, len(payload.Result))
	for _, rm := range payload.Result {
		messages = append(messages, chat.RemoteMessage{
			ID:            rm.ID,
			Text:          rm.Message,
			ClientReplica: rm.ClientReplica,
			CreatedAt:     rm.CreatedAt,
		})
	}
	return messages, nil
}
