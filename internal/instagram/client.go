// AngelaMos | 2026
// client.go

package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/carterperez-dev/socialsync/internal/config"
)

const maxResponseBytes = 1 << 20

var ErrNoAccessToken = errors.New("instagram access token not configured")

// Client sends direct-message replies through the Instagram Graph API. The
// access token is supplied per call; the client holds no credentials.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg config.InstagramConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.GraphBaseURL, "/") + "/" +
			strings.Trim(cfg.APIVersion, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type sendMessageRequest struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
}

type SendResult struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c *Client) SendText(
	ctx context.Context,
	accessToken, recipientID, text string,
) (*SendResult, error) {
	if accessToken == "" {
		return nil, ErrNoAccessToken
	}

	var payload sendMessageRequest
	payload.Recipient.ID = recipientID
	payload.Message.Text = text

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/me/messages",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read send response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var gErr graphError
		if json.Unmarshal(respBody, &gErr) == nil && gErr.Error.Message != "" {
			return nil, fmt.Errorf(
				"send message: status=%d code=%d: %s",
				resp.StatusCode,
				gErr.Error.Code,
				gErr.Error.Message,
			)
		}
		return nil, fmt.Errorf("send message: status=%d", resp.StatusCode)
	}

	var result SendResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode send response: %w", err)
	}

	return &result, nil
}
