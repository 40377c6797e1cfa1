package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"whatsapp-assistant/internal/config"
	"whatsapp-assistant/internal/models"
	"whatsapp-assistant/internal/phone"
)

// Client sends WhatsApp messages through the Twilio Messages API
type Client struct {
	Config     *config.Config
	httpClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{Config: cfg, httpClient: &http.Client{Timeout: timeout}}
}

// SendResult is what the provider reported for an accepted send.
type SendResult struct {
	ProviderMessageID string          `json:"provider_message_id"`
	Status            string          `json:"status"`
	Response          json.RawMessage `json:"response"`
}

type messageResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// --- Senders ---

func (c *Client) SendMessage(ctx context.Context, to, body string) (*SendResult, error) {
	form := c.baseForm(to)
	form.Set("Body", body)
	return c.send(ctx, form)
}

// SendTemplate sends a pre-approved content template with its variables.
func (c *Client) SendTemplate(ctx context.Context, to, contentSID string, variables map[string]string) (*SendResult, error) {
	form := c.baseForm(to)
	form.Set("ContentSid", contentSID)
	if len(variables) > 0 {
		vars, err := json.Marshal(variables)
		if err != nil {
			return nil, fmt.Errorf("encode template variables: %w", err)
		}
		form.Set("ContentVariables", string(vars))
	}
	return c.send(ctx, form)
}

func (c *Client) baseForm(to string) url.Values {
	form := url.Values{}
	form.Set("To", Address(to))
	form.Set("From", Address(c.Config.WhatsAppFrom))
	if c.Config.StatusCallbackURL != "" {
		form.Set("StatusCallback", c.Config.StatusCallbackURL)
	}
	return form
}

// Address returns number in the provider's WhatsApp channel form.
func Address(number string) string {
	n := phone.Normalize(number)
	if n == "" {
		return ""
	}
	return phone.ChannelPrefix + n
}

func (c *Client) send(ctx context.Context, form url.Values) (*SendResult, error) {
	if c.Config.TwilioAccountSID == "" || c.Config.TwilioAuthToken == "" {
		return nil, fmt.Errorf("twilio credentials are not configured")
	}
	if form.Get("From") == "" {
		return nil, fmt.Errorf("WHATSAPP_FROM is not configured")
	}
	if form.Get("To") == "" {
		return nil, fmt.Errorf("missing destination number")
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(c.Config.TwilioAPIBaseURL, "/"), c.Config.TwilioAccountSID)

	respBody, err := c.sendRequest(ctx, endpoint, form)
	if err != nil {
		return nil, err
	}

	var msg messageResponse
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, fmt.Errorf("decode send response: %w", err)
	}
	if msg.SID == "" {
		return nil, fmt.Errorf("send response has no message sid: %s", string(respBody))
	}

	return &SendResult{
		ProviderMessageID: msg.SID,
		Status:            models.NormalizeStatus(msg.Status),
		Response:          json.RawMessage(respBody),
	}, nil
}

func (c *Client) sendRequest(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.Config.TwilioAccountSID, c.Config.TwilioAuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return respBody, fmt.Errorf("API error: %s - %s", resp.Status, string(respBody))
	}

	return respBody, nil
}
