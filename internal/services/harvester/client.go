package harvester

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/httpclient"
	"github.com/ternarybob/colloquy/internal/models"
)

const (
	indexPath        = "/backend-api/conversations"
	conversationPath = "/backend-api/conversation"

	// maxBodySize caps response bodies; the home page and conversation
	// documents are both well under this
	maxBodySize = 20 * 1024 * 1024
)

// APIClient talks to the chat platform's private backend API. The base
// client carries the shared rate limit and cookie jar; authenticated calls
// layer a bearer token on top per request batch.
type APIClient struct {
	base     *http.Client
	baseURL  string
	pageSize int
	logger   arbor.ILogger
}

// NewAPIClient creates a client rooted at the platform base URL
func NewAPIClient(base *http.Client, baseURL string, pageSize int, logger arbor.ILogger) *APIClient {
	return &APIClient{
		base:     base,
		baseURL:  baseURL,
		pageSize: pageSize,
		logger:   logger,
	}
}

// ConversationURL returns the fetch target URL for a conversation id
func (c *APIClient) ConversationURL(id string) string {
	return c.baseURL + conversationPath + "/" + id
}

// IndexURL returns the conversation index URL for the first page
func (c *APIClient) IndexURL() string {
	params := url.Values{}
	params.Set("offset", "0")
	params.Set("limit", strconv.Itoa(c.pageSize))
	params.Set("order", "updated")
	params.Set("is_archived", "false")
	params.Set("is_starred", "false")
	return c.baseURL + indexPath + "?" + params.Encode()
}

// FetchHomePage issues the single unauthenticated fetch of a cycle and
// returns the raw HTML for credential scraping
func (c *APIClient) FetchHomePage(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return "", fmt.Errorf("failed to build home page request: %w", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return "", fmt.Errorf("home page fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("home page returned status %d: %w", resp.StatusCode, ErrUnexpectedResponse)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("failed to read home page body: %w", err)
	}

	return string(body), nil
}

// FetchIndex fetches the first page of the conversation index, newest-updated
// first, excluding archived and starred conversations
func (c *APIClient) FetchIndex(ctx context.Context, token string) (*models.ChatGPTIndexResponse, error) {
	var index models.ChatGPTIndexResponse
	if err := c.getJSON(ctx, token, c.IndexURL(), &index); err != nil {
		return nil, err
	}

	if index.Items == nil {
		return nil, fmt.Errorf("index body missing items: %w", ErrUnexpectedResponse)
	}

	c.logger.Debug().
		Int("items", len(index.Items)).
		Int("total", index.Total).
		Msg("Fetched conversation index")

	return &index, nil
}

// FetchConversation fetches one raw conversation document
func (c *APIClient) FetchConversation(ctx context.Context, token string, target Target) (*models.ChatGPTConversation, error) {
	var doc models.ChatGPTConversation
	if err := c.getJSON(ctx, token, target.URL, &doc); err != nil {
		return nil, err
	}

	if len(doc.Mapping) == 0 {
		return nil, fmt.Errorf("conversation %s body missing node mapping: %w", target.ConversationID, ErrMalformedDocument)
	}

	if doc.ConversationID == "" {
		doc.ConversationID = target.ConversationID
	}

	return &doc, nil
}

// getJSON performs an authenticated GET and decodes the response body
func (c *APIClient) getJSON(ctx context.Context, token string, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", rawURL, err)
	}
	req.Header.Set("Accept", "application/json")

	client := httpclient.NewBearerClient(ctx, token, c.base)
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s failed: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s returned status %d: %w", rawURL, resp.StatusCode, ErrUnexpectedResponse)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("failed to read body of %s: %w", rawURL, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode body of %s: %w", rawURL, ErrUnexpectedResponse)
	}

	return nil
}
