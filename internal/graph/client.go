// Package graph implements the client for the conversation-listing API.
// It retrieves the owner's inbox conversations with nested messages and
// follows server-supplied continuation links.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const conversationFields = "participants,messages{message,from,created_time}"

// FetchOptions bounds a single fetch.
type FetchOptions struct {
	// Since filters for conversations with activity at or after this time.
	// Zero means no recency filter.
	Since time.Time

	// ConversationLimit caps conversations per page; zero uses the server
	// default.
	ConversationLimit int

	// MessageLimit caps nested messages per conversation; zero uses the
	// server default.
	MessageLimit int

	// MaxPages caps how many continuation pages are followed; zero means
	// follow until the server stops returning one.
	MaxPages int
}

// Client talks to the conversation-listing endpoint. Construct with
// NewClient.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiVersion string
	log        *slog.Logger
}

// NewClient creates a Client. baseURL is the API root without a trailing
// slash; timeout bounds every individual page request.
func NewClient(baseURL, apiVersion string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiVersion: apiVersion,
		log:        log.With("component", "graph_client"),
	}
}

// FetchMessages retrieves all inbox messages visible to the given token,
// following pagination until exhausted or the page cap is hit.
//
// On failure it returns the messages accumulated so far together with a
// typed error: *TransportError for network failures, *RemoteAPIError when
// the payload carries an error object, *MalformedResponseError when a page
// cannot be decoded. Partial results are valid and should be used.
//
// No ordering is guaranteed beyond what the server returns.
func (c *Client) FetchMessages(ctx context.Context, token string, opts FetchOptions) ([]Message, error) {
	pageURL := c.firstPageURL(token, opts)

	var messages []Message
	pages := 0

	for pageURL != "" {
		if opts.MaxPages > 0 && pages >= opts.MaxPages {
			c.log.DebugContext(ctx, "Page cap reached, stopping pagination", "pages", pages)
			break
		}

		page, err := c.fetchPage(ctx, pageURL)
		if err != nil {
			return messages, err
		}
		pages++

		for _, conv := range page.Data {
			for _, wm := range conv.Messages.Data {
				messages = append(messages, wm.toMessage(conv.ID))
			}
		}

		pageURL = page.Paging.Next
	}

	c.log.DebugContext(ctx, "Fetch complete", "pages", pages, "messages", len(messages))
	return messages, nil
}

func (c *Client) firstPageURL(token string, opts FetchOptions) string {
	fields := conversationFields
	if opts.MessageLimit > 0 {
		// Nested field limits use the .limit(n) modifier.
		fields = fmt.Sprintf("participants,messages.limit(%d){message,from,created_time}", opts.MessageLimit)
	}

	q := url.Values{}
	q.Set("fields", fields)
	q.Set("access_token", token)
	if !opts.Since.IsZero() {
		q.Set("since", strconv.FormatInt(opts.Since.Unix(), 10))
	}
	if opts.ConversationLimit > 0 {
		q.Set("limit", strconv.Itoa(opts.ConversationLimit))
	}

	return fmt.Sprintf("%s/%s/me/conversations?%s", c.baseURL, c.apiVersion, q.Encode())
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) (*conversationListResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	var page conversationListResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, &MalformedResponseError{Err: err}
	}

	// The API reports failures in the payload regardless of HTTP status.
	if page.Error != nil {
		return nil, page.Error
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteAPIError{
			Message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
			Type:    "http",
			Code:    resp.StatusCode,
		}
	}

	return &page, nil
}
