// Package history is the HTTP client for the relay's history API: the
// remote side of the fetch-and-reconcile path and the attachment
// upload step that precedes a send.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/valyala/fasthttp"

	"chat-core/pkg/models"
)

const defaultTimeout = 10 * time.Second

// Client implements the delivery engine's Remote interface against the
// relay's HTTP API.
type Client struct {
	base   string
	token  string
	selfID string
	hc     *fasthttp.Client
}

func New(baseURL, token, selfID string) *Client {
	return &Client{
		base:   baseURL,
		token:  token,
		selfID: selfID,
		hc:     &fasthttp.Client{},
	}
}

type historyResponse struct {
	Success  bool             `json:"success"`
	Messages []models.Message `json:"messages"`
	Error    string           `json:"error,omitempty"`
}

type uploadResponse struct {
	Success    bool              `json:"success"`
	Attachment models.Attachment `json:"attachment"`
	Error      string            `json:"error,omitempty"`
}

// FetchHistory fetches the server-side log for a conversation key.
func (c *Client) FetchHistory(ctx context.Context, key string) ([]models.Message, error) {
	var url string
	if groupID, ok := models.ParseGroupKey(key); ok {
		url = fmt.Sprintf("%s/api/groups/%s/messages", c.base, groupID)
	} else if a, b, ok := models.ParseConversationKey(key); ok {
		other := a
		if other == c.selfID {
			other = b
		}
		url = fmt.Sprintf("%s/api/chat/history?otherUserId=%s", c.base, other)
	} else {
		return nil, fmt.Errorf("unrecognized conversation key %q", key)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Authorization", "Bearer "+c.token)

	if err := c.do(ctx, req, resp); err != nil {
		return nil, fmt.Errorf("history fetch failed: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("history fetch failed: status %d", resp.StatusCode())
	}

	var body historyResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("invalid history response: %w", err)
	}
	if !body.Success {
		return nil, fmt.Errorf("history fetch rejected: %s", body.Error)
	}
	return body.Messages, nil
}

// UploadAttachment posts one file as multipart form data and returns
// the stored attachment metadata.
func (c *Client) UploadAttachment(ctx context.Context, name, contentType string, data []byte) (models.Attachment, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return models.Attachment{}, err
	}
	if _, err := part.Write(data); err != nil {
		return models.Attachment{}, err
	}
	if err := w.Close(); err != nil {
		return models.Attachment{}, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.base + "/api/chat/upload")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType(w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.SetBody(buf.Bytes())

	if err := c.do(ctx, req, resp); err != nil {
		return models.Attachment{}, fmt.Errorf("upload failed: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return models.Attachment{}, fmt.Errorf("upload failed: status %d", resp.StatusCode())
	}

	var body uploadResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return models.Attachment{}, fmt.Errorf("invalid upload response: %w", err)
	}
	if !body.Success {
		return models.Attachment{}, fmt.Errorf("upload rejected: %s", body.Error)
	}
	if body.Attachment.Type == "" {
		body.Attachment.Type = contentType
	}
	return body.Attachment, nil
}

func (c *Client) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultTimeout)
	}
	return c.hc.DoDeadline(req, resp, deadline)
}
