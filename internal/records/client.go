package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/lehigh-university-libraries/labeler/internal/config"
	"github.com/lehigh-university-libraries/labeler/internal/models"
)

// ErrNoID is returned when the record store accepts a create but reports no identifier.
var ErrNoID = errors.New("record store returned no embedding_id")

// StatusError is returned when the record store answers with a non-2xx status.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client manages the persistent metadata records keyed by embedding id.
type Client struct {
	BaseURL    string
	httpClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		BaseURL: cfg.API.RecordsURL,
		httpClient: &http.Client{
			Timeout: cfg.API.Timeout,
		},
	}
}

// Update replaces the editable fields of record id.
func (c *Client) Update(ctx context.Context, id string, fields models.Metadata) error {
	body, contentType, err := formBody(fields, nil)
	if err != nil {
		return err
	}

	path := "/api/update/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodPut, path, contentType, body, nil); err != nil {
		return fmt.Errorf("failed to update record %s: %w", id, err)
	}
	return nil
}

type createReply struct {
	Status   string          `json:"status"`
	Message  string          `json:"message"`
	Metadata models.Metadata `json:"metadata"`
}

// Create stores a new record for the image at imageURL and returns its id.
func (c *Client) Create(ctx context.Context, imageURL string, fields models.Metadata) (string, error) {
	body, contentType, err := formBody(fields, map[string]string{"presigned_url": imageURL})
	if err != nil {
		return "", err
	}

	var reply createReply
	if err := c.do(ctx, http.MethodPost, "/api/new", contentType, body, &reply); err != nil {
		return "", fmt.Errorf("failed to create record: %w", err)
	}
	if reply.Metadata.EmbeddingID == "" {
		return "", fmt.Errorf("failed to create record: %w", ErrNoID)
	}
	return reply.Metadata.EmbeddingID, nil
}

// Delete removes record id.
func (c *Client) Delete(ctx context.Context, id string) error {
	payload, err := json.Marshal(map[string]string{"embedding_id": id})
	if err != nil {
		return fmt.Errorf("failed to encode delete request: %w", err)
	}
	if err := c.do(ctx, http.MethodPost, "/api/delete", "application/json", bytes.NewReader(payload), nil); err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	return nil
}

// formBody writes every editable field, empty ones included, followed by extra.
func formBody(fields models.Metadata, extra map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range extra {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", k, err)
		}
	}
	for _, name := range models.EditableFields {
		if err := w.WriteField(name, fields.Get(name)); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		return &StatusError{
			Op:         method + " " + path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
