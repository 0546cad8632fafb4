package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/labeler/internal/config"
	"github.com/lehigh-university-libraries/labeler/internal/models"
)

// StatusError is returned when the queue service answers with a non-2xx status.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client talks to the labeling queue and the similarity service, which share
// one base URL.
type Client struct {
	BaseURL    string
	httpClient *http.Client
}

// NewClient creates a new queue client
func NewClient(cfg *config.Config) *Client {
	return &Client{
		BaseURL: cfg.API.URL,
		httpClient: &http.Client{
			Timeout: cfg.API.Timeout,
		},
	}
}

// List fetches every crop in the queue along with the totals.
func (c *Client) List(ctx context.Context) (*models.CropList, error) {
	var list models.CropList
	if err := c.do(ctx, http.MethodGet, "/api/list", nil, &list); err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	if list.Crops == nil {
		list.Crops = []models.Crop{}
	}
	return &list, nil
}

type lookupRequest struct {
	SourceURI   string    `json:"original_s3_uri"`
	BoundingBox []float64 `json:"bounding_box"`
}

// Lookup asks the similarity service for the crop's stored metadata and its
// nearest labeled neighbor.
func (c *Client) Lookup(ctx context.Context, sourceURI string, box models.BoundingBox) (*models.Lookup, error) {
	req := lookupRequest{SourceURI: sourceURI, BoundingBox: box.Values()}

	var lookup models.Lookup
	if err := c.do(ctx, http.MethodPost, "/api/similarity", req, &lookup); err != nil {
		return nil, fmt.Errorf("failed to look up similar crop: %w", err)
	}
	return &lookup, nil
}

// WriteRecord writes the authoritative queue record for a crop.
func (c *Client) WriteRecord(ctx context.Context, update models.QueueUpdate) (*models.QueueReply, error) {
	var reply models.QueueReply
	if err := c.do(ctx, http.MethodPut, "/api/update_csv", update, &reply); err != nil {
		return nil, fmt.Errorf("failed to write queue record: %w", err)
	}
	return &reply, nil
}

type recordIDRequest struct {
	SourceURI   string    `json:"original_s3_uri"`
	BoundingBox []float64 `json:"bounding_box"`
	EmbeddingID string    `json:"embedding_id"`
}

// SetRecordID stores the record store identifier on the crop's queue row.
// An empty id clears it.
func (c *Client) SetRecordID(ctx context.Context, crop models.Crop, id string) error {
	req := recordIDRequest{
		SourceURI:   crop.SourceURI,
		BoundingBox: crop.BoundingBox.Values(),
		EmbeddingID: id,
	}
	if err := c.do(ctx, http.MethodPut, "/api/update_csv_embedding", req, nil); err != nil {
		return fmt.Errorf("failed to store record id: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

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
