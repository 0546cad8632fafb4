package queue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/labeler/internal/config"
	"github.com/lehigh-university-libraries/labeler/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.API.URL = server.URL
	cfg.API.Timeout = 5 * time.Second
	return NewClient(&cfg)
}

func TestList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/list", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"crops": [
				{"original_s3_uri": "s3://b/img1.jpg", "bounding_box": "0,0,10,10", "labeled": false, "labeler_name": "", "difficult": false},
				{"original_s3_uri": "s3://b/img2.jpg", "bounding_box": "5,5,20,30", "labeled": true, "labeler_name": "Sam", "difficult": true}
			],
			"total_crops": 2,
			"total_labeled": 1
		}`))
	})

	list, err := client.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list.Crops, 2)
	assert.Equal(t, 2, list.TotalCrops)
	assert.Equal(t, 1, list.TotalLabeled)
	assert.Equal(t, models.BoundingBox{5, 5, 20, 30}, list.Crops[1].BoundingBox)
	assert.True(t, list.Crops[1].Difficult)
	assert.Equal(t, "Sam", list.Crops[1].LabelerName)
}

func TestLookup(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/similarity", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "img1", req["original_s3_uri"])
		assert.Equal(t, []any{0.0, 0.0, 10.0, 10.0}, req["bounding_box"])

		_, _ = w.Write([]byte(`{
			"crop_s3_uri": "s3://b/crops/1.jpg",
			"crop_presigned_url": "https://s3/crops/1.jpg?sig",
			"incoming_crop_metadata": {},
			"similar_crop_s3_uri": "s3://b/crops/9.jpg",
			"similar_crop_presigned_url": null,
			"similar_crop_metadata": {"brand": "Acme", "embedding_id": "n-9"},
			"score": null,
			"embedding_id": null
		}`))
	})

	lookup, err := client.Lookup(context.Background(), "img1", models.BoundingBox{0, 0, 10, 10})
	require.NoError(t, err)
	assert.Equal(t, "https://s3/crops/1.jpg?sig", lookup.CropPresignedURL)
	assert.True(t, lookup.IncomingMetadata.IsEmpty())
	assert.Equal(t, "Acme", lookup.MatchMetadata.Brand)
	assert.Nil(t, lookup.MatchPresignedURL)
	assert.Nil(t, lookup.Score)
	assert.Empty(t, lookup.IncomingRecordID())
}

func TestWriteRecord(t *testing.T) {
	var got models.QueueUpdate
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/update_csv", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{
			"message": "Labeled",
			"status": "success",
			"next_crop": {"original_s3_uri": "img2", "bounding_box": "1,2,3,4", "labeled": false, "labeler_name": "Alex"}
		}`))
	})

	update := models.QueueUpdate{
		SourceURI:        "img1",
		BoundingBox:      []float64{0, 0, 10, 10},
		LabelerName:      "Alex",
		Difficult:        true,
		IncomingMetadata: models.Metadata{Brand: "Acme"},
		EmbeddingID:      "",
		Action:           models.ActionAdvance,
	}
	reply, err := client.WriteRecord(context.Background(), update)
	require.NoError(t, err)

	assert.Equal(t, "Acme", got.IncomingMetadata.Brand)
	assert.Equal(t, models.ActionAdvance, got.Action)
	assert.True(t, got.Difficult)

	require.NotNil(t, reply.NextCrop)
	assert.Equal(t, "img2", reply.NextCrop.SourceURI)
	assert.False(t, reply.NextCrop.Difficult, "missing difficult reads as false")
	assert.Equal(t, "Alex", reply.NextCrop.LabelerName)
}

func TestWriteRecordEndOfQueue(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message": "No more crops", "status": "done"}`))
	})

	reply, err := client.WriteRecord(context.Background(), models.QueueUpdate{Action: models.ActionAdvance})
	require.NoError(t, err)
	assert.Nil(t, reply.NextCrop)
	assert.Equal(t, "No more crops", reply.Message)
}

func TestSetRecordID(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/update_csv_embedding", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	})

	crop := models.Crop{SourceURI: "img1", BoundingBox: models.BoundingBox{0, 0, 10, 10}}
	require.NoError(t, client.SetRecordID(context.Background(), crop, "emb-1"))
	assert.Equal(t, "emb-1", body["embedding_id"])
	assert.Equal(t, "img1", body["original_s3_uri"])
}

func TestStatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue file locked", http.StatusServiceUnavailable)
	})

	_, err := client.List(context.Background())
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, "queue file locked", statusErr.Body)
	assert.Equal(t, "GET /api/list", statusErr.Op)
}

func TestContextCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.List(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
