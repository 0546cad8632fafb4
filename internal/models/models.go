package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Crop represents a candidate object region awaiting review in the labeling queue.
// Identity is the pair (SourceURI, BoundingBox).
type Crop struct {
	SourceURI   string      `json:"original_s3_uri"`
	BoundingBox BoundingBox `json:"bounding_box"`
	Labeled     bool        `json:"labeled"`
	LabelerName string      `json:"labeler_name"`
	Difficult   bool        `json:"difficult"`
}

// Key returns a stable identity string for the crop
func (c Crop) Key() string {
	return c.SourceURI + "|" + c.BoundingBox.String()
}

// BoundingBox holds the four crop coordinates in source-image pixel space (xmin, ymin, xmax, ymax).
type BoundingBox [4]float64

// ParseBoundingBox parses "x1,y1,x2,y2"
func ParseBoundingBox(s string) (BoundingBox, error) {
	var box BoundingBox
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return box, fmt.Errorf("bounding box must have 4 values, got %d: %q", len(parts), s)
	}
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return box, fmt.Errorf("invalid bounding box value %q: %w", part, err)
		}
		box[i] = v
	}
	return box, nil
}

// String formats the box the way the queue listing does, e.g. "0,0,10,10".
func (b BoundingBox) String() string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// Values returns the coordinates as a slice, the shape request payloads use.
func (b BoundingBox) Values() []float64 {
	return []float64{b[0], b[1], b[2], b[3]}
}

// MarshalJSON encodes the box as its comma-separated string form.
func (b BoundingBox) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// UnmarshalJSON accepts either "x1,y1,x2,y2" or [x1,y1,x2,y2].
func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		box, err := ParseBoundingBox(s)
		if err != nil {
			return err
		}
		*b = box
		return nil
	}

	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("bounding box must be a string or number array: %w", err)
	}
	if len(values) != 4 {
		return fmt.Errorf("bounding box must have 4 values, got %d", len(values))
	}
	copy(b[:], values)
	return nil
}

// CropList is the queue listing along with its totals
type CropList struct {
	Crops        []Crop `json:"crops"`
	TotalCrops   int    `json:"total_crops"`
	TotalLabeled int    `json:"total_labeled"`
}

// Lookup is the result of a similarity lookup for one crop.
type Lookup struct {
	CropURI             string   `json:"crop_s3_uri"`
	CropPresignedURL    string   `json:"crop_presigned_url"`
	IncomingMetadata    Metadata `json:"incoming_crop_metadata"`
	MatchURI            string   `json:"similar_crop_s3_uri"`
	MatchPresignedURL   *string  `json:"similar_crop_presigned_url"`
	MatchMetadata       Metadata `json:"similar_crop_metadata"`
	Score               *float64 `json:"score"`
	IncomingEmbeddingID *string  `json:"embedding_id"`
}

// IncomingRecordID returns the incoming record identifier, or "" when the crop is not in the database.
func (l Lookup) IncomingRecordID() string {
	if l.IncomingEmbeddingID == nil {
		return ""
	}
	return *l.IncomingEmbeddingID
}

// Action selects what happens after the queue write
type Action string

const (
	// ActionAdvance writes the queue record and moves on to the next crop.
	ActionAdvance Action = "next"
	// ActionFinish writes the queue record and ends the labeling session.
	ActionFinish Action = "end"
)

// ParseAction accepts the wire values plus the "advance"/"finish" aliases.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "next", "advance":
		return ActionAdvance, nil
	case "end", "finish":
		return ActionFinish, nil
	default:
		return "", fmt.Errorf("invalid action: %q", s)
	}
}

// QueueUpdate is the authoritative queue record written on commit.
type QueueUpdate struct {
	SourceURI        string    `json:"original_s3_uri"`
	BoundingBox      []float64 `json:"bounding_box"`
	LabelerName      string    `json:"labeler_name"`
	Difficult        bool      `json:"difficult"`
	IncomingMetadata Metadata  `json:"incoming_crop_metadata"`
	MatchMetadata    Metadata  `json:"similar_crop_metadata"`
	EmbeddingID      string    `json:"embedding_id"`
	Action           Action    `json:"action"`
}

// QueueReply is the queue store's answer to a QueueUpdate
type QueueReply struct {
	Message  string `json:"message"`
	Status   string `json:"status,omitempty"`
	NextCrop *Crop  `json:"next_crop,omitempty"`
}

// Provenance tags which source seeded the incoming record.
type Provenance string

const (
	ProvenanceQueue    Provenance = "queue-sourced"
	ProvenanceMatch    Provenance = "copied-from-match"
	ProvenanceDatabase Provenance = "database-sourced"
)

// Label returns the operator-facing text for the provenance tag.
func (p Provenance) Label() string {
	switch p {
	case ProvenanceDatabase:
		return "Metadata from UDO"
	case ProvenanceQueue:
		return "Metadata from CSV"
	case ProvenanceMatch:
		return "Metadata from similar crop"
	default:
		return ""
	}
}
