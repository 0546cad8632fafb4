package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/lehigh-university-libraries/labeler/internal/journal"
	"github.com/lehigh-university-libraries/labeler/internal/models"
	"github.com/lehigh-university-libraries/labeler/internal/review"
)

var (
	// ErrAlreadyPersisted is returned by AddToDatabase when the incoming record already has an id.
	ErrAlreadyPersisted = errors.New("incoming record is already in the database")
	// ErrNotPersisted is returned by RemoveFromDatabase when there is no id to delete.
	ErrNotPersisted = errors.New("incoming record is not in the database")
)

// Step names the external call a TransportError came from.
type Step string

const (
	StepLookup         Step = "lookup"
	StepUpdateIncoming Step = "update-incoming"
	StepUpdateMatched  Step = "update-matched"
	StepQueueWrite     Step = "queue-write"
	StepCreate         Step = "create-record"
	StepDelete         Step = "delete-record"
	StepRecordID       Step = "store-record-id"
)

// TransportError wraps a failed call to a collaborator. Nothing local is
// discarded when one is returned, so the same operation can be retried.
type TransportError struct {
	Step Step
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Queue is the labeling queue store.
type Queue interface {
	WriteRecord(ctx context.Context, update models.QueueUpdate) (*models.QueueReply, error)
	SetRecordID(ctx context.Context, crop models.Crop, id string) error
}

// Matcher finds the stored metadata and nearest neighbor for a crop.
type Matcher interface {
	Lookup(ctx context.Context, sourceURI string, box models.BoundingBox) (*models.Lookup, error)
}

// RecordStore holds persistent metadata records keyed by embedding id.
type RecordStore interface {
	Update(ctx context.Context, id string, fields models.Metadata) error
	Create(ctx context.Context, imageURL string, fields models.Metadata) (string, error)
	Delete(ctx context.Context, id string) error
}

// Journal receives one entry per coordinator action.
type Journal interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Outcome describes a finished commit.
type Outcome struct {
	Action  models.Action `json:"action"`
	Message string        `json:"message"`
	// Next is the crop to review after an advance, nil at the end of the queue.
	Next *models.Crop `json:"next_crop,omitempty"`
	// Done is set when no further crop follows, either because the queue
	// is exhausted or because the operator finished.
	Done bool `json:"done"`
}

// Coordinator runs the ordered side effects of a review. It keeps no state
// between calls.
type Coordinator struct {
	queue   Queue
	matcher Matcher
	records RecordStore
	journal Journal
}

// New creates a coordinator. j may be nil.
func New(q Queue, m Matcher, r RecordStore, j Journal) *Coordinator {
	return &Coordinator{
		queue:   q,
		matcher: m,
		records: r,
		journal: j,
	}
}

// Open looks up crop and starts a review session for it.
func (c *Coordinator) Open(ctx context.Context, crop models.Crop) (*review.Session, error) {
	lookup, err := c.matcher.Lookup(ctx, crop.SourceURI, crop.BoundingBox)
	if err != nil {
		return nil, &TransportError{Step: StepLookup, Err: err}
	}

	s := review.Open(crop, *lookup)
	slog.Debug("Opened review session",
		"crop", crop.Key(),
		"provenance", s.Provenance(),
		"embedding_id", lookup.IncomingRecordID())
	return s, nil
}

// Commit pushes the session's edits to the record store, writes the queue
// record, and closes the session. On failure the session is back to ready
// with every edit intact.
func (c *Coordinator) Commit(ctx context.Context, s *review.Session, action models.Action) (*Outcome, error) {
	plan, err := s.BeginCommit()
	if err != nil {
		return nil, err
	}

	outcome, err := c.commit(ctx, plan, action)
	s.EndCommit(err)

	entry := journal.Entry{
		Action:        commitAction(action),
		SourceURI:     plan.Crop.SourceURI,
		BoundingBox:   plan.Crop.BoundingBox.String(),
		LabelerName:   plan.LabelerName,
		EmbeddingID:   plan.Incoming.EmbeddingID,
		IncomingDirty: plan.IncomingDirty,
		MatchedDirty:  plan.MatchedDirty,
	}
	c.record(ctx, entry, err)

	if err != nil {
		slog.Warn("Commit failed", "crop", plan.Crop.Key(), "err", err)
		return nil, err
	}
	slog.Info("Committed crop",
		"crop", plan.Crop.Key(),
		"action", action,
		"incoming_dirty", plan.IncomingDirty,
		"matched_dirty", plan.MatchedDirty,
		"done", outcome.Done)
	return outcome, nil
}

func (c *Coordinator) commit(ctx context.Context, plan review.CommitPlan, action models.Action) (*Outcome, error) {
	// Plain Group rather than WithContext: one failed update must not cancel
	// the other, both settle before the queue write.
	var g errgroup.Group
	for _, target := range review.Targets {
		rec := plan.Record(target)
		if !plan.Dirty(target) || !rec.HasRecord() {
			continue
		}
		fields := rec.Clone()
		fields.LabelerName = plan.LabelerName
		step := StepUpdateIncoming
		if target == review.TargetMatched {
			step = StepUpdateMatched
		}
		g.Go(func() error {
			if err := c.records.Update(ctx, fields.EmbeddingID, fields); err != nil {
				return &TransportError{Step: step, Err: err}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	update := models.QueueUpdate{
		SourceURI:        plan.Crop.SourceURI,
		BoundingBox:      plan.Crop.BoundingBox.Values(),
		LabelerName:      plan.LabelerName,
		Difficult:        plan.Difficult,
		IncomingMetadata: plan.Incoming,
		MatchMetadata:    plan.Matched,
		EmbeddingID:      plan.Incoming.EmbeddingID,
		Action:           action,
	}
	reply, err := c.queue.WriteRecord(ctx, update)
	if err != nil {
		return nil, &TransportError{Step: StepQueueWrite, Err: err}
	}

	outcome := &Outcome{Action: action, Message: reply.Message}
	if action == models.ActionAdvance && reply.NextCrop != nil {
		next := *reply.NextCrop
		outcome.Next = &next
	} else {
		outcome.Done = true
	}
	return outcome, nil
}

// Advance commits s and, when the queue hands back another crop, opens a
// session for it. The returned session is nil when the review is over.
//
// If the commit succeeds but the next crop cannot be opened, the outcome is
// still returned alongside the error so the caller can retry Open on
// outcome.Next.
func (c *Coordinator) Advance(ctx context.Context, s *review.Session, action models.Action) (*review.Session, *Outcome, error) {
	outcome, err := c.Commit(ctx, s, action)
	if err != nil {
		return nil, nil, err
	}
	if outcome.Next == nil {
		return nil, outcome, nil
	}

	next, err := c.Open(ctx, *outcome.Next)
	if err != nil {
		return nil, outcome, err
	}
	return next, outcome, nil
}

// AddToDatabase creates a record store entry from the incoming record and
// writes the new id to the live record and the queue row. It is an operator
// action independent of Commit.
func (c *Coordinator) AddToDatabase(ctx context.Context, s *review.Session) (string, error) {
	if err := s.BeginPersist(); err != nil {
		return "", err
	}
	defer s.EndPersist()

	incoming := s.Incoming()
	if incoming.HasRecord() {
		return "", ErrAlreadyPersisted
	}

	crop := s.Crop()
	fields := incoming.Clone()
	fields.LabelerName = s.LabelerName()
	fields.Comment = ""

	entry := journal.Entry{
		Action:      journal.ActionAdd,
		SourceURI:   crop.SourceURI,
		BoundingBox: crop.BoundingBox.String(),
		LabelerName: fields.LabelerName,
	}

	id, err := c.records.Create(ctx, s.CropPresignedURL(), fields)
	if err != nil {
		err = &TransportError{Step: StepCreate, Err: err}
		c.record(ctx, entry, err)
		return "", err
	}
	entry.EmbeddingID = id

	// the record now exists in the store, so the queue row gets its id
	// even if the session was closed while Create ran
	attachErr := s.AttachRecord(id)
	if err := c.queue.SetRecordID(ctx, crop, id); err != nil {
		err = &TransportError{Step: StepRecordID, Err: err}
		c.record(ctx, entry, err)
		return id, err
	}
	if attachErr != nil {
		c.record(ctx, entry, attachErr)
		return id, attachErr
	}

	c.record(ctx, entry, nil)
	slog.Info("Added crop to database", "crop", crop.Key(), "embedding_id", id)
	return id, nil
}

// RemoveFromDatabase deletes the incoming record from the record store and
// clears its id on the live record and the queue row.
func (c *Coordinator) RemoveFromDatabase(ctx context.Context, s *review.Session) error {
	if err := s.BeginPersist(); err != nil {
		return err
	}
	defer s.EndPersist()

	id := s.Incoming().EmbeddingID
	if id == "" {
		return ErrNotPersisted
	}

	crop := s.Crop()
	entry := journal.Entry{
		Action:      journal.ActionRemove,
		SourceURI:   crop.SourceURI,
		BoundingBox: crop.BoundingBox.String(),
		LabelerName: s.LabelerName(),
		EmbeddingID: id,
	}

	if err := c.records.Delete(ctx, id); err != nil {
		err = &TransportError{Step: StepDelete, Err: err}
		c.record(ctx, entry, err)
		return err
	}
	detachErr := s.DetachRecord()
	if err := c.queue.SetRecordID(ctx, crop, ""); err != nil {
		err = &TransportError{Step: StepRecordID, Err: err}
		c.record(ctx, entry, err)
		return err
	}
	if detachErr != nil {
		c.record(ctx, entry, detachErr)
		return detachErr
	}

	c.record(ctx, entry, nil)
	slog.Info("Removed crop from database", "crop", crop.Key(), "embedding_id", id)
	return nil
}

func (c *Coordinator) record(ctx context.Context, e journal.Entry, err error) {
	if c.journal == nil {
		return
	}
	e.Outcome = journal.OutcomeOK
	if err != nil {
		e.Outcome = journal.OutcomeError
		e.Error = err.Error()
	}
	// a journal failure never fails the action it describes
	if jerr := c.journal.Record(context.WithoutCancel(ctx), e); jerr != nil {
		slog.Warn("Unable to write journal entry", "action", e.Action, "err", jerr)
	}
}

func commitAction(action models.Action) journal.Action {
	if action == models.ActionFinish {
		return journal.ActionCommitFinish
	}
	return journal.ActionCommitAdvance
}
