package review

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/lehigh-university-libraries/labeler/internal/models"
	"github.com/lehigh-university-libraries/labeler/internal/pickpoint"
)

var (
	// ErrNotReady is returned for edits while the session is committing or closed.
	ErrNotReady = errors.New("review session is not accepting edits")
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("review session is closed")
	// ErrCommitInFlight is returned when a commit or database action is
	// requested while another one is still running.
	ErrCommitInFlight = errors.New("a commit or database action is already in progress for this session")
	// ErrReadOnlyField is returned when an edit targets the record identifier.
	ErrReadOnlyField = errors.New("field can only be changed by adding or removing the record")
)

// State is the lifecycle state of a Session
type State int

const (
	StateConstructing State = iota
	StateReady
	StateCommitting
	StatePersisting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConstructing:
		return "constructing"
	case StateReady:
		return "ready"
	case StateCommitting:
		return "committing"
	case StatePersisting:
		return "persisting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Target selects one of the two records under review
type Target string

const (
	TargetIncoming Target = "incoming"
	TargetMatched  Target = "matched"
)

// Targets lists every record a session tracks
var Targets = []Target{TargetIncoming, TargetMatched}

// ParseTarget accepts "incoming" or "matched" ("similar" is an alias for matched).
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "incoming":
		return TargetIncoming, nil
	case "matched", "similar":
		return TargetMatched, nil
	default:
		return "", fmt.Errorf("unknown target %q", s)
	}
}

type trackedRecord struct {
	live     models.Metadata
	baseline Snapshot
	// touched is set by any edit, even one that leaves the value unchanged
	touched bool
}

// Session holds the state of one crop under review. It is safe for
// concurrent use; every method takes the session lock.
type Session struct {
	mu sync.Mutex

	state      State
	crop       models.Crop
	provenance models.Provenance
	seeded     models.Provenance // provenance ignoring the record identifier

	cropURI          string
	cropPresignedURL string
	matchURI         string
	matchPresigned   *string
	score            *float64

	records     map[Target]*trackedRecord
	labelerName string
	difficult   bool
}

// Open builds a session for crop from a similarity lookup and snapshots both records.
func Open(crop models.Crop, lookup models.Lookup) *Session {
	s := &Session{
		state:            StateConstructing,
		crop:             crop,
		cropURI:          lookup.CropURI,
		cropPresignedURL: lookup.CropPresignedURL,
		matchURI:         lookup.MatchURI,
		labelerName:      crop.LabelerName,
		difficult:        crop.Difficult,
	}
	if lookup.MatchPresignedURL != nil {
		u := *lookup.MatchPresignedURL
		s.matchPresigned = &u
	}
	if lookup.Score != nil {
		score := *lookup.Score
		s.score = &score
	}

	incoming, provenance := Resolve(lookup.IncomingMetadata, lookup.MatchMetadata, lookup.IncomingRecordID())
	_, seeded := Resolve(lookup.IncomingMetadata, lookup.MatchMetadata, "")
	matched := lookup.MatchMetadata.Clone()

	s.provenance = provenance
	s.seeded = seeded
	s.records = map[Target]*trackedRecord{
		TargetIncoming: {live: incoming, baseline: NewSnapshot(incoming)},
		TargetMatched:  {live: matched, baseline: NewSnapshot(matched)},
	}
	s.state = StateReady
	return s
}

func (s *Session) editable() error {
	switch s.state {
	case StateReady:
		return nil
	case StateClosed:
		return ErrClosed
	default:
		return ErrNotReady
	}
}

func (s *Session) record(target Target) (*trackedRecord, error) {
	r, ok := s.records[target]
	if !ok {
		return nil, fmt.Errorf("unknown target %q", target)
	}
	return r, nil
}

func (s *Session) mutate(target Target, fn func(m *models.Metadata)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return err
	}
	r, err := s.record(target)
	if err != nil {
		return err
	}
	fn(&r.live)
	r.touched = true
	return nil
}

// EditIncoming replaces one field of the incoming record.
func (s *Session) EditIncoming(field, value string) error {
	return s.Edit(TargetIncoming, field, value)
}

// EditMatched replaces one field of the matched record.
func (s *Session) EditMatched(field, value string) error {
	return s.Edit(TargetMatched, field, value)
}

// Edit replaces one field on the target's live record. Values are not
// validated, but the record identifier cannot be edited.
func (s *Session) Edit(target Target, field, value string) error {
	if field == models.FieldEmbeddingID {
		return fmt.Errorf("%w: %s", ErrReadOnlyField, field)
	}
	return s.mutate(target, func(m *models.Metadata) {
		m.Set(field, value)
	})
}

// SetLabelerName sets the shared labeler name and writes it into every
// live record, so a name change alone counts as an edit on each of them.
func (s *Session) SetLabelerName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return err
	}
	s.labelerName = name
	for _, r := range s.records {
		r.live.LabelerName = name
		r.touched = true
	}
	return nil
}

// SetDifficult updates the difficult flag. It goes straight to the queue
// record on commit and does not make either record dirty.
func (s *Session) SetDifficult(difficult bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return err
	}
	s.difficult = difficult
	return nil
}

// AddPickPoint appends (x, y) to the target's pick points. Out-of-range
// fractions are stored as given.
func (s *Session) AddPickPoint(target Target, x, y float64) error {
	return s.mutate(target, func(m *models.Metadata) {
		m.PickPoint = pickpoint.Append(m.PickPoint, pickpoint.Point{X: x, Y: y})
	})
}

// ClearPickPoints removes every pick point from the target.
func (s *Session) ClearPickPoints(target Target) error {
	return s.mutate(target, func(m *models.Metadata) {
		m.PickPoint = pickpoint.Clear()
	})
}

// IsDirty reports whether the target has been edited since the session
// opened or differs from its snapshot. Reverting an edit keeps it dirty.
func (s *Session) IsDirty(target Target) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isDirty(target)
}

func (s *Session) isDirty(target Target) bool {
	r, ok := s.records[target]
	if !ok {
		return false
	}
	return r.touched || !r.baseline.Matches(r.live)
}

// Close discards the session state. Closing twice is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.close()
}

func (s *Session) close() {
	if s.state == StateClosed {
		return
	}
	s.state = StateClosed
	s.records = nil
	s.labelerName = ""
	s.difficult = false
}

// Record returns a copy of the target's live record.
func (s *Session) Record(target Target) models.Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[target]; ok {
		return r.live.Clone()
	}
	return models.Metadata{}
}

// Incoming returns a copy of the live incoming record.
func (s *Session) Incoming() models.Metadata {
	return s.Record(TargetIncoming)
}

// Matched returns a copy of the live matched record.
func (s *Session) Matched() models.Metadata {
	return s.Record(TargetMatched)
}

// Baseline returns the snapshot taken for target when the session opened.
func (s *Session) Baseline(target Target) models.Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[target]; ok {
		return r.baseline.Record()
	}
	return models.Metadata{}
}

func (s *Session) Crop() models.Crop {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.crop
}

func (s *Session) Provenance() models.Provenance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provenance
}

func (s *Session) LabelerName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.labelerName
}

func (s *Session) Difficult() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.difficult
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CropPresignedURL is the viewable URL of the crop under review
func (s *Session) CropPresignedURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cropPresignedURL
}
