package constraintmonitor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/payloadregistry"
)

// EditEvent is consumed from the edit stream. It carries one revision
// transition of one entity, with the author and tags needed to group
// same-session edits into a burst.
type EditEvent struct {
	EntityID      string    `json:"entity_id"`
	OldRevisionID int64     `json:"old_revision_id"`
	NewRevisionID int64     `json:"new_revision_id"`
	Author        string    `json:"author,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Tags          []string  `json:"tags,omitempty"`
}

// Schema implements message.Payload.
func (p *EditEvent) Schema() message.Type {
	return EditEventType
}

// Validate implements message.Payload.
func (p *EditEvent) Validate() error {
	if p.EntityID == "" {
		return fmt.Errorf("entity_id is required")
	}
	if p.NewRevisionID == 0 {
		return fmt.Errorf("new_revision_id is required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *EditEvent) MarshalJSON() ([]byte, error) {
	type Alias EditEvent
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *EditEvent) UnmarshalJSON(data []byte) error {
	type Alias EditEvent
	return json.Unmarshal(data, (*Alias)(p))
}

// ConstraintResult is one constraint's outcome inside a report.
type ConstraintResult struct {
	ConstraintID string `json:"constraint_id"`
	Property     string `json:"property"`
	Kind         string `json:"kind"`
	Status       string `json:"status,omitempty"`
	Verdict      string `json:"verdict"`
	Transition   string `json:"transition,omitempty"`
	Error        string `json:"error,omitempty"`
}

// ViolationReport is published after a burst is evaluated. It enumerates
// every constraint that was checked for the collapsed revision span, so
// consumers can distinguish "checked and passed" from "not checked".
type ViolationReport struct {
	ReportID      string             `json:"report_id"`
	EntityID      string             `json:"entity_id"`
	BaseRevision  int64              `json:"base_revision"`
	NewRevision   int64              `json:"new_revision"`
	Edits         int                `json:"edits"`
	Results       []ConstraintResult `json:"results"`
	NewlyViolated int                `json:"newly_violated"`
	CheckedAt     time.Time          `json:"checked_at"`
}

// Schema implements message.Payload.
func (p *ViolationReport) Schema() message.Type {
	return ViolationReportType
}

// Validate implements message.Payload.
func (p *ViolationReport) Validate() error {
	if p.EntityID == "" {
		return fmt.Errorf("entity_id is required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *ViolationReport) MarshalJSON() ([]byte, error) {
	type Alias ViolationReport
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *ViolationReport) UnmarshalJSON(data []byte) error {
	type Alias ViolationReport
	return json.Unmarshal(data, (*Alias)(p))
}

// EditEventType is the message type for edit stream events.
var EditEventType = message.Type{
	Domain:   "claimwatch",
	Category: "edit-event",
	Version:  "v1",
}

// ViolationReportType is the message type for evaluation reports.
var ViolationReportType = message.Type{
	Domain:   "claimwatch",
	Category: "violation-report",
	Version:  "v1",
}

// RegisterPayloads registers the claimwatch payload types with the
// supplied registry.
func RegisterPayloads(reg *payloadregistry.Registry) error {
	if err := reg.Register(&payloadregistry.Registration{
		Domain:      "claimwatch",
		Category:    "edit-event",
		Version:     "v1",
		Description: "Edit stream event: one revision transition of one entity",
		Factory:     func() any { return &EditEvent{} },
	}); err != nil {
		return fmt.Errorf("failed to register EditEvent: %w", err)
	}

	if err := reg.Register(&payloadregistry.Registration{
		Domain:      "claimwatch",
		Category:    "violation-report",
		Version:     "v1",
		Description: "Constraint evaluation report for a collapsed burst of edits",
		Factory:     func() any { return &ViolationReport{} },
	}); err != nil {
		return fmt.Errorf("failed to register ViolationReport: %w", err)
	}
	return nil
}
