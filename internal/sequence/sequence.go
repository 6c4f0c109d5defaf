// Package sequence stages saved contacts into an outreach sequence in the
// contact directory. It never starts a campaign: sending remains a manual
// action in the directory UI.
package sequence

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Anudeepreddynarala/email-recruiters/internal/model"
	"github.com/Anudeepreddynarala/email-recruiters/pkg/apollo"
)

// Params configures one batch add.
type Params struct {
	SequenceID     string
	SequenceName   string
	Contacts       []model.Contact
	EmailAccountID string

	// Optional per-contact personalization written to a custom field
	// before the add. Failures are counted, not fatal.
	PersonalizationField string
	PersonalizationValue string
}

// Exclusion records a contact left out of the batch and why.
type Exclusion struct {
	Name   string
	Reason string
}

// Report summarizes a batch add. Excluded contacts never block the rest of
// the batch.
type Report struct {
	SequenceID     string
	SequenceName   string
	Added          int
	Excluded       []Exclusion
	FieldAttempted int
	FieldUpdated   int
}

// Orchestrator adds contacts to directory sequences.
type Orchestrator struct {
	client apollo.Client
}

// New creates an Orchestrator.
func New(client apollo.Client) *Orchestrator {
	return &Orchestrator{client: client}
}

// AddBatch resolves each contact's directory ID, optionally writes the
// personalization field, and stages the batch into the sequence with a
// single add call. A contact with no directory ID is reported in
// Report.Excluded. With nothing resolvable, no API call is made at all.
func (o *Orchestrator) AddBatch(ctx context.Context, p Params) (*Report, error) {
	sequenceID := p.SequenceID
	sequenceName := p.SequenceName
	if sequenceID == "" {
		if sequenceName == "" {
			return nil, eris.New("sequence: no sequence id or name given")
		}
		seq, err := o.client.FindSequenceByName(ctx, sequenceName)
		if err != nil {
			return nil, eris.Wrapf(err, "sequence: resolve %q", sequenceName)
		}
		if seq == nil {
			return nil, eris.Errorf("sequence: no sequence named %q (run 'sequences list' to see available sequences)", sequenceName)
		}
		sequenceID = seq.ID
		sequenceName = seq.Name
	}

	report := &Report{SequenceID: sequenceID, SequenceName: sequenceName}

	// Resolve the personalization field once for the whole batch.
	var field *apollo.CustomField
	if p.PersonalizationField != "" && p.PersonalizationValue != "" {
		var err error
		field, err = o.client.FindCustomFieldByName(ctx, p.PersonalizationField)
		if err != nil {
			zap.L().Warn("sequence: custom field lookup failed",
				zap.String("field", p.PersonalizationField),
				zap.Error(err),
			)
		} else if field == nil {
			zap.L().Warn("sequence: custom field not defined",
				zap.String("field", p.PersonalizationField),
			)
		}
	}

	var ids []string
	for _, c := range p.Contacts {
		id := c.ExternalID()
		if id == "" {
			report.Excluded = append(report.Excluded, Exclusion{Name: c.Name, Reason: "no external id"})
			continue
		}
		ids = append(ids, id)

		if field != nil {
			o.personalize(ctx, report, id, c.Name, field.ID, p.PersonalizationValue)
		}
	}

	if len(ids) == 0 {
		zap.L().Warn("sequence: nothing to add",
			zap.String("sequence", sequenceName),
			zap.Int("excluded", len(report.Excluded)),
		)
		return report, nil
	}

	err := o.client.AddContactsToSequence(ctx, apollo.AddToSequenceRequest{
		SequenceID:     sequenceID,
		ContactIDs:     ids,
		EmailAccountID: p.EmailAccountID,
	})
	if err != nil {
		return report, eris.Wrapf(err, "sequence: add %d contacts to %q", len(ids), sequenceName)
	}

	report.Added = len(ids)
	zap.L().Info("sequence: batch staged",
		zap.String("sequence", sequenceName),
		zap.Int("added", report.Added),
		zap.Int("excluded", len(report.Excluded)),
	)
	return report, nil
}

// personalize writes the custom field on one contact. A failed update is
// logged and counted, never fatal.
func (o *Orchestrator) personalize(ctx context.Context, report *Report, contactID, name, fieldID, value string) {
	report.FieldAttempted++

	if err := o.client.UpdateContactCustomField(ctx, contactID, fieldID, value); err != nil {
		zap.L().Warn("sequence: custom field update failed",
			zap.String("contact", name),
			zap.Error(err),
		)
		return
	}
	report.FieldUpdated++
}
