// Package models defines server-side data models persisted in PostgreSQL.
package models

import (
	"encoding/json"
	"time"
)

type Collection string

const (
	CollectionGuardians Collection = "guardians"
	CollectionPatients  Collection = "patients"
	CollectionFAQs      Collection = "faqs"
)

// IDField names the body field holding the entity id.
func (c Collection) IDField() string {
	if c == CollectionFAQs {
		return "faq_id"
	}
	return "id"
}

// Record is one stored entity. Fields is the JSON body keyed by top-level
// field name; the body also mirrors id, version and updatedAt.
type Record struct {
	ID         string
	GuardianID string
	Version    int64
	UpdatedAt  time.Time
	Fields     map[string]json.RawMessage
}

// Stamp writes the envelope values back into the body of a record of c.
func (r *Record) Stamp(c Collection) error {
	if r.Fields == nil {
		r.Fields = map[string]json.RawMessage{}
	}
	for k, v := range map[string]any{c.IDField(): r.ID, "version": r.Version, "updatedAt": r.UpdatedAt} {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		r.Fields[k] = b
	}
	return nil
}
