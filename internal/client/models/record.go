// Package models defines the client-side domain model: cached entities
// (guardians, patients, FAQs), the record envelope they are stored in,
// and the items of the mutation queue.
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Collection names a local collection of cached entities.
type Collection string

const (
	CollectionGuardians Collection = "guardians"
	CollectionPatients  Collection = "patients"
	CollectionFAQs      Collection = "faqs"
)

// Collections lists every entity collection known to the client.
var Collections = []Collection{CollectionGuardians, CollectionPatients, CollectionFAQs}

var (
	ErrUnknownCollection = errors.New("unknown collection")
	ErrEmptyKey          = errors.New("record key is empty")
)

// Valid reports whether c is one of the known collections.
func (c Collection) Valid() bool {
	for _, k := range Collections {
		if c == k {
			return true
		}
	}
	return false
}

// Record is the envelope every cached entity is stored in.
// Fields hold the top-level JSON attributes of the entity; field-level merge
// works on these keys.
type Record struct {
	// Key is the entity identifier within its collection.
	Key string

	// Version is the server-assigned version used by the freshness rule.
	Version int64

	// UpdatedAt is the server-side modification time in UTC.
	UpdatedAt time.Time

	// Fields maps top-level attribute names to their raw JSON values.
	Fields map[string]json.RawMessage
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	out := Record{Key: r.Key, Version: r.Version, UpdatedAt: r.UpdatedAt}
	if r.Fields != nil {
		out.Fields = make(map[string]json.RawMessage, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// FieldNames returns the sorted attribute names of r.
func (r Record) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Equal reports whether a and b carry the same key, version and field values.
func (r Record) Equal(o Record) bool {
	if r.Key != o.Key || r.Version != o.Version || len(r.Fields) != len(o.Fields) {
		return false
	}
	for k, v := range r.Fields {
		ov, ok := o.Fields[k]
		if !ok || !JSONEqual(v, ov) {
			return false
		}
	}
	return true
}

// Body encodes the fields as a JSON object.
func (r Record) Body() ([]byte, error) {
	if r.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Fields)
}

// Decode unmarshals the record fields into v.
func (r Record) Decode(v any) error {
	body, err := r.Body()
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

// ParseBody decodes a JSON object into a field map.
func ParseBody(body []byte) (map[string]json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(body) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("decode record body: %w", err)
	}
	return fields, nil
}

// JSONEqual reports whether two JSON values are equal ignoring insignificant whitespace.
func JSONEqual(a, b json.RawMessage) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return false
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}
