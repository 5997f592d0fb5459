// Package conflict merges freshly pulled records with profile edits that are
// still waiting in the queue. Edits act as stronger layers over the pulled
// record: every top-level field an edit touches keeps the edit's value and
// all other fields come from the pull. Later edits win over earlier ones.
//
// When both the edit value and the value underneath are JSON objects, the
// edit's keys are written over the existing object one level deep, the same
// way the remote authority applies a patch. Any other value is replaced.
package conflict

import (
	"encoding/json"
	"sort"

	"github.com/dmitrijs2005/vaxsync/internal/client/models"
)

// Result is the outcome of a merge.
type Result struct {
	Record models.Record

	// Shielded lists the fields kept from pending edits, sorted.
	Shielded []string

	// Conflicts lists shielded fields whose pulled value differed from the
	// edit. They are resolved in favour of the edit and only reported.
	Conflicts []string
}

// Merge layers edits, oldest first, over pulled. Version and UpdatedAt always
// come from pulled so the freshness rule keeps tracking the server.
func Merge(pulled models.Record, edits []models.QueuedProfileEdit) Result {
	merged := pulled.Clone()
	if merged.Fields == nil {
		merged.Fields = map[string]json.RawMessage{}
	}

	shielded := map[string]struct{}{}
	for _, e := range edits {
		for field, value := range e.Edit.Changes {
			merged.Fields[field] = overlay(merged.Fields[field], value)
			shielded[field] = struct{}{}
		}
	}

	res := Result{Record: merged}
	for field := range shielded {
		res.Shielded = append(res.Shielded, field)
		if theirs, ok := pulled.Fields[field]; ok && !models.JSONEqual(theirs, merged.Fields[field]) {
			res.Conflicts = append(res.Conflicts, field)
		}
	}
	sort.Strings(res.Shielded)
	sort.Strings(res.Conflicts)
	return res
}

// Apply returns base with changes written over its fields.
func Apply(base models.Record, changes map[string]json.RawMessage) models.Record {
	out := base.Clone()
	if out.Fields == nil {
		out.Fields = make(map[string]json.RawMessage, len(changes))
	}
	for field, value := range changes {
		out.Fields[field] = overlay(out.Fields[field], value)
	}
	return out
}

func overlay(current, patch json.RawMessage) json.RawMessage {
	var base, changes map[string]json.RawMessage
	if json.Unmarshal(current, &base) != nil || base == nil ||
		json.Unmarshal(patch, &changes) != nil || changes == nil {
		return append(json.RawMessage(nil), patch...)
	}
	for k, v := range changes {
		base[k] = v
	}
	out, err := json.Marshal(base)
	if err != nil {
		return append(json.RawMessage(nil), patch...)
	}
	return out
}
