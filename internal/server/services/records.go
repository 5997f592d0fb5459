// Package services contains server-side business logic. RecordService
// serves guardian-scoped reads and applies queued client mutations
// exactly once per queue id.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrijs2005/vaxsync/internal/common"
	"github.com/dmitrijs2005/vaxsync/internal/dbx"
	"github.com/dmitrijs2005/vaxsync/internal/logging"
	"github.com/dmitrijs2005/vaxsync/internal/server/idempotency"
	"github.com/dmitrijs2005/vaxsync/internal/server/models"
	"github.com/dmitrijs2005/vaxsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vaxsync/internal/timex"
	"github.com/google/uuid"
)

// Idempotency scopes.
const (
	scopeMessages     = "messages"
	scopeProfileEdits = "profile_edits"
)

// GuardianIndex is the only queryable index field.
const GuardianIndex = "guardianId"

// editable lists, per collection, the nested fields a guardian may patch and
// the keys allowed inside each of them.
var editable = map[models.Collection]map[string][]string{
	models.CollectionGuardians: {
		"profile": {"firstName", "lastName", "phone", "email", "address", "relationship"},
	},
	models.CollectionPatients: {
		"details": {"firstName", "lastName", "sex", "dateOfBirth", "barangay"},
	},
}

// ProfileEdit is a field-level patch of one entity.
type ProfileEdit struct {
	Collection models.Collection
	EntityID   string
	Changes    map[string]json.RawMessage
}

type RecordService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	keys        idempotency.Store
	clock       timex.Clock
	logger      logging.Logger
}

func NewRecordService(db *sql.DB, m repomanager.RepositoryManager, keys idempotency.Store, clock timex.Clock, l logging.Logger) *RecordService {
	return &RecordService{
		db:          db,
		repomanager: m,
		keys:        keys,
		clock:       clock,
		logger:      l.With("module", "record_service"),
	}
}

func visible(c models.Collection, rec *models.Record, guardianID string) bool {
	return c == models.CollectionFAQs || rec.GuardianID == guardianID
}

// Fetch returns one record. Records owned by another guardian are reported
// as common.ErrorNotFound.
func (s *RecordService) Fetch(ctx context.Context, guardianID string, c models.Collection, id string) (*models.Record, error) {
	rec, err := s.repomanager.Records(s.db).Get(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if !visible(c, rec, guardianID) {
		return nil, common.ErrorNotFound
	}
	return rec, nil
}

// List returns every record of c visible to guardianID.
func (s *RecordService) List(ctx context.Context, guardianID string, c models.Collection) ([]models.Record, error) {
	repo := s.repomanager.Records(s.db)
	if c == models.CollectionFAQs {
		return repo.List(ctx, c)
	}
	return repo.ListByGuardian(ctx, c, guardianID)
}

// Query returns the records of c whose index field equals value. Only the
// guardian index is supported, and only for the caller's own id.
func (s *RecordService) Query(ctx context.Context, guardianID string, c models.Collection, field, value string) ([]models.Record, error) {
	if field != GuardianIndex {
		return nil, fmt.Errorf("%w: %q", common.ErrorUnknownField, field)
	}
	if value != guardianID {
		return []models.Record{}, nil
	}
	return s.repomanager.Records(s.db).ListByGuardian(ctx, c, value)
}

// claim reports whether id is new in scope. A failing idempotency store is
// logged and treated as a first claim; the database constraints still hold.
func (s *RecordService) claim(ctx context.Context, scope, id string) (first, claimed bool) {
	ok, err := s.keys.Claim(ctx, scope, id)
	if err != nil {
		s.logger.Warn(ctx, "idempotency store unavailable", "scope", scope, "id", id, "error", err)
		return true, false
	}
	return ok, ok
}

func (s *RecordService) release(ctx context.Context, scope, id string) {
	if err := s.keys.Release(ctx, scope, id); err != nil {
		s.logger.Warn(ctx, "failed to release idempotency key", "scope", scope, "id", id, "error", err)
	}
}

// SubmitMessage stores msg under the client queue id. A redelivery returns
// the stored message with duplicate set.
func (s *RecordService) SubmitMessage(ctx context.Context, guardianID, id string, msg models.Message) (*models.Message, bool, error) {
	msg.Body = strings.TrimSpace(msg.Body)
	switch {
	case id == "":
		return nil, false, fmt.Errorf("%w: empty message id", common.ErrorIncorrectMetadata)
	case msg.Body == "":
		return nil, false, fmt.Errorf("%w: empty message body", common.ErrorIncorrectMetadata)
	case msg.ConversationID == "":
		return nil, false, fmt.Errorf("%w: empty conversation id", common.ErrorIncorrectMetadata)
	case msg.GuardianID != "" && msg.GuardianID != guardianID:
		return nil, false, fmt.Errorf("%w: sender does not match token", common.ErrorIncorrectMetadata)
	}
	msg.GuardianID = guardianID

	repo := s.repomanager.Messages(s.db)

	first, claimed := s.claim(ctx, scopeMessages, id)
	if !first {
		existing, err := repo.Get(ctx, id)
		if err == nil {
			return existing, true, nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, false, err
		}
		// claimed earlier but never stored
	}

	msg.ID = id
	msg.ServerID = uuid.NewString()

	inserted, err := repo.Insert(ctx, &msg)
	if err != nil {
		if claimed {
			s.release(ctx, scopeMessages, id)
		}
		return nil, false, err
	}
	if !inserted {
		existing, err := repo.Get(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return existing, true, nil
	}

	s.logger.Info(ctx, "message accepted", "id", id, "conversation", msg.ConversationID)
	return &msg, false, nil
}

func validateEdit(edit ProfileEdit) error {
	allowed, ok := editable[edit.Collection]
	if !ok {
		return fmt.Errorf("%w: collection %q is not editable", common.ErrorIncorrectMetadata, edit.Collection)
	}
	if edit.EntityID == "" {
		return fmt.Errorf("%w: empty entity id", common.ErrorIncorrectMetadata)
	}
	if len(edit.Changes) == 0 {
		return fmt.Errorf("%w: no changes", common.ErrorIncorrectMetadata)
	}
	for field, raw := range edit.Changes {
		keys, ok := allowed[field]
		if !ok {
			return fmt.Errorf("%w: %q", common.ErrorUnknownField, field)
		}
		var patch map[string]json.RawMessage
		if err := json.Unmarshal(raw, &patch); err != nil || patch == nil {
			return fmt.Errorf("%w: %q must be an object", common.ErrorIncorrectMetadata, field)
		}
		for k := range patch {
			if !slices.Contains(keys, k) {
				return fmt.Errorf("%w: %q", common.ErrorUnknownField, field+"."+k)
			}
		}
	}
	return nil
}

func mergeField(current, patch json.RawMessage) (json.RawMessage, error) {
	merged := map[string]json.RawMessage{}
	if len(current) > 0 {
		// a non-object current value is replaced
		_ = json.Unmarshal(current, &merged)
		if merged == nil {
			merged = map[string]json.RawMessage{}
		}
	}
	var changes map[string]json.RawMessage
	if err := json.Unmarshal(patch, &changes); err != nil {
		return nil, err
	}
	for k, v := range changes {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// ApplyProfileEdit patches the entity and bumps its version. Fields not
// named in the edit are left untouched. A redelivered edit id returns the
// current record without applying it again.
func (s *RecordService) ApplyProfileEdit(ctx context.Context, guardianID, id string, edit ProfileEdit) (*models.Record, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty edit id", common.ErrorIncorrectMetadata)
	}
	if err := validateEdit(edit); err != nil {
		return nil, err
	}

	first, claimed := s.claim(ctx, scopeProfileEdits, id)
	if !first {
		s.logger.Debug(ctx, "duplicate profile edit", "id", id)
		return s.Fetch(ctx, guardianID, edit.Collection, edit.EntityID)
	}

	out, err := dbx.InTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.Record, error) {
		repo := s.repomanager.Records(tx)

		rec, err := repo.Get(ctx, edit.Collection, edit.EntityID)
		if err != nil {
			return nil, err
		}
		if rec.GuardianID != guardianID {
			return nil, common.ErrorNotFound
		}
		if rec.Fields == nil {
			rec.Fields = map[string]json.RawMessage{}
		}

		for field, patch := range edit.Changes {
			merged, err := mergeField(rec.Fields[field], patch)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", common.ErrorIncorrectMetadata, err)
			}
			rec.Fields[field] = merged
		}

		expected := rec.Version
		rec.Version = expected + 1
		rec.UpdatedAt = s.clock.Now().UTC()
		if err := rec.Stamp(edit.Collection); err != nil {
			return nil, err
		}
		if err := repo.Update(ctx, edit.Collection, rec, expected); err != nil {
			return nil, err
		}
		return rec, nil
	})
	if err != nil {
		if claimed {
			s.release(ctx, scopeProfileEdits, id)
		}
		return nil, err
	}

	s.logger.Info(ctx, "profile edit applied", "id", id, "collection", edit.Collection, "entity", edit.EntityID, "version", out.Version)
	return out, nil
}

// Seed upserts entity bodies as given, in one transaction. A missing version
// defaults to 1 and a missing updatedAt to now.
func (s *RecordService) Seed(ctx context.Context, c models.Collection, bodies []map[string]json.RawMessage) (int, error) {
	recs := make([]*models.Record, 0, len(bodies))
	for i, body := range bodies {
		rec, err := recordFromBody(c, body, s.clock)
		if err != nil {
			return 0, fmt.Errorf("%s[%d]: %w", c, i, err)
		}
		recs = append(recs, rec)
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Records(tx)
		for _, rec := range recs {
			if err := repo.Put(ctx, c, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

func recordFromBody(c models.Collection, body map[string]json.RawMessage, clock timex.Clock) (*models.Record, error) {
	rec := &models.Record{Fields: body, Version: 1, UpdatedAt: clock.Now().UTC()}

	if err := json.Unmarshal(body[c.IDField()], &rec.ID); err != nil || rec.ID == "" {
		return nil, fmt.Errorf("%w: missing %s", common.ErrorIncorrectMetadata, c.IDField())
	}
	if raw, ok := body["version"]; ok {
		if err := json.Unmarshal(raw, &rec.Version); err != nil {
			return nil, fmt.Errorf("%w: version: %v", common.ErrorIncorrectMetadata, err)
		}
	}
	if raw, ok := body["updatedAt"]; ok {
		if err := json.Unmarshal(raw, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: updatedAt: %v", common.ErrorIncorrectMetadata, err)
		}
		rec.UpdatedAt = rec.UpdatedAt.UTC()
	}
	switch c {
	case models.CollectionGuardians:
		rec.GuardianID = rec.ID
	case models.CollectionPatients:
		if err := json.Unmarshal(body[GuardianIndex], &rec.GuardianID); err != nil || rec.GuardianID == "" {
			return nil, fmt.Errorf("%w: missing %s", common.ErrorIncorrectMetadata, GuardianIndex)
		}
	}
	if err := rec.Stamp(c); err != nil {
		return nil, err
	}
	return rec, nil
}
