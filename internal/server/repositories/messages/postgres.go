package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vaxsync/internal/common"
	"github.com/dmitrijs2005/vaxsync/internal/dbx"
	"github.com/dmitrijs2005/vaxsync/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, msg *models.Message) (bool, error) {
	query :=
		`INSERT INTO messages (id, server_id, conversation_id, guardian_id, body, composed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING
		 RETURNING delivered_at`

	err := r.db.QueryRowContext(ctx, query,
		msg.ID, msg.ServerID, msg.ConversationID, msg.GuardianID, msg.Body, msg.ComposedAt).Scan(&msg.DeliveredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	msg.DeliveredAt = msg.DeliveredAt.UTC()
	return true, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Message, error) {
	query :=
		`SELECT id, server_id, conversation_id, guardian_id, body, composed_at, delivered_at
		 FROM messages WHERE id = $1`

	m := &models.Message{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&m.ID, &m.ServerID, &m.ConversationID, &m.GuardianID, &m.Body, &m.ComposedAt, &m.DeliveredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	m.ComposedAt = m.ComposedAt.UTC()
	m.DeliveredAt = m.DeliveredAt.UTC()
	return m, nil
}
