package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/vaxsync/internal/dbx"
	"github.com/dmitrijs2005/vaxsync/internal/server/repositories/messages"
	"github.com/dmitrijs2005/vaxsync/internal/server/repositories/records"
)

// RepositoryManager vends repositories bound to a DB handle or transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Records(db dbx.DBTX) records.Repository
	Messages(db dbx.DBTX) messages.Repository
}
