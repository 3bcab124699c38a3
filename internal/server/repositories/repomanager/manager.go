package repomanager

import (
	"context"
	"database/sql"

	"github.com/boleyla/panel/internal/dbx"
	"github.com/boleyla/panel/internal/server/repositories/accounts"
	"github.com/boleyla/panel/internal/server/repositories/auditlogs"
	"github.com/boleyla/panel/internal/server/repositories/history"
	"github.com/boleyla/panel/internal/server/repositories/profiles"
	"github.com/boleyla/panel/internal/server/repositories/traffic"
)

// RepositoryManager vends repositories bound to a handle, so the same code
// path works on *sql.DB and inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Traffic(db dbx.DBTX) traffic.Repository
	History(db dbx.DBTX) history.Repository
	Profiles(db dbx.DBTX) profiles.Repository
	AuditLogs(db dbx.DBTX) auditlogs.Repository
}
