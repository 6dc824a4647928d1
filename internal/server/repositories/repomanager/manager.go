package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/boardsync/internal/dbx"
	"github.com/dmitrijs2005/boardsync/internal/server/repositories/assets"
	"github.com/dmitrijs2005/boardsync/internal/server/repositories/entities"
	"github.com/dmitrijs2005/boardsync/internal/server/repositories/snapshots"
	"github.com/dmitrijs2005/boardsync/internal/server/repositories/tombstones"
)

// RepositoryManager builds repositories over a DBTX, so a service can run a
// group of writes inside one transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Entities(db dbx.DBTX) entities.Repository
	Tombstones(db dbx.DBTX) tombstones.Repository
	Snapshots(db dbx.DBTX) snapshots.Repository
	Assets(db dbx.DBTX) assets.Repository
}
