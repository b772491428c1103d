package repomanager

import (
	"context"
	"database/sql"

	"github.com/DariusIMP/publish3-backend/internal/dbx"
	"github.com/DariusIMP/publish3-backend/internal/server/repositories/citations"
	"github.com/DariusIMP/publish3-backend/internal/server/repositories/publicationauthors"
	"github.com/DariusIMP/publish3-backend/internal/server/repositories/publications"
	"github.com/DariusIMP/publish3-backend/internal/server/repositories/wallets"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Publications(db dbx.DBTX) publications.Repository
	PublicationAuthors(db dbx.DBTX) publicationauthors.Repository
	Citations(db dbx.DBTX) citations.Repository
	Wallets(db dbx.DBTX) wallets.Repository
}
