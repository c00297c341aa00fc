package migrate

import (
	"database/sql"
	"embed"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/RaikyD/krusty-orders-service/internal/logger"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

func Up(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	// path is relative to the embed FS
	if err := goose.Up(db, "migrations"); err != nil {
		return err
	}

	v, err := goose.GetDBVersion(db)
	if err != nil {
		return err
	}
	logger.Info("schema migrated", "version", v)
	return nil
}
