// Command migrate applies the embedded SQL migrations.
//
//	migrate up | down | status | redo | version | up-to VERSION
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/fos7a/institute-api/migrations"
	"github.com/fos7a/institute-api/pkg/config"
	"github.com/fos7a/institute-api/pkg/database"
	"github.com/fos7a/institute-api/pkg/logger"
)

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		args = []string{"up"}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if err := database.Migrate(db.DB, migrations.FS, args[0], args[1:]...); err != nil {
		logr.Fatal("migration failed", zap.String("command", args[0]), zap.Error(err))
	}
	logr.Info("migration finished", zap.String("command", args[0]))
}
