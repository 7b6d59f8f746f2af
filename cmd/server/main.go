package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/festahub/backoffice/internal/auth"
	"github.com/festahub/backoffice/internal/config"
	"github.com/festahub/backoffice/internal/db"
	"github.com/festahub/backoffice/internal/logger"
	"github.com/festahub/backoffice/internal/server"
)

var migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")

func main() {
	flag.Parse()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("configuração inválida", "error", err)
	}

	conn, err := db.Connect(cfg.PostgresDSN())
	if err != nil {
		logger.Fatal("conexão com o banco falhou", "error", err)
	}

	if *migrateOnlyFlag {
		if err := db.Migrate(conn); err != nil {
			logger.Fatal("migração falhou", "error", err)
		}
		logger.Info("migrações aplicadas, encerrando")
		return
	}

	if cfg.AutoMigrate {
		if err := db.Migrate(conn); err != nil {
			logger.Fatal("migração falhou", "error", err)
		}
	} else if err := db.VerifySchema(conn); err != nil {
		// Refuse to serve against a half-migrated schema.
		logger.Fatal("esquema do banco incompleto", "error", err)
	}

	if os.Getenv("DB_SEED") == "true" {
		if err := db.SeedDev(conn); err != nil {
			logger.Fatal("seed falhou", "error", err)
		}
		logger.Info("seed de desenvolvimento aplicado")
	}

	sessions, err := auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		logger.Fatal("sessões não configuradas", "error", err)
	}

	handler := server.New(cfg, conn, sessions)
	srv := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("servidor iniciado", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("erro no servidor", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("sinal de desligamento recebido")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("erro no desligamento", "error", err)
	}
	logger.Info("servidor encerrado")
}
