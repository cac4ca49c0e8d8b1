// Copyright (C) 2025 Digital Defiance
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Command eecp-relay wires the core packages (config, relay, cleanup,
// keystore, the wstransport adapter) into a runnable process. It is
// deliberately not a CLI: no subcommands, no flag framework. A real
// deployment is expected to front this with its own operational tooling;
// this binary exists so the core has somewhere to run.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/digital-defiance/eecp/cleanup"
	"github.com/digital-defiance/eecp/config"
	"github.com/digital-defiance/eecp/crypto/keystore"
	"github.com/digital-defiance/eecp/crypto/ledger"
	"github.com/digital-defiance/eecp/internal/logger"
	"github.com/digital-defiance/eecp/relay"
	"github.com/digital-defiance/eecp/transport/wstransport"
	"github.com/digital-defiance/eecp/workspace"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("eecp-relay: load config", logger.Error(err))
	}

	log := newLogger(cfg.Logging)
	logger.SetDefaultLogger(log)

	keyStore, err := newKeyStore(context.Background(), cfg.KeyStore)
	if err != nil {
		log.Fatal("eecp-relay: build keystore", logger.Error(err))
	}

	r := relay.New(keyStore, ledger.NewMemoryLedger(), cfg.Relay.OperationsPerSecond)

	sweepInterval := cleanup.DefaultSweepInterval
	if cfg.Cleanup != nil && cfg.Cleanup.SweepInterval > 0 {
		sweepInterval = cfg.Cleanup.SweepInterval
	}
	sweeper := cleanup.New(r, sweepInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sweeper.Start(ctx); err != nil {
		log.Fatal("eecp-relay: start cleanup sweeper", logger.Error(err))
	}

	mux := http.NewServeMux()
	upgrader := &wstransport.Upgrader{
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	mux.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req)
		if err != nil {
			log.Warn("eecp-relay: upgrade failed", logger.Error(err))
			return
		}
		go func() {
			defer conn.Close()
			if err := r.Serve(req.Context(), conn); err != nil {
				log.Info("eecp-relay: session ended", logger.Error(err))
			}
		}()
	})
	mux.HandleFunc("/debug/workspaces", handleCreateWorkspace(r, cfg.Workspace))

	addr := ":8443"
	if cfg.Relay != nil && cfg.Relay.ListenAddr != "" {
		addr = cfg.Relay.ListenAddr
	}
	httpSrv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Info("eecp-relay: listening", logger.String("addr", addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("eecp-relay: serve", logger.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("eecp-relay: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	sweeper.Stop()
	// One final sweep commits and destroys every key already past its grace
	// period. Keys still within their grace period are neither committed nor
	// scrubbed by it; they stay in the keystore.
	_ = sweeper.Sweep(shutdownCtx, time.Now())
}

func newLogger(cfg *config.LoggingConfig) *logger.StructuredLogger {
	level := logger.InfoLevel
	output := os.Stdout
	if cfg != nil {
		switch cfg.Level {
		case "debug":
			level = logger.DebugLevel
		case "warn":
			level = logger.WarnLevel
		case "error":
			level = logger.ErrorLevel
		}
		if cfg.Output == "stderr" {
			output = os.Stderr
		}
	}
	return logger.NewLogger(output, level)
}

func newKeyStore(ctx context.Context, cfg *config.KeyStoreConfig) (keystore.KeyStore, error) {
	if cfg == nil || cfg.Type == "" || cfg.Type == "memory" {
		return keystore.NewMemoryKeyStore(), nil
	}
	if cfg.Type != "postgres" || cfg.Postgres == nil {
		return keystore.NewMemoryKeyStore(), nil
	}
	return keystore.NewPostgresKeyStore(ctx, &keystore.PostgresConfig{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
		SSLMode:  cfg.Postgres.SSLMode,
	})
}

// handleCreateWorkspace is a minimal operational endpoint for allocating a
// workspace. It is not part of the wire protocol proper (§6 fixes the
// participant-facing protocol); workspace provisioning is left to the
// deployer, so this exists only so the binary is runnable standalone.
func handleCreateWorkspace(r *relay.Relay, defaults *config.WorkspaceDefaultsConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		b := workspace.NewBuilder()
		if defaults != nil {
			if defaults.RotationInterval > 0 {
				b = b.WithRotationInterval(defaults.RotationInterval)
			}
			if defaults.GracePeriod > 0 {
				b = b.WithGracePeriod(defaults.GracePeriod)
			}
			if defaults.MaxParticipants > 0 {
				b = b.WithMaxParticipants(defaults.MaxParticipants)
			}
		}
		ws, err := r.CreateWorkspace(req.Context(), b)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			ID        string    `json:"id"`
			ExpiresAt time.Time `json:"expires_at"`
		}{ID: ws.ID, ExpiresAt: ws.ExpiresAt()})
	}
}
