package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fedimint-observer/observer/internal/queryapi"
	"github.com/fedimint-observer/observer/internal/store"
	"github.com/fedimint-observer/observer/internal/supervisor"
)

func main() {
	log.Println("Starting Fedimint Observer...")

	// ─── Required Environment Variables ─────────────────────────────────
	// All credentials MUST come from environment variables. No fallback
	// defaults for security-sensitive values.
	// ────────────────────────────────────────────────────────────────────

	dbUrl := requireEnv("DATABASE_URL")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Connect(ctx, dbUrl)
	if err != nil {
		log.Fatalf("FATAL: failed to connect to PostgreSQL: %v", err)
	}
	defer st.Close()

	guardianTimeout := durationEnvOrDefault("GUARDIAN_RPC_TIMEOUT", 10*time.Second)
	explorerBaseURL := getEnvOrDefault("EXPLORER_BASE_URL", "https://mempool.space/api")

	var relayURLs []string
	if raw := os.Getenv("NOSTR_RELAY_URLS"); raw != "" {
		for _, u := range strings.Split(raw, ",") {
			if u = strings.TrimSpace(u); u != "" {
				relayURLs = append(relayURLs, u)
			}
		}
	}

	super := supervisor.New(supervisor.Config{
		GuardianTimeout: guardianTimeout,
		ExplorerBaseURL: explorerBaseURL,
		NostrRelayURLs:  relayURLs,
	}, st)

	if err := super.Boot(ctx); err != nil {
		log.Fatalf("FATAL: supervisor boot failed: %v", err)
	}

	r := queryapi.SetupRouter(st, super)

	port := getEnvOrDefault("PORT", "8420")
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		log.Printf("Observer query API listening on :%s\n", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("FATAL: server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: graceful shutdown failed: %v", err)
	}
}

// requireEnv reads a required environment variable and exits if it is not set.
// This prevents the binary from starting with missing critical configuration.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set.", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnvOrDefault(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(val)
	if err != nil || seconds <= 0 {
		log.Printf("Warning: invalid %s=%q, using default %s", key, val, fallback)
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
