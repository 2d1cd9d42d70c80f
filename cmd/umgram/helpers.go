package main

import (
	"fmt"
	"os"
	"path/filepath"

	umgram "github.com/alhassansoft/umgram-go"
)

// resolveBaseURL prefers the UMGRAM_BASE_URL environment variable, then the
// config file, then the client default.
func resolveBaseURL(cfg *Config) string {
	if v := os.Getenv("UMGRAM_BASE_URL"); v != "" {
		return v
	}
	return cfg.Default.BaseURL
}

// resolveToken prefers the UMGRAM_TOKEN environment variable, then the
// config file.
func resolveToken(cfg *Config) string {
	if v := os.Getenv("UMGRAM_TOKEN"); v != "" {
		return v
	}
	return cfg.Auth.Token
}

// getClient creates an umgram client from config and environment. It does
// not require a token; endpoints that need one fail server-side.
func getClient() (*umgram.Client, *Config) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var opts []umgram.ClientOption
	if base := resolveBaseURL(cfg); base != "" {
		opts = append(opts, umgram.WithBaseURL(base))
	}
	if token := resolveToken(cfg); token != "" {
		opts = append(opts, umgram.WithToken(token))
	}
	return umgram.NewClient(opts...), cfg
}

// getAuthedClient is getClient but exits when no token is available.
func getAuthedClient() (*umgram.Client, *Config) {
	client, cfg := getClient()
	if !client.HasToken() {
		fmt.Fprintln(os.Stderr, "Not logged in. Run 'umgram login <identifier>' first.")
		os.Exit(1)
	}
	return client, cfg
}

// getSnapshotStore builds the configured snapshot store rooted in the config
// directory.
func getSnapshotStore(cfg *Config) umgram.SnapshotStore {
	dir, err := configDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve config dir: %v\n", err)
		os.Exit(1)
	}
	if cfg.Default.SnapshotBackend == "sqlite" {
		store, err := umgram.NewSQLiteSnapshotStore(filepath.Join(dir, "umgram.db"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open snapshot db: %v\n", err)
			os.Exit(1)
		}
		return store
	}
	return umgram.NewFileSnapshotStore(dir)
}

// lastPosition returns the stored position, or the default center when none
// was recorded yet.
func lastPosition(cfg *Config) umgram.LatLng {
	if cfg.Geo.LastLat == 0 && cfg.Geo.LastLng == 0 {
		return umgram.DefaultCenter
	}
	return umgram.LatLng{Lat: cfg.Geo.LastLat, Lng: cfg.Geo.LastLng}
}
