package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/borauni/ride-dispatch/config"
	"github.com/borauni/ride-dispatch/pkg/postgres"
)

var configPath = flag.String("config-path", "config.yaml", "Path to the config yaml file")

// Schema for the dispatch service. The partial unique index on rides is the
// one-active-ride-per-rider guard; the (ride_id, seq) primary key serializes
// per-ride event sequence numbers.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS rides (
		id UUID PRIMARY KEY,
		rider_id UUID NOT NULL,
		driver_id UUID,
		status TEXT NOT NULL DEFAULT 'requested',
		rating INT CHECK (rating BETWEEN 1 AND 5),
		origin_lat DOUBLE PRECISION NOT NULL,
		origin_lon DOUBLE PRECISION NOT NULL,
		dest_lat DOUBLE PRECISION NOT NULL,
		dest_lon DOUBLE PRECISION NOT NULL,
		dest_name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		accepted_at TIMESTAMPTZ,
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		cancelled_at TIMESTAMPTZ
	);`,

	`CREATE UNIQUE INDEX IF NOT EXISTS rides_one_active_per_rider
		ON rides (rider_id)
		WHERE status IN ('requested', 'accepted', 'in_progress');`,

	`CREATE INDEX IF NOT EXISTS rides_requested
		ON rides (created_at)
		WHERE status = 'requested';`,

	`CREATE TABLE IF NOT EXISTS ride_events (
		ride_id UUID NOT NULL REFERENCES rides(id),
		seq BIGINT NOT NULL,
		event_type TEXT NOT NULL,
		payload JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (ride_id, seq)
	);`,

	`CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		role TEXT NOT NULL,
		lat DOUBLE PRECISION,
		lon DOUBLE PRECISION,
		connected_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		ended_at TIMESTAMPTZ
	);`,

	`CREATE INDEX IF NOT EXISTS sessions_open_user
		ON sessions (user_id)
		WHERE ended_at IS NULL;`,
}

func main() {
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	client, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, stmt := range statements {
		if _, err := client.Pool.Exec(ctx, stmt); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
	}

	log.Println("schema is up to date")
}
