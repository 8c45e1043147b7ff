// Package main implements a mock fulfillment service for development and
// e2e testing of liveboard screens. It serves the snapshot and transition
// endpoints the screen engine talks to, backed by an in-memory order store,
// and optionally publishes push-channel hints over NATS so a screen under
// test sees the same event flow the production backend produces. This
// eliminates the need for the real fulfillment platform during screen
// wiring tests, making them fast, deterministic, and offline-capable.
//
// Usage:
//
//	mock-fulfillment -listen :8080 -nats-url nats://localhost:4222
//
// Any non-empty bearer token is accepted unless -token pins one. The store
// starts seeded with a handful of orders across the lanes; POST /orders
// simulates the storefront creating new ones.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/nats-io/nats.go"

	"github.com/primecut/liveboard/events"
)

func main() {
	var (
		listen  = flag.String("listen", ":8080", "listen address")
		natsURL = flag.String("nats-url", "", "NATS URL for push hints (empty disables)")
		token   = flag.String("token", "", "required bearer token (empty accepts any non-empty token)")
		seed    = flag.Bool("seed", true, "seed the store with sample orders")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var publisher *events.Publisher
	if *natsURL != "" {
		conn, err := nats.Connect(*natsURL, nats.Name("mock-fulfillment"))
		if err != nil {
			log.Fatalf("connect NATS: %v", err)
		}
		defer conn.Close()
		publisher = events.NewPublisher(conn, "mock-fulfillment", logger)
	}

	store := newOrderStore()
	if *seed {
		store.seed()
	}

	srv := newServer(store, publisher, *token, logger)
	logger.Info("Mock fulfillment listening", "addr", *listen, "push_hints", *natsURL != "")
	if err := srv.engine.Run(*listen); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
