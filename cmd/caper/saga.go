package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ashkettle/caper"
	"github.com/ashkettle/caper/adapter"
	"github.com/ashkettle/caper/config"
	"github.com/ashkettle/caper/procure"
)

func newSagaCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "saga",
		Short: "Run the implant-procurement saga once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			log := opts.logger()
			serveMetrics(cfg, log)

			sys := procure.Systems{
				Inventory: adapter.NewInventory(
					adapter.StockItem{SKU: cfg.Saga.SKU, Qty: 10, Price: 1200},
				),
				Clinic:     adapter.NewClinic(300, cfg.Saga.Slot),
				Payments:   adapter.NewPayments(),
				Integrator: adapter.NewIntegrator(),
			}
			saga, err := procure.NewSaga(sys)
			if err != nil {
				return err
			}

			store, err := newStore(cmd.Context(), cfg.Store)
			if err != nil {
				return err
			}

			exec := caper.NewExecutor(saga,
				caper.WithStore(store),
				caper.WithLogger[*procure.Order](log),
			)
			result := exec.Execute(cmd.Context(), &procure.Order{
				Account: cfg.Saga.Account,
				SKU:     cfg.Saga.SKU,
				Qty:     cfg.Saga.Qty,
				Slot:    cfg.Saga.Slot,
			})

			return json.NewEncoder(os.Stdout).Encode(result)
		},
	}
}

// newStore builds the configured saga state store.
func newStore(ctx context.Context, cfg config.StoreConfig) (caper.Store[*procure.Order], error) {
	switch cfg.Kind {
	case "memory", "":
		return caper.NewMemoryStore[*procure.Order](), nil
	case "file":
		return caper.NewFileStore[*procure.Order](cfg.Path)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis unreachable at %s: %w", cfg.Addr, err)
		}
		return caper.NewRedisStore[*procure.Order](client, "", 0), nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		store := caper.NewPostgresStore[*procure.Order](db, "")
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}
}
