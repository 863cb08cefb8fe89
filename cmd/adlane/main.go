package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/adlanelabs/adlane/internal/activation"
	"github.com/adlanelabs/adlane/internal/adevents"
	"github.com/adlanelabs/adlane/internal/billing"
	"github.com/adlanelabs/adlane/internal/clickevent"
	"github.com/adlanelabs/adlane/internal/clock"
	"github.com/adlanelabs/adlane/internal/config"
	"github.com/adlanelabs/adlane/internal/fraud"
	"github.com/adlanelabs/adlane/internal/lifecycle"
	"github.com/adlanelabs/adlane/internal/migration"
	"github.com/adlanelabs/adlane/internal/notification"
	"github.com/adlanelabs/adlane/internal/observability"
	"github.com/adlanelabs/adlane/internal/product"
	"github.com/adlanelabs/adlane/internal/ranking"
	"github.com/adlanelabs/adlane/internal/redis"
	"github.com/adlanelabs/adlane/internal/scheduler"
	"github.com/adlanelabs/adlane/internal/server"
	"github.com/adlanelabs/adlane/internal/wallet"
	"github.com/adlanelabs/adlane/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "adlane",
		Short:   "Marketplace ad serving and billing engine",
		Version: readVersionFromEnv(),
	}
	root.AddCommand(newMigrateCmd(), newServeCmd(), newSweeperCmd(), newAllCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the serving API",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe()
			return nil
		},
	}
}

func newSweeperCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweeper",
		Short: "Run the lifecycle sweeps on a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			runSweeper()
			return nil
		},
	}
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run migrations, then the serving API and sweeper together",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrate(); err != nil {
				return err
			}
			runMonolith()
			return nil
		},
	}
}

func runMigrate() error {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		migration.Module,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

func runServe() {
	app := fx.New(append(coreModules(),
		server.Module,
	)...)
	app.Run()
}

func runSweeper() {
	app := fx.New(append(coreModules(),
		scheduler.Module,
	)...)
	app.Run()
}

func runMonolith() {
	app := fx.New(append(coreModules(),
		server.Module,
		scheduler.Module,
	)...)
	app.Run()
}

// coreModules is the dependency set shared by every long-running entrypoint.
func coreModules() []fx.Option {
	return []fx.Option{
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		redis.Module,
		notification.Module,
		product.Module,
		wallet.Module,
		clickevent.Module,
		adevents.Module,
		fraud.Module,
		billing.Module,
		activation.Module,
		lifecycle.Module,
		ranking.Module,
	}
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
