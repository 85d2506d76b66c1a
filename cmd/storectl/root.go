package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"storefront/internal/app"
	"storefront/internal/config"
	"storefront/internal/observability"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "storectl",
		Short:         "Storefront operator tooling (products, inventory, orders)",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newProductsCmd(), newItemsCmd(), newOrdersCmd(), newTokenCmd())
	return root
}

// withApp 按环境变量组装 App，执行 fn 后排空事件并关闭。
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(cfg.ServiceName+"-cli", cfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := observability.ContextWithLogger(cmd.Context(), logger)
	a, err := app.New(ctx, cfg, logger.With(zap.String("component", "storectl")), prometheus.NewRegistry())
	if err != nil {
		return err
	}
	a.Start(ctx, false)

	runErr := fn(ctx, a)

	closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.Close(closeCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
