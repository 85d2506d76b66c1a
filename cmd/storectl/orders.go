package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"storefront/internal/app"
	"storefront/internal/model"
	"storefront/internal/order"
)

func newOrdersCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "orders", Short: "Inspect and operate on orders"}

	status := &cobra.Command{
		Use:   "status <order-id> <PENDING|PAID|FAILED>",
		Short: "Apply a status transition (same effects as the payment callback)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, ok := model.ParseOrderStatus(args[1])
			if !ok {
				return order.ErrInvalidStatus
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				o, err := a.Orders.SetStatus(ctx, args[0], st)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "order %s is %s\n", o.ID, o.Status)
				return nil
			})
		},
	}

	var limit int
	unfulfilled := &cobra.Command{
		Use:   "unfulfilled",
		Short: "List PAID orders that have no item bound",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				list, err := a.Orders.ListUnfulfilled(ctx, limit)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tPRODUCT\tEMAIL\tPAID_AT")
				for _, o := range list {
					paidAt := "-"
					if o.PaidAt != nil {
						paidAt = o.PaidAt.Format("2006-01-02 15:04:05")
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.ID, o.ProductSlug, o.Email, paidAt)
				}
				return w.Flush()
			})
		},
	}
	unfulfilled.Flags().IntVar(&limit, "limit", 100, "max rows")

	fulfill := &cobra.Command{
		Use:   "fulfill <order-id>",
		Short: "Claim an item for a PAID order that has none",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				ow, err := a.Orders.Fulfill(ctx, args[0])
				if err != nil {
					return err
				}
				if len(ow.Items) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "order %s: still out of stock\n", ow.ID)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "order %s: item %d bound\n", ow.ID, ow.Items[len(ow.Items)-1].ID)
				return nil
			})
		},
	}

	cmd.AddCommand(status, unfulfilled, fulfill)
	return cmd
}
