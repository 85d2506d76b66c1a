package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"storefront/internal/app"
	"storefront/internal/catalog"
	"storefront/internal/model"
)

func newProductsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "products", Short: "Manage products"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List products with available stock",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				products, err := a.Catalog.List(ctx)
				if err != nil {
					return err
				}
				ids := make([]uint, 0, len(products))
				for _, p := range products {
					ids = append(ids, p.ID)
				}
				stock, err := a.Inventory.CountAvailableByProducts(ctx, ids)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tSLUG\tNAME\tPRICE\tSTOCK\tFEATURED")
				for _, p := range products {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%t\n",
						p.ID, p.Slug, p.Name, model.FormatAmount(p.Price, p.Currency), stock[p.ID], p.Featured)
				}
				return w.Flush()
			})
		},
	}

	var in catalog.ProductInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a product",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Catalog.Create(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created product %d (%s)\n", p.ID, p.Slug)
				return nil
			})
		},
	}
	create.Flags().StringVar(&in.Slug, "slug", "", "url slug (lowercase, dashes)")
	create.Flags().StringVar(&in.Name, "name", "", "display name")
	create.Flags().StringVar(&in.Description, "description", "", "description")
	create.Flags().Int64Var(&in.Price, "price", 0, "price in the currency's minor unit")
	create.Flags().StringVar(&in.Currency, "currency", "IDR", "ISO currency code")
	create.Flags().StringVar(&in.ImageURL, "image-url", "", "image url")
	create.Flags().BoolVar(&in.Featured, "featured", false, "show on the home page")
	_ = create.MarkFlagRequired("slug")
	_ = create.MarkFlagRequired("name")

	cmd.AddCommand(list, create)
	return cmd
}
