package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"storefront/internal/app"
	"storefront/internal/inventory"
	"storefront/internal/model"
)

func newItemsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "items", Short: "Manage inventory items"}

	var (
		productID uint
		itemType  string
		file      string
	)
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk import items from a text file (value;note per line) or an .xlsx sheet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			lines, err := readImportFile(file)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Inventory.ImportLines(ctx, productID, model.ItemType(strings.ToUpper(itemType)), lines)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d items into product %d\n", n, productID)
				return nil
			})
		},
	}
	importCmd.Flags().UintVar(&productID, "product", 0, "product id")
	importCmd.Flags().StringVar(&itemType, "type", string(model.ItemTypeAccount), "ACCOUNT or CODE")
	importCmd.Flags().StringVar(&file, "file", "", "path to .txt or .xlsx")
	_ = importCmd.MarkFlagRequired("product")
	_ = importCmd.MarkFlagRequired("file")

	var countProduct uint
	count := &cobra.Command{
		Use:   "count",
		Short: "Count available items of a product",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Inventory.CountAvailable(ctx, countProduct)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
	count.Flags().UintVar(&countProduct, "product", 0, "product id")
	_ = count.MarkFlagRequired("product")

	cmd.AddCommand(importCmd, count)
	return cmd
}

func readImportFile(path string) ([]inventory.Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return inventory.ReadSheetLines(f)
	}
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return inventory.ParseLines(string(b)), nil
}
