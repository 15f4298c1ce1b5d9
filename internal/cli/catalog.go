package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/cartledger/internal/model"
	"github.com/roach88/cartledger/internal/shop"
)

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	var tag string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List products with their available stock",
		Long: `List products with their available stock.

Examples:
  cartledger catalog
  cartledger catalog --tag vedette
  cartledger --catalog ./shop.cue catalog`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withShop(cmd, func(ctx context.Context, s *shop.Shop) error {
				stock, err := s.StockLevels(ctx)
				if err != nil {
					return err
				}
				products := s.Products(tag)
				views := make([]productView, len(products))
				for i, p := range products {
					views[i] = productView{
						ID:        p.ID,
						Name:      p.Name,
						Price:     p.UnitPrice,
						Available: stock[p.ID],
						Tag:       p.Tag,
						Category:  p.Category,
					}
				}
				return rootOpts.formatter(cmd).Emit(views, func(w io.Writer) error {
					return writeProducts(w, views)
				})
			})
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", `only products with this tag ("all" for every product)`)
	return cmd
}

// NewStockCommand creates the stock command.
func NewStockCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stock [product-id]",
		Short: "Show available stock",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withShop(cmd, func(ctx context.Context, s *shop.Shop) error {
				stock, err := s.StockLevels(ctx)
				if err != nil {
					return err
				}
				if len(args) == 1 {
					p, err := lookup(s, args[0])
					if err != nil {
						return err
					}
					stock = model.Stock{p.ID: stock[p.ID]}
				}
				return rootOpts.formatter(cmd).Emit(stock, func(w io.Writer) error {
					tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
					for _, id := range stock.IDs() {
						fmt.Fprintf(tw, "%s\t%d\n", id, stock[id])
					}
					return tw.Flush()
				})
			})
		},
	}
}

func lookup(s *shop.Shop, raw string) (model.Product, error) {
	id := model.ProductID(strings.TrimSpace(raw))
	p, ok := s.Catalog().Lookup(id)
	if !ok {
		return model.Product{}, model.NewUnknownProduct(id)
	}
	return p, nil
}
