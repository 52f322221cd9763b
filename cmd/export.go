package main

import (
	"slices"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Magalhaes24/scout/internal/fetcher"
	"github.com/Magalhaes24/scout/internal/model"
	"github.com/Magalhaes24/scout/internal/money"
	"github.com/Magalhaes24/scout/internal/table"
)

var (
	exportFrom string
	exportXLSX string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the market values table to a spreadsheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		from := exportFrom
		if from == "" {
			from = cfg.Output.Path
		}
		n, err := exportTable(from, exportXLSX)
		if err != nil {
			return err
		}
		zap.L().Info("export complete", zap.String("path", exportXLSX), zap.Int("rows", n))
		return nil
	},
}

// exportTable writes the persisted table at from to an XLSX workbook. The
// integer value column is written as numbers.
func exportTable(from, to string) (int, error) {
	repo := table.New(from)
	if err := repo.Load(); err != nil {
		return 0, err
	}

	header := repo.Header()
	numeric := map[int]func(string) (int64, bool){}
	if i := slices.Index(header, model.ColValue); i >= 0 {
		numeric[i] = money.Parse
	}

	err := fetcher.WriteXLSX(to, fetcher.Sheet{
		Name:           "Market Values",
		Header:         header,
		Rows:           repo.Rows(),
		NumericColumns: numeric,
	})
	if err != nil {
		return 0, eris.Wrap(err, "export")
	}
	return repo.Len(), nil
}

func init() {
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "persisted table to export (default from output.path)")
	exportCmd.Flags().StringVar(&exportXLSX, "xlsx", "market_values.xlsx", "destination workbook")
	rootCmd.AddCommand(exportCmd)
}
