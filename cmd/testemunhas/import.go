package main

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"testemunhas/api/internal/ingest"
	"testemunhas/api/internal/model"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	var showData bool
	cmd := &cobra.Command{
		Use:   "import <file.xlsx|file.csv>...",
		Short: "Import spreadsheets, replacing the organization's working set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, db, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer db.Close()

			var (
				sheets    []ingest.Sheet
				workbooks []*ingest.Workbook
			)
			defer func() {
				for _, wb := range workbooks {
					_ = wb.Close()
				}
			}()
			for _, path := range args {
				wb, err := ingest.OpenFile(path, svc.Resolver())
				if err != nil {
					return err
				}
				workbooks = append(workbooks, wb)
				sheets = append(sheets, wb.Sheets...)
			}

			bases := make([]string, len(args))
			for i, path := range args {
				bases[i] = filepath.Base(path)
			}
			res, err := svc.Import(cmd.Context(), opts.orgID, strings.Join(bases, ","), sheets)
			if err != nil {
				return err
			}
			if !showData {
				res.NormalizedData.Processos = []model.Processo{}
				res.NormalizedData.Testemunhas = []model.Testemunha{}
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&showData, "data", false, "include the normalized records in the output")
	return cmd
}
