package main

import (
	"github.com/spf13/cobra"

	"testemunhas/api/internal/app"
)

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var (
		req        app.AnalysisRequest
		inicio     string
		fim        string
		reportOnly bool
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the pattern detectors over the imported working set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, db, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer db.Close()

			if inicio != "" || fim != "" {
				req.Periodo = &app.PeriodoRequest{Inicio: inicio, Fim: fim}
			}
			resp, err := svc.Analyze(cmd.Context(), opts.orgID, req)
			if err != nil {
				return err
			}
			if reportOnly {
				return printJSON(cmd.OutOrStdout(), resp.Report)
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	flags := cmd.Flags()
	flags.StringSliceVar(&req.Padroes, "padroes", nil, "detectors to run (default all)")
	flags.StringSliceVar(&req.CNJs, "cnj", nil, "keep only findings touching these cases")
	flags.StringVar(&inicio, "inicio", "", "earliest hearing date (YYYY-MM-DD)")
	flags.StringVar(&fim, "fim", "", "latest hearing date (YYYY-MM-DD)")
	flags.BoolVar(&reportOnly, "report", false, "print only the aggregated report")
	return cmd
}
