package main

import (
	"errors"

	"github.com/spf13/cobra"

	"testemunhas/api/internal/app"
)

var errInvalidCNJ = errors.New("invalid CNJ")

func newCNJCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cnj <number>",
		Short: "Validate and format a CNJ case number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Validation needs no storage.
			check := (&app.Service{}).ValidateCNJ(args[0])
			if err := printJSON(cmd.OutOrStdout(), check); err != nil {
				return err
			}
			if !check.Valid {
				return errInvalidCNJ
			}
			return nil
		},
	}
}
