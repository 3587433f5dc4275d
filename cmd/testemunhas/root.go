package main

import (
	"encoding/json"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"testemunhas/api/internal/app"
	"testemunhas/api/internal/archive"
	"testemunhas/api/internal/config"
	"testemunhas/api/internal/logging"
	"testemunhas/api/internal/store"
)

type rootOptions struct {
	dbPath     string
	orgID      string
	configPath string
	archiveDir string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:                   "testemunhas [command]",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Witness pattern analysis for labor lawsuit spreadsheets.",
		Long: `testemunhas imports case ("processos") and witness ("testemunhas") spreadsheets,
reconciles the references between them and flags suspicious testimonial patterns.`,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringVar(&opts.dbPath, "db", "testemunhas.db", "SQLite database file")
	flags.StringVar(&opts.orgID, "org", "local", "organization id the data belongs to")
	flags.StringVar(&opts.configPath, "config", "", "YAML file with synonyms and detection thresholds")
	flags.StringVar(&opts.archiveDir, "archive", "", "directory for the git archive of reports (disabled when empty)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level")

	root.AddCommand(newImportCmd(opts), newAnalyzeCmd(opts), newCNJCmd())
	return root
}

// open builds a service over the SQLite file. The caller closes the store.
func (o *rootOptions) open(stderr io.Writer) (*app.Service, *store.SQLiteStore, error) {
	settings, err := config.LoadSettings(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(o.logLevel)
	logger.SetOutput(stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	db, err := store.OpenSQLite(o.dbPath)
	if err != nil {
		return nil, nil, err
	}
	svcOpts := app.Options{Logger: logger}
	if o.archiveDir != "" {
		svcOpts.Archive = archive.New(o.archiveDir)
	}
	return app.New(db, settings, svcOpts), db, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
