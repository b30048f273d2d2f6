package ontoscore

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soundprediction/ontoscore/pkg/config"
	"github.com/soundprediction/ontoscore/pkg/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <batch.json>",
	Short: "Apply an extraction batch to the ontology",
	Long: `Apply a JSON extraction batch (objects and links) to the ontology
store. The report lists every record that failed, with its index.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().String("db-driver", "memory", "Database driver (memory, badger, neo4j)")
	ingestCmd.Flags().String("db-uri", "./ontoscore_db", "Database URI/path")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("db-driver") {
		cfg.Database.Driver, _ = cmd.Flags().GetString("db-driver")
	}
	if cmd.Flags().Changed("db-uri") {
		cfg.Database.URI, _ = cmd.Flags().GetString("db-uri")
	}

	batch, err := ingest.LoadBatch(args[0])
	if err != nil {
		return err
	}

	client, cleanup, err := initClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize OntoScore: %w", err)
	}
	defer cleanup()

	report, err := client.ApplyBatch(cmd.Context(), batch)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return err
	}
	if len(report.Errors) > 0 {
		return fmt.Errorf("%d records failed", len(report.Errors))
	}
	return nil
}
