package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendance/internal/config"
	"github.com/kozaktomas/attendance/internal/ledger"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect and manage attendance records",
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attendance records",
	RunE:  runRecordsList,
}

var recordsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export attendance records as CSV to stdout",
	RunE:  runRecordsExport,
}

var recordsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all attendance records",
	RunE:  runRecordsClear,
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(recordsListCmd, recordsExportCmd, recordsClearCmd)

	recordsCmd.PersistentFlags().String("session", "", "Only records for this session key")
	recordsClearCmd.Flags().Bool("yes", false, "Skip the confirmation prompt")
}

// loadRecords warms a ledger from the configured store and filters it.
func loadRecords(cmd *cobra.Command) ([]ledger.Record, *ledger.Ledger, func(), error) {
	cfg := config.Load()
	ctx := cmd.Context()

	pool, err := openPool(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() {
		if pool != nil {
			pool.Close()
		}
	}

	l, err := buildLedger(ctx, cfg, pool)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	sessionKey := mustGetString(cmd, "session")
	return l.Export(sessionKey), l, cleanup, nil
}

func runRecordsList(cmd *cobra.Command, args []string) error {
	records, _, cleanup, err := loadRecords(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if len(records) == 0 {
		fmt.Println("No attendance records")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSESSION\tRECORDED AT")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\n", rec.Identity, rec.SessionKey, rec.RecordedAt.Format("2006-01-02 15:04:05"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d records\n", len(records))
	return nil
}

func runRecordsExport(cmd *cobra.Command, args []string) error {
	records, _, cleanup, err := loadRecords(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	return ledger.WriteCSV(os.Stdout, records)
}

func runRecordsClear(cmd *cobra.Command, args []string) error {
	records, l, cleanup, err := loadRecords(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if len(records) == 0 && l.Count() == 0 {
		fmt.Println("No attendance records to clear")
		return nil
	}

	if !mustGetBool(cmd, "yes") {
		fmt.Printf("This deletes all %d attendance records. Continue? [y/N] ", l.Count())
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := l.Clear(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Attendance records cleared")
	return nil
}
