package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andreyvit/kvtree"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the tree, raw records and stats",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openStore()
		if err != nil {
			return err
		}
		defer e.close()

		flags := kvtree.DumpTree | kvtree.DumpStats
		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			flags |= kvtree.DumpRaw
		}
		fmt.Fprint(cmd.OutOrStdout(), e.store.Dump(flags))
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that every container manifest matches the stored records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openStore()
		if err != nil {
			return err
		}
		defer e.close()

		problems, err := e.store.Check()
		if err != nil {
			return err
		}
		for _, p := range problems {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		if len(problems) > 0 {
			return fmt.Errorf("%d problem(s) found", len(problems))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "OK")
		return nil
	},
}

func init() {
	dumpCmd.Flags().Bool("raw", false, "also list every raw record")

	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(checkCmd)
}

var replayCmd = &cobra.Command{
	Use:   "replay <journal-dir>",
	Short: "Apply a change journal to an empty database",
	Long: `Apply every committed change from a journal directory to the database
given by --db. Use the same --encoding the journal was written with; the
records are copied as-is.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		n, err := kvtree.Replay(newJournal(args[0]), backend)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "replayed %d change(s)\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
}
