package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/andreyvit/kvtree"
)

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Print the value at a path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openStore()
		if err != nil {
			return err
		}
		defer e.close()
		return printValue(cmd, e.store, args[0])
	},
}

var setCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Store a value (parsed as YAML) at a path",
	Long: `Store a value at a path. The value is parsed as YAML, so numbers,
booleans, null, flow mappings and flow sequences are recognized:

  kvtree set a.b 42
  kvtree set a.c '{x: 1, y: [true, null]}'
  kvtree set a.d '"42"'      # the string "42"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := kvtree.ParseValue(args[1])
		if err != nil {
			return fmt.Errorf("failed to parse value: %w", err)
		}
		e, err := openStore()
		if err != nil {
			return err
		}
		defer e.close()
		return e.store.Set(args[0], value)
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <path>",
	Aliases: []string{"rm"},
	Short:   "Delete a path and everything under it",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openStore()
		if err != nil {
			return err
		}
		defer e.close()
		return e.store.Delete(args[0])
	},
}

var importCmd = &cobra.Command{
	Use:   "import <path> <file>",
	Short: "Store a YAML or JSON file at a path",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", args[1], err)
		}
		e, err := openStore()
		if err != nil {
			return err
		}
		defer e.close()
		return e.store.ImportYAML(args[0], data)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "Print a subtree as YAML or JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := kvtree.RootPath
		if len(args) > 0 {
			path = args[0]
		}
		e, err := openStore()
		if err != nil {
			return err
		}
		defer e.close()
		return printValue(cmd, e.store, path)
	},
}

func printValue(cmd *cobra.Command, store *kvtree.Store, path string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	var out []byte
	var err error
	if asJSON {
		out, err = store.ExportJSON(path)
		out = append(out, '\n')
	} else {
		out, err = store.ExportYAML(path)
	}
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func init() {
	getCmd.Flags().Bool("json", false, "print JSON instead of YAML")
	exportCmd.Flags().Bool("json", false, "print JSON instead of YAML")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
}
