package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zinc-sig/otterbox/internal/bundle"
)

var extractCmd = &cobra.Command{
	Use:   "extract <bundle.zip> <dest>",
	Short: "Unpack a bundle zip",
	Long: `Extract every entry of a bundle zip under dest at its original relative
path. Archives with absolute paths, ".." segments or symlinks are refused
before anything is written.`,
	Args: cobra.ExactArgs(2),
	RunE: extractCommand,
}

func extractCommand(cmd *cobra.Command, args []string) error {
	m, err := bundle.ExtractFile(commandContext(cmd), args[0], args[1])
	if err != nil {
		return err
	}
	logger.Info("extracted bundle", "archive", args[0], "dest", args[1], "files", len(m.Files))
	fmt.Fprint(cmd.OutOrStdout(), m.String())
	return nil
}
