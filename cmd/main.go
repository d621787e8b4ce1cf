package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quantarc/tickstore/cmd/inspect"
	"github.com/quantarc/tickstore/cmd/list"
	"github.com/quantarc/tickstore/utils"
	"github.com/quantarc/tickstore/utils/log"
)

// flagPrintVersion set flag to show current tickstore version.
var flagPrintVersion bool

// Execute builds the command tree and executes commands.
func Execute() error {
	// c is the root command.
	c := &cobra.Command{
		Use: "tickstore",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagPrintVersion {
				log.Info("version: %v", utils.Tag)
				log.Info("commit hash: %v", utils.GitHash)
				log.Info("utc build time: %v", utils.BuildStamp)
				return nil
			}
			return cmd.Usage()
		},
	}

	c.AddCommand(list.Cmd)
	c.AddCommand(inspect.Cmd)
	c.Flags().BoolVarP(&flagPrintVersion, "version", "v", false, "show the version info and exit")

	return c.Execute()
}
