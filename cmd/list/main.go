// Package list implements the "tickstore list" command: it walks the
// data root and prints instruments with their partition dates and
// on-disk sizes.
package list

import (
	"fmt"
	"os"
	"path/filepath"

	"code.cloudfoundry.org/bytefmt"
	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/quantarc/tickstore/catalog"
	"github.com/quantarc/tickstore/utils"
)

const (
	usage   = "list [pattern]"
	short   = "List stored instruments and their partitions"
	long    = "List instruments under the data root, optionally filtered by a glob pattern on the instrument identity"
	example = `tickstore list --config tickstore.yml "SBER@*"`
)

var (
	// Cmd is the list command.
	Cmd = &cobra.Command{
		Use:     usage,
		Short:   short,
		Long:    long,
		Example: example,
		Args:    cobra.MaximumNArgs(1),
		RunE:    executeList,
	}
	configFilePath string
)

func init() {
	Cmd.Flags().StringVarP(&configFilePath, "config", "c", "tickstore.yml",
		"path to the tickstore YAML configuration file")
}

func executeList(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(configFilePath)
	if err != nil {
		return err
	}
	var config utils.TickstoreConfig
	if err := config.Parse(data); err != nil {
		return err
	}

	matcher := glob.MustCompile("*")
	if len(args) == 1 {
		if matcher, err = glob.Compile(args[0]); err != nil {
			return err
		}
	}

	instruments, err := catalog.ListInstruments(config.RootDirectory)
	if err != nil {
		return err
	}
	for _, instrument := range instruments {
		if !matcher.Match(instrument) {
			continue
		}
		fmt.Println(instrument)
		dir := filepath.Join(config.RootDirectory, instrument)
		if err := printPartitions(dir, "  "); err != nil {
			return err
		}
	}
	return nil
}

func printPartitions(dir, indent string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			fmt.Printf("%s%s/\n", indent, entry.Name())
			if err := printPartitions(filepath.Join(dir, entry.Name()), indent+"  "); err != nil {
				return err
			}
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		fmt.Printf("%s%s  %s\n", indent, entry.Name(), bytefmt.ByteSize(uint64(info.Size())))
	}
	return nil
}
