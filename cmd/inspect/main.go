// Package inspect implements the "tickstore inspect" command: it opens
// one instrument's storage and prints a date's partition metadata.
package inspect

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantarc/tickstore/catalog"
	"github.com/quantarc/tickstore/codec/tradebin"
	"github.com/quantarc/tickstore/codec/tradecsv"
	"github.com/quantarc/tickstore/storage"
	"github.com/quantarc/tickstore/utils"
	"github.com/quantarc/tickstore/utils/io"
)

const (
	usage   = "inspect <instrument> <date>"
	short   = "Print a date's partition metadata"
	long    = "Print the partition metadata (count, time bounds, price step) for one instrument and date"
	example = "tickstore inspect SBER@TQBR 2024-01-02"
)

var (
	// Cmd is the inspect command.
	Cmd = &cobra.Command{
		Use:     usage,
		Short:   short,
		Long:    long,
		Example: example,
		Args:    cobra.ExactArgs(2),
		RunE:    executeInspect,
	}
	configFilePath string
	timeframeArg   string
)

func init() {
	Cmd.Flags().StringVarP(&configFilePath, "config", "c", "tickstore.yml",
		"path to the tickstore YAML configuration file")
	Cmd.Flags().StringVarP(&timeframeArg, "timeframe", "t", "",
		"candle timeframe argument of the storage, e.g. 5Min")
}

func executeInspect(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(configFilePath)
	if err != nil {
		return err
	}
	var config utils.TickstoreConfig
	if err := config.Parse(data); err != nil {
		return err
	}

	securityID := io.ParseSecurityID(args[0])
	date, err := time.ParseInLocation("2006-01-02", args[1], time.UTC)
	if err != nil {
		return err
	}
	if timeframeArg != "" && utils.TimeframeFromString(timeframeArg) == nil {
		return fmt.Errorf("invalid timeframe %q", timeframeArg)
	}

	var codec io.Codec
	if config.DefaultFormat == "binary" {
		codec = tradebin.New(config.PriceStep)
	} else {
		codec = tradecsv.New(config.PriceStep)
	}
	store, err := catalog.NewPartitionDir(config.RootDirectory, securityID, timeframeArg, config.Compression)
	if err != nil {
		return err
	}
	stg, err := storage.New(securityID, timeframeArg, codec, store)
	if err != nil {
		return err
	}

	meta, err := stg.GetMetadata(date)
	if err != nil {
		return err
	}
	if meta == nil {
		fmt.Printf("%s %s: no partition\n", securityID, args[1])
		return nil
	}
	fmt.Printf("instrument:  %s\n", securityID)
	fmt.Printf("date:        %s\n", args[1])
	fmt.Printf("count:       %d\n", meta.Count())
	fmt.Printf("first:       %s\n", meta.FirstTime().Format(time.RFC3339Nano))
	fmt.Printf("last:        %s\n", meta.LastTime().Format(time.RFC3339Nano))
	fmt.Printf("price step:  %v\n", meta.PriceStep())
	fmt.Printf("override:    %v\n", meta.Override())
	return nil
}
