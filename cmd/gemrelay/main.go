package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "gemrelay",
		Short:   "LINE chat relay for generative-language providers",
		Version: version,
	}

	root.AddCommand(
		newServeCmd(),
		newStatsCmd(),
		newCacheCmd(),
		newQuotaCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
