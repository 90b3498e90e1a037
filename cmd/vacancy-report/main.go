package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const appVersion = "0.3.0"

func main() {
	root := &cobra.Command{
		Use:           "vacancy-report",
		Short:         "Vacancy phase timing reports (HTTP API, batch processing and client)",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Version = appVersion
	root.SetVersionTemplate("vacancy-report v{{.Version}}\n")

	root.AddCommand(
		newServeCmd(),
		newProcessCmd(),
		newUploadCmd(),
		newReportCmd(),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
