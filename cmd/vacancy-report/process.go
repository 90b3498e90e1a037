package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vacancy-report/internal/config"
	"vacancy-report/internal/export"
	"vacancy-report/internal/phase"
	"vacancy-report/internal/service"

	"github.com/spf13/cobra"
)

func newProcessCmd() *cobra.Command {
	var (
		outDir     string
		schemaPath string
	)
	cmd := &cobra.Command{
		Use:   "process <export.xls|export.xlsx>...",
		Short: "Derive timing columns offline and write processado_<name>.xlsx",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if schemaPath == "" {
				schemaPath = cfg.Report.PhaseSchemaPath
			}
			schema, err := phase.Load(schemaPath)
			if err != nil {
				return err
			}
			p := service.NewProcessor(schema, cfg.Location())
			for _, path := range args {
				out, err := processFile(p, path, outDir)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default: next to the input)")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "Phase schema YAML (default: PHASE_SCHEMA_PATH or embedded)")
	return cmd
}

func processFile(p *service.Processor, path, outDir string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	res, err := p.Process(f, path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	if outDir == "" {
		outDir = filepath.Dir(path)
	}
	base := filepath.Base(path)
	out := filepath.Join(outDir, "processado_"+strings.TrimSuffix(base, filepath.Ext(base))+".xlsx")
	if err := export.SaveProcessed(out, res.Dataset); err != nil {
		return "", err
	}
	return out, nil
}
