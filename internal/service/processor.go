package service

import (
	"fmt"
	"io"
	"time"

	"vacancy-report/internal/ingest"
	"vacancy-report/internal/phase"
	"vacancy-report/internal/report"
	"vacancy-report/internal/timing"
)

// Processor spreadsheet -> derived dataset, shared by the HTTP service and the CLI.
type Processor struct {
	Schema     *phase.Schema
	Normalizer *ingest.Normalizer
	Now        func() time.Time
}

func NewProcessor(schema *phase.Schema, loc *time.Location) *Processor {
	return &Processor{
		Schema:     schema,
		Normalizer: ingest.NewNormalizer(loc),
		Now:        time.Now,
	}
}

// Processed dataset plus the source columns the sheet did not carry
type Processed struct {
	Dataset        *report.Dataset
	MissingColumns []string
}

func (p *Processor) Process(r io.Reader, filename string) (*Processed, error) {
	table, err := ingest.ReadTable(r, filename)
	if err != nil {
		return nil, fmt.Errorf("read spreadsheet: %w", err)
	}
	cases := p.Normalizer.Cases(table, p.Schema)
	timing.NewDeriver(p.Schema, p.Now).DeriveAll(cases)
	return &Processed{
		Dataset:        report.NewDataset(filename, p.Schema, cases),
		MissingColumns: ingest.MissingColumns(table, p.Schema),
	}, nil
}
