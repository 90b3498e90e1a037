package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"vacancy-report/internal/export"
	"vacancy-report/internal/ingest"
	"vacancy-report/internal/report"
	"vacancy-report/internal/store"

	"go.uber.org/zap"
)

var (
	ErrFileTooLarge = errors.New("uploaded file exceeds the size limit")
	ErrEmptyUpload  = errors.New("uploaded file is empty")
)

// datasetStore session dataset persistence (satisfied by *store.DatasetStore)
type datasetStore interface {
	StartSession(ctx context.Context) (string, error)
	Put(ctx context.Context, sessionID, name string, data []byte) (*store.Record, error)
	Current(ctx context.Context, sessionID string) (*store.Record, error)
	Get(ctx context.Context, handle string) ([]byte, error)
	Drop(ctx context.Context, sessionID string) error
}

// ReportService vacancy dataset upload and report views
type ReportService interface {
	// StartSession opens an empty dashboard session
	StartSession(ctx context.Context) (string, error)

	// EndSession drops a session and its dataset
	EndSession(ctx context.Context, sessionID string) error

	// Upload processes a raw export and makes it the session's current dataset
	Upload(ctx context.Context, req UploadRequest) (*UploadResponse, error)

	// Current describes the session's dataset; ErrNoDataset when none is loaded
	Current(ctx context.Context, sessionID string) (*DatasetInfo, error)

	Views() []report.ViewInfo

	// BuildView computes one view over the session's dataset
	BuildView(ctx context.Context, req ViewRequest) (*report.Result, error)

	// ExportView renders a view's detail table as a workbook
	ExportView(ctx context.Context, req ViewRequest) (*ExportResponse, error)
}

type reportService struct {
	store     datasetStore
	processor *Processor
	maxBytes  int64
	logger    *zap.Logger
}

func NewReportService(s datasetStore, processor *Processor, maxBytes int64, logger *zap.Logger) ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &reportService{
		store:     s,
		processor: processor,
		maxBytes:  maxBytes,
		logger:    logger,
	}
}

// ============================================
// Request/Response DTOs
// ============================================

type UploadRequest struct {
	SessionID string
	Filename  string
	Data      []byte
}

type UploadResponse struct {
	Handle         string    `json:"handle"`
	Name           string    `json:"name"`
	UploadedAt     time.Time `json:"uploaded_at"`
	Cases          int       `json:"cases"`
	Finalized      int       `json:"finalized"`
	MissingColumns []string  `json:"missing_columns"`
}

type DatasetInfo struct {
	Handle     string    `json:"handle"`
	Name       string    `json:"name"`
	UploadedAt time.Time `json:"uploaded_at"`
	Cases      int       `json:"cases"`
	Finalized  int       `json:"finalized"`
}

type ViewRequest struct {
	SessionID string
	View      string
	Query     report.Query
}

type ExportResponse struct {
	Filename string
	Data     []byte
}

// ============================================
// Implementation
// ============================================

func (s *reportService) StartSession(ctx context.Context) (string, error) {
	return s.store.StartSession(ctx)
}

func (s *reportService) EndSession(ctx context.Context, sessionID string) error {
	return s.store.Drop(ctx, sessionID)
}

func (s *reportService) Upload(ctx context.Context, req UploadRequest) (*UploadResponse, error) {
	if !ingest.SupportedExt(req.Filename) {
		return nil, fmt.Errorf("%w: %s", ingest.ErrUnsupportedFormat, filepath.Ext(req.Filename))
	}
	if len(req.Data) == 0 {
		return nil, ErrEmptyUpload
	}
	if s.maxBytes > 0 && int64(len(req.Data)) > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	out, err := s.processor.Process(bytes.NewReader(req.Data), req.Filename)
	if err != nil {
		return nil, err
	}
	wb, err := export.Workbook(export.ProcessedSheet, out.Dataset.ProcessedTable())
	if err != nil {
		return nil, fmt.Errorf("build processed workbook: %w", err)
	}
	rec, err := s.store.Put(ctx, req.SessionID, processedName(req.Filename), wb)
	if err != nil {
		return nil, err
	}

	total, finalized := counts(out.Dataset)
	s.logger.Info("dataset uploaded",
		zap.String("session_id", req.SessionID),
		zap.String("file", req.Filename),
		zap.Int("cases", total),
		zap.Int("finalized", finalized),
		zap.Strings("missing_columns", out.MissingColumns),
	)
	missing := out.MissingColumns
	if missing == nil {
		missing = []string{}
	}
	return &UploadResponse{
		Handle:         rec.Handle,
		Name:           rec.Name,
		UploadedAt:     rec.UploadedAt,
		Cases:          total,
		Finalized:      finalized,
		MissingColumns: missing,
	}, nil
}

func (s *reportService) Current(ctx context.Context, sessionID string) (*DatasetInfo, error) {
	rec, ds, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	total, finalized := counts(ds)
	return &DatasetInfo{
		Handle:     rec.Handle,
		Name:       rec.Name,
		UploadedAt: rec.UploadedAt,
		Cases:      total,
		Finalized:  finalized,
	}, nil
}

func (s *reportService) Views() []report.ViewInfo {
	return report.Catalog()
}

func (s *reportService) BuildView(ctx context.Context, req ViewRequest) (*report.Result, error) {
	_, ds, err := s.load(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	return report.Build(ds, req.View, req.Query)
}

func (s *reportService) ExportView(ctx context.Context, req ViewRequest) (*ExportResponse, error) {
	res, err := s.BuildView(ctx, req)
	if err != nil {
		return nil, err
	}
	data, err := export.Workbook(sheetName(res.View), res.Table)
	if err != nil {
		return nil, fmt.Errorf("export view %s: %w", res.View, err)
	}
	return &ExportResponse{Filename: res.View + ".xlsx", Data: data}, nil
}

// load re-reads the stored processed workbook; derived columns are recomputed on every request.
func (s *reportService) load(ctx context.Context, sessionID string) (*store.Record, *report.Dataset, error) {
	rec, err := s.store.Current(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.store.Get(ctx, rec.Handle)
	if err != nil {
		return nil, nil, err
	}
	out, err := s.processor.Process(bytes.NewReader(data), rec.Handle+".xlsx")
	if err != nil {
		return nil, nil, fmt.Errorf("load dataset %s: %w", rec.Handle, err)
	}
	out.Dataset.Name = rec.Name
	return rec, out.Dataset, nil
}

func counts(ds *report.Dataset) (total, finalized int) {
	for i := range ds.Cases {
		if ds.Cases[i].Timing.Finalized {
			finalized++
		}
	}
	return len(ds.Cases), finalized
}

func processedName(filename string) string {
	base := filepath.Base(filename)
	return "processado_" + strings.TrimSuffix(base, filepath.Ext(base)) + ".xlsx"
}

// sheetName excel caps sheet names at 31 characters
func sheetName(view string) string {
	if len(view) > 31 {
		return view[:31]
	}
	return view
}
