package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"vacancy-report/internal/ingest"
	"vacancy-report/internal/report"
	"vacancy-report/internal/service"
	"vacancy-report/internal/store"

	"go.uber.org/zap"
)

const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "session_id"

	// multipart envelope on top of the file itself
	formOverhead = 1 << 20
)

// ReportHandler dashboard API: sessions, upload, report views and exports
type ReportHandler struct {
	svc      service.ReportService
	maxBytes int64
	logger   *zap.Logger
}

func NewReportHandler(svc service.ReportService, maxBytes int64, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{svc: svc, maxBytes: maxBytes, logger: logger}
}

// sessionIDFromReq header first, then cookie, then ?session_id=
func sessionIDFromReq(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(SessionHeader)); v != "" {
		return v
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return strings.TrimSpace(r.URL.Query().Get(SessionCookie))
}

func setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// StartSession POST /api/v1/sessions
func (h *ReportHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	id, err := h.svc.StartSession(r.Context())
	if err != nil {
		h.logger.Error("StartSession failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to start session: %v", err)))
		return
	}
	setSessionCookie(w, id)
	writeJSON(w, http.StatusOK, Ok(map[string]string{"session_id": id}))
}

// CurrentDataset GET /api/v1/sessions/{id}
func (h *ReportHandler) CurrentDataset(w http.ResponseWriter, r *http.Request, id string) {
	info, err := h.svc.Current(r.Context(), id)
	if err != nil {
		h.fail(w, "CurrentDataset", id, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(info))
}

// EndSession DELETE /api/v1/sessions/{id}
func (h *ReportHandler) EndSession(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.svc.EndSession(r.Context(), id); err != nil {
		h.fail(w, "EndSession", id, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"session_id": id}))
}

// Upload POST /api/v1/upload (multipart, field "arquivo" or "file")
// A request without a session opens one and sets the cookie.
func (h *ReportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+formOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, Fail(service.ErrFileTooLarge.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Fail("failed to parse form"))
		return
	}

	file, header, err := r.FormFile("arquivo")
	if err != nil {
		file, header, err = r.FormFile("file")
	}
	if err != nil {
		writeJSON(w, http.StatusOK, Fail("file not found in request"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail("failed to read file"))
		return
	}

	sid := sessionIDFromReq(r)
	if sid == "" {
		if sid, err = h.svc.StartSession(ctx); err != nil {
			h.logger.Error("StartSession failed", zap.Error(err))
			writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to start session: %v", err)))
			return
		}
		setSessionCookie(w, sid)
	}

	resp, err := h.svc.Upload(ctx, service.UploadRequest{
		SessionID: sid,
		Filename:  header.Filename,
		Data:      data,
	})
	if err != nil {
		h.fail(w, "Upload", sid, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"session_id": sid,
		"dataset":    resp,
	}))
}

// ListViews GET /api/v1/reports
func (h *ReportHandler) ListViews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.svc.Views()))
}

// GetView GET /api/v1/reports/{view}?filter=&month=&phase=&group=&series=
func (h *ReportHandler) GetView(w http.ResponseWriter, r *http.Request, view string) {
	sid := sessionIDFromReq(r)
	res, err := h.svc.BuildView(r.Context(), service.ViewRequest{
		SessionID: sid,
		View:      view,
		Query:     queryFromReq(r),
	})
	if err != nil {
		h.fail(w, "GetView", sid, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// ExportView GET /api/v1/reports/{view}/export, same query as GetView
func (h *ReportHandler) ExportView(w http.ResponseWriter, r *http.Request, view string) {
	sid := sessionIDFromReq(r)
	out, err := h.svc.ExportView(r.Context(), service.ViewRequest{
		SessionID: sid,
		View:      view,
		Query:     queryFromReq(r),
	})
	if err != nil {
		h.fail(w, "ExportView", sid, err)
		return
	}
	writeXLSX(w, out.Filename, out.Data)
}

func queryFromReq(r *http.Request) report.Query {
	q := r.URL.Query()
	return report.Query{
		Filter: strings.TrimSpace(q.Get("filter")),
		Months: queryList(r, "month"),
		Phase:  strings.TrimSpace(q.Get("phase")),
		Groups: queryList(r, "group"),
		Series: strings.TrimSpace(q.Get("series")),
	}
}

// fail maps service errors onto the envelope; unexpected ones are logged.
func (h *ReportHandler) fail(w http.ResponseWriter, op, sessionID string, err error) {
	switch {
	case errors.Is(err, store.ErrNoDataset):
		writeJSON(w, http.StatusOK, Fail("no dataset loaded, upload a spreadsheet first"))
	case errors.Is(err, report.ErrUnknownView):
		writeJSON(w, http.StatusNotFound, Fail(err.Error()))
	case errors.Is(err, service.ErrFileTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, Fail(err.Error()))
	case errors.Is(err, store.ErrInvalidSession), errors.Is(err, store.ErrInvalidHandle),
		errors.Is(err, service.ErrEmptyUpload), errors.Is(err, ingest.ErrUnsupportedFormat),
		errors.Is(err, ingest.ErrEmptySheet):
		writeJSON(w, http.StatusOK, Fail(err.Error()))
	default:
		h.logger.Error(op+" failed", zap.String("session_id", sessionID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
	}
}
