package controllers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/drstein77/salesdash/internal/charts"
	"github.com/drstein77/salesdash/internal/export"
	"github.com/drstein77/salesdash/internal/middleware"
	"github.com/drstein77/salesdash/internal/models"
	"github.com/drstein77/salesdash/internal/sheet"
	"github.com/drstein77/salesdash/internal/storage"
	"github.com/drstein77/salesdash/web"
)

// maxMemory is the part of a multipart upload kept in memory; the rest
// spills to temporary files.
const maxMemory = 8 << 20

var errNoFile = errors.New("no spreadsheet in the request")

// Storage interface for report operations
type Storage interface {
	ProcessSpreadsheet(context.Context, string, io.Reader) (*models.Report, error)
	History(context.Context) ([]models.ReportSummary, error)
	Ping(context.Context) error
}

// Log interface for logging
type Log interface {
	Info(string, ...zapcore.Field)
	Error(string, ...zapcore.Field)
}

// BaseController struct for handling requests
type BaseController struct {
	storage   Storage
	pages     *template.Template
	chartSize charts.Size
	log       Log
}

type chartView struct {
	Title string
	Src   template.URL
}

type pageView struct {
	Report *models.Report
	Charts []chartView
	Error  string
}

// NewBaseController creates a new BaseController instance
func NewBaseController(storage Storage, log Log) *BaseController {
	pages := template.Must(template.New("pages").Funcs(template.FuncMap{
		"money":    export.FormatMoney,
		"count":    export.FormatCount,
		"category": export.CategoryLabel,
	}).ParseFS(web.Templates, "templates/*.html"))

	return &BaseController{
		storage:   storage,
		pages:     pages,
		chartSize: charts.DefaultSize,
		log:       log,
	}
}

// Route sets up the routes for the BaseController
func (h *BaseController) Route() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/", h.index)
	r.Post("/upload", h.upload)
	r.Get("/healthz", h.healthz)

	r.Group(func(r chi.Router) {
		r.Use(middleware.ArchiveTypeMiddleware)
		r.Post("/api/v0/reports", h.postReport)
		r.Post("/api/v0/reports/bundle", h.postBundle)
	})
	r.Get("/api/v0/reports", h.getReports)

	return r
}

func (h *BaseController) index(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "index.html", pageView{})
}

func (h *BaseController) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		h.render(w, statusFor(err), "index.html", pageView{Error: processingError(err)})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.render(w, http.StatusBadRequest, "index.html", pageView{Error: "Please choose a file to upload."})
		return
	}
	defer file.Close()

	rep, err := h.storage.ProcessSpreadsheet(r.Context(), header.Filename, file)
	if err != nil {
		h.log.Info("upload rejected", zap.String("file", header.Filename), zap.Error(err))
		h.render(w, statusFor(err), "index.html", pageView{Error: processingError(err)})
		return
	}

	images, err := charts.ForReport(rep, h.chartSize)
	if err != nil {
		h.log.Error("cannot render charts", zap.String("id", rep.ID), zap.Error(err))
		h.render(w, http.StatusInternalServerError, "index.html", pageView{Error: processingError(err)})
		return
	}
	view := pageView{Report: rep}
	for _, img := range images {
		view.Charts = append(view.Charts, chartView{
			Title: img.Title,
			Src:   template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(img.PNG)),
		})
	}
	h.render(w, http.StatusOK, "dashboard.html", view)
}

func (h *BaseController) postReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.process(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *BaseController) postBundle(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.process(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteBundle(&buf, rep, h.chartSize); err != nil {
		h.log.Error("cannot build bundle", zap.String("id", rep.ID), zap.Error(err))
		http.Error(w, "Failed to build report bundle", http.StatusInternalServerError)
		return
	}

	base := strings.TrimSuffix(filepath.Base(rep.FileName), filepath.Ext(rep.FileName))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": base + "-report.zip"}))
	_, _ = w.Write(buf.Bytes())
}

func (h *BaseController) getReports(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.storage.History(r.Context())
	if errors.Is(err, storage.ErrHistoryDisabled) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("Failed to retrieve reports", zap.Error(err))
		http.Error(w, fmt.Sprintf("Failed to retrieve reports: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summaries); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (h *BaseController) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Ping(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

// process builds a report from an API request and writes the error response
// itself when that fails.
func (h *BaseController) process(w http.ResponseWriter, r *http.Request) (*models.Report, bool) {
	name, body, err := spreadsheetInput(r)
	if err != nil {
		http.Error(w, processingError(err), statusFor(err))
		return nil, false
	}
	defer body.Close()

	rep, err := h.storage.ProcessSpreadsheet(r.Context(), name, body)
	if err != nil {
		h.log.Info("upload rejected", zap.String("file", name), zap.Error(err))
		http.Error(w, processingError(err), statusFor(err))
		return nil, false
	}
	return rep, true
}

// spreadsheetInput finds the uploaded spreadsheet: an entry unpacked from an
// archive, a multipart "file" field or a raw body named by ?name=.
func spreadsheetInput(r *http.Request) (string, io.ReadCloser, error) {
	if name, ok := middleware.SpreadsheetName(r.Context()); ok {
		return name, r.Body, nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return "", nil, err
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, errNoFile
		}
		return header.Filename, file, nil
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		return "", nil, errNoFile
	}
	return name, r.Body, nil
}

func (h *BaseController) render(w http.ResponseWriter, status int, page string, view pageView) {
	var buf bytes.Buffer
	if err := h.pages.ExecuteTemplate(&buf, page, view); err != nil {
		h.log.Error("cannot render page", zap.String("page", page), zap.Error(err))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func processingError(err error) string {
	return fmt.Sprintf("An error occurred during file processing: %v", err)
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, sheet.ErrUnsupportedFormat), errors.Is(err, sheet.ErrUnreadable),
		errors.Is(err, errNoFile), errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
