package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"broll/internal/api"
	"broll/internal/config"
	"broll/internal/jobs"
	"broll/internal/logging"
	"broll/internal/services"
	"broll/internal/textutil"
)

const (
	uploadField     = "video"
	multipartMemory = 8 << 20
	requestIDHeader = "X-Request-ID"

	msgNoVideoFile    = "No video file"
	msgNoSelectedFile = "No selected file"
	msgInvalidType    = "Invalid file type"
	msgTooLarge       = "File too large"
	msgNotReady       = "File not ready or not found"
	msgServerBusy     = "Server busy, try again later"
	msgTaskNotFound   = "Task not found"
	msgTaskFinished   = "Task already finished"
)

// jobService is the slice of the workflow manager the HTTP surface needs.
type jobService interface {
	Submit(ctx context.Context, sourcePath, originalName string) (string, error)
	Status(ctx context.Context, id string) (jobs.Job, error)
	Output(ctx context.Context, id string) (string, error)
	Cancel(ctx context.Context, id string) error
}

type apiServer struct {
	bind      string
	uploadDir string
	maxUpload int64
	allowed   func(name string) bool
	jobs      jobService
	status    func(context.Context) Status
	logger    *slog.Logger
	newID     func() string

	router   *mux.Router
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, svc jobService, status func(context.Context) Status, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:      strings.TrimSpace(cfg.Paths.APIBind),
		uploadDir: cfg.Paths.UploadDir,
		maxUpload: cfg.MaxUploadBytes(),
		allowed:   cfg.AllowedExtension,
		jobs:      svc,
		status:    status,
		logger:    logging.NewComponentLogger(logger, "api-server"),
		newID:     uuid.NewString,
	}

	r := mux.NewRouter()
	r.Use(srv.withRequestContext)
	r.Use(authMiddleware(strings.TrimSpace(cfg.API.APIToken)))
	r.HandleFunc("/upload", srv.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/status/{task_id}", srv.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/download/{task_id}", srv.handleDownload).Methods(http.MethodGet)
	r.HandleFunc("/cancel/{task_id}", srv.handleCancel).Methods(http.MethodPost)
	r.HandleFunc("/api/health", srv.handleHealth).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		srv.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		srv.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	srv.router = r

	srv.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("api bind address not configured")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.maxUpload > 0 {
		if r.ContentLength > s.maxUpload {
			s.writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			s.writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		s.writeError(w, http.StatusBadRequest, msgNoVideoFile)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		// A file input submitted without a selection arrives as a plain value.
		if _, ok := r.MultipartForm.Value[uploadField]; ok {
			s.writeError(w, http.StatusBadRequest, msgNoSelectedFile)
			return
		}
		s.writeError(w, http.StatusBadRequest, msgNoVideoFile)
		return
	}
	defer file.Close()

	original := strings.TrimSpace(header.Filename)
	if original == "" {
		s.writeError(w, http.StatusBadRequest, msgNoSelectedFile)
		return
	}
	if !s.allowed(original) {
		s.writeError(w, http.StatusBadRequest, msgInvalidType)
		return
	}

	logger := logging.WithContext(r.Context(), s.logger)
	dest, err := s.saveUpload(file, original)
	if err != nil {
		if isTooLarge(err) {
			s.writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		logger.Error("failed to save upload", logging.Error(err), logging.String(logging.FieldEventType, "upload_save_failed"))
		s.writeError(w, http.StatusInternalServerError, "could not save upload")
		return
	}

	// The upload is on disk; a client disconnect must not abort admission.
	id, err := s.jobs.Submit(context.WithoutCancel(r.Context()), dest, original)
	if err != nil {
		_ = os.Remove(dest)
		switch {
		case errors.Is(err, services.ErrQueueFull):
			s.writeError(w, http.StatusServiceUnavailable, msgServerBusy)
		case errors.Is(err, services.ErrValidation):
			s.writeError(w, http.StatusBadRequest, msgNoVideoFile)
		default:
			logger.Error("failed to submit upload", logging.Error(err), logging.String(logging.FieldEventType, "upload_submit_failed"))
			s.writeError(w, http.StatusInternalServerError, "could not queue upload")
		}
		return
	}

	logger.Info("upload accepted",
		logging.String(logging.FieldJobID, id),
		logging.String("original_name", original),
		logging.String(logging.FieldEventType, "upload_accepted"),
	)
	s.writeJSON(w, http.StatusOK, api.UploadResponse{TaskID: id})
}

// saveUpload writes src to <upload_dir>/<uuid>_<sanitized name>.
func (s *apiServer) saveUpload(src io.Reader, original string) (string, error) {
	name := textutil.SanitizeFileName(filepath.Base(original))
	if name == "" || name == "." {
		name = "upload" + strings.ToLower(filepath.Ext(original))
	}
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	dest := filepath.Join(s.uploadDir, s.newID()+"_"+name)
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dest)
		return "", fmt.Errorf("close upload: %w", err)
	}
	return dest, nil
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["task_id"]
	job, err := s.jobs.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			s.writeJSON(w, http.StatusOK, api.NotFoundResponse{Status: api.StatusNotFound})
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromJob(job))
}

func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["task_id"]
	path, err := s.jobs.Output(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrNotReady) {
			s.writeError(w, http.StatusNotFound, msgNotReady)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	f, err := os.Open(path)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "completed output missing", "output_missing",
			logging.String(logging.FieldJobID, id),
			logging.String("output", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "download unavailable"),
			logging.String(logging.FieldErrorHint, "check output_dir retention"),
		)
		s.writeError(w, http.StatusNotFound, msgNotReady)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	name := filepath.Base(path)
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["task_id"]
	if err := s.jobs.Cancel(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			s.writeError(w, http.StatusNotFound, msgTaskNotFound)
		case errors.Is(err, services.ErrValidation):
			s.writeError(w, http.StatusConflict, msgTaskFinished)
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	resp := api.CancelResponse{TaskID: id, Status: string(jobs.StatusProcessing)}
	if job, err := s.jobs.Status(r.Context(), id); err == nil {
		resp.Status = string(job.Status)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.status(r.Context())
	wf := api.FromSummary(st.Workflow)
	dependencies := api.FromDependencies(st.Dependencies)
	s.writeJSON(w, http.StatusOK, api.HealthResponse{
		Status:       api.HealthState(wf, dependencies),
		PID:          st.PID,
		Workflow:     wf,
		Dependencies: dependencies,
	})
}

// withRequestContext tags each request with a correlation id and logs it.
func (s *apiServer) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := services.WithRequestID(r.Context(), id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))
		logging.WithContext(ctx, s.logger).Debug("http request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rec.status),
			logging.Duration("elapsed", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
