package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"media-upload-go/internal/compressor"
	"media-upload-go/internal/config"
	"media-upload-go/internal/domain"
	"media-upload-go/internal/repository"
	"media-upload-go/internal/storage"
	"media-upload-go/internal/uploader"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	sniffLen         = 512
)

type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.Mutex

	uploader *uploader.Uploader
	repo     repository.MediaRepository
	layout   *storage.Layout
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// UploadResponse is the payload of an upload. Errors lists files that were
// not recorded; their stored files have been removed.
type UploadResponse struct {
	Media   []*domain.Media    `json:"media"`
	Summary compressor.Summary `json:"summary"`
	Errors  []string           `json:"errors,omitempty"`
}

// httpError carries a status code from request validation to the handler.
type httpError struct {
	status int
	msg    string
}

func (e *httpError) Error() string { return e.msg }

func NewServer(cfg *config.Config, log *logrus.Logger, up *uploader.Uploader, repo repository.MediaRepository, layout *storage.Layout) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		router:    mux.NewRouter(),
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		uploader: up,
		repo:     repo,
		layout:   layout,
	}

	up.SetLogHook(func(level, message string) {
		s.broadcastWSMessage("log", map[string]interface{}{
			"level":   level,
			"message": message,
		})
	})

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/uploads", s.handleListUploads).Methods("GET")
	api.HandleFunc("/uploads/{id:[0-9]+}", s.handleGetUpload).Methods("GET")
	api.HandleFunc("/uploads/{id:[0-9]+}", s.handleDeleteUpload).Methods("DELETE")
	api.HandleFunc("/uploads/{category}", s.handleUpload).Methods("POST")
	api.HandleFunc("/statistics", s.handleGetStatistics).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)

	prefix := strings.TrimSuffix(s.cfg.Upload.URLPrefix, "/") + "/"
	s.router.PathPrefix(prefix).Handler(
		http.StripPrefix(prefix, http.FileServer(storedFiles{http.Dir(s.layout.Root())})),
	)
}

// storedFiles serves stored uploads and refuses directory listings.
type storedFiles struct {
	fs http.FileSystem
}

func (s storedFiles) Open(name string) (http.File, error) {
	f, err := s.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.log.Infof("Starting web server on http://%s", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.wsMutex.Lock()
	for conn := range s.wsClients {
		conn.Close()
		delete(s.wsClients, conn)
	}
	s.wsMutex.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.wsMutex.Lock()
	clients := len(s.wsClients)
	s.wsMutex.Unlock()

	snap := s.uploader.Stats().Snapshot()
	s.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"running":         true,
			"uptime":          snap.Uptime,
			"ws_clients":      clients,
			"max_upload_size": s.cfg.Upload.MaxUploadSize,
			"max_files":       s.cfg.Upload.MaxFiles,
		},
	})
}

// fieldFor returns the multipart field and file limit for a category.
func (s *Server) fieldFor(c compressor.Category) (string, int) {
	switch c {
	case compressor.CategoryAvatar:
		return "avatar", 1
	case compressor.CategoryEventImage:
		return "image", 1
	case compressor.CategoryPostImage:
		return "images", s.cfg.Upload.MaxFiles
	default:
		return "files", s.cfg.Upload.MaxFiles
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	category, err := compressor.ParseCategory(mux.Vars(r)["category"])
	if err != nil {
		s.writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	field, limit := s.fieldFor(category)

	// room for every file plus multipart overhead
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxUploadSize*int64(limit)+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeError(w, "Upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.writeError(w, "Invalid multipart body", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		s.writeError(w, fmt.Sprintf("No files in field %q", field), http.StatusBadRequest)
		return
	}
	if len(headers) > limit {
		s.writeError(w, fmt.Sprintf("Too many files: at most %d allowed", limit), http.StatusBadRequest)
		return
	}
	for _, fh := range headers {
		if err := s.checkFile(fh); err != nil {
			var he *httpError
			if errors.As(err, &he) {
				s.writeError(w, he.msg, he.status)
				return
			}
			s.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	staged := make([]uploader.StagedFile, 0, len(headers))
	for _, fh := range headers {
		sf, err := s.stage(category, fh)
		if err != nil {
			s.uploader.Discard(staged)
			s.log.WithField("operation", "upload").Errorf("Failed to stage %s: %v", fh.Filename, err)
			s.writeError(w, "Failed to store upload", http.StatusInternalServerError)
			return
		}
		staged = append(staged, sf)
	}

	s.broadcastWSMessage("upload_started", map[string]interface{}{
		"category": category,
		"files":    len(staged),
	})

	media, summary, err := s.uploader.Process(r.Context(), category, r.FormValue("owner"), staged)
	if err != nil {
		s.log.WithField("operation", "upload").Errorf("Failed to record upload: %v", err)
		if len(media) == 0 {
			s.writeError(w, "Failed to record upload", http.StatusInternalServerError)
			return
		}
	}

	s.broadcastWSMessage("upload_completed", map[string]interface{}{
		"category": category,
		"summary":  summary,
	})

	status := http.StatusCreated
	resp := UploadResponse{Media: media, Summary: summary}
	if err != nil {
		status = http.StatusMultiStatus
		resp.Errors = errorList(err)
	}
	s.writeJSON(w, status, APIResponse{
		Success: true,
		Message: fmt.Sprintf("%d of %d file(s) uploaded", len(media), len(staged)),
		Data:    resp,
	})
}

func errorList(err error) []string {
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}

// checkFile enforces the per-file size limit and sniffs the content type.
func (s *Server) checkFile(fh *multipart.FileHeader) error {
	if fh.Size > s.cfg.Upload.MaxUploadSize {
		return &httpError{http.StatusRequestEntityTooLarge, fmt.Sprintf("%s exceeds the %d byte limit", fh.Filename, s.cfg.Upload.MaxUploadSize)}
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return err
	}
	if !isSupportedImage(http.DetectContentType(head[:n])) {
		return &httpError{http.StatusUnsupportedMediaType, fmt.Sprintf("%s is not a supported image", fh.Filename)}
	}
	return nil
}

func isSupportedImage(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/webp", "image/gif":
		return true
	}
	return false
}

func (s *Server) stage(category compressor.Category, fh *multipart.FileHeader) (uploader.StagedFile, error) {
	f, err := fh.Open()
	if err != nil {
		return uploader.StagedFile{}, err
	}
	defer f.Close()
	return s.uploader.Stage(category, fh.Filename, f)
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	category := ""
	if raw := q.Get("category"); raw != "" {
		c, err := compressor.ParseCategory(raw)
		if err != nil {
			s.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		category = string(c)
	}

	limit := defaultListLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}

	media, err := s.repo.List(r.Context(), category, limit)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: media})
}

func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	m, err := s.repo.GetByID(r.Context(), id)
	if err != nil {
		s.writeRepoError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: m})
}

func (s *Server) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err := s.uploader.Delete(r.Context(), id); err != nil {
		s.writeRepoError(w, err)
		return
	}
	s.broadcastWSMessage("upload_deleted", map[string]interface{}{"id": id})
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: "Upload deleted"})
}

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	totals, err := s.repo.Totals(r.Context())
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	stats := s.uploader.Stats()
	s.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"summary": stats.GetSummary(),
			"session": stats.Snapshot(),
			"ledger": map[string]interface{}{
				"files":           totals.Files,
				"failed":          totals.Failed,
				"original_size":   totals.OriginalSize,
				"compressed_size": totals.CompressedSize,
				"saved_percent":   compressor.PercentSaved(totals.OriginalSize, totals.CompressedSize),
			},
		},
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	s.log.Debug("WebSocket client connected")

	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// broadcastWSMessage sends a message to every client. Writes are serialised
// under wsMutex since a websocket connection allows one writer at a time.
func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	msgBytes, err := json.Marshal(WSMessage{Type: messageType, Data: data})
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	for conn := range s.wsClients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			delete(s.wsClients, conn)
			conn.Close()
		}
	}
}

func (s *Server) writeRepoError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		s.writeError(w, "Upload not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, storage.ErrOutsideRoot) {
		s.writeError(w, err.Error(), http.StatusConflict)
		return
	}
	s.writeError(w, err.Error(), http.StatusInternalServerError)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, APIResponse{
		Success: false,
		Error:   message,
	})
}
