package handler

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"qrscan/internal/scanner/dispatch"
	"qrscan/internal/scanner/frame"
	"qrscan/internal/scanner/identifier"
	"qrscan/internal/scanner/pipeline"
	"qrscan/internal/scanner/session"
	dErrors "qrscan/pkg/domain-errors"
	"qrscan/pkg/platform/httputil"
	"qrscan/pkg/platform/sentinel"
	"qrscan/pkg/requestcontext"
)

const maxUploadBytes = 10 << 20

// Sessions is the session lifecycle the handler drives.
type Sessions interface {
	Start(ctx context.Context, camera string, continuous bool, listener dispatch.Listener) (*session.Session, error)
	Get(id uuid.UUID) (*session.Session, error)
	List() []session.Snapshot
	Close(id uuid.UUID) error
}

// Decoder decodes a single uploaded still.
type Decoder interface {
	Decode(ctx context.Context, source string, img image.Image) (pipeline.Detection, error)
}

// Handler serves the scanner control API.
type Handler struct {
	sessions Sessions
	decoder  Decoder
	listener dispatch.Listener
	logger   *slog.Logger
}

// New creates a scanner Handler. listener receives detections from every
// session started through the API.
func New(sessions Sessions, decoder Decoder, listener dispatch.Listener, logger *slog.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		decoder:  decoder,
		listener: listener,
		logger:   logger,
	}
}

// Register registers the scanner routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/scanner", func(r chi.Router) {
		r.Post("/sessions", h.handleStart)
		r.Get("/sessions", h.handleList)
		r.Get("/sessions/{id}", h.handleGet)
		r.Post("/sessions/{id}/pause", h.command((*session.Session).Pause))
		r.Post("/sessions/{id}/resume", h.command((*session.Session).Resume))
		r.Post("/sessions/{id}/capture", h.command((*session.Session).Capture))
		r.Delete("/sessions/{id}", h.handleClose)
		r.Post("/decode", h.handleDecode)
	})
}

type startRequest struct {
	Source     string `json:"source"`
	Continuous bool   `json:"continuous"`
}

type startResponse struct {
	SessionID uuid.UUID `json:"session_id"`
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid start session request", "request_id", requestID, "error", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Source == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "source is required"))
		return
	}

	sess, err := h.sessions.Start(ctx, req.Source, req.Continuous, h.listener)
	if err != nil {
		h.writeError(ctx, w, err, "failed to start session")
		return
	}
	h.logger.InfoContext(ctx, "scan session started",
		"request_id", requestID,
		"session_id", sess.ID().String(),
		"source", req.Source,
		"continuous", req.Continuous,
	)
	httputil.WriteJSON(w, http.StatusCreated, startResponse{SessionID: sess.ID()})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sessions": h.sessions.List()})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *Handler) command(fn func(*session.Session) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := h.lookup(w, r)
		if !ok {
			return
		}
		if err := fn(sess); err != nil {
			h.writeError(r.Context(), w, err, "session command failed")
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Close(id); err != nil {
		h.writeError(r.Context(), w, err, "failed to close session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDecode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, _, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "file is not a jpeg or png image"))
		return
	}

	det, err := h.decoder.Decode(ctx, "upload", img)
	if err != nil {
		h.writeError(ctx, w, err, "decode failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, det)
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid session id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return nil, false
	}
	sess, err := h.sessions.Get(id)
	if err != nil {
		h.writeError(r.Context(), w, err, "session lookup failed")
		return nil, false
	}
	return sess, true
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	de := toDomainError(err)
	if dErrors.Is(de, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
	}
	httputil.WriteError(w, de)
}

// toDomainError translates infrastructure and scanner errors at the
// transport boundary.
func toDomainError(err error) error {
	switch {
	case errors.Is(err, pipeline.ErrNoCode):
		return dErrors.Wrap(err, dErrors.CodeUnprocessable, "no qr code found")
	case errors.Is(err, identifier.ErrUnrecognized):
		return dErrors.Wrap(err, dErrors.CodeUnprocessable, "qr code does not carry a student identifier")
	case errors.Is(err, pipeline.ErrRemoteUnreachable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "remote decoder unreachable")
	case frame.IsCameraError(err):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "camera unavailable")
	case errors.Is(err, session.ErrTerminated), errors.Is(err, session.ErrInvalidPhase), errors.Is(err, session.ErrBusy):
		return dErrors.Wrap(err, dErrors.CodeConflict, err.Error())
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, err.Error())
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, err.Error())
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeConflict, err.Error())
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}
}
