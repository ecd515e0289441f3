package orchestrator

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"filmstrip/internal/rangefile"
)

const (
	jsonContentType  = "application/json"
	artifactFileName = "filmstrip.mp4"

	// tileRangeHeader tells clients which artifact byte range a tile came from.
	tileRangeHeader = "X-Artifact-Range"
)

// Handler exposes filmstrip HTTP endpoints using go-chi.
type Handler struct {
	svc *Service
	log *slog.Logger
}

// NewHandler returns a Handler that uses the given Service and Logger.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes mounts the filmstrip endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.Health)
	r.Route("/filmstrips", func(r chi.Router) {
		r.Post("/", h.CreateFilmstrip)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetFilmstrip)
			r.Delete("/", h.DeleteFilmstrip)
			r.Get("/artifact", h.GetArtifact)
			r.Get("/tiles/{index}", h.GetTile)
		})
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status     string `json:"status"`
	Generating bool   `json:"generating"`
	Stored     int    `json:"stored"`
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Generating: h.svc.Busy(),
		Stored:     h.svc.Count(),
	})
}

// CreateFilmstrip handles POST /filmstrips.
// Body: { "url": "https://cdn.example/video.mp4", "sizeHint": 1048576, "displayName": "video.mp4" }.
func (h *Handler) CreateFilmstrip(w http.ResponseWriter, r *http.Request) {
	var v Video
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		h.log.Debug("invalid filmstrip body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	f, err := h.svc.Create(r.Context(), v)
	if err != nil {
		var netErr *rangefile.NetworkError
		var protoErr *rangefile.ProtocolError
		switch {
		case errors.Is(err, ErrInvalidVideo):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrBusy):
			h.log.Info("filmstrip rejected generation in progress", slog.String("url", v.URL))
			writeError(w, http.StatusConflict, err.Error())
		case errors.As(err, &netErr), errors.As(err, &protoErr):
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			h.log.Error("create filmstrip failed", slog.String("url", v.URL), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, f)
}

// GetFilmstrip handles GET /filmstrips/{id}.
func (h *Handler) GetFilmstrip(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.Get(FilmstripID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// DeleteFilmstrip handles DELETE /filmstrips/{id}.
func (h *Handler) DeleteFilmstrip(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(FilmstripID(chi.URLParam(r, "id"))); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetArtifact handles GET /filmstrips/{id}/artifact. Range requests are
// honoured, so a client can fetch tiles straight from the artifact.
func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.Get(FilmstripID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	artifact, err := os.Open(f.ArtifactPath)
	if err != nil {
		h.log.Error("open artifact failed", slog.String("id", string(f.ID)), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "artifact unavailable")
		return
	}
	defer artifact.Close()

	info, err := artifact.Stat()
	if err != nil {
		h.log.Error("stat artifact failed", slog.String("id", string(f.ID)), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "artifact unavailable")
		return
	}

	w.Header().Set("Content-Type", f.ContentType)
	http.ServeContent(w, r, artifactFileName, info.ModTime(), artifact)
}

// GetTile handles GET /filmstrips/{id}/tiles/{index}.
func (h *Handler) GetTile(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "tile index must be an integer")
		return
	}

	data, seg, err := h.svc.ReadTile(FilmstripID(chi.URLParam(r, "id")), index)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", TileContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set(tileRangeHeader, TileRange(seg))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.log.Error("filmstrip request failed", slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
