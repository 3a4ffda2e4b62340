package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/tablero-sucursales/tablero/internal/platform/httpx"
)

const lookupTimeout = 5 * time.Second

// Handler issues passes over HTTP.
type Handler struct {
	logger   *slog.Logger
	cards    CardSource
	builder  *Builder
	validate *validator.Validate
}

// NewHandler constructs the pass endpoint.
func NewHandler(logger *slog.Logger, cards CardSource, builder *Builder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, cards: cards, builder: builder, validate: validator.New()}
}

// MountRoutes registers GET /pass under the current router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.With(httprate.LimitByIP(20, time.Minute)).Get("/pass", h.handlePass)
}

type failureBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func (h *Handler) handlePass(w http.ResponseWriter, r *http.Request) {
	req := Request{
		PassTypeIdentifier: r.URL.Query().Get("passTypeIdentifier"),
		SerialNumber:       r.URL.Query().Get("serialNumber"),
	}
	if err := h.validate.Struct(req); err != nil {
		h.fail(w, "invalid pass request", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
	defer cancel()
	card, err := h.cards.Card(ctx, req.SerialNumber)
	if err != nil {
		h.fail(w, "card lookup failed", err)
		return
	}

	archive, err := h.builder.Build(req, card.Fields())
	if err != nil {
		h.fail(w, "pass generation failed", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apple.pkpass")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=tarjeta-%s.pkpass", card.ID))
	w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(archive); err != nil {
		h.logger.Warn("stream pass", slog.String("serial", req.SerialNumber), slog.Any("error", err))
	}
}

// fail answers every failure with 500 and an {error, detail} body.
func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	level := slog.LevelError
	if errors.Is(err, ErrCardNotFound) {
		level = slog.LevelWarn
	}
	h.logger.Log(context.Background(), level, msg, slog.Any("error", err))
	httpx.JSON(w, http.StatusInternalServerError, failureBody{Error: msg, Detail: err.Error()})
}
