package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/short-link/internal/entity"
	"github.com/vadimbarashkov/short-link/pkg/response"
)

var (
	emptyRequestBodyResponse   = response.Failure(response.KindInvalidInput, "empty request body")
	invalidRequestBodyResponse = response.Failure(response.KindInvalidInput, "invalid request body")
	invalidURLResponse         = response.Failure(response.KindInvalidInput, "invalid url: an absolute url with scheme and host is required")
	linkNotFoundResponse       = response.Failure(response.KindNotFound, "short link not found")
	routeNotFoundResponse      = response.Failure(response.KindNotFound, "route not found")
	methodNotAllowedResponse   = response.Failure(response.KindMethodNotAllowed, "method not allowed")
	exhaustedResponse          = response.Failure(response.KindCodeGenerationExhausted, "could not allocate a short code, try again")
	serverErrorResponse        = response.Failure(response.KindInternal, "internal server error")
)

type linkUseCase interface {
	Shorten(ctx context.Context, originalURL string) (*entity.ShortLink, error)
	Expand(ctx context.Context, code string) (*entity.ShortLink, error)
	Stats(ctx context.Context, code string) (*entity.ShortLink, error)
	Delete(ctx context.Context, code string) (*entity.ShortLink, error)
}

type linkHandler struct {
	useCase  linkUseCase
	validate *validator.Validate
	logger   *slog.Logger
}

func newLinkHandler(useCase linkUseCase, validate *validator.Validate, logger *slog.Logger) *linkHandler {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &linkHandler{
		useCase:  useCase,
		validate: validate,
		logger:   logger,
	}
}

func (h *linkHandler) shorten(w http.ResponseWriter, r *http.Request) {
	var req shortenRequest

	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)

		if errors.Is(err, io.EOF) {
			render.JSON(w, r, emptyRequestBodyResponse)
			return
		}

		render.JSON(w, r, invalidRequestBodyResponse)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationFailure(err))
		return
	}

	link, err := h.useCase.Shorten(r.Context(), req.URL)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.Success(toCreatedLinkResponse(link)))
}

func (h *linkHandler) expand(w http.ResponseWriter, r *http.Request) {
	link, err := h.useCase.Expand(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response.Success(toLinkResponse(link)))
}

func (h *linkHandler) stats(w http.ResponseWriter, r *http.Request) {
	link, err := h.useCase.Stats(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response.Success(toLinkResponse(link)))
}

func (h *linkHandler) delete(w http.ResponseWriter, r *http.Request) {
	link, err := h.useCase.Delete(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response.Success(deletedLinkResponse{
		Code:    link.Code,
		Deleted: true,
	}))
}

// renderError maps a use case error onto the failure envelope.
func (h *linkHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, entity.ErrInvalidURL):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidURLResponse)
	case errors.Is(err, entity.ErrLinkNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, linkNotFoundResponse)
	case errors.Is(err, entity.ErrCodeGenerationExhausted):
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))
		h.logger.ErrorContext(r.Context(), "short code space exhausted", slog.Any("err", err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, exhaustedResponse)
	default:
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, healthResponse{
		Success:   true,
		Status:    "OK",
		Timestamp: time.Now().UTC(),
	})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusNotFound)
	render.JSON(w, r, routeNotFoundResponse)
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusMethodNotAllowed)
	render.JSON(w, r, methodNotAllowedResponse)
}
