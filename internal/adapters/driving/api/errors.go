package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/logger"
)

// errorBody is the JSON envelope for every failed request.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

// kindStatus maps error kinds to HTTP status codes.
var kindStatus = map[domain.ErrorKind]int{
	domain.KindInvalidInput:        http.StatusBadRequest,
	domain.KindNotFound:            http.StatusNotFound,
	domain.KindNotReady:            http.StatusConflict,
	domain.KindReprocessRequired:   http.StatusConflict,
	domain.KindNoRelevantContent:   http.StatusUnprocessableEntity,
	domain.KindProviderUnavailable: http.StatusServiceUnavailable,
	domain.KindInternal:            http.StatusInternalServerError,
}

// classify turns any error into a kind, an HTTP status and a message.
func classify(err error) (domain.ErrorKind, int, errorDetail) {
	if askErr, ok := domain.AsAskError(err); ok {
		code, found := kindStatus[askErr.Kind]
		if !found {
			code = http.StatusInternalServerError
		}
		return askErr.Kind, code, errorDetail{
			Kind:    string(askErr.Kind),
			Message: askErr.Message,
			Status:  string(askErr.Status),
		}
	}

	var kind domain.ErrorKind
	switch {
	case errors.Is(err, domain.ErrNotFound):
		kind = domain.KindNotFound
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrUnsupportedMediaType),
		errors.Is(err, domain.ErrNoExtractableContent):
		kind = domain.KindInvalidInput
	case errors.Is(err, domain.ErrDocumentNotReady):
		kind = domain.KindNotReady
	case errors.Is(err, domain.ErrProviderUnavailable),
		errors.Is(err, domain.ErrEmbeddingUnavailable),
		errors.Is(err, domain.ErrLLMUnavailable):
		kind = domain.KindProviderUnavailable
	default:
		kind = domain.KindInternal
	}

	code := kindStatus[kind]
	switch {
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrLockHeld):
		code = http.StatusConflict
	case errors.Is(err, domain.ErrUnsupportedMediaType):
		code = http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrNoExtractableContent):
		code = http.StatusUnprocessableEntity
	}

	message := err.Error()
	if kind == domain.KindInternal {
		message = "internal error"
	}
	return kind, code, errorDetail{Kind: string(kind), Message: message}
}

// errorHandler renders errors returned by handlers as the JSON envelope.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, _ := he.Message.(string)
		if msg == "" {
			msg = http.StatusText(he.Code)
		}
		kind := domain.KindInvalidInput
		if he.Code == http.StatusNotFound || he.Code == http.StatusMethodNotAllowed {
			kind = domain.KindNotFound
		}
		if he.Code >= http.StatusInternalServerError {
			kind = domain.KindInternal
		}
		_ = c.JSON(he.Code, errorBody{Error: errorDetail{Kind: string(kind), Message: msg}})
		return
	}

	kind, code, detail := classify(err)
	if kind == domain.KindInternal || kind == domain.KindProviderUnavailable {
		req := c.Request()
		logger.Error("%d %s %s: %v", code, req.Method, req.URL.Path, err)
	}
	_ = c.JSON(code, errorBody{Error: detail})
}

func badRequest(message string) error {
	return echo.NewHTTPError(http.StatusBadRequest, message)
}
