package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/IshaanNene/newsdesk/internal/config"
	"github.com/IshaanNene/newsdesk/internal/types"
)

// envelope wraps every JSON response.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	Timestamp  string `json:"timestamp"`
}

func timestamp() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func respond(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, envelope{
		StatusCode: status,
		Message:    message,
		Data:       data,
		Timestamp:  timestamp(),
	})
}

// requestValidator adapts go-playground/validator to echo.
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			if name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]; name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})
	_ = v.RegisterValidation("crawlurl", func(fl validator.FieldLevel) bool {
		return config.ValidateURL(fl.Field().String()) == nil
	})
	return &requestValidator{v: v}
}

func (r *requestValidator) Validate(i any) error {
	err := r.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return echo.NewHTTPError(http.StatusBadRequest, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "crawlurl":
		return fmt.Sprintf("%s must be an absolute http(s) URL", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// statusFor maps an error to its HTTP status and client message.
func statusFor(err error) (int, string, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprint(he.Message), ""
	}

	if fe, ok := types.AsFetchError(err); ok {
		if fe.IsClientError() {
			return http.StatusBadRequest, "Failed to crawl URL: " + fe.Message(), string(fe.Code)
		}
		return http.StatusInternalServerError, "Failed to crawl URL: " + fe.Message(), string(fe.Code)
	}

	var pe *types.ParseError
	switch {
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound, "Resource not found", ""
	case errors.Is(err, types.ErrInvalidURL):
		return http.StatusBadRequest, "Invalid URL", ""
	case errors.Is(err, types.ErrCycleLocked):
		return http.StatusConflict, "An ingestion cycle is already running on another instance", "locked"
	case errors.As(err, &pe):
		return http.StatusInternalServerError, "Failed to extract content", "parse"
	}
	return http.StatusInternalServerError, "Internal server error", ""
}

// errorHandler renders every error in the response envelope.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, message, code := statusFor(err)

	logger := s.logger.With("method", c.Request().Method, "path", c.Path(), "status", status)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	} else {
		logger.Debug("request rejected", "error", err)
	}

	body := envelope{StatusCode: status, Message: message, Error: code, Timestamp: timestamp()}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		logger.Warn("writing error response failed", "error", err)
	}
}
