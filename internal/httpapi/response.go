package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/TemirB/order-desk/internal/application/resource"
	"github.com/TemirB/order-desk/internal/domain"
)

const (
	headerUserID   = "X-User-ID"
	headerClientID = "X-Client-ID"

	maxPerPage = 100
	maxBody    = 1 << 20
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// invalidInput is reported as 422.
type invalidInput struct{ msg string }

func (e invalidInput) Error() string { return e.msg }

func invalidf(format string, args ...any) error {
	return invalidInput{msg: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, code int, v envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, code int, message string, data any) {
	writeJSON(w, code, envelope{Success: true, Message: message, Data: data})
}

// fail maps err onto a status code. Store failures are logged and hidden
// behind a generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var invalid invalidInput
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusUnprocessableEntity, envelope{Message: invalid.msg})
	case domain.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, envelope{Message: "not found"})
	case domain.IsForbidden(err):
		writeJSON(w, http.StatusForbidden, envelope{Message: err.Error()})
	default:
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, envelope{Message: "internal error"})
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("order_status", func(fl validator.FieldLevel) bool {
		return domain.OrderStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("transaction_status", func(fl validator.FieldLevel) bool {
		return domain.TransactionStatus(fl.Field().String()).Valid()
	})
	return v
}

func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalidf("bad request body: %v", err)
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return invalidf("field %s failed on %s", fe.Field(), fe.Tag())
		}
		return invalidf("%v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidf("invalid %s %q", name, raw)
	}
	return id, nil
}

// pagination reads ?page and ?per_page, defaulting to the first page of
// resource.DefaultPerPage items.
func pagination(r *http.Request) (page, perPage int, err error) {
	page, perPage = 1, resource.DefaultPerPage
	q := r.URL.Query()
	if raw := q.Get("page"); raw != "" {
		if page, err = strconv.Atoi(raw); err != nil || page < 1 {
			return 0, 0, invalidf("invalid page %q", raw)
		}
	}
	if raw := q.Get("per_page"); raw != "" {
		if perPage, err = strconv.Atoi(raw); err != nil || perPage < 1 || perPage > maxPerPage {
			return 0, 0, invalidf("invalid per_page %q", raw)
		}
	}
	return page, perPage, nil
}

// actor reads the caller identity set by the authenticating proxy. A missing
// client header yields an actor without a client.
func actor(r *http.Request) (domain.Actor, error) {
	var a domain.Actor
	for _, h := range []struct {
		name string
		dst  *int64
	}{
		{headerUserID, &a.UserID},
		{headerClientID, &a.ClientID},
	} {
		raw := r.Header.Get(h.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			return domain.Actor{}, invalidf("invalid %s header", h.name)
		}
		*h.dst = v
	}
	return a, nil
}
