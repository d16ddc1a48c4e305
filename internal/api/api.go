// Package api exposes the pricing engine over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/matrixise/token-pricer/internal/catalog"
	"github.com/matrixise/token-pricer/internal/config"
	"github.com/matrixise/token-pricer/internal/fixedpoint"
	"github.com/matrixise/token-pricer/internal/pricing"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

// PriceBody is the reference price of a request
type PriceBody struct {
	Currency string          `json:"currency" validate:"required"`
	Amount   decimal.Decimal `json:"amount"`
}

// PricesRequest is the body of POST /v1/prices
type PricesRequest struct {
	Target          string            `json:"target"`
	Targets         []string          `json:"targets" validate:"dive,required"`
	Currencies      []catalog.Record  `json:"currencies" validate:"dive"`
	ProxyCurrencies []catalog.Record  `json:"proxy_currencies" validate:"dive"`
	Price           *PriceBody        `json:"price"`
	Wallet          string            `json:"wallet" validate:"omitempty,eth_addr"`
	Readiness       pricing.Readiness `json:"readiness"`
}

// ErrorResponse is returned with every non-2xx status
type ErrorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	engine   *pricing.Engine
	validate *validator.Validate
	logger   *slog.Logger
}

// NewRouter builds the HTTP routes. health may be nil.
func NewRouter(engine *pricing.Engine, health http.HandlerFunc, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{engine: engine, validate: config.NewValidator(), logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	if health != nil {
		r.Get("/health", health)
	}
	r.Route("/v1", func(r chi.Router) {
		r.Post("/prices", h.prices)
	})
	return r
}

func (h *handler) prices(w http.ResponseWriter, r *http.Request) {
	var body PricesRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err))
		return
	}

	req, err := h.toRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, h.engine.Compute(req))
}

func (h *handler) toRequest(body PricesRequest) (pricing.Request, error) {
	if err := h.validate.Struct(&body); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return pricing.Request{}, fmt.Errorf("invalid field %s (%s)", verrs[0].Namespace(), verrs[0].Tag())
		}
		return pricing.Request{}, err
	}

	currencies, err := catalog.Build(body.Currencies)
	if err != nil {
		return pricing.Request{}, fmt.Errorf("currencies: %w", err)
	}
	proxies, err := catalog.Build(body.ProxyCurrencies)
	if err != nil {
		return pricing.Request{}, fmt.Errorf("proxy_currencies: %w", err)
	}

	req := pricing.Request{
		Target:          body.Target,
		Targets:         body.Targets,
		Currencies:      currencies,
		ProxyCurrencies: proxies,
		Wallet:          body.Wallet,
		Readiness:       body.Readiness,
	}
	if body.Price != nil {
		if body.Price.Amount.IsNegative() {
			return pricing.Request{}, fmt.Errorf("price.amount: %w", fixedpoint.ErrNegative)
		}
		if err := fixedpoint.CheckRange(body.Price.Amount); err != nil {
			return pricing.Request{}, fmt.Errorf("price.amount: %w", err)
		}
		req.Price = &pricing.ReferencePrice{Currency: body.Price.Currency, Amount: body.Price.Amount}
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// requestLogger logs one line per request through slog
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
