package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sig-0/p2prates/types"
)

const maxSymbolLength = 12

var (
	errInvalidSymbol = errors.New("invalid symbol (must be 2-12 letters or digits)")
	errUnavailable   = errors.New("market data is temporarily unavailable")
	errInternal      = errors.New("unable to process request")
)

// Offers serves the ranked P2P offers for a market
func (s *Server) Offers(w http.ResponseWriter, r *http.Request) {
	var (
		assetParam = chi.URLParam(r, "asset")
		fiatParam  = chi.URLParam(r, "fiat")

		sideParam   = r.URL.Query().Get("side")
		amountParam = r.URL.Query().Get("amount")
	)

	// Parse the market
	pair, err := parsePair(assetParam, fiatParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	// Parse the taker side (defaults to BUY)
	side, err := types.ParseSide(sideParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	resp := &OffersResponse{
		Pair: pair,
		Side: side,
	}

	// Parse the amount to fill, if any
	if v := strings.TrimSpace(amountParam); v != "" {
		amount, err := types.ParseQuantity(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)

			return
		}

		resp.Amount = &amount
		resp.Results, err = s.engine.OffersForAmount(r.Context(), pair, side, amount)
	} else {
		resp.Results, err = s.engine.TopOffers(r.Context(), pair, side)
	}

	if err != nil {
		s.writeEngineError(w, "unable to fetch offers", err)

		return
	}

	if resp.Results == nil {
		resp.Results = []types.Offer{}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Convert serves the conversion rate between two assets
func (s *Server) Convert(w http.ResponseWriter, r *http.Request) {
	var (
		fromParam   = chi.URLParam(r, "from")
		toParam     = chi.URLParam(r, "to")
		amountParam = r.URL.Query().Get("amount")
	)

	from, err := parseSymbol(fromParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	to, err := parseSymbol(toParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	amount, err := parseAmount(amountParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	result, err := s.engine.Convert(r.Context(), from, to, amount)
	if err != nil {
		s.writeEngineError(w, "unable to convert", err)

		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Snapshot serves the market snapshot of a single asset
func (s *Server) Snapshot(w http.ResponseWriter, r *http.Request) {
	symbol, err := parseSymbol(chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	snapshot, err := s.engine.Snapshot(r.Context(), symbol)
	if err != nil {
		s.writeEngineError(w, "unable to fetch snapshot", err)

		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// writeEngineError logs the full failure and writes a sanitized response
func (s *Server) writeEngineError(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)

	s.logger.Debug(
		msg,
		"status", status,
		"err", err,
	)

	writeError(w, status, publicError(status, err))
}

// statusFor maps the engine error kind to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidAmount),
		errors.Is(err, types.ErrInvalidSide),
		errors.Is(err, types.ErrInvalidPair):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrAllSourcesExhausted),
		errors.Is(err, types.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	case types.IsNoData(err):
		return http.StatusNotFound
	case errors.Is(err, types.ErrUpstreamError):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicError hides per-source diagnostics from API clients
func publicError(status int, err error) error {
	switch status {
	case http.StatusBadRequest:
		return err
	case http.StatusNotFound:
		for _, kind := range []error{
			types.ErrSymbolNotFound,
			types.ErrNoOffersFound,
			types.ErrNoConversionPath,
		} {
			if errors.Is(err, kind) {
				return kind
			}
		}

		return err
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return errUnavailable
	default:
		return errInternal
	}
}

func parsePair(assetRaw, fiatRaw string) (types.Pair, error) {
	asset, err := parseSymbol(assetRaw)
	if err != nil {
		return types.Pair{}, err
	}

	fiat, err := parseSymbol(fiatRaw)
	if err != nil {
		return types.Pair{}, err
	}

	return types.ParsePair(fmt.Sprintf("%s/%s", asset, fiat))
}

func parseSymbol(v string) (types.Currency, error) {
	s := types.NormalizeCurrency(v)
	if len(s) < 2 || len(s) > maxSymbolLength {
		return "", errInvalidSymbol
	}

	for _, c := range s {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return "", errInvalidSymbol
		}
	}

	return s, nil
}

func parseAmount(v string) (*decimal.Decimal, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}

	amount, err := decimal.NewFromString(v)
	if err != nil || !amount.IsPositive() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidAmount, v)
	}

	return &amount, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // Fine to ignore
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := &ErrorResponse{
		Error: err.Error(),
	}

	writeJSON(w, status, resp)
}
