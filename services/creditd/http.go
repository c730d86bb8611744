package creditd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	shopspring "github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"eurocredit/core/types"
	"eurocredit/native/credit"
	"eurocredit/native/valuation"
)

const maxEventPage = 500

type accountResponse struct {
	Account         string `json:"account"`
	Debt            string `json:"debt"`
	CollateralA     string `json:"collateralAssetA"`
	CollateralNtv   string `json:"collateralNative"`
	CollateralB     string `json:"collateralAssetB"`
	CollateralValue string `json:"collateralValuePeg"`
	Issuable        string `json:"issuable"`
	HealthFactor    string `json:"healthFactor"`
	HealthRatio     string `json:"healthRatio"`
	Liquidatable    bool   `json:"liquidatable"`
}

type paramsResponse struct {
	Engine               string   `json:"engine"`
	Collateral           []string `json:"collateral"`
	ThresholdPercent     uint64   `json:"thresholdPercent"`
	LiquidationBonus     uint64   `json:"liquidationBonus"`
	LiquidationPrecision uint64   `json:"liquidationPrecision"`
}

type eventResponse struct {
	ID         string            `json:"id,omitempty"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	RecordedAt string            `json:"recordedAt,omitempty"`
}

// Handler exposes the read-only query API, the Prometheus registry and a
// health check. Each client is rate limited when [http] RequestsPerMinute is
// set.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	if limit := s.Config.HTTP.RequestsPerMinute; limit > 0 {
		r.Use(newRateLimiter(limit, s.Config.HTTP.Burst).Middleware)
	}

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(api chi.Router) {
		api.Get("/params", s.handleParams)
		api.Get("/accounts/{address}", s.handleAccount)
		api.Get("/events", s.handleEvents)
	})
	return otelhttp.NewHandler(r, "creditd")
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleParams(w http.ResponseWriter, _ *http.Request) {
	params := s.Engine.Params()
	resp := paramsResponse{
		Engine:               params.Address.Hex(),
		ThresholdPercent:     params.ThresholdPercent,
		LiquidationBonus:     params.LiquidationBonus,
		LiquidationPrecision: params.LiquidationPrecision,
	}
	for _, addr := range s.Engine.CollateralAddresses() {
		resp.Collateral = append(resp.Collateral, addr.Hex())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleAccount(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		writeError(w, http.StatusBadRequest, errors.New("invalid account address"))
		return
	}
	account := common.HexToAddress(raw)
	ctx := r.Context()
	engine := s.Engine.View(s.State.Committed())

	info, err := engine.AccountInformation(ctx, account)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, credit.ErrOracleFailure) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err)
		return
	}
	amountA, amountNative, amountB, err := engine.CollateralForUser(ctx, account)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{
		Account:         account.Hex(),
		Debt:            decimal(info.Debt),
		CollateralA:     decimal(amountA),
		CollateralNtv:   decimal(amountNative),
		CollateralB:     decimal(amountB),
		CollateralValue: decimal(info.CollateralValuePeg),
		Issuable:        decimal(info.Issuable),
		HealthFactor:    decimal(info.HealthFactor),
		HealthRatio:     healthRatio(info.HealthFactor),
		Liquidatable:    info.HealthFactor.Lt(valuation.MinHealthFactor),
	})
}

// handleEvents serves the archive when one is configured and the executor's
// in-memory history otherwise.
func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	eventType := strings.TrimSpace(r.URL.Query().Get("type"))
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = min(parsed, maxEventPage)
	}

	out := make([]eventResponse, 0)
	if s.Archive != nil {
		records, err := s.Archive.List(r.Context(), eventType, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		for _, rec := range records {
			out = append(out, eventResponse{
				ID:         rec.ID,
				Type:       rec.Type,
				Attributes: rec.Attributes,
				RecordedAt: rec.RecordedAt.UTC().Format(time.RFC3339),
			})
		}
		writeJSON(w, http.StatusOK, out)
		return
	}
	for _, evt := range filterEvents(s.Executor.Events(), eventType, limit) {
		out = append(out, eventResponse{Type: evt.Type, Attributes: evt.Attributes})
	}
	writeJSON(w, http.StatusOK, out)
}

func filterEvents(history []types.Event, eventType string, limit int) []types.Event {
	var out []types.Event
	for _, evt := range history {
		if eventType != "" && evt.Type != eventType {
			continue
		}
		out = append(out, evt)
		if len(out) == limit {
			break
		}
	}
	return out
}

// healthRatio renders a WAD health factor with four fractional digits.
func healthRatio(hf *uint256.Int) string {
	if hf == nil || hf.Eq(valuation.MaxHealthFactor) {
		return "max"
	}
	return shopspring.NewFromBigInt(hf.ToBig(), -valuation.WadDecimals).StringFixed(4)
}

func decimal(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
