// Package handlers provides HTTP handlers for the trading calendar and settlement dates.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/fundledger/internal/domain"
	"github.com/aristath/fundledger/internal/modules/market_hours"
	"github.com/aristath/fundledger/internal/modules/settlement"
)

// Handler handles market calendar HTTP requests
type Handler struct {
	calendar *market_hours.Calendar
	resolver *settlement.Resolver
	log      zerolog.Logger
	now      func() time.Time
}

// NewHandler creates a new market calendar handler
func NewHandler(
	calendar *market_hours.Calendar,
	resolver *settlement.Resolver,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		calendar: calendar,
		resolver: resolver,
		log:      log.With().Str("handler", "market_hours").Logger(),
		now:      time.Now,
	}
}

// HandleTradingDay handles GET /api/market-hours/trading-day?market=&date=
func (h *Handler) HandleTradingDay(w http.ResponseWriter, r *http.Request) {
	market, date, ok := h.marketAndDate(w, r)
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"market":      market,
		"date":        domain.FormatDate(date),
		"trading_day": h.calendar.IsTradingDay(market, date),
		"both_open":   h.calendar.IsTradingDayInBoth(date),
	}))
}

// HandleNextTradingDay handles GET /api/market-hours/next-trading-day?market=&date=&skip_current=
func (h *Handler) HandleNextTradingDay(w http.ResponseWriter, r *http.Request) {
	market, date, ok := h.marketAndDate(w, r)
	if !ok {
		return
	}
	skip, _ := strconv.ParseBool(r.URL.Query().Get("skip_current"))

	next, err := h.calendar.NextTradingDay(market, date, skip)
	data := map[string]interface{}{
		"market": market,
		"from":   domain.FormatDate(date),
		"next":   domain.FormatDate(next),
	}
	if err != nil {
		if !errors.Is(err, domain.ErrCalendarGap) {
			h.writeError(w, err, err.Error())
			return
		}
		data["warning"] = err.Error()
	}
	h.writeJSON(w, http.StatusOK, envelope(data))
}

// HandleGetHolidays handles GET /api/market-hours/holidays?market=&year=
func (h *Handler) HandleGetHolidays(w http.ResponseWriter, r *http.Request) {
	market, err := parseMarket(r.URL.Query().Get("market"))
	if err != nil {
		h.writeError(w, err, err.Error())
		return
	}

	year := h.now().In(h.resolver.Location()).Year()
	if s := r.URL.Query().Get("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil || y < 1990 || y > 2100 {
			h.writeError(w, domain.ErrValidation, "Invalid year")
			return
		}
		year = y
	}

	holidays := h.calendar.Holidays(market, year)
	out := make([]map[string]interface{}, 0, len(holidays))
	for _, hol := range holidays {
		out = append(out, map[string]interface{}{
			"date":    domain.FormatDate(hol.Date),
			"name":    hol.Name,
			"workday": hol.Workday,
		})
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"market":   market,
		"year":     year,
		"holidays": out,
	}))
}

// HandleSettlement handles GET /api/market-hours/settlement?submitted_at=&category=
// Previews the trade day and expected dates an order submitted at submitted_at would get.
func (h *Handler) HandleSettlement(w http.ResponseWriter, r *http.Request) {
	submittedAt := h.now()
	if s := r.URL.Query().Get("submitted_at"); s != "" {
		t, err := domain.ParseDateTime(s, h.resolver.Location())
		if err != nil {
			h.writeError(w, domain.ErrValidation, "Invalid submitted_at")
			return
		}
		submittedAt = t
	}

	category := domain.CategoryDomestic
	if c := r.URL.Query().Get("category"); c != "" {
		category = domain.FundCategory(c)
		if category != domain.CategoryDomestic && category != domain.CategoryCrossBorder {
			h.writeError(w, domain.ErrValidation, "Invalid category")
			return
		}
	}

	stamp, err := h.resolver.Stamp(submittedAt, category)
	data := map[string]interface{}{
		"submitted_at":            stamp.SubmittedAt.Format(domain.DateTimeLayout),
		"category":                stamp.Category,
		"cutoff":                  stamp.Flag,
		"trade_day":               domain.FormatDate(stamp.TradeDay),
		"expected_valuation_date": domain.FormatDate(stamp.Valuation),
		"expected_confirm_date":   domain.FormatDate(stamp.Confirm),
	}
	if err != nil {
		h.log.Warn().Err(err).Msg("Settlement preview hit a calendar gap")
		data["warning"] = err.Error()
	}
	h.writeJSON(w, http.StatusOK, envelope(data))
}

func (h *Handler) marketAndDate(w http.ResponseWriter, r *http.Request) (market_hours.Market, time.Time, bool) {
	market, err := parseMarket(r.URL.Query().Get("market"))
	if err != nil {
		h.writeError(w, err, err.Error())
		return "", time.Time{}, false
	}

	date := domain.DateOf(h.now().In(h.resolver.Location()))
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := domain.ParseDate(s, h.resolver.Location())
		if err != nil {
			h.writeError(w, domain.ErrValidation, "Invalid date")
			return "", time.Time{}, false
		}
		date = d
	}
	return market, date, true
}

func parseMarket(s string) (market_hours.Market, error) {
	if s == "" {
		return market_hours.MarketDomestic, nil
	}
	return market_hours.ParseMarket(s)
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error, message string) {
	status := http.StatusInternalServerError
	if errors.Is(err, domain.ErrValidation) {
		status = http.StatusBadRequest
	}
	h.writeJSON(w, status, map[string]interface{}{"error": message})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
