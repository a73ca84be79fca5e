// Package rates serves exchange rates with a three-stage fallback: live
// fetch, durable cache, built-in default table. The source marker on each
// rate tells callers how fresh the figure is.
package rates

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"jaudi-finance-backend/internal/api"
	apperrors "jaudi-finance-backend/internal/common/errors"
	"jaudi-finance-backend/internal/models"
	"jaudi-finance-backend/internal/state"
	"jaudi-finance-backend/internal/store"
)

// defaultRates is the non-authoritative last resort, used when neither the
// network nor the cache can produce a figure.
var defaultRates = map[string]float64{
	"USD": 22.50,
	"EUR": 24.75,
	"GBP": 28.90,
	"SLE": 1.00,
}

type Service struct {
	client    api.Client
	records   store.RecordStore
	container *state.Container
	base      string
	log       zerolog.Logger
}

func NewService(client api.Client, records store.RecordStore, container *state.Container, baseCurrency string, log zerolog.Logger) *Service {
	return &Service{
		client:    client,
		records:   records,
		container: container,
		base:      baseCurrency,
		log:       log,
	}
}

// CurrentRates returns the best available rate set and pushes it into the
// state container so the UI layer sees the same figures.
func (s *Service) CurrentRates(ctx context.Context) ([]models.ExchangeRate, error) {
	if s.container.Online() {
		rates, err := s.Refresh(ctx)
		if err == nil {
			return rates, nil
		}
		s.log.Warn().Err(err).Msg("live rate fetch failed, falling back to cache")
	}

	cached, err := s.records.ExchangeRates(ctx, "", "")
	if err == nil && len(cached) > 0 {
		for i := range cached {
			cached[i].Source = models.RateSourceCache
		}
		s.container.SetExchangeRates(cached)
		return cached, nil
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("rate cache unreadable, falling back to defaults")
	}

	defaults := s.defaultTable()
	s.container.SetExchangeRates(defaults)
	return defaults, nil
}

// Refresh fetches live rates and writes them through to the cache.
func (s *Service) Refresh(ctx context.Context) ([]models.ExchangeRate, error) {
	rates, err := s.client.GetExchangeRates(ctx)
	if err != nil {
		return nil, err
	}
	if len(rates) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeRemoteAPI, "empty rate set")
	}

	now := time.Now().UTC()
	for i := range rates {
		rates[i].Source = models.RateSourceLive
		if rates[i].Timestamp.IsZero() {
			rates[i].Timestamp = now
		}
		if err := s.records.SaveExchangeRate(ctx, rates[i]); err != nil {
			s.log.Error().Err(err).
				Str("pair", rates[i].FromCurrency+"/"+rates[i].ToCurrency).
				Msg("failed to cache exchange rate")
		}
	}
	s.container.SetExchangeRates(rates)
	s.log.Info().Int("count", len(rates)).Msg("exchange rates refreshed")
	return rates, nil
}

// Rate resolves a single conversion figure through the same fallback chain.
func (s *Service) Rate(ctx context.Context, from, to string) (models.ExchangeRate, error) {
	rates, err := s.CurrentRates(ctx)
	if err != nil {
		return models.ExchangeRate{}, err
	}
	for _, rate := range rates {
		if rate.FromCurrency == from && rate.ToCurrency == to {
			return rate, nil
		}
	}
	if to == s.base {
		if figure, ok := defaultRates[from]; ok {
			return models.ExchangeRate{
				FromCurrency: from,
				ToCurrency:   s.base,
				Rate:         figure,
				Timestamp:    time.Now().UTC(),
				Source:       models.RateSourceDefault,
			}, nil
		}
	}
	return models.ExchangeRate{}, apperrors.Newf(apperrors.ErrCodeNotFound, "no rate for %s/%s", from, to)
}

func (s *Service) defaultTable() []models.ExchangeRate {
	now := time.Now().UTC()
	rates := make([]models.ExchangeRate, 0, len(defaultRates))
	for _, from := range []string{"USD", "EUR", "GBP", "SLE"} {
		rates = append(rates, models.ExchangeRate{
			FromCurrency: from,
			ToCurrency:   s.base,
			Rate:         defaultRates[from],
			Timestamp:    now,
			Source:       models.RateSourceDefault,
		})
	}
	return rates
}
