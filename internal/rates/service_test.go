package rates

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jaudi-finance-backend/internal/api"
	apperrors "jaudi-finance-backend/internal/common/errors"
	"jaudi-finance-backend/internal/models"
	"jaudi-finance-backend/internal/state"
	"jaudi-finance-backend/internal/store/memory"
)

type rateClient struct {
	rates []models.ExchangeRate
	err   error
	calls int
}

func (r *rateClient) GetExchangeRates(context.Context) ([]models.ExchangeRate, error) {
	r.calls++
	return r.rates, r.err
}

func (r *rateClient) Login(context.Context, string, string) (api.LoginResult, error) {
	return api.LoginResult{}, nil
}
func (r *rateClient) Register(context.Context, api.RegisterRequest) (api.LoginResult, error) {
	return api.LoginResult{}, nil
}
func (r *rateClient) CreateTransaction(_ context.Context, tx models.Transaction) (models.Transaction, error) {
	return tx, nil
}
func (r *rateClient) UpdateTransaction(_ context.Context, id string, _ models.TransactionUpdate) (models.Transaction, error) {
	return models.Transaction{ID: id}, nil
}
func (r *rateClient) GetTransactions(context.Context) ([]models.Transaction, error) { return nil, nil }
func (r *rateClient) RegisterFCMToken(context.Context, string) error                { return nil }
func (r *rateClient) BatchSync(context.Context, api.BatchRequest) error             { return nil }
func (r *rateClient) HealthCheck(context.Context) bool                              { return true }
func (r *rateClient) SetAuthToken(string)                                           {}

func newRateService(client *rateClient) (*Service, *state.Container, *memory.Store) {
	container := state.NewContainer(state.NoopSnapshotStore{}, zerolog.Nop())
	records := memory.New()
	return NewService(client, records, container, "SLE", zerolog.Nop()), container, records
}

func TestCurrentRatesPrefersLiveFetch(t *testing.T) {
	client := &rateClient{rates: []models.ExchangeRate{
		{FromCurrency: "USD", ToCurrency: "SLE", Rate: 23.10},
	}}
	svc, container, records := newRateService(client)
	container.SetOnlineStatus(true)

	got, err := svc.CurrentRates(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.RateSourceLive, got[0].Source)
	assert.InDelta(t, 23.10, got[0].Rate, 1e-9)
	assert.False(t, got[0].Timestamp.IsZero())

	// live figures are written through to the cache
	cached, err := records.ExchangeRates(context.Background(), "", "")
	require.NoError(t, err)
	assert.Len(t, cached, 1)
}

func TestCurrentRatesFallsBackToCacheWhenOffline(t *testing.T) {
	client := &rateClient{}
	svc, _, records := newRateService(client)

	require.NoError(t, records.SaveExchangeRate(context.Background(), models.ExchangeRate{
		FromCurrency: "USD", ToCurrency: "SLE", Rate: 22.80, Timestamp: time.Now().UTC(),
	}))

	got, err := svc.CurrentRates(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.RateSourceCache, got[0].Source)
	assert.InDelta(t, 22.80, got[0].Rate, 1e-9)
	assert.Zero(t, client.calls)
}

func TestCurrentRatesFallsBackToCacheWhenFetchFails(t *testing.T) {
	client := &rateClient{err: apperrors.New(apperrors.ErrCodeNetwork, "connection refused")}
	svc, container, records := newRateService(client)
	container.SetOnlineStatus(true)

	require.NoError(t, records.SaveExchangeRate(context.Background(), models.ExchangeRate{
		FromCurrency: "USD", ToCurrency: "SLE", Rate: 22.80, Timestamp: time.Now().UTC(),
	}))

	got, err := svc.CurrentRates(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.RateSourceCache, got[0].Source)
	assert.Equal(t, 1, client.calls)
}

func TestCurrentRatesDefaultsWhenNothingElseAvailable(t *testing.T) {
	svc, container, _ := newRateService(&rateClient{})

	got, err := svc.CurrentRates(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 4)
	for _, rate := range got {
		assert.Equal(t, models.RateSourceDefault, rate.Source)
		assert.Equal(t, "SLE", rate.ToCurrency)
	}
	// the container sees the same figures as the caller
	assert.Len(t, container.ExchangeRates(), 4)
}

func TestRefreshRejectsEmptyRateSet(t *testing.T) {
	svc, container, _ := newRateService(&rateClient{})
	container.SetOnlineStatus(true)

	_, err := svc.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeRemoteAPI, apperrors.CodeOf(err))
}

func TestRateResolvesDefaultConversionToBase(t *testing.T) {
	svc, _, _ := newRateService(&rateClient{})

	rate, err := svc.Rate(context.Background(), "USD", "SLE")
	require.NoError(t, err)
	assert.InDelta(t, 22.50, rate.Rate, 1e-9)
	assert.Equal(t, models.RateSourceDefault, rate.Source)
}

func TestRateUnknownPair(t *testing.T) {
	svc, _, _ := newRateService(&rateClient{})

	_, err := svc.Rate(context.Background(), "JPY", "USD")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.CodeOf(err))
}
