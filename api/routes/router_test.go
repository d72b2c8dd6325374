package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/internal/participants"
	"github.com/agritrace/agritrace-backend/internal/vault"
	"github.com/agritrace/agritrace-backend/pkg/auth"
	"github.com/agritrace/agritrace-backend/pkg/config"
	"github.com/agritrace/agritrace-backend/pkg/db/models"
	"github.com/agritrace/agritrace-backend/pkg/enums"
	"github.com/agritrace/agritrace-backend/pkg/logger"
)

type fakeParticipants struct {
	participant *models.Participant
}

func (f *fakeParticipants) Register(context.Context, participants.RegisterInput) (*models.Participant, error) {
	return f.participant, nil
}

func (f *fakeParticipants) Login(context.Context, participants.LoginInput) (*participants.LoginResult, error) {
	return &participants.LoginResult{Participant: f.participant}, nil
}

func (f *fakeParticipants) Lookup(context.Context, uuid.UUID) (*models.Participant, error) {
	return f.participant, nil
}

type fakeVault struct {
	deposits int
}

func (f *fakeVault) EnsureSystemAccounts(context.Context) error { return nil }

func (f *fakeVault) CreateParticipantAccountTx(context.Context, *gorm.DB, uuid.UUID) (*models.Account, error) {
	return &models.Account{}, nil
}

func (f *fakeVault) AccountOf(context.Context, uuid.UUID) (*models.Account, error) {
	return &models.Account{}, nil
}

func (f *fakeVault) TransferTx(context.Context, *gorm.DB, vault.TransferInput) error { return nil }
func (f *fakeVault) FundVault(context.Context, vault.FundVaultInput) error           { return nil }

func (f *fakeVault) Deposit(context.Context, vault.DepositInput) error {
	f.deposits++
	return nil
}

func (f *fakeVault) Stake(context.Context, vault.StakeInput) error { return nil }

func (f *fakeVault) Unstake(context.Context, vault.UnstakeInput) error { return nil }

func routerConfig(env string) *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: env, Port: "8080"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "agritrace-test",
			ExpirationMinutes: 15,
		},
	}
}

func testRouter(t *testing.T, cfg *config.Config, svcs Services) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "router-test"})
	return NewRouter(cfg, logg, nil, nil, nil, svcs)
}

func mintToken(t *testing.T, cfg *config.Config, participantID uuid.UUID, role enums.ParticipantRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{
		ParticipantID: participantID,
		Role:          role,
	})
	require.NoError(t, err)
	return token
}

func TestHealthLive(t *testing.T) {
	cfg := routerConfig(config.AppEnvDev)
	router := testRouter(t, cfg, Services{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, config.AppEnvDev, rec.Header().Get("X-AgriTrace-Env"))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	cfg := routerConfig(config.AppEnvDev)
	router := testRouter(t, cfg, Services{})

	for _, path := range []string{"/api/v1/me", "/api/v1/harvests", "/api/v1/vault/account"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestMeReturnsCallerProfile(t *testing.T) {
	cfg := routerConfig(config.AppEnvDev)
	participant := &models.Participant{
		ID:    uuid.New(),
		Email: "grower@example.com",
		Role:  enums.ParticipantRoleProducer,
		Name:  "Grower",
	}
	router := testRouter(t, cfg, Services{Participants: &fakeParticipants{participant: participant}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, participant.ID, participant.Role))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "grower@example.com")
}

func TestDisputeResolveRequiresArbitrator(t *testing.T) {
	cfg := routerConfig(config.AppEnvDev)
	router := testRouter(t, cfg, Services{})

	req := httptest.NewRequest(
		http.MethodPost,
		"/api/v1/disputes/"+uuid.NewString()+"/resolve",
		strings.NewReader(`{"outcome":true}`),
	)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, uuid.New(), enums.ParticipantRoleProducer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDepositRouteOnlyOutsideProduction(t *testing.T) {
	vaultSvc := &fakeVault{}
	body := `{"amount":100}`

	devCfg := routerConfig(config.AppEnvDev)
	devRouter := testRouter(t, devCfg, Services{Vault: vaultSvc})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/vault/deposits", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+mintToken(t, devCfg, uuid.New(), enums.ParticipantRoleRetailer))
	rec := httptest.NewRecorder()
	devRouter.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, vaultSvc.deposits)

	prodCfg := routerConfig(config.AppEnvProd)
	prodRouter := testRouter(t, prodCfg, Services{Vault: vaultSvc})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/vault/deposits", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+mintToken(t, prodCfg, uuid.New(), enums.ParticipantRoleRetailer))
	rec = httptest.NewRecorder()
	prodRouter.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1, vaultSvc.deposits)
}
