package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agritrace/agritrace-backend/api/controllers"
	"github.com/agritrace/agritrace-backend/api/middleware"
	"github.com/agritrace/agritrace-backend/internal/disputes"
	"github.com/agritrace/agritrace-backend/internal/governance"
	"github.com/agritrace/agritrace-backend/internal/participants"
	"github.com/agritrace/agritrace-backend/internal/produce"
	"github.com/agritrace/agritrace-backend/internal/settlement"
	"github.com/agritrace/agritrace-backend/internal/vault"
	"github.com/agritrace/agritrace-backend/pkg/config"
	"github.com/agritrace/agritrace-backend/pkg/enums"
	"github.com/agritrace/agritrace-backend/pkg/logger"
	"github.com/agritrace/agritrace-backend/pkg/redis"
)

// Services bundles everything the router mounts.
type Services struct {
	Participants participants.Service
	Produce      produce.Service
	Settlement   settlement.Service
	Disputes     disputes.Service
	Governance   governance.Service
	Vault        vault.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	var limiter middleware.RateLimiterStore
	var redisP controllers.Pinger
	if redisClient != nil {
		limiter = redisClient
		redisP = redisClient
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, limiter, logg)).
			Post("/register", controllers.AuthRegister(svcs.Participants, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, limiter, logg)).
			Post("/login", controllers.AuthLogin(svcs.Participants, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/me", controllers.Me(svcs.Participants, logg))

		r.Route("/harvests", func(r chi.Router) {
			r.Post("/", controllers.HarvestCreate(svcs.Produce, logg))
			r.Get("/", controllers.BatchListMine(svcs.Produce, logg))
		})

		r.Route("/batches/{batchNumber}", func(r chi.Router) {
			r.Get("/", controllers.BatchGet(svcs.Produce, logg))
			r.Post("/pickup", controllers.PickupRecord(svcs.Produce, logg))
			r.Post("/pickup/confirm", controllers.PickupConfirm(svcs.Produce, logg))
			r.Post("/delivery", controllers.DeliveryRecord(svcs.Produce, logg))
			r.Post("/delivery/confirm", controllers.DeliveryConfirm(svcs.Produce, logg))
			r.Post("/quality", controllers.QualityVerify(svcs.Produce, logg))
			r.Post("/payment", controllers.PaymentProcess(svcs.Settlement, logg))
			r.Get("/disputes", controllers.DisputeListByBatch(svcs.Disputes, svcs.Produce, logg))
		})

		r.Route("/disputes", func(r chi.Router) {
			r.Post("/", controllers.DisputeRaise(svcs.Disputes, logg))
			r.Get("/{disputeId}", controllers.DisputeGet(svcs.Disputes, logg))
			r.With(middleware.RequireRole(logg, enums.ParticipantRoleArbitrator)).
				Post("/{disputeId}/resolve", controllers.DisputeResolve(svcs.Disputes, logg))
		})

		r.Route("/vault", func(r chi.Router) {
			r.Post("/fund", controllers.VaultFund(svcs.Vault, svcs.Produce, logg))
			r.Get("/account", controllers.AccountMe(svcs.Vault, logg))
			r.Post("/stake", controllers.StakeCreate(svcs.Vault, logg))
			r.Post("/unstake", controllers.StakeWithdraw(svcs.Vault, logg))
			if !cfg.App.IsProd() {
				r.Post("/deposits", controllers.DepositCreate(svcs.Vault, logg))
			}
		})

		r.Route("/governance/proposals", func(r chi.Router) {
			r.Post("/", controllers.ProposalCreate(svcs.Governance, logg))
			r.Get("/", controllers.ProposalList(svcs.Governance, logg))
			r.Get("/{proposalNumber}", controllers.ProposalGet(svcs.Governance, logg))
			r.Post("/{proposalNumber}/votes", controllers.ProposalVote(svcs.Governance, logg))
			r.Post("/{proposalNumber}/execute", controllers.ProposalExecute(svcs.Governance, logg))
		})
	})

	return r
}
