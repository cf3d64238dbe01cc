package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/benefia/approvals/modules/approvals/handlers"
	auditinfra "github.com/benefia/approvals/modules/approvals/infrastructure/audit"
	directoryinfra "github.com/benefia/approvals/modules/approvals/infrastructure/directory"
	"github.com/benefia/approvals/modules/approvals/infrastructure/downstream"
	notificationinfra "github.com/benefia/approvals/modules/approvals/infrastructure/notification"
	"github.com/benefia/approvals/modules/approvals/infrastructure/persistence"
	"github.com/benefia/approvals/modules/approvals/presentation/controllers"
	"github.com/benefia/approvals/modules/approvals/services"
	"github.com/benefia/approvals/pkg/authz"
	"github.com/benefia/approvals/pkg/composables"
	"github.com/benefia/approvals/pkg/configuration"
	"github.com/benefia/approvals/pkg/eventbus"
	"github.com/benefia/approvals/pkg/httpapi"
	"github.com/benefia/approvals/pkg/migrate"
	"github.com/benefia/approvals/pkg/outbox"
	outboxbus "github.com/benefia/approvals/pkg/outbox/dispatchers/eventbus"
)

const shutdownTimeout = 15 * time.Second

func main() {
	conf := configuration.Use()
	defer conf.Unload()
	log := conf.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, log); err != nil {
		log.WithError(err).Fatal("server exited with error")
	}
}

func run(ctx context.Context, conf *configuration.Configuration, log *logrus.Logger) error {
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := migrate.Run(ctx, pool, conf.MigrationsDir, log); err != nil {
		return err
	}

	authzSvc, err := authz.NewService(authz.Config{
		ModelPath:  conf.Authz.ModelPath,
		PolicyPath: conf.Authz.PolicyPath,
		Mode:       conf.Authz.Mode,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	bus := eventbus.NewEventPublisher(log)
	notifier := notificationinfra.NewPgNotifier(log)
	handlers.RegisterNotificationHandler(bus, pool, notifier, log)

	requests := persistence.NewRequestRepository()
	executor := services.NewExecutorService(
		persistence.NewTransactor(),
		requests,
		downstream.NewClient(conf.Downstream.BaseURL, conf.Downstream.Timeout, log),
		persistence.NewOutboxEventPublisher(),
		log,
	)
	requestSvc := services.NewRequestService(
		persistence.NewTransactor(),
		persistence.NewPolicyRepository(),
		requests,
		persistence.NewAssignmentRepository(),
		services.NewAssignerFactory(directoryinfra.NewPgDirectory(), log),
		persistence.NewOutboxEventPublisher(),
		auditinfra.NewPgAuditRecorder(),
		executor,
		log,
	)

	if conf.Outbox.RelayEnabled {
		relay, err := outbox.NewRelay(pool, persistence.OutboxTable, outboxbus.New(bus), outbox.RelayOptions{
			PollInterval:    conf.Outbox.RelayPollInterval,
			BatchSize:       conf.Outbox.RelayBatchSize,
			MaxAttempts:     conf.Outbox.RelayMaxAttempts,
			SingleActive:    conf.Outbox.RelaySingleActive,
			DispatchTimeout: conf.Outbox.RelayDispatchTimeout,
			Logger:          log.WithField("component", "outbox-relay"),
		})
		if err != nil {
			return err
		}
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("outbox relay stopped")
			}
		}()
	}

	router := mux.NewRouter()
	router.Use(withDatabase(pool))
	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_ = httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	if conf.Prometheus.Enabled {
		router.Handle(conf.Prometheus.Path, promhttp.Handler()).Methods(http.MethodGet)
	}
	controllers.NewApprovalsAPIController(requestSvc, authzSvc, conf, log).Register(router)

	srv := &http.Server{
		Addr:         conf.SocketAddress,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("address", conf.SocketAddress).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// withDatabase makes the pool reachable from repositories via the context.
func withDatabase(pool *pgxpool.Pool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(composables.WithPool(r.Context(), pool)))
		})
	}
}
