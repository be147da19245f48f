package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"storefront/pkg/order/application/dispatcher"
	"storefront/pkg/order/domain/model"
	"storefront/pkg/order/domain/service"
	"storefront/pkg/order/infrastructure/kafka"
	"storefront/pkg/order/infrastructure/mail"
	"storefront/pkg/order/infrastructure/mysql"
	"storefront/pkg/order/infrastructure/observability"
	"storefront/pkg/order/infrastructure/rabbitmq"
	"storefront/pkg/order/infrastructure/redis"
	"storefront/pkg/order/infrastructure/transport"
	"storefront/pkg/order/infrastructure/webhook"
)

const (
	shutdownTimeout     = 15 * time.Second
	healthCheckInterval = 10 * time.Second
)

func runService(c *cli.Context) error {
	cfg, err := parseEnv()
	if err != nil {
		return err
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		ServiceName: appID,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.WithError(err).Error("failed to flush traces")
		}
	}()

	db, err := mysql.Open(mysql.ConnectionConfig{
		DSN:             cfg.DatabaseDSN,
		MaxOpenConns:    cfg.DatabaseMaxConnections,
		MaxIdleConns:    cfg.DatabaseMaxConnections,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := mysql.Migrate(db); err != nil {
			return err
		}
	}

	sender, closeSender, err := newNotificationSender(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSender()

	variants := mysql.NewVariantRepository(db)
	orders := mysql.NewOrderRepository(db)
	notifications := mysql.NewNotificationRepository(db)

	notifier := service.NewNotificationService(
		notifications,
		orders,
		mysql.NewCustomerDirectory(db),
		sender,
		cfg.TrackingURLBase,
		logger,
	)
	events := dispatcher.NewAsyncDispatcher(cfg.NotificationWorkers, cfg.NotificationQueueSize, logger, notifier.HandleEvent)
	defer events.Close()

	orderService := service.NewOrderService(
		orders,
		notifications,
		variants,
		service.NewVariantResolver(variants, logger),
		service.NewReservationLedger(variants, logger),
		events,
		logger,
		service.WithRestockOnCancel(cfg.RestockOnCancel),
	)

	var paymentLedger service.PaymentLedger
	var ledger *redis.PaymentLedger
	if cfg.RedisAddress != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddress, Password: cfg.RedisPassword})
		defer client.Close()
		ledger = redis.NewPaymentLedger(client, cfg.PaymentLedgerTTL)
		paymentLedger = ledger
	}
	reconciler := service.NewPaymentReconciler(orders, orderService, paymentLedger, logger)

	httpServer := &http.Server{
		Addr:              cfg.ServeAddress,
		Handler:           transport.Router(transport.NewHandler(orderService, reconciler, webhook.NewVerifier(cfg.WebhookSecret, cfg.WebhookTolerance), logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	g, gctx := errgroup.WithContext(ctx)

	killSignalChan := getKillSignalChan()
	g.Go(func() error {
		select {
		case killSignal := <-killSignalChan:
			logKillSignal(logger, killSignal)
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		logger.WithField("address", cfg.ServeAddress).Info("starting http server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server failed")
		}
		return nil
	})

	g.Go(func() error {
		listener, err := net.Listen("tcp", cfg.GRPCAddress)
		if err != nil {
			return errors.Wrap(err, "failed to listen for grpc")
		}
		logger.WithField("address", cfg.GRPCAddress).Info("starting grpc health server")
		return errors.Wrap(grpcServer.Serve(listener), "grpc server failed")
	})

	g.Go(func() error {
		watchHealth(gctx, healthServer, db, ledger, logger)
		return nil
	})

	if len(cfg.KafkaBrokers) > 0 {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaPaymentTopic,
			GroupID: cfg.KafkaGroupID,
		})
		defer reader.Close()
		consumer := kafka.NewPaymentConsumer(reader, reconciler, logger)
		g.Go(func() error {
			return consumer.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		healthServer.Shutdown()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		err := httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return errors.Wrap(err, "failed to shut down http server")
	})

	err = g.Wait()
	logger.Info("storefront stopped")
	return err
}

func newNotificationSender(cfg *config, logger log.FieldLogger) (model.NotificationSender, func(), error) {
	if cfg.NotificationChannel != "rabbitmq" {
		return mail.NewLogSender(logger), func() {}, nil
	}
	conn, ch, err := rabbitmq.SetupConn(cfg.AMQPURL, cfg.NotificationExchange, logger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		_ = ch.Close()
		_ = conn.Close()
	}
	return rabbitmq.NewNotificationSender(ch, cfg.NotificationExchange), closeFn, nil
}

// watchHealth reports SERVING while MySQL answers. Redis only degrades idempotency, so it is logged but not reported.
func watchHealth(ctx context.Context, healthServer *health.Server, db *sqlx.DB, ledger *redis.PaymentLedger, logger log.FieldLogger) {
	check := func() {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckInterval/2)
		defer cancel()

		status := grpc_health_v1.HealthCheckResponse_SERVING
		if err := db.PingContext(checkCtx); err != nil {
			logger.WithError(err).Warn("mysql is unavailable")
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
		if ledger != nil {
			if err := ledger.Ping(checkCtx); err != nil {
				logger.WithError(err).Warn("payment ledger is unavailable")
			}
		}
		healthServer.SetServingStatus("", status)
		healthServer.SetServingStatus(appID, status)
	}

	check()
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
