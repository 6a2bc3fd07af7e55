package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/domain/service"
	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/infrastructure/kafka"
	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/infrastructure/mysql"
	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/infrastructure/redis"
	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/infrastructure/transport/rest"
	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/infrastructure/transport/rpc"
)

func main() {
	app := &cli.App{
		Name:  appID,
		Usage: "food delivery order service",
		Commands: []*cli.Command{
			{
				Name:   "service",
				Usage:  "serve the REST and gRPC APIs and consume restaurant events",
				Action: runService,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations",
				Action: runMigrate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("orderservice failed")
	}
}

func runMigrate(c *cli.Context) error {
	cnf, err := parseEnv()
	if err != nil {
		return err
	}
	logger, err := initLogger(cnf)
	if err != nil {
		return err
	}

	db, err := connectDB(c.Context, cnf)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := mysql.Migrate(db); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}

func runService(c *cli.Context) error {
	cnf, err := parseEnv()
	if err != nil {
		return err
	}
	logger, err := initLogger(cnf)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := connectDB(ctx, cnf)
	if err != nil {
		return err
	}
	defer db.Close()

	producer, err := kafka.NewProducer(cnf.KafkaBrokers)
	if err != nil {
		return err
	}
	defer producer.Close()

	orderRepo := mysql.NewOrderRepository(db)
	availabilityRepo := mysql.NewRestaurantAvailabilityRepository(db)
	dispatcher := kafka.NewEventDispatcher(producer, cnf.OrderEventsTopic)
	orderSvc := service.NewOrderService(orderRepo, availabilityRepo, dispatcher, logger)

	var processed service.ProcessedEvents
	if cnf.RedisAddress != "" {
		client, err := redis.NewClient(ctx, cnf.RedisAddress)
		if err != nil {
			return err
		}
		defer client.Close()
		processed = redis.NewProcessedEvents(client, cnf.ProcessedEventsTTL)
	}
	reconciler := service.NewRestaurantAvailabilityReconciler(
		orderRepo,
		availabilityRepo,
		orderSvc,
		processed,
		cnf.ReconcilerParallelism,
		logger,
	)

	group, err := kafka.NewConsumerGroup(cnf.KafkaBrokers, cnf.ConsumerGroup)
	if err != nil {
		return err
	}
	consumer := kafka.NewRestaurantEventConsumer(group, cnf.RestaurantEventsTopic, reconciler, logger)
	defer consumer.Close()

	httpServer := &http.Server{
		Addr:    cnf.RESTAddress,
		Handler: rest.NewRouter(rest.NewHandler(orderSvc, logger), logger),
	}
	grpcServer := rpc.NewServer(orderSvc, logger)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("address", cnf.RESTAddress).Info("starting REST server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "REST server failed")
		}
		return nil
	})
	g.Go(func() error {
		listener, err := net.Listen("tcp", cnf.GRPCAddress)
		if err != nil {
			return errors.Wrapf(err, "failed to listen on %s", cnf.GRPCAddress)
		}
		logger.WithField("address", cnf.GRPCAddress).Info("starting gRPC server")
		return errors.Wrap(grpcServer.Serve(listener), "gRPC server failed")
	})
	g.Go(func() error {
		logger.WithField("topic", cnf.RestaurantEventsTopic).Info("consuming restaurant events")
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		healthServer.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cnf.ShutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func connectDB(ctx context.Context, cnf *config) (*sqlx.DB, error) {
	return mysql.Connect(ctx, mysql.DSN{
		User:     cnf.DatabaseUser,
		Password: cnf.DatabasePassword,
		Host:     cnf.DatabaseHost,
		Database: cnf.DatabaseName,
	}, cnf.DatabaseMaxConnections)
}
