package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"gorm.io/gorm"

	marketplacepb "github.com/Leganyst/openslots/internal/api/marketplace/v1"
	"github.com/Leganyst/openslots/internal/catalog"
	"github.com/Leganyst/openslots/internal/config"
	"github.com/Leganyst/openslots/internal/db"
	"github.com/Leganyst/openslots/internal/discovery"
	"github.com/Leganyst/openslots/internal/events"
	"github.com/Leganyst/openslots/internal/httpapi"
	"github.com/Leganyst/openslots/internal/model"
	"github.com/Leganyst/openslots/internal/negotiation"
	"github.com/Leganyst/openslots/internal/obs"
	"github.com/Leganyst/openslots/internal/repository"
	"github.com/Leganyst/openslots/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("openslots: %v", err)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	// 1. Конфиг процесса и БД из env.
	appCfg, err := config.LoadAppConfig()
	if err != nil {
		return fmt.Errorf("load app config: %w", err)
	}
	dbCfg, err := config.LoadDBConfig()
	if err != nil {
		return fmt.Errorf("load db config: %w", err)
	}
	logger := obs.InitLogger(appCfg.LogLevel)

	// 2. Подключаемся к БД через GORM и мигрируем.
	gormDB, err := db.NewGormDB(dbCfg)
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}
	if err := model.AutoMigrate(gormDB); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("sql DB: %w", err)
	}
	defer sqlDB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if appCfg.SeedFile != "" {
		if err := seedCatalog(ctx, gormDB, appCfg.SeedFile); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		logger.Info("catalog seeded", "file", appCfg.SeedFile)
	}

	// 3. Репозитории и хранилище движка.
	store := repository.NewGormStore(gormDB)
	catalogRepo := repository.NewGormCatalogRepository(gormDB)
	providerRepo := repository.NewGormProviderRepository(gormDB)

	// 4. Доставка событий: аудит в БД всегда, webhook и Mongo по конфигу.
	sinks := []events.Sink{repository.NewAuditSink(repository.NewGormEventRepository(gormDB))}
	if appCfg.EventsWebhookURL != "" {
		sinks = append(sinks, events.NewWebhookSink(appCfg.EventsWebhookURL, 5*time.Second))
	}
	if appCfg.EventsMongoURI != "" {
		client, err := events.ConnectMongo(ctx, appCfg.EventsMongoURI)
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		sink := events.NewMongoSink(client, appCfg.EventsMongoDB, "negotiation_events")
		if err := sink.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("mongo indexes: %w", err)
		}
		sinks = append(sinks, sink)
	}
	dispatcher := events.NewDispatcher("openslots", logger, sinks...)
	dispatcher.Start(context.Background(), appCfg.EventsBuffer)
	defer dispatcher.Close()

	// 5. Движок переговоров: поднимаем активные из БД до приёма запросов.
	engine := negotiation.NewEngine(store, dispatcher,
		negotiation.WithCounterWindow(appCfg.CounterWindow),
		negotiation.WithBidCutoff(appCfg.BidCutoff),
	)
	restored, err := engine.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore negotiations: %w", err)
	}
	logger.Info("negotiations restored", "count", restored)
	sweeper := negotiation.NewSweeper(engine, appCfg.SweepInterval, appCfg.Retention)

	var distance discovery.DistanceFunc = discovery.HashDistance
	if appCfg.OriginLat != nil && appCfg.OriginLon != nil {
		distance = discovery.GeoDistance(*appCfg.OriginLat, *appCfg.OriginLon)
	}
	searcher := discovery.NewEngine(catalogRepo, discovery.WithDistance(distance))

	// 6. gRPC и HTTP.
	marketplaceSvc := service.NewMarketplaceService(searcher, engine, store, providerRepo)
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(service.LoggingInterceptor))
	marketplacepb.RegisterMarketplaceServer(grpcServer, marketplaceSvc)
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(marketplacepb.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)

	httpServer := httpapi.New(searcher, sqlDB)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sweeper.Run(gctx) })

	if appCfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", appCfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", appCfg.GRPCAddr, err)
		}
		logger.Info("gRPC server listening", "addr", appCfg.GRPCAddr)
		g.Go(func() error {
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc serve: %w", err)
			}
			return nil
		})
	}
	if appCfg.HTTPAddr != "" {
		logger.Info("HTTP server listening", "addr", appCfg.HTTPAddr)
		g.Go(func() error {
			if err := httpServer.Start(appCfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http serve: %w", err)
			}
			return nil
		})
	}

	// 7. Грейсфул-шатдаун по сигналу или падению одного из серверов.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		healthSrv.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
		defer cancel()

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("bye")
	return nil
}

// seedCatalog импортирует JSON-снапшот каталога (catalog.Snapshot).
func seedCatalog(ctx context.Context, gormDB *gorm.DB, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var snap catalog.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return repository.NewGormCatalogRepository(gormDB).Import(ctx, snap)
}
