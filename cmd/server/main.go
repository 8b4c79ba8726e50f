package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sigap-dashboard/sigap-api/internal/business/analytics"
	"github.com/sigap-dashboard/sigap-api/internal/business/clustering"
	"github.com/sigap-dashboard/sigap-api/internal/business/incident"
	"github.com/sigap-dashboard/sigap-api/internal/platform/config"
	firestoreclient "github.com/sigap-dashboard/sigap-api/internal/platform/firestore"
	apirouter "github.com/sigap-dashboard/sigap-api/internal/platform/http"
	"github.com/sigap-dashboard/sigap-api/internal/platform/logger"
	"github.com/sigap-dashboard/sigap-api/internal/platform/metrics"
	"github.com/sigap-dashboard/sigap-api/internal/platform/postgres"
	"github.com/sigap-dashboard/sigap-api/internal/platform/realtime"
	redisclient "github.com/sigap-dashboard/sigap-api/internal/platform/redis"
	"github.com/sigap-dashboard/sigap-api/internal/repository"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load(".env.local", ".env")

	cfg, err := config.Load()
	if err != nil {
		logger.Must(logger.Config{}).Fatal("config load", logger.Error(err))
	}

	log := logger.Must(logger.Config{Level: cfg.LogLevel, Development: cfg.GinMode == gin.DebugMode})
	defer func() { _ = log.Sync() }()

	gin.SetMode(cfg.GinMode)

	firestoreClient, credsSource, err := firestoreclient.New(ctx, cfg)
	if err != nil {
		log.Fatal("firestore init", logger.Error(err))
	}
	defer firestoreClient.Close()

	if err := firestoreclient.Ping(ctx, firestoreClient, repository.CrimesCollection); err != nil {
		log.Fatal("firestore ping", logger.Error(err))
	}
	log.Info("connected to Firestore",
		logger.String("project", cfg.FirebaseProjectID),
		logger.String("credentials", credsSource),
	)

	crimeRepo := repository.NewCrimeRepository(firestoreClient, log)
	snapshotRepo := repository.NewSnapshotRepository(firestoreClient)
	clusterRepo := repository.NewClusterRepository(firestoreClient)
	runRepo := repository.NewMigrationRunRepository(firestoreClient)

	var source apirouter.CrimeLister = crimeRepo
	var incidentStore incident.Store = crimeRepo
	if cfg.CrimeSource == config.CrimeSourcePostgres {
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("postgres init", logger.Error(err))
		}
		defer db.Close()
		source = repository.NewPostgresCrimeRepository(db, log)
		incidentStore = nil
		log.Info("reading crimes from Postgres; incident writes disabled")
	}

	var cache analytics.ResultCache
	if cfg.RedisAddress != "" {
		rdb, err := redisclient.NewClient(ctx, redisclient.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Warn("redis unavailable, analytics cache disabled", logger.Error(err))
		} else {
			defer rdb.Close()
			cache = repository.NewAnalyticsCache(rdb, cfg.AnalyticsCacheTTL)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	hub := realtime.NewHub(realtime.HubConfig{
		AllowedOrigins:   cfg.Origins(),
		Logger:           log,
		OnClientsChanged: m.ClientsConnected,
	})
	go hub.Run(ctx)

	loc := cfg.Location()
	analyticsSvc := analytics.NewService(source, analytics.Config{
		Cache:     cache,
		Snapshots: snapshotRepo,
		Recorder:  m,
		Logger:    log,
		Location:  loc,
	})
	clusterSvc := clustering.NewService(analyticsSvc, clusterRepo, runRepo, clustering.NewJobManager(), clustering.Config{
		Notifier: hub,
		Recorder: m,
		Logger:   log,
	})

	deps := apirouter.Deps{
		Analytics: analyticsSvc,
		Crimes:    source,
		Clusters:  clusterSvc,
		Hub:       hub,
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	if incidentStore != nil {
		deps.Incidents = incident.NewService(incidentStore, analyticsSvc, clusterSvc, incident.Config{
			Notifier: hub,
			Logger:   log,
			Location: loc,
		})
	}

	scheduler, err := clustering.NewScheduler(clusterSvc, log, cfg.ClusterRefreshCron, cfg.ClusterMigrateCron)
	if err != nil {
		log.Fatal("cluster scheduler", logger.Error(err))
	}
	scheduler.Start()

	router := apirouter.NewRouter(deps, apirouter.Options{
		AllowedOrigins: cfg.Origins(),
		JWTSecret:      cfg.JWTSecret,
		AuthDisabled:   cfg.AuthDisabled,
		Logger:         log,
		Location:       loc,
	})
	if cfg.AuthDisabled {
		log.Warn("authentication disabled; every request runs as admin")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", logger.Error(err))
		}
	}()
	log.Info("server listening", logger.String("port", cfg.Port), logger.String("crime_source", cfg.CrimeSource))

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scheduler.Stop(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", logger.Error(err))
	}
	log.Info("server exited")
}
