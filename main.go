package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
	ginlogrus "github.com/toorop/gin-logrus"

	"storesync/config"
	db2 "storesync/db"
	"storesync/external"
	"storesync/http_handler"
	"storesync/ipc"
	"storesync/notifications"
	"storesync/stats_collector"
	"storesync/stores"
	"storesync/writebehind"
)

func main() {
	var wg sync.WaitGroup
	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	wg.Add(1)
	go func() {
		defer wg.Done()
		watchForShutdown(ctx, cancelFn)
	}()

	cfg, err := config.ReadConfig()
	if err != nil {
		panic(err)
	}

	logLevel := log.InfoLevel
	if cfg.Logging.Debug {
		logLevel = log.DebugLevel
	}
	SetupLogger(
		logLevel,
		cfg.Logging.SaveLogs,
		cfg.Logging.MaxSize,
		cfg.Logging.MaxAge,
		cfg.Logging.MaxBackups,
		cfg.Logging.Compress,
	)

	// Both Sentry & Pyroscope are optional and off by default.
	external.InitSentry()
	external.InitPyroscope()

	notificationSender, err := notifications.NewSender(cfg)
	if err != nil {
		log.Fatalf("failed to setup notification sender: %s", err)
	}

	log.Infof("Storesync starting")

	conn, err := openDatabase(cfg.Database.Driver, cfg.Database.Path, cfg.Database.Addr,
		cfg.Database.User, cfg.Database.Password, cfg.Database.Db, cfg.Database.MaxPool)
	if err != nil {
		log.Fatal(err)
		return
	}
	log.Infoln("Connected to database")

	// Start the web server.
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// choose the statsCollector we will use.
	statsCollector := stats_collector.GetStatsCollector(cfg, r)

	limiter := writebehind.NewSharedLimiter(cfg.Buffer.MaxConcurrentFlushes)
	bufferOptions := stores.BufferOptions{
		Threshold:         cfg.Buffer.Threshold,
		IdleInterval:      cfg.IdleInterval(),
		PersistTimeout:    cfg.PersistTimeout(),
		FlushConcurrency:  cfg.Buffer.FlushConcurrency,
		RateLimit:         cfg.Buffer.RateLimit,
		BurstCapacity:     cfg.Buffer.BurstCapacity,
		WarnAfterFailures: cfg.Buffer.WarnAfterFailures,
		Retry: writebehind.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff:     cfg.RetryBackoff(),
		},
		Limiter: limiter,
		Stats:   statsCollector,
		OnStatusChange: func(status writebehind.BufferStatus) {
			notificationSender.AddBufferStatus(status)
			external.ReportBufferStatus(status)
		},
	}

	repository := db2.NewRepository(conn)
	conversations := stores.NewConversationStore(repository, bufferOptions)
	workspace := stores.NewWorkspaceStore(repository, bufferOptions)

	initCtx, initCancel := context.WithTimeout(ctx, time.Minute)
	if err := conversations.Init(initCtx); err != nil {
		log.Fatal(err)
	}
	if err := workspace.Init(initCtx); err != nil {
		log.Fatal(err)
	}
	initCancel()

	manager := writebehind.NewManager()
	manager.Register(conversations.Buffer())
	manager.Register(workspace.Buffer())
	manager.Start(ctx)

	router := ipc.NewRouter(ipc.RouterConfig{
		Retry: writebehind.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff:     cfg.RetryBackoff(),
		},
		ResponseTTL: cfg.ResponseCacheTTL(),
		Stats:       statsCollector,
	})
	router.Start()

	handler := http_handler.NewHTTPHandler(router, conversations, workspace, manager)
	handler.RegisterIpcHandlers()

	wg.Add(1)
	go func() {
		defer cancelFn()
		defer wg.Done()

		err := notificationSender.Run(ctx)
		if err != nil {
			log.Errorf("failed to start notification sender: %s", err)
		}
	}()

	StartDbUsageStatsLogger(ctx, conn.Db)
	StartLimiterStatsLogger(ctx, limiter)

	if cfg.Cleanup.Enabled {
		retention := time.Duration(cfg.Cleanup.RetentionDays) * 24 * time.Hour
		scheduler, err := StartCleanup(conn, cfg.Cleanup.Schedule, retention, statsCollector)
		if err != nil {
			log.Fatalf("failed to schedule cleanup: %s", err)
		}
		defer scheduler.Stop()
	}

	if cfg.Logging.Debug {
		r.Use(ginlogrus.Logger(log.StandardLogger()))
	}
	r.Use(gin.Recovery())
	setupRoutes(r, handler)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	wg.Add(1)
	go func() {
		defer cancelFn()
		defer wg.Done()

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("Failed to listen and start http server: %s", err)
		}
	}()

	log.Infoln("Storesync started")

	// wait for shutdown to be signaled in some way. This can be from a failure
	// to start the notification sender, failure to start the http server, and/or
	// watchForShutdown() saying it is time to shutdown.
	<-ctx.Done()

	log.Info("Starting shutdown...")

	// So now we attempt to shutdown the http server, telling it to wait for open requests to
	// finish for 5 seconds before just pulling the plug.
	shutdownCtx, shutdownCancelFn := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancelFn()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		if err == context.DeadlineExceeded {
			log.Warn("Graceful shutdown timed out, exiting.")
		} else {
			log.Errorf("Error during http server shutdown: %s", err)
		}
	}

	log.Info("http server is shutdown, waiting for other go routines to exit...")
	wg.Wait()
	manager.Stop()
	router.Stop()

	log.Infof("Flushing %d buffered writes...", manager.TotalSize())
	flushCtx, flushCancelFn := context.WithTimeout(context.Background(), 30*time.Second)
	defer flushCancelFn()
	if err := manager.FlushAll(flushCtx); err != nil {
		log.Errorf("Exiting with unsaved changes: %s", err)
	}

	log.Info("flushing notifications now...")
	notificationSender.Flush()
	external.FlushSentry()

	log.Info("Storesync exiting!")
}

// openDatabase applies the migrations for the driver and opens the pool
func openDatabase(driver, path, addr, user, password, dbName string, maxPool int) (db2.Connections, error) {
	var dsn, migrateUrl string

	switch driver {
	case db2.DriverMysql:
		mysqlConfig := mysql.Config{
			User:                 user,
			Passwd:               password,
			Net:                  "tcp",
			Addr:                 addr,
			DBName:               dbName,
			AllowNativePasswords: true,
		}
		dsn = mysqlConfig.FormatDSN()

		migrateConfig := mysqlConfig.Clone()
		migrateConfig.MultiStatements = true
		migrateUrl = "mysql://" + migrateConfig.FormatDSN()
	case db2.DriverSqlite:
		dsn = path + "?_busy_timeout=5000&_journal_mode=WAL"
		migrateUrl = "sqlite3://" + dsn
	default:
		return db2.Connections{}, fmt.Errorf("unsupported database driver %q", driver)
	}

	log.Infof("Starting migration")

	m, err := migrate.New("file://sql/"+driver, migrateUrl)
	if err != nil {
		return db2.Connections{}, fmt.Errorf("migrate: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return db2.Connections{}, fmt.Errorf("migrate up: %w", err)
	}
	_, _ = m.Close()

	log.Infof("Opening database for processing, max pool = %d", maxPool)

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return db2.Connections{}, err
	}

	if driver == db2.DriverSqlite {
		// a single writer avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	} else {
		db.SetConnMaxLifetime(time.Minute * 3) // Recommended by go mysql driver
		db.SetMaxOpenConns(maxPool)
		db.SetMaxIdleConns(10)
		db.SetConnMaxIdleTime(time.Minute)
	}

	if err := db.Ping(); err != nil {
		return db2.Connections{}, err
	}
	return db2.Connections{Db: db, Driver: driver}, nil
}
