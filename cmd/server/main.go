package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"lexcal-scheduler/internal/config"
	"lexcal-scheduler/internal/events"
	"lexcal-scheduler/internal/grpcapi"
	"lexcal-scheduler/internal/grpcweb"
	"lexcal-scheduler/internal/handler"
	"lexcal-scheduler/internal/logging"
	"lexcal-scheduler/internal/middleware"
	"lexcal-scheduler/internal/schedule"
	"lexcal-scheduler/internal/store/backend"
)

func main() {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.ValidateServer()
	}
	if err != nil {
		log.Fatal("config", "err", err)
	}

	logger, closeLog := logging.New(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile, Prefix: "lexcal"})
	defer closeLog.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// database
	st, err := backend.Open(ctx, cfg)
	if err != nil {
		logger.Fatal("open store", "store", cfg.Store, "err", err)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		logger.Fatal("migrate", "err", err)
	}
	logger.Info("store ready", "store", cfg.Store)

	// events are optional
	var pub events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		js, err := events.Connect(cfg.NATSURL)
		if err != nil {
			logger.Warn("nats unavailable, events disabled", "url", cfg.NATSURL, "err", err)
		} else {
			defer js.Close()
			pub = js
			logger.Info("publishing events", "url", cfg.NATSURL)
		}
	}

	svc := schedule.New(st, schedule.Config{
		Hours:           cfg.Hours,
		DefaultDuration: cfg.DefaultDuration,
		Events:          pub,
		Logger:          logger.WithPrefix("schedule"),
	})

	rl := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go rl.Run(ctx)

	// grpc server
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			middleware.RateLimit(rl, grpcapi.FullMethod("RequestAppointment")),
			middleware.Auth(cfg.JWTSecret),
		),
	)
	grpcapi.Register(srv, grpcapi.New(svc))

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		logger.Fatal("listen", "port", cfg.GRPCPort, "err", err)
	}
	go func() {
		logger.Info("grpc listening", "port", cfg.GRPCPort)
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc", "err", err)
		}
	}()

	// grpc-web bridge -> forwards browser requests to grpc on localhost
	self, err := grpc.NewClient("localhost:"+cfg.GRPCPort, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logger.Fatal("bridge", "err", err)
	}
	defer self.Close()

	h := handler.New(svc, st, handler.Config{
		Secret:        cfg.JWTSecret,
		AllowedOrigin: cfg.AllowedOrigin,
		Limiter:       rl,
		Logger:        logger.WithPrefix("http"),
		Health:        st.Ping,
		GRPCWeb:       grpcweb.New(self, grpcapi.ServiceName, logger.WithPrefix("grpc-web")),
	})
	httpSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http listening", "port", cfg.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http", "err", err)
			stop()
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}
	srv.GracefulStop()
}
