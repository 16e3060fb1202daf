package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-sysmonitor/pkg/alerter"
	"go-sysmonitor/pkg/analyzer"
	"go-sysmonitor/pkg/config"
	"go-sysmonitor/pkg/logger"
	"go-sysmonitor/pkg/metrics"
	"go-sysmonitor/pkg/monitor"
	"go-sysmonitor/pkg/reputation"
	"go-sysmonitor/pkg/sampler"
	"go-sysmonitor/pkg/storage"
	"go-sysmonitor/pkg/traffic"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	flag.Parse()

	// 初始化配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("初始化配置失败: %v", err)
	}

	// 初始化日志
	if err := logger.Init(cfg.Log); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Log.Fatalf("配置校验失败: %v", err)
	}

	logger.Log.Info("开始启动系统监控服务...")

	// 初始化外部存储 (InfluxDB 和 MySQL)
	store, err := storage.NewStorage(cfg)
	if err != nil {
		logger.Log.Fatalf("初始化存储层失败: %v", err)
	}
	defer store.Close()

	// 初始化告警
	alert, err := alerter.NewAlerter(cfg)
	if err != nil {
		logger.Log.Fatalf("初始化告警失败: %v", err)
	}
	defer alert.Close()

	observers := []monitor.Observer{monitor.LogObserver{}, metrics.Observer{}}
	if store.Enabled() {
		observers = append(observers, store)
	}
	if alert.Enabled() {
		observers = append(observers, alert)
	}
	bus := monitor.NewBus(cfg.Monitor.EventBuffer, observers...)

	addresses := storage.NewAddressStore(cfg.Path(cfg.Files.AddressSet))
	ledger := storage.NewLedger(cfg.Path(cfg.Files.Ledger))
	flagged := storage.NewFlaggedLog(cfg.Path(cfg.Files.Flagged))
	trafficLog := storage.NewTrafficLog(cfg.Path(cfg.Files.TrafficLog))

	client := reputation.NewClient(reputation.Options{
		URL:          cfg.Reputation.URL,
		APIKey:       cfg.AbuseIPDBKey,
		CanaryIP:     cfg.Reputation.CanaryIP,
		MaxAgeInDays: cfg.Reputation.MaxAgeInDays,
		Verbose:      cfg.Reputation.Verbose,
		Timeout:      cfg.Reputation.Timeout,
	})

	checker := analyzer.NewReputationChecker(addresses, ledger, flagged, client, bus, analyzer.Options{
		Threshold:        cfg.Reputation.Threshold,
		IdleInterval:     cfg.Reputation.IdleInterval,
		RateLimitBackoff: cfg.Reputation.RateLimitBackoff,
	}).WithWhitelist(analyzer.NewWhitelist(cfg.Security.WhitelistIPs))

	// 初始化GeoIP数据库，可选
	if cfg.GeoIP.CountryPath != "" {
		geoIP, err := geoip2.Open(cfg.GeoIP.CountryPath)
		if err != nil {
			logger.Log.Warnf("初始化GeoIP数据库失败，跳过国家补全: %v", err)
		} else {
			defer geoIP.Close()
			checker.WithGeo(analyzer.NewGeoResolver(geoIP))
		}
	}

	mon := monitor.New(bus,
		sampler.New(sampler.NewGopsutilSource(cfg.Monitor.DiskPath), bus, cfg.Monitor.SampleInterval),
		traffic.NewEnumerator(traffic.GopsutilSockets{}, trafficLog, addresses, bus, cfg.Monitor.ConnectionInterval),
		checker,
	)

	// 启动指标服务
	var metricsServer *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Log.Errorf("指标服务启动失败: %v", err)
			}
		}()
		logger.Log.Infof("指标服务监听 %s", cfg.Metrics.Addr)
	}

	// 优雅退出处理
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	mon.Start(context.Background())
	logger.Log.Infof("服务启动完成，数据目录: %s", cfg.Files.DataDir)

	sig := <-sigChan
	logger.Log.Infof("接收到信号 %v, 开始优雅退出", sig)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Monitor.ShutdownTimeout)
	defer cancel()
	go func() {
		select {
		case sig := <-sigChan:
			logger.Log.Warnf("再次接收到信号 %v, 放弃等待", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := mon.RequestShutdown(ctx); err != nil {
		logger.Log.Warnf("轮询器未在限定时间内停止，强制退出: %v", err)
	}

	if metricsServer != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	logger.Log.Info("服务已退出")
}
