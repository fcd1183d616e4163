// Command hifi-bridge runs the zone-aggregation bus, its backend
// adapters, the HQPlayer enrichment link, the knob device registry, and
// the HTTP surface that exposes all of it (spec.md §1, §6). Flag/env
// resolution follows the teacher's cmd/amplipi/main.go pattern.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/open-horizon-labs/hifi-bridge/internal/adapter"
	"github.com/open-horizon-labs/hifi-bridge/internal/adapters/lms"
	"github.com/open-horizon-labs/hifi-bridge/internal/adapters/openhome"
	"github.com/open-horizon-labs/hifi-bridge/internal/adapters/roon"
	"github.com/open-horizon-labs/hifi-bridge/internal/adapters/upnp"
	"github.com/open-horizon-labs/hifi-bridge/internal/bridgeapi"
	"github.com/open-horizon-labs/hifi-bridge/internal/bus"
	"github.com/open-horizon-labs/hifi-bridge/internal/coordinator"
	"github.com/open-horizon-labs/hifi-bridge/internal/hqplayer"
	"github.com/open-horizon-labs/hifi-bridge/internal/hqplink"
	"github.com/open-horizon-labs/hifi-bridge/internal/knobs"
	"github.com/open-horizon-labs/hifi-bridge/internal/models"
	"github.com/open-horizon-labs/hifi-bridge/internal/settings"
	"github.com/open-horizon-labs/hifi-bridge/internal/zeroconf"
)

// config is the resolved set of flags/env vars main runs with,
// following the teacher's "read once, pass down as a struct" rule.
type config struct {
	Port      int
	ConfigDir string
	LogLevel  string
	LMSHost   string
	LMSPort   int
	HQPHost   string
	HQPPort   int
	HQPUser   string
	HQPPass   string
	MQTTBroker string
}

func resolveConfig() config {
	defaultDir := defaultConfigDir()

	port := flag.Int("port", envInt("PORT", envInt("UHC_PORT", 9990)), "HTTP port")
	configDir := flag.String("config-dir", envString("CONFIG_DIR", defaultDir), "directory for persisted JSON state")
	logLevel := flag.String("log-level", envString("LOG_LEVEL", "info"), "log level: debug|info|warn|error")
	lmsHost := flag.String("lms-host", envString("LMS_HOST", ""), "Logitech Media Server host")
	lmsPort := flag.Int("lms-port", envInt("LMS_PORT", 9000), "Logitech Media Server port")
	hqpHost := flag.String("hqp-host", envString("HQP_HOST", ""), "HQPlayer host")
	hqpPort := flag.Int("hqp-port", envInt("HQP_PORT", 8088), "HQPlayer web UI port")
	hqpUser := flag.String("hqp-user", envString("HQP_USER", ""), "HQPlayer web UI username")
	hqpPass := flag.String("hqp-pass", envString("HQP_PASS", ""), "HQPlayer web UI password")
	mqttBroker := flag.String("mqtt-broker", envString("MQTT_BROKER", ""), "MQTT broker address (unused: MQTT bridge is out of scope)")
	flag.Parse()

	return config{
		Port:       *port,
		ConfigDir:  *configDir,
		LogLevel:   *logLevel,
		LMSHost:    *lmsHost,
		LMSPort:    *lmsPort,
		HQPHost:    *hqpHost,
		HQPPort:    *hqpPort,
		HQPUser:    *hqpUser,
		HQPPass:    *hqpPass,
		MQTTBroker: *mqttBroker,
	}
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hifi-bridge"
	}
	return filepath.Join(home, ".config", "hifi-bridge")
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

func main() {
	cfg := resolveConfig()
	setupLogging(cfg.LogLevel)

	if err := os.MkdirAll(cfg.ConfigDir, 0o755); err != nil {
		slog.Error("main: cannot create config dir", "dir", cfg.ConfigDir, "err", err)
		os.Exit(1)
	}
	slog.Info("main: starting", "config_dir", cfg.ConfigDir, "port", cfg.Port)

	settingsStore := settings.NewStore(cfg.ConfigDir)
	current, err := settingsStore.Load()
	if err != nil {
		slog.Error("main: failed to load settings", "err", err)
		current = settings.DefaultSettings()
	}

	hqpConfigStore := settings.NewHQPConfigStore(cfg.ConfigDir)
	hqpInstances, err := hqpConfigStore.LoadInstances()
	if err != nil {
		slog.Warn("main: failed to load hqp-config.json", "err", err)
	}
	if cfg.HQPHost != "" && len(hqpInstances) == 0 {
		hqpInstances = append(hqpInstances, models.HQPInstanceConfig{
			Name:     "default",
			Host:     cfg.HQPHost,
			WebPort:  cfg.HQPPort,
			Username: cfg.HQPUser,
			Password: cfg.HQPPass,
		})
	}

	hqpManager := hqplayer.NewManager()
	hqpManager.LoadInstances(hqpInstances)

	hqplinkSvc := hqplink.New(hqpManager)
	hqplinkSvc.LoadLinks(current.HQP.ZoneLinks)

	knobRegistry := knobs.New(cfg.ConfigDir)
	if err := knobRegistry.Load(); err != nil {
		slog.Warn("main: failed to load knobs.json", "err", err)
	}

	zoneBus := bus.New()

	catalog := coordinator.Catalog{
		"roon": func() adapter.Adapter {
			return roon.New(roon.NewDiscoveryClient(), func() { _ = zoneBus.RefreshZones("roon") })
		},
		"upnp": func() adapter.Adapter {
			return upnp.New(upnp.DefaultConfig(), func() { _ = zoneBus.RefreshZones("upnp") })
		},
		"openhome": func() adapter.Adapter {
			return openhome.New(openhome.DefaultConfig(), func() { _ = zoneBus.RefreshZones("openhome") })
		},
	}
	if cfg.LMSHost != "" {
		catalog["lms"] = func() adapter.Adapter {
			return lms.New(lms.Config{
				Host:         cfg.LMSHost,
				Port:         cfg.LMSPort,
				PollInterval: lms.DefaultPollInterval,
			}, func() { _ = zoneBus.RefreshZones("lms") })
		}
	}

	coord := coordinator.New(zoneBus, catalog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coord.StartAll(ctx, current.Adapters)

	watcher, err := settings.WatchAndReload(settingsStore, func(next settings.Settings) {
		slog.Info("main: settings.json changed on disk, reconciling adapters")
		coord.OnSettingsChanged(ctx, next.Adapters)
		hqplinkSvc.LoadLinks(next.HQP.ZoneLinks)
	})
	if err != nil {
		slog.Warn("main: settings watch unavailable", "err", err)
	}

	mdns := zeroconf.New("hifi-bridge", cfg.Port)
	go func() {
		if err := mdns.Start(ctx); err != nil {
			slog.Warn("main: mdns advertisement stopped", "err", err)
		}
	}()

	server := bridgeapi.New(bridgeapi.Deps{
		Bus:           zoneBus,
		Knobs:         knobRegistry,
		SettingsStore: settingsStore,
		Coordinator:   coord,
		HQP:           hqpManager,
		HQPConfig:     hqpConfigStore,
		HQPLink:       hqplinkSvc,
	})
	router := bridgeapi.NewRouter(server)

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		slog.Info("main: http listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("main: http server failed", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	slog.Info("main: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	if watcher != nil {
		_ = watcher.Close()
	}
	cancel()
	_ = settingsStore.Flush()
}
