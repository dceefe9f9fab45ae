package main

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"radio-manager/work/config"
	"radio-manager/work/handlers"
	"radio-manager/work/logger"
	"radio-manager/work/manager"
	"radio-manager/work/middleware"
)

var (
	Version = "v0.1.0" // default version
)

// our main app worker
func main() {

	// load our config
	cfg := config.LoadConfig()

	// Set up logging
	appLogger := logger.New("INFO")
	if cfg.Debug {
		appLogger.SetLevel("DEBUG")
	}

	// Build the application core
	m := manager.New(cfg, appLogger)

	// Load the station list if one is present; a missing file is fine on
	// first start, the table begins empty and fills via import.
	if loaded, diags, err := m.Store.LoadFile(cfg.StationsFile); err != nil {
		appLogger.Warn("no station list loaded from %s: %v", cfg.StationsFile, err)
	} else {
		appLogger.Info("loaded %d stations from %s (%d rejected lines)", loaded, cfg.StationsFile, len(diags))
	}

	// Setup HTTP routes
	router := mux.NewRouter()

	// Station table
	router.HandleFunc("/api/stations", middleware.GzipMiddleware(handlers.HandleListStations(m))).Methods("GET")
	router.HandleFunc("/api/stations", handlers.HandleAddStation(m)).Methods("POST")
	router.HandleFunc("/api/stations/import", handlers.HandleImport(m)).Methods("POST")
	router.HandleFunc("/api/stations/export", middleware.GzipMiddleware(handlers.HandleExport(m))).Methods("GET")
	router.HandleFunc("/api/stations/{index:[0-9]+}", handlers.HandleUpdateStation(m)).Methods("PUT")
	router.HandleFunc("/api/stations/{index:[0-9]+}", handlers.HandleRemoveStation(m)).Methods("DELETE")

	// Check runs
	router.HandleFunc("/api/check/start", handlers.HandleStartCheck(m)).Methods("POST")
	router.HandleFunc("/api/check/cancel", handlers.HandleCancelCheck(m)).Methods("POST")
	router.HandleFunc("/api/check/status", handlers.HandleCheckStatus(m)).Methods("GET")

	// Table maintenance
	router.HandleFunc("/api/rename", handlers.HandleRename(m)).Methods("POST")
	router.HandleFunc("/api/duplicates/find", handlers.HandleFindDuplicates(m)).Methods("POST")
	router.HandleFunc("/api/duplicates/remove", handlers.HandleRemoveDuplicates(m)).Methods("POST")
	router.HandleFunc("/api/stations/remove-inactive", handlers.HandleRemoveInactive(m)).Methods("POST")
	router.HandleFunc("/api/stations/fix-https", handlers.HandleFixHTTPS(m)).Methods("POST")

	// Metrics handler
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// add the admin routes
	setupAdminRoutes(router, m)

	// show info
	appLogger.Info("Starting Radio Manager %s", Version)
	appLogger.Info("Server configuration:")
	appLogger.Info("  - Base URL: %s", cfg.BaseURL)
	appLogger.Info("  - Listen Addr: %s", cfg.ListenAddr)
	appLogger.Info("  - Stations File: %s", cfg.StationsFile)
	appLogger.Info("  - Max. Concurrency: %d", cfg.MaxConcurrency)
	appLogger.Info("  - Check Timeout: %s", cfg.CheckTimeout)
	appLogger.Info("  - Cache Enabled: %v", cfg.CacheEnabled)
	appLogger.Info("  - Cache Duration: %s", cfg.CacheDuration)
	appLogger.Info("  - Debug Enabled: %v", cfg.Debug)
	appLogger.Info("  - URL Obfuscation: %v", cfg.ObfuscateUrls)

	// gracefully restart if it's requested to do.
	go func() {

		// start a loop
		for {
			<-restartChan

			if cfg.Debug {
				appLogger.Info("Graceful restart requested...")
			}

			// Abort any active check run before settings change under it
			m.CancelCheck()

			// CLEAR CONFIG CACHE FIRST
			config.ClearConfigCache()

			// Reload config from file and rebuild components
			m.ReloadConfig(config.LoadConfig())

			if m.Config().Debug {
				appLogger.Info("Graceful restart completed")
			}

		}

	}()

	// fire us up
	if err := http.ListenAndServe(cfg.ListenAddr, router); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}

}
