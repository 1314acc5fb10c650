package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gallerysvc/internal/config"
	"gallerysvc/internal/derivative"
	"gallerysvc/internal/gallery"
	"gallerysvc/internal/metadata"
	"gallerysvc/pkg/logger"
	"gallerysvc/pkg/metrics"
	"gallerysvc/pkg/ratelimit"
)

const metadataSchemaVersion = "1"

var (
	addrFlag        string
	sourceDirFlag   string
	cacheDirFlag    string
	pathPrefixFlag  string
	jpegQualityFlag int
	webpQualityFlag float64
	avifEnabledFlag bool
	avifSpeedFlag   int
	copyrightFlag   string
	watermarkFontFlag string
	shareSecretFlag string
	shareCookieFlag string
	sweepIntervalFlag time.Duration
	metadataRefreshFlag time.Duration
	metadataFlushFlag   time.Duration
	logLevelFlag    string
	showHelp        bool

	rateLimitFlag       int
	rateLimitBurstFlag  int
	ipRateLimitFlag     int
	ipRateLimitBurstFlag int
)

func main() {
	parseFlags()

	if showHelp {
		flag.Usage()
		return
	}

	initLogger()

	cfg := config.Default()
	cfg.Addr = addrFlag
	cfg.SourceDir = sourceDirFlag
	cfg.CacheDir = cacheDirFlag
	cfg.PathPrefix = pathPrefixFlag
	cfg.JPEGQuality = jpegQualityFlag
	cfg.WebPQuality = float32(webpQualityFlag)
	cfg.AVIFEnabled = avifEnabledFlag
	cfg.AVIFSpeed = avifSpeedFlag
	cfg.CopyrightHolder = copyrightFlag
	cfg.WatermarkFontPath = watermarkFontFlag
	cfg.ShareSecret = shareSecretFlag
	cfg.ShareCookie = shareCookieFlag
	cfg.LogLevel = logLevelFlag

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration: %v", err)
		os.Exit(1)
	}

	metaStore, err := metadata.Open(cfg.CacheDir, metadataSchemaVersion)
	if err != nil {
		logger.Error("failed to open metadata store: %v", err)
		os.Exit(1)
	}

	svc, err := gallery.NewService(cfg.GalleryConfig(), metaStore)
	if err != nil {
		logger.Error("failed to initialize gallery service: %v", err)
		os.Exit(1)
	}

	var rateLimiter *ratelimit.Limiter
	if rateLimitFlag > 0 || ipRateLimitFlag > 0 {
		if rateLimitBurstFlag == 0 && rateLimitFlag > 0 {
			rateLimitBurstFlag = rateLimitFlag * 2
		}
		if ipRateLimitBurstFlag == 0 && ipRateLimitFlag > 0 {
			ipRateLimitBurstFlag = ipRateLimitFlag * 2
		}
		rateLimiter = ratelimit.NewLimiter(rateLimitFlag, rateLimitBurstFlag, ipRateLimitFlag, ipRateLimitBurstFlag)
		logger.Info("rate limiting enabled: global=%d/s (burst=%d), ip=%d/s (burst=%d)",
			rateLimitFlag, rateLimitBurstFlag, ipRateLimitFlag, ipRateLimitBurstFlag)
	} else {
		logger.Info("rate limiting disabled (unlimited requests)")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /"+cfg.PathPrefix, svc.ListHandler())
	mux.HandleFunc("GET /"+cfg.PathPrefix+"/preview", svc.PreviewHandler())
	mux.HandleFunc("GET /"+cfg.PathPrefix+"/image/{path...}", svc.ImageHandler())
	mux.HandleFunc("GET /"+cfg.PathPrefix+"/info/{path...}", svc.ImageInfoHandler())
	mux.HandleFunc("GET /"+cfg.PathPrefix+"/composite/{path...}", svc.CompositeHandler())
	mux.HandleFunc("/healthz", healthHandler)
	mux.HandleFunc("/metrics", metrics.Get().Handler())

	var finalHandler http.Handler = mux
	if rateLimiter != nil {
		finalHandler = ratelimit.Middleware(rateLimiter)(finalHandler)
	}
	finalHandler = metrics.Middleware(finalHandler)
	finalHandler = logMiddleware(finalHandler)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           finalHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		printAddr := cfg.Addr
		if strings.HasPrefix(printAddr, ":") {
			printAddr = "localhost" + printAddr
		}
		logger.Info("starting gallery service on http://%s", printAddr)
		logger.Info("source directory: %s, cache directory: %s", cfg.SourceDir, cfg.CacheDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error: %v", err)
			os.Exit(1)
		}
	}()

	bgCtx, bgCancel := context.WithCancel(context.Background())
	go derivative.RunSweeperEvery(bgCtx, sweepIntervalFlag, cfg.CacheDir)
	metadata.StartPeriodicFlush(bgCtx, metadataFlushFlag, metaStore)
	metadata.StartBackgroundRefresh(bgCtx, metadataRefreshFlag, svc.RefreshAll)

	go func() {
		if err := svc.PregenerateThumbnails(bgCtx, derivative.DefaultPregenerateConcurrency); err != nil {
			logger.Warn("thumbnail pregeneration pass did not complete: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down gracefully...")

	bgCancel()
	if rateLimiter != nil {
		rateLimiter.Stop()
	}

	if err := svc.Flush(); err != nil {
		logger.Error("failed to flush metadata store: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	logger.Info("server stopped")
}

func parseFlags() {
	flag.StringVar(&addrFlag, "addr", ":9090", "listen address, e.g. ':9090' or '0.0.0.0:9090'")
	flag.StringVar(&sourceDirFlag, "source-dir", "./photos", "directory of original images to serve")
	flag.StringVar(&cacheDirFlag, "cache-dir", "./cache", "directory for derivative cache and metadata store")
	flag.StringVar(&pathPrefixFlag, "path-prefix", "gallery", "URL path prefix for gallery routes")
	flag.IntVar(&jpegQualityFlag, "jpeg-quality", 85, "JPEG encode quality (1-100)")
	flag.Float64Var(&webpQualityFlag, "webp-quality", 85, "WebP encode quality (1-100)")
	flag.BoolVar(&avifEnabledFlag, "avif", false, "negotiate AVIF output when the client accepts it")
	flag.IntVar(&avifSpeedFlag, "avif-speed", 6, "AVIF encoder speed/quality tradeoff (0-10, higher is faster)")
	flag.StringVar(&copyrightFlag, "copyright-holder", "", "copyright holder text for the medium-size watermark (empty disables it)")
	flag.StringVar(&watermarkFontFlag, "watermark-font", "", "path to a TTF/OTF font for the watermark text")
	flag.StringVar(&shareSecretFlag, "share-secret", "", "HMAC secret for hidden-folder share cookies (empty disables the check)")
	flag.StringVar(&shareCookieFlag, "share-cookie", "gallery_share", "name of the share-link cookie")
	flag.DurationVar(&sweepIntervalFlag, "sweep-interval", 10*time.Minute, "interval between derivative-cache temp-file sweeps")
	flag.DurationVar(&metadataRefreshFlag, "metadata-refresh-interval", time.Hour, "interval between full metadata refreshes")
	flag.DurationVar(&metadataFlushFlag, "metadata-flush-interval", 5*time.Minute, "interval between periodic metadata flushes")
	flag.StringVar(&logLevelFlag, "log-level", "info", "log level (debug, info, warn, error)")
	flag.IntVar(&rateLimitFlag, "rate-limit", 0, "global requests/second (0=unlimited)")
	flag.IntVar(&rateLimitBurstFlag, "rate-limit-burst", 0, "global burst capacity (0=auto: rate*2)")
	flag.IntVar(&ipRateLimitFlag, "ip-rate-limit", 0, "requests/second per IP (0=unlimited)")
	flag.IntVar(&ipRateLimitBurstFlag, "ip-rate-limit-burst", 0, "per-IP burst capacity (0=auto: rate*2)")
	flag.BoolVar(&showHelp, "help", false, "show help and exit")
	flag.Parse()
}

func initLogger() {
	var level logger.Level
	switch strings.ToLower(logLevelFlag) {
	case "debug":
		level = logger.DEBUG
	case "warn":
		level = logger.WARN
	case "error":
		level = logger.ERROR
	default:
		level = logger.INFO
	}
	logger.SetLevel(level)
	logger.Init()
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: 200}
		next.ServeHTTP(rw, r)
		logger.Info("%s %s %d %v", r.Method, r.URL.String(), rw.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
