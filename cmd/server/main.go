package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cbodonnell/fairroll/pkg/api"
	"github.com/cbodonnell/fairroll/pkg/commitment"
	"github.com/cbodonnell/fairroll/pkg/log"
	"github.com/cbodonnell/fairroll/pkg/network"
	"github.com/cbodonnell/fairroll/pkg/round"
	"github.com/cbodonnell/fairroll/pkg/store"
	"github.com/cbodonnell/fairroll/pkg/version"
	"github.com/cbodonnell/fairroll/pkg/workers"
	"golang.org/x/sync/errgroup"
)

func main() {
	port := flag.Int("port", 8080, "HTTP port to listen on")
	wsPort := flag.Int("ws-port", 8081, "WebSocket port to listen on (0 disables)")
	allowOrigin := flag.String("allow-origin", "*", "allowed CORS origin")
	logLevel := flag.String("log-level", "info", "Log level")
	ttl := flag.Duration("ttl", commitment.DefaultTTL, "how long an unplayed commitment stays valid")
	sweepInterval := flag.Duration("sweep-interval", time.Minute, "how often expired commitments are purged")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	if *ttl <= 0 {
		panic(fmt.Sprintf("ttl must be positive, got %s", *ttl))
	}
	if *sweepInterval <= 0 {
		panic(fmt.Sprintf("sweep-interval must be positive, got %s", *sweepInterval))
	}

	log.Info("Starting fairroll server version %s", version.Get())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storeURL := os.Getenv("FAIRROLL_STORE_URL")
	if storeURL == "" {
		storeURL = "memory://"
	}
	commitmentStore, err := openStore(ctx, storeURL)
	if err != nil {
		panic(fmt.Sprintf("Failed to open commitment store: %v", err))
	}
	defer commitmentStore.Close(context.Background())

	generator := commitment.NewGenerator(commitment.NewGeneratorOptions{
		Store: commitmentStore,
		TTL:   *ttl,
	})
	resolver := round.NewResolver(commitmentStore)

	var tlsConfig *api.TLSConfig
	tlsCertFile := os.Getenv("FAIRROLL_TLS_CERT_FILE")
	tlsKeyFile := os.Getenv("FAIRROLL_TLS_KEY_FILE")
	if tlsCertFile != "" && tlsKeyFile != "" {
		tlsConfig = &api.TLSConfig{
			CertFile: tlsCertFile,
			KeyFile:  tlsKeyFile,
		}
	}

	apiServer := api.NewAPIServer(api.NewAPIServerOptions{
		Port:        *port,
		TLS:         tlsConfig,
		AllowOrigin: *allowOrigin,
		Generator:   generator,
		Resolver:    resolver,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(apiServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(apiServer.Stop)
	})

	if *wsPort != 0 {
		wsOpts := network.NewWSServerOptions{
			Port:           *wsPort,
			Generator:      generator,
			Resolver:       resolver,
			OriginPatterns: strings.Split(*allowOrigin, ","),
		}
		if tlsConfig != nil {
			wsOpts.TLS = &network.TLSConfig{
				CertFile: tlsConfig.CertFile,
				KeyFile:  tlsConfig.KeyFile,
			}
		}
		wsServer := network.NewWSServer(wsOpts)
		g.Go(wsServer.Start)
		g.Go(func() error {
			<-gctx.Done()
			return shutdown(wsServer.Stop)
		})
	}

	expiryWorker := workers.NewExpiryWorker(workers.NewExpiryWorkerOptions{
		Store:    commitmentStore,
		Interval: *sweepInterval,
	})
	g.Go(func() error {
		expiryWorker.Start(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error: %v", err)
		os.Exit(1)
	}
	log.Info("Server stopped")
}

func shutdown(stop func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return stop(ctx)
}

// openStore selects the commitment store backing from the URL scheme.
func openStore(ctx context.Context, storeURL string) (store.Store, error) {
	u, err := url.Parse(storeURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse store url: %v", err)
	}

	switch u.Scheme {
	case "memory":
		log.Info("Using in-memory commitment store")
		return store.NewInMemoryStore(), nil
	case "sqlite":
		path := u.Host + u.Path
		if path == "" {
			path = "fairroll.db"
		}
		log.Info("Using SQLite commitment store at %s", path)
		return store.NewSQLiteStore(ctx, path)
	case "postgres", "postgresql":
		log.Info("Using Postgres commitment store at %s", u.Redacted())
		return store.NewPostgresStore(ctx, u.String())
	default:
		return nil, fmt.Errorf("unknown store type %q", u.Scheme)
	}
}
