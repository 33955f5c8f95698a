package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-mfa-grant/challenges"
	challengemem "github.com/jrsteele09/go-mfa-grant/challenges/memrepo"
	"github.com/jrsteele09/go-mfa-grant/challenges/redisrepo"
	"github.com/jrsteele09/go-mfa-grant/clients"
	clientmem "github.com/jrsteele09/go-mfa-grant/clients/memrepo"
	"github.com/jrsteele09/go-mfa-grant/grant"
	"github.com/jrsteele09/go-mfa-grant/hostmodel"
	"github.com/jrsteele09/go-mfa-grant/internal/config"
	"github.com/jrsteele09/go-mfa-grant/internal/metrics"
	"github.com/jrsteele09/go-mfa-grant/oauth2"
	"github.com/jrsteele09/go-mfa-grant/server"
	"github.com/jrsteele09/go-mfa-grant/token"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	demoClientID     = "demo"
	demoClientSecret = "demo-secret"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
	}

	c := config.New()
	setupLogging(c)

	if err := run(c); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if c.IsDev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func run(c config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	displayAppname(c.GetAppName())

	clientRepo, err := loadClients(c)
	if err != nil {
		return err
	}

	challengeRepo, closeStore, err := newChallengeRepo(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore()

	model := hostmodel.New(clientRepo, challengeRepo,
		hostmodel.WithChallengeTTL(c.GetChallengeTTL()),
		hostmodel.WithMaxAttempts(c.GetMaxOTPAttempts()),
	)

	signer, err := newSigner(c)
	if err != nil {
		return err
	}
	tokens := token.New(signer,
		token.WithIssuer(c.GetBaseURL()),
		token.WithLifetimes(c.GetAccessTokenLifetime(), c.GetRefreshTokenLifetime()),
	)

	dispatcher, err := grant.NewDispatcher(model, tokens, c.GetGrants())
	if err != nil {
		return errors.Wrap(err, "[run] grant.NewDispatcher")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.New(reg)
	if err != nil {
		return errors.Wrap(err, "[run] metrics.New")
	}

	handler, err := server.New(c, dispatcher, model, tokens,
		server.WithMetrics(recorder, reg),
		server.WithChallengeIssuer(model),
	)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listenAndServe(httpServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(httpServer)
	})
	return g.Wait()
}

func loadClients(c config.Config) (clients.Repo, error) {
	repo := clientmem.NewMemClientRepo()

	if path := c.GetClientsFile(); path != "" {
		n, err := clients.LoadFile(path, repo)
		if err != nil {
			return nil, errors.Wrap(err, "[loadClients] clients.LoadFile")
		}
		log.Info().Int("clients", n).Str("file", path).Msg("Clients loaded")
	}

	if !c.IsDev() {
		return repo, nil
	}
	if _, err := repo.Get(demoClientID); err == nil {
		return repo, nil
	}
	hash, err := clients.HashSecret(demoClientSecret)
	if err != nil {
		return nil, errors.Wrap(err, "[loadClients] clients.HashSecret")
	}
	if err := repo.Upsert(&clients.Client{
		ID:          demoClientID,
		Description: "Development client",
		SecretHash:  hash,
		GrantTypes:  []oauth2.GrantType{oauth2.MfaOtpGrant, oauth2.RefreshTokenGrant},
		Scopes:      []string{"read", "write"},
	}); err != nil {
		return nil, errors.Wrap(err, "[loadClients] seed demo client")
	}
	log.Warn().Str("client_id", demoClientID).Msg("DEV: seeded demo client")
	return repo, nil
}

func newChallengeRepo(ctx context.Context, c config.Config) (challenges.Repo, func(), error) {
	switch c.GetMfaStore() {
	case config.MfaStoreMemory:
		return challengemem.NewMemChallengeRepo(time.Minute), func() {}, nil
	case config.MfaStoreRedis:
		rdb, err := redisrepo.Dial(ctx, c.GetRedisAddr(), c.GetRedisPassword(), c.GetRedisDB())
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("addr", c.GetRedisAddr()).Msg("MFA challenges stored in Redis")
		return redisrepo.NewRedisChallengeRepo(rdb, redisrepo.DefaultPrefix), func() { _ = rdb.Close() }, nil
	}
	return nil, nil, errors.Errorf("[newChallengeRepo] unknown MFA_STORE %q", c.GetMfaStore())
}

func newSigner(c config.Config) (token.Signer, error) {
	if key := c.GetTokenSigningKey(); key != "" {
		return token.NewHMACSigner(key), nil
	}
	if !c.IsDev() {
		log.Warn().Msg("TOKEN_SIGNING_KEY not set, access tokens will not survive a restart")
	}
	signer, err := token.NewRandomHMACSigner()
	if err != nil {
		return nil, errors.Wrap(err, "[newSigner] token.NewRandomHMACSigner")
	}
	return signer, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "[listenAndServe] server.ListenAndServe")
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "[shutdown] server.Shutdown")
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
