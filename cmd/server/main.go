package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-password-auth/auth"
	"github.com/jrsteele09/go-password-auth/internal/config"
	"github.com/jrsteele09/go-password-auth/internal/db"
	"github.com/jrsteele09/go-password-auth/internal/logging"
	"github.com/jrsteele09/go-password-auth/server"
	"github.com/jrsteele09/go-password-auth/token"
	"github.com/jrsteele09/go-password-auth/token/rediscache"
	"github.com/jrsteele09/go-password-auth/token/refresh"
	refreshpgrepo "github.com/jrsteele09/go-password-auth/token/refresh/pgrepo"
	refreshrepofake "github.com/jrsteele09/go-password-auth/token/refresh/repofake"
	"github.com/jrsteele09/go-password-auth/users"
	userpgrepo "github.com/jrsteele09/go-password-auth/users/pgrepo"
	fakeuserrepo "github.com/jrsteele09/go-password-auth/users/repofake"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

const revokedKeyPrefix = "password-auth:revoked:"

func main() {
	serve, err := parseFlags(os.Args[1:], os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if !serve {
		return
	}
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	logging.Setup(c.GetEnv(), c.GetLogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	userRepo, refreshRepo, closeStore, err := openStorage(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore()

	tokenOptions := []token.ManagerOption{
		token.WithAccessTokenExpiry(c.GetDefaultAccessTokenExpiry()),
		token.WithIssuer(issuer(c)),
		token.WithAudience(c.GetAudience()),
	}
	if redisURL := c.GetRedisURL(); redisURL != "" {
		cache, err := rediscache.New(ctx, redisURL, revokedKeyPrefix)
		if err != nil {
			return err
		}
		defer cache.Close()
		tokenOptions = append(tokenOptions, token.WithRevokedTokenCache(cache))
		log.Info().Msg("revoked tokens stored in redis")
	}

	signer, err := token.NewSignerFromConfig(c)
	if err != nil {
		return err
	}
	tokenCreator := token.New(refresh.NewManager(refreshRepo, c), userRepo, signer, tokenOptions...)

	authService, err := auth.NewAuthorizationService(auth.Repos{Users: userRepo}, tokenCreator, auth.WithSecurityConfig(c))
	if err != nil {
		return err
	}

	srv, err := server.New(c, authService)
	if err != nil {
		return err
	}

	janitor, err := server.NewJanitor(authService, c.GetJanitorSchedule(), srv.Metrics())
	if err != nil {
		return err
	}
	janitor.Start()

	displayAppname(c.GetAppName())
	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(httpServer)
	}()

	select {
	case err := <-serveErr:
		returnError = err
	case <-ctx.Done():
		returnError = shutdown(httpServer)
	}

	janitorCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	janitor.Stop(janitorCtx)
	return returnError
}

// parseFlags reports whether the server should start. Settings come from the
// environment, so the only flag is help, which also lists the variables read.
func parseFlags(args []string, out io.Writer) (bool, error) {
	fs := pflag.NewFlagSet("password-auth-server", pflag.ContinueOnError)
	fs.SetOutput(out)
	help := fs.BoolP("help", "h", false, "show this help and the environment variables read")
	fs.Usage = func() {
		fmt.Fprintf(out, "Usage: %s [flags]\n\nFlags:\n%s\n%s\n", fs.Name(), fs.FlagUsages(), config.Usage())
	}
	if err := fs.Parse(args); err != nil {
		return false, err
	}
	if *help {
		fs.Usage()
		return false, nil
	}
	return true, nil
}

// openStorage returns PostgreSQL repositories when DATABASE_URL is set and
// in-memory ones otherwise.
func openStorage(ctx context.Context, c config.StorageConfig) (users.UserRepo, refresh.Repo, func(), error) {
	databaseURL := c.GetDatabaseURL()
	if databaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, using in-memory storage")
		return fakeuserrepo.NewFakeUserRepo(), refreshrepofake.NewFakeRefreshTokenRepo(), func() {}, nil
	}

	pool, err := db.NewPool(ctx, databaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	log.Info().Msg("connected to postgres")
	return userpgrepo.NewUserRepo(pool), refreshpgrepo.NewRefreshTokenRepo(pool), pool.Close, nil
}

func issuer(c config.Config) string {
	if iss := c.GetIssuer(); iss != "" {
		return iss
	}
	return c.GetBaseURL()
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
