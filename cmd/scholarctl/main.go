package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/client"
	"github.com/Folexy13/scholarhunter-sub001/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose   bool
	apiURL    string
	storePath string
	ephemeral bool
)

var rootCmd = &cobra.Command{
	Use:   "scholarctl",
	Short: "ScholarHunter terminal client",
	Long: `scholarctl talks to the ScholarHunter API.

The session (tokens and cached user) is kept in a local bbolt file so later
commands stay signed in. Configuration comes from SCHOLARHUNTER_* environment
variables or a .env file; flags override it.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	},
}

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API base URL (overrides SCHOLARHUNTER_API_URL)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Session store path (overrides SCHOLARHUNTER_STORE)")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "Keep the session in memory only")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(scholarshipsCmd, applicationsCmd)
	rootCmd.AddCommand(draftCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app is the composition root shared by every command.
type app struct {
	cfg     *config.ClientConfig
	store   client.Storage
	bus     *client.Bus
	api     *client.APIClient
	session *client.SessionManager

	closeStore func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if storePath != "" {
		cfg.StoragePath = storePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, bus: client.NewBus(), closeStore: func() error { return nil }}
	if ephemeral {
		a.store = client.NewMemoryStorage()
	} else {
		bolt, err := client.OpenBoltStorage(cfg.StoragePath)
		if err != nil {
			return nil, err
		}
		a.store = bolt
		a.closeStore = bolt.Close
	}

	a.api = client.NewAPIClient(cfg.APIURL, &http.Client{Timeout: cfg.HTTPTimeout})
	a.session = client.NewSessionManager(a.store, a.bus, a.api, client.NavigatorFunc(func(path string) {
		log.Debug().Str("route", path).Msg("Navigate")
	}))
	a.api.SetTokenStore(a.session)

	if err := a.session.Start(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("restore session: %w", err)
	}
	return a, nil
}

// requireSession waits for the stored session to be verified.
func (a *app) requireSession() error {
	a.session.Wait()
	if !a.session.IsAuthenticated() {
		return fmt.Errorf("not signed in, run scholarctl login")
	}
	return nil
}

func (a *app) Close() {
	a.session.Close()
	if err := a.closeStore(); err != nil {
		log.Warn().Err(err).Msg("Failed to close session store")
	}
}

// withApp adapts a command body that needs the composition root.
func withApp(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a, args)
	}
}
