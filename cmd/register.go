// File: cmd/register.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/n0xframe/tavreg-cli/internal/account"
	"github.com/n0xframe/tavreg-cli/internal/browser"
	"github.com/n0xframe/tavreg-cli/internal/cookies"
	"github.com/n0xframe/tavreg-cli/internal/interact"
	"github.com/n0xframe/tavreg-cli/internal/observability"
	"github.com/n0xframe/tavreg-cli/internal/orchestrator"
	"github.com/n0xframe/tavreg-cli/internal/selectors"
)

var (
	registerCount    int
	registerHeadless bool
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register accounts and collect their API keys.",
	Long: `Register runs the full pipeline for each requested account: sign up with a
generated throwaway address, poll the webmail inbox for the verification
mail, follow the link, and append the scraped API key to the output file.`,
	RunE: runRegister,
}

func init() {
	registerCmd.Flags().IntVarP(&registerCount, "count", "n", 0, "number of accounts to register (default from config)")
	registerCmd.Flags().BoolVar(&registerHeadless, "headless", true, "run the browser headless")
	rootCmd.AddCommand(registerCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	logger := observability.GetLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = registerHeadless
	}
	count := cfg.Register.Count
	if registerCount > 0 {
		count = registerCount
	}

	registry := selectors.Default()
	if err := registry.Validate(); err != nil {
		return err
	}

	jar, prefix, err := resolveMailbox(logger)
	if err != nil {
		return err
	}

	writer, err := account.NewWriter(cfg.Output.KeysFile)
	if err != nil {
		return err
	}
	gen := account.NewGenerator(prefix, cfg.Mail.Domain, cfg.Register.Password)

	mgr, err := browser.NewManager(ctx, cfg.Browser, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = mgr.Shutdown(shutdownCtx)
	}()

	factory := func(ctx context.Context) (interact.Navigator, func(), error) {
		s, err := mgr.NewSession(ctx)
		if err != nil {
			return nil, nil, err
		}
		if len(jar) > 0 {
			if err := s.SetCookies(ctx, jar); err != nil {
				logger.Warn("Installing webmail cookies failed; inbox may require login.", zap.Error(err))
			}
		}
		return s, s.Close, nil
	}

	orch, err := orchestrator.New(cfg, registry, gen, writer, factory, logger)
	if err != nil {
		return err
	}

	summary := orch.Run(ctx, count)
	fmt.Printf("Done: %d/%d succeeded. Keys appended to %s\n",
		summary.Succeeded, summary.Requested, writer.Path())

	if summary.Succeeded == 0 {
		return errors.New("register: no account completed the pipeline")
	}
	return nil
}

// resolveMailbox loads the saved webmail session and works out the shared
// inbox prefix. Configured prefixes win; otherwise the prefix comes from the
// session's auth token.
func resolveMailbox(logger *zap.Logger) ([]cookies.Cookie, string, error) {
	store, err := cookies.NewStore(cfg.Cookies.File, cfg.Cookies.MaxAge)
	if err != nil {
		return nil, "", err
	}

	jar, err := store.Load()
	switch {
	case err == nil:
	case errors.Is(err, cookies.ErrStale):
		return nil, "", fmt.Errorf("saved webmail session expired; refresh it with 'tavreg-cli cookies': %w", err)
	default:
		logger.Warn("No usable webmail session.", zap.Error(err))
	}

	if cfg.Register.EmailPrefix != "" {
		return jar, cfg.Register.EmailPrefix, nil
	}
	if prefix, ok := cookies.EmailPrefix(jar); ok {
		logger.Info("Using mailbox prefix from saved session.", zap.String("prefix", prefix))
		return jar, prefix, nil
	}
	return nil, "", errors.New("no mailbox prefix: set register.email_prefix or capture a session with 'tavreg-cli cookies'")
}
