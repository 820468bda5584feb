// File: cmd/cookies.go
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/n0xframe/tavreg-cli/internal/browser"
	"github.com/n0xframe/tavreg-cli/internal/cookies"
	"github.com/n0xframe/tavreg-cli/internal/observability"
)

var cookiesCmd = &cobra.Command{
	Use:   "cookies",
	Short: "Capture a webmail session for later runs.",
	Long: `Cookies opens a visible browser on the webmail login page. Log in by hand,
then come back and press Enter; the session cookies are saved so register
runs can read the inbox without logging in.`,
	RunE: runCookies,
}

func init() {
	rootCmd.AddCommand(cookiesCmd)
}

func runCookies(cmd *cobra.Command, args []string) error {
	logger := observability.GetLogger()
	ctx := cmd.Context()

	store, err := cookies.NewStore(cfg.Cookies.File, cfg.Cookies.MaxAge)
	if err != nil {
		return err
	}

	// Manual login needs a window.
	browserCfg := cfg.Browser
	browserCfg.Headless = false

	mgr, err := browser.NewManager(ctx, browserCfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = mgr.Shutdown(shutdownCtx)
	}()

	session, err := mgr.NewSession(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Navigate(ctx, cfg.Mail.InboxURL); err != nil {
		return err
	}

	fmt.Println("Log in to the webmail account in the browser window, then press Enter here...")
	if _, err := bufio.NewReader(os.Stdin).ReadString('\n'); err != nil {
		return fmt.Errorf("cookies: waiting for confirmation: %w", err)
	}

	jar, err := session.ExportCookies(ctx)
	if err != nil {
		return err
	}
	if len(jar) == 0 {
		return fmt.Errorf("cookies: browser session has no cookies; was the login completed?")
	}
	if err := store.Save(jar); err != nil {
		return err
	}

	logger.Info("Webmail session saved.",
		zap.Int("cookies", len(jar)),
		zap.String("file", store.Path()))
	if prefix, ok := cookies.EmailPrefix(jar); ok {
		fmt.Printf("Saved %d cookies for mailbox %q to %s\n", len(jar), prefix, store.Path())
	} else {
		fmt.Printf("Saved %d cookies to %s\n", len(jar), store.Path())
	}
	return nil
}
