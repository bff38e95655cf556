package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/ArionMiles/receiptor/internal/registry"
	"github.com/ArionMiles/receiptor/pkg/client"
	"github.com/ArionMiles/receiptor/pkg/config"
	"github.com/ArionMiles/receiptor/pkg/render"
	"github.com/ArionMiles/receiptor/pkg/summary"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check credentials, the renderer and previously downloaded receipts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !runStatus(cmd.Context(), cmd.OutOrStdout(), cfg) {
				return errors.New("configuration issues detected")
			}
			return nil
		},
	}

	cmd.Flags().String("out-dir", config.DefaultOutDir, "directory holding the summary file")
	addAuthFlags(cmd)
	addRenderFlags(cmd)

	return cmd
}

// runStatus prints one line per check and reports whether every check passed.
func runStatus(ctx context.Context, out io.Writer, cfg *config.Config) bool {
	fmt.Fprintln(out, "=== Receiptor Status ===")
	fmt.Fprintln(out)

	allGood := true
	check := func(label string, fn func() (string, error)) {
		fmt.Fprintf(out, "%s: ", label)
		msg, err := fn()
		if err != nil {
			fmt.Fprintf(out, "✗ %v\n", err)
			allGood = false
			return
		}
		fmt.Fprintf(out, "✓ %s\n", msg)
	}

	check(fmt.Sprintf("Credentials file (%s)", cfg.Credentials), func() (string, error) {
		if _, err := os.Stat(cfg.Credentials); err != nil {
			return "", errors.New("not found")
		}
		return "found", nil
	})

	tokenOK := true
	check(fmt.Sprintf("OAuth token (%s)", cfg.Token), func() (string, error) {
		msg, err := tokenStatus(cfg.Token)
		tokenOK = err == nil
		return msg, err
	})

	check(fmt.Sprintf("Renderer (%s)", cfg.Wkhtmltopdf), func() (string, error) {
		if err := render.New(render.Config{Binary: cfg.Wkhtmltopdf}, nil).Check(ctx); err != nil {
			return "", err
		}
		return "available", nil
	})

	check("Vendors", func() (string, error) {
		return fmt.Sprintf("%d registered", len(registry.Default().Names())), nil
	})

	check(fmt.Sprintf("Summary (%s)", summary.Path(cfg.OutDir)), func() (string, error) {
		entries, err := summary.Load(summary.Path(cfg.OutDir))
		if errors.Is(err, os.ErrNotExist) {
			return "none yet", nil
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d entries", len(entries)), nil
	})

	if tokenOK {
		check("Gmail API", func() (string, error) {
			httpClient, err := client.Cached(ctx, client.Config{SecretFile: cfg.Credentials, TokenFile: cfg.Token}, client.Scopes...)
			if err != nil {
				return "", err
			}
			if err := testGmailAPI(ctx, httpClient); err != nil {
				return "", err
			}
			return "connected", nil
		})
	}

	fmt.Fprintln(out)
	if allGood {
		fmt.Fprintln(out, "Status: ✓ Ready to run")
	} else {
		fmt.Fprintln(out, "Status: ✗ Fix the issues above, then run 'receiptor status' again.")
	}
	return allGood
}

func tokenStatus(path string) (string, error) {
	tok, err := client.LoadToken(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", errors.New("not found (run 'receiptor setup')")
	}
	if err != nil {
		return "", err
	}
	if tok.Expiry.Before(time.Now()) {
		return "expired (will refresh on next run)", nil
	}
	return "valid (expires " + tok.Expiry.Format(time.RFC3339) + ")", nil
}

func testGmailAPI(ctx context.Context, httpClient *http.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}
	if _, err := svc.Users.GetProfile("me").Context(ctx).Do(); err != nil {
		return fmt.Errorf("API call failed: %w", err)
	}
	return nil
}
