// Package main provides the fanfeed CLI entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gauthierbraillon/fanfeed/internal/aggregator"
	"github.com/gauthierbraillon/fanfeed/internal/config"
	"github.com/gauthierbraillon/fanfeed/internal/display"
	"github.com/gauthierbraillon/fanfeed/internal/gallery"
	"github.com/gauthierbraillon/fanfeed/internal/server"
	"github.com/gauthierbraillon/fanfeed/internal/tiktok"
	"github.com/gauthierbraillon/fanfeed/pkg/browser"
)

var version = "dev"

// openBrowser is swapped in tests.
var openBrowser browser.Opener = browser.Open

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveVersion prefers the ldflags version and falls back to the module
// version recorded by go install.
func resolveVersion(ldflags string, info *debug.BuildInfo) string {
	if ldflags != "dev" {
		return ldflags
	}
	if info == nil || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}

func buildInfo() *debug.BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	return info
}

// rootOptions carries what every subcommand needs after PersistentPreRunE.
type rootOptions struct {
	envFile string
	cfg     config.Config
}

// newRootCmd creates the root command for fanfeed CLI.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:          "fanfeed",
		Short:        "Aggregate YouTube and TikTok shorts into one fan gallery",
		Long:         "Fanfeed merges YouTube Shorts and TikTok clips into one interleaved gallery, with sponsor interstitials between videos.",
		Version:      resolveVersion(version, buildInfo()),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			setupLogger(cmd.ErrOrStderr(), cfg.LogLevel)
			return nil
		},
	}

	rootCmd.SetVersionTemplate("fanfeed version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Path to a .env file (skipped when missing)")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newFeedCmd(opts))
	rootCmd.AddCommand(newBrowseCmd(opts))
	rootCmd.AddCommand(newSnapshotCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))

	return rootCmd
}

// setupLogger installs a text handler on w at the configured level.
func setupLogger(w io.Writer, level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
}

// newServeCmd creates the serve subcommand.
func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	var open bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the gallery API and static files",
		Long:  "Serve the YouTube, TikTok, thumbnail, combined feed and ad endpoints, plus the public directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = opts.cfg.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a := newApp(ctx, opts.cfg)
			defer a.Close()

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", addr, err)
			}

			link, err := browser.LocalURL(ln.Addr().String())
			if err != nil {
				_ = ln.Close()
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Serving fanfeed on %s\n", link)

			if open {
				if err := openBrowser(link); err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Could not open browser. Please visit:\n%s\n", link)
				}
			}

			return a.Server().Serve(ctx, ln)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from FANFEED_ADDR)")
	cmd.Flags().BoolVar(&open, "open", false, "Open the gallery in the default browser")

	return cmd
}

// newFeedCmd creates the feed subcommand.
func newFeedCmd(opts *rootOptions) *cobra.Command {
	var source string
	var limit int
	var refresh bool

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Display the combined video feed",
		Long:  "Display the interleaved YouTube and TikTok feed, falling back to the bundled catalog when sources are down.",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := gallery.ParseFilter(source)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			a := newApp(ctx, opts.cfg)
			defer a.Close()

			videos := a.service.FetchCombined(ctx, refresh)
			if filter != gallery.FilterAll {
				videos = aggregator.FilterBySource(videos, aggregator.Source(filter))
			}
			if limit > 0 && len(videos) > limit {
				videos = videos[:limit]
			}

			formatter := display.NewTerminalFormatter()
			if banner, ok := a.queue().Banner(); ok {
				fmt.Fprint(cmd.OutOrStdout(), formatter.FormatBanner(banner))
				fmt.Fprintln(cmd.OutOrStdout())
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatFeed(videos))
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Filter by source (youtube, tiktok)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of videos to display")
	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "Bypass the cached feed")

	return cmd
}

// newSnapshotCmd creates the snapshot subcommand.
func newSnapshotCmd(opts *rootOptions) *cobra.Command {
	var output string
	var limit int
	var keywords []string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Write the TikTok backend feed to a static snapshot file",
		Long:  "Page through the TikTok backend and write the records as the static snapshot the gallery falls back to.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = opts.cfg.SnapshotSource
			}
			if len(keywords) == 0 {
				keywords = opts.cfg.TikTokKeywords
			}
			if limit <= 0 {
				limit = opts.cfg.TikTokLimit
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			a := newApp(ctx, opts.cfg)
			defer a.Close()

			records, err := a.tiktok.Records(ctx, tiktok.Query{Keywords: keywords, Limit: limit})
			if err != nil {
				return fmt.Errorf("snapshot failed: %w", err)
			}

			if output == "-" {
				return tiktok.WriteSnapshot(cmd.OutOrStdout(), records, keywords, time.Now())
			}
			if err := writeFileAtomic(output, func(w io.Writer) error {
				return tiktok.WriteSnapshot(w, records, keywords, time.Now())
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d videos to %s\n", len(records), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Snapshot path, or - for stdout (default from FANFEED_SNAPSHOT)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Maximum number of videos (default from FANFEED_TIKTOK_LIMIT)")
	cmd.Flags().StringSliceVarP(&keywords, "keyword", "k", nil, "Search keyword, repeatable (default from TIKTOK_KEYWORD)")

	return cmd
}

// newConfigCmd creates the config subcommand.
func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show configuration",
		Long:  "Show the effective fanfeed configuration, with the API key masked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			for _, kv := range opts.cfg.Redacted() {
				value := kv[1]
				if strings.TrimSpace(value) == "" {
					value = "(unset)"
				}
				fmt.Fprintf(w, "%-24s %s\n", kv[0], value)
			}
			return nil
		},
	}

	return cmd
}

// serverOptions maps the configuration onto the HTTP server.
func serverOptions(a *app) server.Options {
	return server.Options{
		YouTube:         a.youtube,
		YouTubeDefaults: a.youtubeRequest,
		TikTok:          a.tiktok,
		Service:         a.service,
		Ads:             a.catalog,
		BannerAdID:      a.cfg.BannerOverride(),
		PublicDir:       a.cfg.PublicDir,
	}
}
