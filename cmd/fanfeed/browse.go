package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gauthierbraillon/fanfeed/internal/ads"
	"github.com/gauthierbraillon/fanfeed/internal/aggregator"
	"github.com/gauthierbraillon/fanfeed/internal/display"
	"github.com/gauthierbraillon/fanfeed/internal/gallery"
)

const browseHelp = `Commands:
  <n>             open video n (an ad is shown first)
  skip            dismiss the ad and play the video
  close           close the player
  more            show more videos
  filter <tab>    all, youtube or tiktok
  refresh         reload the feed, bypassing the cache
  quit            exit
`

// revealWait bounds how long browse waits for the video after an ad.
const revealWait = 2 * time.Second

// newBrowseCmd creates the browse subcommand.
func newBrowseCmd(opts *rootOptions) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse the gallery interactively",
		Long:  "Browse the combined gallery in the terminal. Opening a video shows a sponsor interstitial first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a := newApp(ctx, opts.cfg)
			defer a.Close()

			revealed := make(chan aggregator.VideoItem, 1)
			seq := ads.NewSequencer(a.queue(), ads.WithOnReveal(func(v aggregator.VideoItem) {
				select {
				case revealed <- v:
				default:
				}
			}))
			ctrl := gallery.NewController(a.service, seq)
			defer ctrl.Close()

			s := &session{
				ctrl:      ctrl,
				out:       cmd.OutOrStdout(),
				formatter: display.NewTerminalFormatter(),
				revealed:  revealed,
				compact:   !full,
			}
			ctrl.Refresh(ctx, false)
			s.showGrid()
			return s.run(ctx, cmd.InOrStdin())
		},
	}

	cmd.Flags().BoolVar(&full, "all", false, "List every video instead of paging by 20")

	return cmd
}

// session is one interactive browse loop.
type session struct {
	ctrl      *gallery.Controller
	out       io.Writer
	formatter *display.TerminalFormatter
	revealed  chan aggregator.VideoItem
	compact   bool
}

func (s *session) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(s.out, "> ")
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			fmt.Fprint(s.out, "> ")
			continue
		}

		switch fields[0] {
		case "quit", "exit", "q":
			return nil
		case "help", "?":
			fmt.Fprint(s.out, browseHelp)
		case "more":
			s.ctrl.LoadMore()
			s.showGrid()
		case "filter":
			arg := ""
			if len(fields) > 1 {
				arg = fields[1]
			}
			f, err := gallery.ParseFilter(arg)
			if err != nil {
				fmt.Fprintln(s.out, err)
				break
			}
			s.ctrl.SetFilter(f)
			s.showGrid()
		case "refresh":
			s.ctrl.Refresh(ctx, true)
			s.showGrid()
		case "skip":
			if _, ok := s.ctrl.ActiveAd(); !ok {
				fmt.Fprintln(s.out, "No ad to skip.")
				break
			}
			s.ctrl.DismissAd()
			s.awaitVideo()
		case "close":
			s.ctrl.CloseVideo()
			s.showGrid()
		default:
			s.open(fields[0])
		}
		fmt.Fprint(s.out, "> ")
	}
	return scanner.Err()
}

func (s *session) open(arg string) {
	n, err := strconv.Atoi(arg)
	videos := s.ctrl.Displayed(s.compact)
	if err != nil || n < 1 || n > len(videos) {
		fmt.Fprintf(s.out, "Unknown command %q (type 'help')\n", arg)
		return
	}

	s.drain()
	if ad, ok := s.ctrl.Select(videos[n-1]); ok {
		fmt.Fprint(s.out, s.formatter.FormatAd(ad))
		return
	}
	s.awaitVideo()
}

func (s *session) awaitVideo() {
	select {
	case v := <-s.revealed:
		fmt.Fprint(s.out, s.formatter.FormatPlayer(v))
	case <-time.After(revealWait):
		fmt.Fprintln(s.out, "The video did not open.")
	}
}

func (s *session) drain() {
	select {
	case <-s.revealed:
	default:
	}
}

func (s *session) showGrid() {
	if banner, ok := s.ctrl.Banner(); ok {
		fmt.Fprint(s.out, s.formatter.FormatBanner(banner))
	}
	fmt.Fprintf(s.out, "Tab: %s\n", s.ctrl.Filter())
	fmt.Fprint(s.out, s.formatter.FormatGrid(s.ctrl.Displayed(s.compact), s.compact && s.ctrl.HasMore()))
}
