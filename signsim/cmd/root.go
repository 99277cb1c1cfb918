package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"
	"github.com/harveysanders/sidegrade/signsim/term"
	"github.com/harveysanders/sidegrade/smartsign/buffer"
	"github.com/harveysanders/sidegrade/smartsign/fetch"
	"github.com/harveysanders/sidegrade/smartsign/lcd"
	"github.com/harveysanders/sidegrade/smartsign/mqtt"
	"github.com/harveysanders/sidegrade/smartsign/refresh"
	"github.com/harveysanders/sidegrade/smartsign/scroll"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "signsim",
	Short: "Run the sidegrade sign in a terminal",
	Long: `signsim drives the sign's scroll renderer on the host. Text comes from
the sign proxy over HTTP, a local file, or an MQTT topic, exactly as the
firmware would receive it.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runSim,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./.sidegrade.yaml)")
	rootCmd.PersistentFlags().String("broker", "", "MQTT broker host:port")
	rootCmd.PersistentFlags().String("topic", "", "MQTT topic carrying the sign text")

	f := rootCmd.Flags()
	f.String("source", "", "where text comes from: http, file or mqtt")
	f.String("url", "", "proxy route for the http source")
	f.String("file", "", "text file for the file source")
	f.Int("width", 0, "character cells per row")
	f.Int("rows", 0, "rows on the panel")
	f.Duration("tick", 0, "render period")
	f.Duration("refresh-interval", 0, "time between fetches")
	f.Int("step", 0, "characters a long row advances per tick")
	f.Int("tail-margin", 0, "wrap once offset > len-(width-tail_margin)")
	f.String("log", "", "write logs to this file")
	f.Bool("headless", false, "print frames from a simulated HD44780 instead of drawing with tcell")

	cobra.CheckErr(bindFlags(viper.GetViper(), rootCmd))

	rootCmd.AddCommand(pushCmd)
}

// flagKeys maps config keys to the root command's local flags.
var flagKeys = map[string]string{
	"width":            "width",
	"rows":             "rows",
	"source":           "source",
	"url":              "url",
	"file":             "file",
	"tick":             "tick",
	"refresh_interval": "refresh-interval",
	"step":             "step",
	"tail_margin":      "tail-margin",
	"log":              "log",
	"headless":         "headless",
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for key, flag := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("binding --%s: %w", flag, err)
		}
	}
	for _, key := range []string{"broker", "topic"} {
		if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(key)); err != nil {
			return fmt.Errorf("binding --%s: %w", key, err)
		}
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func runSim(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(viper.GetViper(), cfgFile)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	buf := buffer.New(cfg.Rows)
	fetcher := newFetcher(ctx, cfg, logger)
	refresher := &refresh.Refresher{
		Fetcher:      fetcher,
		Buffer:       buf,
		Interval:     cfg.RefreshInterval,
		FetchTimeout: cfg.FetchTimeout,
		Rows:         cfg.Rows,
		Logger:       logger,
	}
	if cfg.Source == SourceFile {
		go func() {
			err := fetch.Watch(ctx, cfg.File, 200*time.Millisecond, refresher.Trigger)
			if err != nil && ctx.Err() == nil {
				logger.Error("watch:stopped", slog.String("err", err.Error()))
			}
		}()
	}
	go refresher.Run(ctx)

	if cfg.Headless {
		return runHeadless(ctx, cfg, buf, logger, cmd.OutOrStdout())
	}
	return runTerminal(ctx, cfg, buf, refresher, logger)
}

// newLogger logs to cfg.Log when set. Otherwise headless runs log to
// stderr and terminal runs discard logs so they do not tear the screen.
func newLogger(cfg Config, stderr io.Writer) (*slog.Logger, func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	switch {
	case cfg.Log != "":
		f, err := os.OpenFile(cfg.Log, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		return slog.New(slog.NewTextHandler(f, opts)), func() { f.Close() }, nil
	case cfg.Headless:
		return slog.New(slog.NewTextHandler(stderr, opts)), func() {}, nil
	default:
		return slog.New(slog.NewTextHandler(io.Discard, opts)), func() {}, nil
	}
}

func newFetcher(ctx context.Context, cfg Config, logger *slog.Logger) refresh.Fetcher {
	switch cfg.Source {
	case SourceFile:
		return fetch.File{Path: cfg.File}
	case SourceMQTT:
		feed := &mqtt.Feed{
			ID:      "signsim-" + uuid.NewString()[:8],
			Topic:   cfg.Topic,
			Timeout: cfg.FetchTimeout,
			Logger:  logger,
		}
		go feed.Run(ctx, tcpDialer(cfg.Broker), 2*time.Second)
		return feed
	default:
		return fetch.NewHTTP(cfg.URL, cfg.FetchTimeout, logger)
	}
}

func tcpDialer(addr string) mqtt.Dialer {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	}
}

func runTerminal(ctx context.Context, cfg Config, buf *buffer.Buffer, refresher *refresh.Refresher, logger *slog.Logger) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("creating screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("initializing screen: %w", err)
	}
	defer screen.Fini()

	panel := term.NewPanel(screen, cfg.Width, cfg.Rows)
	renderer, err := scroll.New(cfg.Scroll(), panel, buf, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go renderer.Run(ctx)

	events := make(chan tcell.Event)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	status := time.NewTicker(time.Second)
	defer status.Stop()
	panel.Status(statusLine(cfg, buf))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-status.C:
			panel.Status(statusLine(cfg, buf))
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				switch {
				case ev.Key() == tcell.KeyEscape, ev.Key() == tcell.KeyCtrlC,
					ev.Key() == tcell.KeyRune && ev.Rune() == 'q':
					return nil
				case ev.Key() == tcell.KeyRune && ev.Rune() == 'r':
					refresher.Trigger()
				}
			case *tcell.EventResize:
				screen.Sync()
			}
		}
	}
}

func statusLine(cfg Config, buf *buffer.Buffer) string {
	return cfg.Source + " · updates " + strconv.FormatUint(buf.Version(), 10) + " · [r] refresh [q] quit"
}

// runHeadless renders onto a simulated HD44780 and prints the panel after
// every pass.
func runHeadless(ctx context.Context, cfg Config, buf *buffer.Buffer, logger *slog.Logger, out io.Writer) error {
	size := lcd.Size{Columns: cfg.Width, Rows: cfg.Rows}
	// One HD44780 addresses 80 cells: 4x20 or 2x40 at most.
	if size.Rows > 4 || size.Columns > 40 || (size.Rows > 2 && size.Columns > 20) {
		return fmt.Errorf("cannot simulate a %dx%d HD44780", size.Columns, size.Rows)
	}
	mirror := lcd.NewMirror(size)
	panel := lcd.NewPanel(mirror, size)

	last := cfg.Rows - 1
	painter := scroll.PainterFunc(func(row int, line string) error {
		if err := panel.Paint(row, line); err != nil {
			return err
		}
		if row == last {
			writeFrame(out, mirror.Lines())
		}
		return nil
	})

	renderer, err := scroll.New(cfg.Scroll(), painter, buf, logger)
	if err != nil {
		return err
	}
	if err := renderer.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func writeFrame(out io.Writer, lines []string) {
	edge := "+" + strings.Repeat("-", len(lines[0])) + "+\n"
	var b strings.Builder
	b.WriteString(edge)
	for _, l := range lines {
		b.WriteString("|" + l + "|\n")
	}
	b.WriteString(edge)
	io.WriteString(out, b.String())
}
