package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ByteMirror/survivalpong/config"
	"github.com/ByteMirror/survivalpong/game"
	"github.com/ByteMirror/survivalpong/log"
	"github.com/ByteMirror/survivalpong/monitor"
	"github.com/ByteMirror/survivalpong/pool"
	"github.com/ByteMirror/survivalpong/results"
	"github.com/ByteMirror/survivalpong/supply"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	version      = "1.0.0"
	durationFlag time.Duration
	formatFlag   string
	noSaveFlag   bool
	refreshFlag  time.Duration

	rootCmd = &cobra.Command{
		Use:   "survivalpong",
		Short: "Survival Pong - keep every ball in play for as long as you can",
		RunE:  runPlay,
	}

	playCmd = &cobra.Command{
		Use:   "play",
		Short: "Play a headless match with both paddles on autopilot",
		RunE:  runPlay,
	}

	stockCmd = &cobra.Command{
		Use:   "stock",
		Short: "Fill the ball pools once and print what is in stock",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Initialize("stock")
			defer log.Close(true)

			cfg := config.LoadConfig()
			s, err := startSupply(cfg)
			if err != nil {
				return err
			}
			defer s.shutdown()

			ctx, cancel := signalContext()
			defer cancel()

			batch := supply.NewReplenisher(s.registry, s.manager, cfg.MinimumStock, cfg.BatchSize).EnsureSupply()
			if err := batch.Await(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "some production failed: %v\n", err)
			}

			fmt.Print(monitor.Report(s.source(cfg, nil).Stats()))
			return nil
		},
	}

	monitorCmd = &cobra.Command{
		Use:   "monitor",
		Short: "Run an autopilot match and watch the ball supply live",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return errors.New("monitor needs a terminal; try 'survivalpong stock'")
			}

			log.Initialize("monitor")
			defer log.Close(true)

			cfg := config.LoadConfig()
			s, err := startSupply(cfg)
			if err != nil {
				return err
			}
			defer s.shutdown()

			ctx, cancel := signalContext()
			defer cancel()

			g := game.New(game.SettingsFromConfig(cfg), s.registry, s.manager)
			if err := g.Start(ctx); err != nil {
				return fmt.Errorf("failed to start match: %w", err)
			}

			stop := runInBackground(ctx, g, cfg.TickPeriod())
			defer stop()

			return monitor.RunDashboard(ctx, s.source(cfg, g), refreshFlag)
		},
	}

	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Delete the stored results file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			path, err := cfg.ResultsFile()
			if err != nil {
				return err
			}
			if err := results.Clear(path); err != nil {
				return err
			}
			fmt.Printf("Results at %s have been cleared\n", path)
			return nil
		},
	}

	debugCmd = &cobra.Command{
		Use:   "debug",
		Short: "Print debug information like config paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()

			configDir, err := config.GetConfigDir()
			if err != nil {
				return fmt.Errorf("failed to get config directory: %w", err)
			}
			configJson, _ := json.MarshalIndent(cfg, "", "  ")

			fmt.Printf("Config: %s\n%s\n", filepath.Join(configDir, config.ConfigFileName), configJson)
			fmt.Printf("Log file: %s\n", log.FileName())
			if cfg.RedisURL != "" {
				fmt.Printf("Redis: %s\n", log.SanitizeURL(cfg.RedisURL))
			}
			return nil
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of survivalpong",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("survivalpong version %s\n", version)
		},
	}
)

func runPlay(cmd *cobra.Command, args []string) error {
	log.Initialize("play")
	defer log.Close(false)

	cfg := config.LoadConfig()
	if formatFlag != "" {
		cfg.ResultsFormat = formatFlag
	}
	format, err := results.ParseFormat(cfg.ResultsFormat)
	if err != nil {
		return err
	}

	s, err := startSupply(cfg)
	if err != nil {
		return err
	}
	defer s.shutdown()

	ctx, cancel := signalContext()
	defer cancel()
	if durationFlag > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, durationFlag)
		defer cancelTimeout()
	}

	g := game.New(game.SettingsFromConfig(cfg), s.registry, s.manager)
	if err := g.Start(ctx); err != nil {
		return fmt.Errorf("failed to start match: %w", err)
	}
	defer g.Close()

	fmt.Println("Match started, press ctrl+c to stop")
	res, err := game.Run(ctx, g, cfg.TickPeriod(), game.NewLogRenderer(2*time.Second), autopilots()...)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	line := format.Line(res.Level, res.Seconds, time.Now())
	fmt.Println(line)
	if noSaveFlag {
		return nil
	}

	w, closeWriter, err := resultsWriter(cfg, format)
	if err != nil {
		return err
	}
	defer closeWriter()
	if err := <-w.Write(res.Level, res.Seconds); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// runInBackground drives g with the autopilots until the returned func is
// called. That func waits for the loop to exit before closing the match.
func runInBackground(ctx context.Context, g *game.Game, period time.Duration) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := game.Run(ctx, g, period, nil, autopilots()...)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.ErrorLog.Printf("match stopped: %v", err)
		}
	}()

	return func() {
		cancel()
		<-done
		g.Close()
	}
}

func autopilots() []game.Controller {
	return []game.Controller{
		game.Autopilot{Paddle: 0, Deadzone: 4},
		game.Autopilot{Paddle: 1, Deadzone: 4},
	}
}

// resultsWriter writes to the results file and, when configured, to Redis.
// The returned func releases the Redis connection.
func resultsWriter(cfg *config.Config, format results.Format) (results.Writer, func(), error) {
	path, err := cfg.ResultsFile()
	if err != nil {
		return nil, nil, err
	}
	writers := results.MultiWriter{results.NewFileWriter(path, format)}
	closeWriter := func() {}

	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client, err := results.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.WarningLog.Printf("redis at %s unavailable, saving to file only: %v", log.SanitizeURL(cfg.RedisURL), err)
		} else {
			writers = append(writers, results.NewRedisWriter(client, cfg.RedisKey, format))
			closeWriter = func() {
				if err := client.Close(); err != nil {
					log.WarningLog.Printf("failed to close redis client: %v", err)
				}
			}
		}
	}
	return writers, closeWriter, nil
}

type supplySystem struct {
	registry *pool.Registry
	manager  *supply.Manager
}

func startSupply(cfg *config.Config) (*supplySystem, error) {
	bounds := game.SettingsFromConfig(cfg).Bounds
	s := &supplySystem{
		registry: pool.NewRegistry(&bounds, pool.WithCapacity(cfg.PoolCapacity)),
		manager:  supply.NewManager(cfg.Production, cfg.Retrieval),
	}
	if err := s.manager.Start(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *supplySystem) source(cfg *config.Config, g *game.Game) monitor.Source {
	return monitor.SupplySource{
		Registry:     s.registry,
		Manager:      s.manager,
		MinimumStock: cfg.MinimumStock,
		Game:         g,
	}
}

func (s *supplySystem) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.manager.Shutdown(ctx); err != nil {
		log.ErrorLog.Printf("failed to stop workers: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func init() {
	for _, c := range []*cobra.Command{rootCmd, playCmd} {
		c.Flags().DurationVarP(&durationFlag, "duration", "d", 0,
			"Stop the match after this long (0 plays until every ball is missed)")
		c.Flags().StringVarP(&formatFlag, "format", "f", "",
			"Results format: 'plain' or 'dated' (overrides config)")
		c.Flags().BoolVar(&noSaveFlag, "no-save", false, "Do not store the result")
	}
	monitorCmd.Flags().DurationVar(&refreshFlag, "refresh", time.Second, "Dashboard refresh interval")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(stockCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(resetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
