package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/deploybar/deploybar/internal/api"
	"github.com/deploybar/deploybar/internal/autostart"
	"github.com/deploybar/deploybar/internal/buildinfo"
	"github.com/deploybar/deploybar/internal/config"
	"github.com/deploybar/deploybar/internal/connectivity"
	"github.com/deploybar/deploybar/internal/daemon"
	"github.com/deploybar/deploybar/internal/deploys"
	"github.com/deploybar/deploybar/internal/settings"
	"github.com/deploybar/deploybar/internal/tray"
	"github.com/deploybar/deploybar/pkg/humantime"
)

var (
	configPath string
	logger     *zap.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "deploybar",
		Short: "Menu-bar client for your deploy host",
		Long:  "Polls the deploy-hosting API and shows site and deploy status in the system tray",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load config to get log file path
			cfg, err := config.Load(configPath)
			if err == nil && cfg.Daemon.LogFile != "" {
				logger, err = initFileLogger(cfg.Daemon.LogFile, cfg.Daemon.LogLevel)
				if err != nil {
					initLogger() // Fallback to console
				}
			} else {
				initLogger() // Default console logger
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Config file path")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(sitesCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(buildCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the tray daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, client, err := initClient()
			if err != nil {
				return err
			}

			probe, err := connectivity.NewProbe(cfg.API.Endpoint, logger)
			if err != nil {
				return fmt.Errorf("failed to create connectivity probe: %w", err)
			}

			store, err := initSettings(cfg)
			if err != nil {
				return err
			}

			var auto *autostart.Manager
			if execPath, err := os.Executable(); err == nil {
				auto = autostart.New("deploybar", execPath)
			} else {
				logger.Warn("Cannot resolve executable path, launch-at-start disabled",
					zap.Error(err))
			}

			d := daemon.New(cfg, client, probe, store, auto, logger)

			stopWatch, err := store.Watch(d.ApplySettings)
			if err != nil {
				logger.Warn("Settings file watching disabled", zap.Error(err))
			} else {
				defer stopWatch()
			}

			app := tray.New(d, logger)
			d.SetRenderer(app)

			// systray must own the main goroutine; the poll loop starts
			// once the menu exists and tears the tray down when it ends.
			app.Run(func() {
				go func() {
					d.Run()
					app.Stop()
				}()
			})
			return nil
		},
	}
}

func sitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List sites on the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, client, err := initClient()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			sites, err := client.ListSites(ctx)
			if err != nil {
				return err
			}

			store, err := initSettings(cfg)
			if err != nil {
				return err
			}
			currentID := store.Get().CurrentSiteID

			for _, s := range sites {
				marker := " "
				if s.ID.String() == currentID {
					marker = "*"
				}
				fmt.Printf("%s %-30s %s\n", marker, s.Name, s.URL)
			}
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show deploy status for the selected site",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, client, err := initClient()
			if err != nil {
				return err
			}

			store, err := initSettings(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			user, err := client.GetCurrentUser(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Account: %s <%s>\n", user.FullName, user.Email)

			siteID := store.Get().CurrentSiteID
			if siteID == "" {
				sites, err := client.ListSites(ctx)
				if err != nil {
					return err
				}
				if len(sites) == 0 {
					return fmt.Errorf("account has no sites")
				}
				siteID = sites[0].ID.String()
			}

			all, err := client.ListDeploys(ctx, siteID)
			if err != nil {
				return err
			}

			pending, ready := deploys.Partition(all)
			current := deploys.ChooseCurrent(pending, ready)
			if current == nil {
				fmt.Println("No deploys yet")
				return nil
			}

			fmt.Printf("Site:    %s\n", siteID)
			fmt.Printf("Deploy:  %s (%s)\n", current.ID, current.State)
			fmt.Printf("Branch:  %s\n", current.Branch)
			if ago := humantime.Ago(current.CreatedAt.Time, time.Now()); ago != "" {
				fmt.Printf("Created: %s\n", ago)
			}
			if dur := humantime.Seconds(current.DeployTime); dur != "" {
				fmt.Printf("Took:    %s\n", dur)
			}
			fmt.Printf("Pending: %d\n", len(pending))
			return nil
		},
	}
}

func buildCmd() *cobra.Command {
	var siteID string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Trigger a new build for the selected site",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, client, err := initClient()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			if siteID == "" {
				store, err := initSettings(cfg)
				if err != nil {
					return err
				}
				siteID = store.Get().CurrentSiteID
			}
			if siteID == "" {
				return fmt.Errorf("no site selected; pass --site or pick one in the tray")
			}

			build, err := client.CreateBuild(ctx, siteID)
			if err != nil {
				return err
			}

			fmt.Printf("Build %s triggered for site %s\n", build.ID, siteID)
			return nil
		},
	}

	cmd.Flags().StringVar(&siteID, "site", "", "Site ID (default: selected site)")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("deploybar", buildinfo.Version)
		},
	}
}

func initClient() (*config.Config, *api.Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ExpandEnvVars()

	return cfg, api.NewClient(cfg.API.Endpoint, cfg.API.Token, logger), nil
}

func initSettings(cfg *config.Config) (*settings.Store, error) {
	path := cfg.Daemon.SettingsFile
	if path == "" {
		var err error
		path, err = settings.DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	store := settings.NewStore(path, logger)
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return store, nil
}

func initLogger() {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var err error
	logger, err = config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
}

func initFileLogger(logFile string, level string) (*zap.Logger, error) {
	// Setup lumberjack for log rotation
	logWriter := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    100,  // MB
		MaxBackups: 3,    // Keep max 3 old log files
		MaxAge:     28,   // days
		Compress:   true, // Compress old logs with gzip
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(logWriter),
		zapLevel,
	)

	return zap.New(core), nil
}
