package main

import (
	"fmt"
	"os"
	"time"

	"github.com/maloquacious/semver"
	"github.com/spf13/cobra"

	"github.com/maloquacious/backdrop/internal/config"
	"github.com/maloquacious/backdrop/internal/logger"
	"github.com/maloquacious/backdrop/internal/store/sqlite"
)

var (
	version       = semver.Version{Minor: 1, PreRelease: "alpha", Build: semver.Commit()}
	schemaVersion = sqlite.SchemaVersion
	buildDate     = ""
)

var (
	configPath string
	dbPath     string
	verbose    bool
	shutdownTO time.Duration
	exitAfter  time.Duration
	publicDir  string
	port       int
	adminPort  int

	cfg *config.Config
	log *logger.ZapLogger
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "app",
		Short:         "backdrop application server and admin CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if log != nil {
				_ = log.Sync()
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "backdrop.yaml", "optional YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", `datastore directory, or ":memory:"`)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&shutdownTO, "shutdown-timeout", 15*time.Second, "graceful shutdown timeout")
	rootCmd.PersistentFlags().StringVar(&publicDir, "public", "public", "directory for static public assets")

	// serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the backdrop server",
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&port, "port", 8080, "public HTTP port (HTML)")
	serveCmd.Flags().IntVar(&adminPort, "admin-port", 8383, "admin HTTP port (JSON, loopback only)")
	serveCmd.Flags().DurationVar(&exitAfter, "exit-after", 0, "optional runtime; if set, server exits after this duration (testing)")

	// db command group
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}
	dbCmd.AddCommand(
		&cobra.Command{Use: "create", Short: "Create and initialize the datastore", RunE: runDBCreate},
		&cobra.Command{Use: "upgrade", Short: "Apply migrations to current schema version", RunE: runDBUpgrade},
		&cobra.Command{Use: "verify", Short: "Verify schema integrity and version", RunE: runDBVerify},
	)

	// background command group
	bgCmd := &cobra.Command{
		Use:   "background",
		Short: "Inspect or change the background image",
	}
	bgCmd.AddCommand(
		&cobra.Command{Use: "get", Short: "Print the current background reference", Args: cobra.NoArgs, RunE: runBackgroundGet},
		&cobra.Command{Use: "set <uri>", Short: "Set the background image", Args: cobra.ExactArgs(1), RunE: runBackgroundSet},
		&cobra.Command{Use: "clear", Short: "Remove the background image", Args: cobra.NoArgs, RunE: runBackgroundClear},
	)

	messagesCmd := &cobra.Command{
		Use:   "messages",
		Short: "Recorded alert history",
	}
	messagesCmd.AddCommand(
		&cobra.Command{Use: "list", Short: "Print recorded alerts, newest first", Args: cobra.NoArgs, RunE: runMessagesList},
		&cobra.Command{Use: "clear", Short: "Forget recorded alerts", Args: cobra.NoArgs, RunE: runMessagesClear},
	)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (schema %s)\n", version.String(), schemaVersion)
		},
	}

	rootCmd.AddCommand(serveCmd, dbCmd, bgCmd, messagesCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads configuration, applies explicit flags on top, and builds the logger.
func setup(cmd *cobra.Command) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Store.Path = dbPath
	}
	if flags.Changed("shutdown-timeout") {
		cfg.Server.ShutdownTimeout = shutdownTO
	}
	if flags.Changed("public") {
		cfg.Server.PublicDir = publicDir
	}
	if flags.Changed("port") {
		cfg.Server.Port = port
	}
	if flags.Changed("admin-port") {
		cfg.Server.AdminPort = adminPort
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err = logger.New(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Default = log
	return nil
}
