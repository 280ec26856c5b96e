package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"projectdb-go/internal/app"
	"projectdb-go/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// command identifies the CLI command being run (e.g. "item save").
func newApp(ctx context.Context, cmd *cobra.Command, command string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	creds, err := app.CredentialsFromEnv(os.Getenv)
	if err != nil {
		return nil, err
	}
	if app.NeedsPassword(cfg) && creds.DBPassword == "" {
		if creds.DBPassword, err = readSecret("Database password"); err != nil {
			return nil, err
		}
	}
	if app.NeedsPassphrase(cfg) && creds.Passphrase == "" {
		if creds.Passphrase, err = readSecret("Key passphrase"); err != nil {
			return nil, err
		}
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	a, err := app.NewApp(ctx, cfg, app.Options{Command: command, Credentials: creds, Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// withApp runs fn against a fresh App and records a failure in the log.
func withApp(command string, fn func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cmd, command)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := fn(ctx, a, cmd, args); err != nil {
			a.Fail(err)
			return err
		}
		return nil
	}
}

// readSecret prompts on the terminal without echo.
func readSecret(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%s required but stdin is not a terminal", label)
	}
	fmt.Fprintf(os.Stderr, "%s: ", label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", label, err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:          "projectdb",
	Short:        "Karabo project database",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
			cfg.Backend = backend
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Backend:  %s\n", cfg.Backend)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Backend:        %s\n", cfg.Backend)
		fmt.Printf("Remove orphans: %t\n", cfg.RemoveOrphans)
		fmt.Printf("Base Dir:       %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:        %s\n", cfg.LogDir)
		switch cfg.Backend {
		case config.BackendRelational:
			if cfg.Database.LocalMode {
				fmt.Printf("Database:       sqlite in %s\n", cfg.Database.DataDir)
			} else {
				fmt.Printf("Database:       mysql %s@%s:%d/%s\n", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)
			}
		case config.BackendDocument:
			fmt.Printf("Documents:      %s store, root %s\n", cfg.Documents.Type, cfg.Documents.Root)
			fmt.Printf("Encryption:     %s\n", cfg.Documents.Encryption.Type)
		}
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage document encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the age key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		passphrase := os.Getenv(app.EnvKeyPassphrase)
		if passphrase == "" {
			if passphrase, err = readSecret("New key passphrase"); err != nil {
				return err
			}
			again, err := readSecret("Repeat passphrase")
			if err != nil {
				return err
			}
			if again != passphrase {
				return fmt.Errorf("passphrases do not match")
			}
		}

		if err := app.InitKeys(cfg.Documents.Encryption, passphrase); err != nil {
			return err
		}
		fmt.Printf("Public key:  %s\n", cfg.Documents.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Documents.Encryption.PrivateKeyPath)
		return nil
	},
}

// schema command
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show the stored schema version",
	RunE: withApp("schema", func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		v, err := a.Service().SchemaVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	}),
}

// request command
var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Answer one JSON request read from stdin",
	RunE: withApp("request", func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		return a.HandleRequest(ctx, os.Stdin, os.Stdout)
	}),
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug messages")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("backend", "", "Backend to configure: relational or document")
	configCmd.AddCommand(configListCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(domainCmd)
	rootCmd.AddCommand(itemCmd)
	rootCmd.AddCommand(deviceCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(sceneCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(requestCmd)
}
