// Package command implements the hrimport command-line tool: local
// ingestion against the configured store, template downloads, run
// history, and pushing rosters to a remote server.
package command

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/hrimport/internal/application"
	"github.com/JonMunkholm/hrimport/internal/config"
	"github.com/JonMunkholm/hrimport/internal/logging"
)

// Commandline holds the dependencies commands are built from. Tests
// replace the config loader to run against an in-memory store.
type Commandline struct {
	envFile    string
	verbose    bool
	loadConfig func() (*config.Config, error)
	logger     *slog.Logger
}

// NewCommandline reads configuration from the environment.
func NewCommandline() *Commandline {
	return &Commandline{loadConfig: config.Load}
}

// NewRootCmd builds the command tree.
func (cl *Commandline) NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hrimport",
		Short: "hrimport - employee roster ingestion",
		Long: `hrimport reads employee rosters (.xlsx or .csv), normalizes every field,
matches each row to existing people and faculty, and writes the result.

Configuration comes from the environment (see the server's variables:
STORE_BACKEND, DATABASE_URL, BADGER_PATH, CNIC_SEAL_KEY, ...). A .env file
in the working directory is loaded first.`,
		SilenceUsage:      true,
		PersistentPreRunE: cl.setup,
	}

	cmd.PersistentFlags().StringVar(&cl.envFile, "env-file", ".env", "environment file to load before reading configuration")
	cmd.PersistentFlags().BoolVarP(&cl.verbose, "verbose", "v", false, "log at debug level")

	cl.ingest(cmd)
	cl.push(cmd)
	cl.migrate(cmd)
	cl.columns(cmd)
	cl.template(cmd)
	cl.runs(cmd)
	cl.faculty(cmd)
	cl.audit(cmd)
	cl.purgeAudit(cmd)
	return cmd
}

func (cl *Commandline) setup(cmd *cobra.Command, args []string) error {
	if cl.envFile != "" {
		if err := godotenv.Load(cl.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	level := "warn"
	if cl.verbose {
		level = "debug"
	}
	cl.logger = logging.New(cmd.ErrOrStderr(), level, "text")
	slog.SetDefault(cl.logger)
	return nil
}

// openApp loads configuration and opens the store. The caller closes it.
func (cl *Commandline) openApp(ctx context.Context) (*application.App, error) {
	cfg, err := cl.loadConfig()
	if err != nil {
		return nil, err
	}
	return application.New(ctx, cfg, cl.logger)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
