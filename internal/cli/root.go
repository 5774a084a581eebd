// Package cli implements the bimrepr CLI commands.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/chazu/bimrepr/internal/config"
)

// options holds the persistent flags shared by every command.
type options struct {
	configPath string
	dbPath     string
	format     string
}

// RootCmd is the top-level command.
var RootCmd = NewRootCmd()

// NewRootCmd builds the command tree with fresh flag state.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "bimrepr",
		Short:         "Mesh to shape representation node runner",
		Long:          "Evaluates scripts that declare mesh objects and representation nodes, and keeps their shape representations in a SQLite-backed building model document up to date.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.dbPath, "db", "d", "", "Document path (default: $BIMREPR_DB or ./bimrepr.db)")
	pf.StringVarP(&opts.configPath, "config", "c", "", "YAML config file (default: $BIMREPR_CONFIG)")
	pf.StringVarP(&opts.format, "format", "f", "text", "Output format: json or text")

	cmd.AddCommand(newRunCmd(opts), newPreviewCmd(opts), newInspectCmd(opts), newRmCmd(opts))
	return cmd
}

// load resolves the config file, environment and flags.
func (o *options) load() (config.Config, error) {
	path := o.configPath
	if path == "" {
		path = os.Getenv("BIMREPR_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if o.dbPath != "" {
		cfg.DocumentPath = o.dbPath
	}
	if o.format != "json" && o.format != "text" {
		return config.Config{}, fmt.Errorf("unsupported format %q", o.format)
	}
	return cfg, nil
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level, _ := cfg.SlogLevel()
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
