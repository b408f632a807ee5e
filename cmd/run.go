// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/hashicorp/go-kapsule"
	"github.com/hashicorp/go-kapsule/charset"
	"github.com/hashicorp/go-kapsule/metrics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// CLI are the cli parameters for the kapsule binary
type CLI struct {
	FallbackEncoding string           `short:"e" optional:"" help:"Encoding of entry names the detector is not confident about, e.g. gbk or shift_jis. (default: system locale)"`
	Metrics          bool             `short:"M" optional:"" default:"false" help:"Print telemetry to log after extraction."`
	MetricsFile      string           `optional:"" type:"path" help:"Write Prometheus metrics in text format to this file after the command."`
	Verbose          bool             `short:"v" optional:"" help:"Verbose logging."`
	Version          kong.VersionFlag `short:"V" optional:"" help:"Print release version information."`

	List       ListCmd       `cmd:"" help:"List the entries of an archive."`
	Extract    ExtractCmd    `cmd:"" help:"Extract a single entry of an archive."`
	ExtractAll ExtractAllCmd `cmd:"" name:"extract-all" help:"Extract all entries of one or more archives."`
}

// ExtractFlags are the options shared by all extracting commands
type ExtractFlags struct {
	ContinueOnError    bool  `short:"C" help:"Continue extraction on error."`
	CreateDestination  bool  `short:"c" help:"Create destination directory if it does not exist."`
	DenySymlinks       bool  `short:"D" help:"Deny symlink extraction."`
	DropFileAttributes bool  `help:"Do not restore file modes and modification times."`
	FollowSymlinks     bool  `short:"F" help:"[Dangerous!] Follow symlinks to directories during extraction."`
	MaxFiles           int64 `optional:"" default:"100000" help:"Maximum files that are extracted before stop. (disable check: -1)"`
	MaxExtractionSize  int64 `optional:"" default:"1073741824" help:"Maximum extraction size that allowed is (in bytes). (disable check: -1)"`
	Overwrite          bool  `short:"O" help:"Overwrite if exist."`
}

// options converts the flags into configuration options
func (f ExtractFlags) options() []kapsule.ConfigOption {
	return []kapsule.ConfigOption{
		kapsule.WithContinueOnError(f.ContinueOnError),
		kapsule.WithCreateDestination(f.CreateDestination),
		kapsule.WithDenySymlinkExtraction(f.DenySymlinks),
		kapsule.WithDropFileAttributes(f.DropFileAttributes),
		kapsule.WithInsecureTraverseSymlinks(f.FollowSymlinks),
		kapsule.WithMaxExtractionSize(f.MaxExtractionSize),
		kapsule.WithMaxFiles(f.MaxFiles),
		kapsule.WithOverwrite(f.Overwrite),
	}
}

// ListCmd prints the entries of an archive
type ListCmd struct {
	Archive string `arg:"" name:"archive" help:"Path to archive." type:"existingfile"`
	Long    bool   `short:"l" help:"Print mode, size and modification time."`
}

// Run lists the archive
func (c *ListCmd) Run(env *environment) error {
	a, err := kapsule.Open(c.Archive, env.config())
	if err != nil {
		return err
	}
	defer a.Close()

	for e, err := range a.Entries() {
		if err != nil {
			return err
		}
		if c.Long {
			fmt.Fprintf(env.stdout, "%s %10d %s %s\n", e.Mode, e.Size, e.ModTime.UTC().Format("2006-01-02 15:04"), e.Name)
			continue
		}
		fmt.Fprintln(env.stdout, e.Name)
	}
	return nil
}

// ExtractCmd writes a single entry to a file or below a directory
type ExtractCmd struct {
	ExtractFlags

	Archive string `arg:"" name:"archive" help:"Path to archive." type:"existingfile"`
	Entry   string `arg:"" name:"entry" help:"Name of the entry as printed by list."`
	Output  string `short:"o" optional:"" help:"Output directory, or output file with --to-file. (default: . or the entry base name)"`
	ToFile  bool   `help:"Write the entry content to the output file instead of recreating its path."`
}

// Run extracts the entry
func (c *ExtractCmd) Run(env *environment) error {
	a, err := kapsule.Open(c.Archive, env.config(c.options()...))
	if err != nil {
		return err
	}
	defer a.Close()

	dst := kapsule.ToDir(orDefault(c.Output, "."))
	if c.ToFile {
		dst = kapsule.ToFile(orDefault(c.Output, filepath.Base(strings.TrimSuffix(c.Entry, "/"))))
	}
	env.logger.Debug("extract entry", "archive", c.Archive, "entry", c.Entry, "destination", dst)
	return a.Extract(c.Entry, dst)
}

// ExtractAllCmd recreates the tree of one or more archives
type ExtractAllCmd struct {
	ExtractFlags

	Archives    []string `arg:"" name:"archive" help:"Paths to archives."`
	Destination string   `short:"d" optional:"" default:"." help:"Output directory. Several archives are extracted into sub directories named after them."`
	Jobs        int      `short:"j" optional:"" default:"0" help:"Number of archives extracted in parallel. (default: number of CPUs)"`
}

// Run extracts all archives in parallel
func (c *ExtractAllCmd) Run(env *environment) error {
	jobs := c.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	var g errgroup.Group
	g.SetLimit(jobs)
	for _, path := range c.Archives {
		opts := c.options()
		dst := c.Destination
		if len(c.Archives) > 1 {
			dst = filepath.Join(c.Destination, archiveStem(path))
			opts = append(opts, kapsule.WithCreateDestination(true))
		}

		g.Go(func() error {
			a, err := kapsule.Open(path, env.config(opts...))
			if err != nil {
				return errors.Wrap(err, path)
			}
			defer a.Close()
			if err := a.ExtractAll(dst); err != nil {
				return errors.Wrap(err, path)
			}
			env.logger.Info("extracted archive", "archive", path, "destination", dst)
			return nil
		})
	}
	return g.Wait()
}

// archiveStem returns the base name of path without archive extensions
func archiveStem(path string) string {
	base := filepath.Base(path)
	lower := strings.ToLower(base)
	for _, ext := range []string{".tar.gz", ".tgz", ".zip"} {
		if strings.HasSuffix(lower, ext) && len(base) > len(ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return base
}

// orDefault returns s or def if s is empty
func orDefault(s string, def string) string {
	if len(s) == 0 {
		return def
	}
	return s
}

// environment is bound to every command
type environment struct {
	stdout   io.Writer
	logger   *slog.Logger
	hook     kapsule.TelemetryHook
	fallback kapsule.ConfigOption
}

// config returns the configuration for one archive
func (e *environment) config(opts ...kapsule.ConfigOption) *kapsule.Config {
	base := []kapsule.ConfigOption{
		kapsule.WithLogger(e.logger),
		kapsule.WithTelemetryHook(e.hook),
	}
	if e.fallback != nil {
		base = append(base, e.fallback)
	}
	return kapsule.NewConfig(append(base, opts...)...)
}

// Run the entrypoint into kapsule as a cli tool
func Run(version, commit, date string) {
	vars := kong.Vars{
		"version": fmt.Sprintf("%s (%s), commit %s, built at %s", filepath.Base(os.Args[0]), version, commit, date),
	}
	if err := execute(os.Args[1:], os.Stdout, os.Stderr, os.Exit, vars); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// execute parses args and runs the selected command
func execute(args []string, stdout, stderr io.Writer, exit func(int), vars kong.Vars) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("kapsule"),
		kong.Description("List and extract tar.gz and zip archives with legacy encoded entry names"),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.Exit(exit),
		vars,
	)
	if err != nil {
		return err
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	// Check for verbose output
	logLevel := slog.LevelError
	if cli.Metrics {
		logLevel = slog.LevelInfo
	}
	if cli.Verbose {
		logLevel = slog.LevelDebug
	}

	// setup logger
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	env := &environment{stdout: stdout, logger: logger}

	if len(cli.FallbackEncoding) > 0 {
		enc, ok := charset.Lookup(cli.FallbackEncoding)
		if !ok {
			return fmt.Errorf("unknown encoding %q", cli.FallbackEncoding)
		}
		env.fallback = kapsule.WithFallbackEncoding(enc)
	}

	// setup telemetry hook
	var reg *prometheus.Registry
	var collector *metrics.Collector
	if len(cli.MetricsFile) > 0 {
		reg = prometheus.NewRegistry()
		collector = metrics.NewCollector(reg)
	}
	env.hook = func(td *kapsule.TelemetryData) {
		if cli.Metrics {
			logger.Info("extraction finished", "telemetry", td)
		}
		if collector != nil {
			collector.Observe(td)
		}
	}

	runErr := ctx.Run(env)

	if reg != nil {
		if err := prometheus.WriteToTextfile(cli.MetricsFile, reg); err != nil {
			logger.Error("cannot write metrics", "path", cli.MetricsFile, "error", err)
			if runErr == nil {
				return errors.Wrap(err, "cannot write metrics")
			}
		}
	}
	return runErr
}
