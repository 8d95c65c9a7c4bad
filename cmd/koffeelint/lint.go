package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/jrossi/koffeelint"
	"github.com/jrossi/koffeelint/linters"
)

// errLintFailed makes the process exit with status 1 without printing anything
var errLintFailed = errors.New("lint errors found")

type lintOptions struct {
	format    string
	cwd       string
	encoding  string
	stdinName string
	disable   bool
	watch     bool
}

func newLintCmd() *cobra.Command {
	opts := &lintOptions{}
	cmd := &cobra.Command{
		Use:   "lint [files...]",
		Short: "Lint CoffeeScript files, or stdin when no file or - is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.format, "format", "f", koffeelint.FormatText, "Output format: text, json or markdown")
	flags.StringVar(&opts.cwd, "cwd", "", "Working directory used for coffeelint.json discovery")
	flags.StringVar(&opts.encoding, "encoding", "", "Encoding coffeelint expects the source in (default utf-8)")
	flags.StringVar(&opts.stdinName, "stdin-filename", "stdin.coffee", "File name reported for stdin input")
	flags.BoolVar(&opts.disable, "disable", false, "Turn the lint preference off; nothing is run")
	flags.BoolVarP(&opts.watch, "watch", "w", false, "Lint files again whenever they change")
	return cmd
}

func runLint(cmd *cobra.Command, opts *lintOptions, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	api, err := buildAPI(cfg)
	if err != nil {
		return err
	}
	if opts.disable {
		api.Engine().Config().Prefs[prefName(api)] = false
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reqs, err := buildRequests(opts, args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	results := api.Engine().LintAll(ctx, reqs)
	if err := koffeelint.FormatResults(cmd.OutOrStdout(), opts.format, results); err != nil {
		return err
	}

	if opts.watch {
		return watchFiles(ctx, api, opts, reqs, cmd.OutOrStdout())
	}
	if koffeelint.HasErrors(results) {
		return errLintFailed
	}
	return nil
}

func prefName(api *koffeelint.API) string {
	if name := api.CoffeeScript().Config().PrefName; name != nil {
		return *name
	}
	return ""
}

// buildRequests turns the command arguments into lint requests. "-" or no
// arguments at all read the buffer from stdin.
func buildRequests(opts *lintOptions, args []string, stdin io.Reader) ([]*linters.Request, error) {
	cwd := opts.cwd
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		cwd = wd
	}

	if len(args) == 0 {
		args = []string{"-"}
	}

	var reqs []*linters.Request
	for _, arg := range args {
		if arg == "-" {
			content, err := io.ReadAll(stdin)
			if err != nil {
				return nil, fmt.Errorf("failed to read stdin: %w", err)
			}
			reqs = append(reqs, &linters.Request{
				Cwd:      cwd,
				Path:     filepath.Join(cwd, opts.stdinName),
				Content:  string(content),
				Encoding: opts.encoding,
			})
			continue
		}

		req, err := koffeelint.FileRequest(arg, opts.encoding)
		if err != nil {
			return nil, err
		}
		if opts.cwd != "" {
			req.Cwd = opts.cwd
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// watchFiles lints a file again each time it is written until ctx is done.
func watchFiles(ctx context.Context, api *koffeelint.API, opts *lintOptions, reqs []*linters.Request, out io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]*linters.Request)
	dirs := make(map[string]bool)
	for _, req := range reqs {
		if _, err := os.Stat(req.Path); err != nil {
			continue // stdin
		}
		watched[req.Path] = req
		// Editors often replace files, so watch the directory instead
		dir := filepath.Dir(req.Path)
		if !dirs[dir] {
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			dirs[dir] = true
		}
	}
	if len(watched) == 0 {
		return fmt.Errorf("--watch needs at least one file argument")
	}
	log.Noticef("Watching %d file(s)", len(watched))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warningf("Watch error: %v", err)
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			prev, ok := watched[filepath.Clean(event.Name)]
			if !ok {
				continue
			}
			req, err := koffeelint.FileRequest(prev.Path, opts.encoding)
			if err != nil {
				log.Warningf("Skipping %s: %v", prev.Path, err)
				continue
			}
			req.Cwd = prev.Cwd
			watched[prev.Path] = req
			results := api.Engine().LintAll(ctx, []*linters.Request{req})
			if err := koffeelint.FormatResults(out, opts.format, results); err != nil {
				return err
			}
		}
	}
}
