package pageshots

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/root4loot/goutils/log"
	"github.com/root4loot/pageshots/pkg/github"
	"github.com/root4loot/pageshots/pkg/screener"
)

const Version = "0.1.0"

// ErrMissingOwner is returned by Run when no owner has been configured.
var ErrMissingOwner = errors.New("owner is required")

// Lister returns the repository names owned by owner, leaving out exclude.
type Lister interface {
	ListRepositories(ctx context.Context, owner, exclude string) ([]string, error)
}

// Publisher mirrors the written screenshots somewhere else.
type Publisher interface {
	Mirror(ctx context.Context, files []string) error
}

type Runner struct {
	Options   *Options
	Lister    Lister
	Publisher Publisher

	launch func(context.Context, screener.LaunchOptions) (screener.Browser, error)
}

// Options contains options for the runner
type Options struct {
	Owner   string                 // Owner of the repositories and their Pages sites
	Exclude string                 // Repository name to leave out (the one running the tool)
	Output  string                 // Folder recreated on every run
	Names   []string               // Explicit repository names; skips the listing API when set
	Label   bool                   // Draw the repository name at the bottom of each image
	Capture screener.Options       // Viewport, timeout and settle delay
	Launch  screener.LaunchOptions // Browser driver and binary
	Silence bool                   // Silence output
	Verbose bool                   // Verbose logging
}

// Summary tallies one run.
type Summary struct {
	Listed   int
	Captured int
	Skipped  int // no response or a non-2xx status
	Errored  int
	Files    []string
	Results  []*screener.Result
}

func (s *Summary) add(result *screener.Result) {
	s.Results = append(s.Results, result)
	switch result.Status {
	case screener.StatusCaptured:
		if result.Path != "" {
			s.Captured++
			s.Files = append(s.Files, result.Path)
			return
		}
		s.Errored++
	case screener.StatusBadResponse:
		s.Skipped++
	default:
		s.Errored++
	}
}

func init() {
	log.Init("pageshots")
}

// DefaultOptions returns default options
func DefaultOptions() *Options {
	return &Options{
		Output:  "previews",
		Capture: screener.NewOptions(),
		Launch:  screener.LaunchOptions{Driver: screener.DriverRod},
	}
}

// NewRunner returns a runner that takes its repository names from lister.
// A nil options value means DefaultOptions.
func NewRunner(options *Options, lister Lister) *Runner {
	if options == nil {
		options = DefaultOptions()
	}
	SetLogLevel(options)

	return &Runner{
		Options: options,
		Lister:  lister,
		launch:  screener.Launch,
	}
}

// Run lists the repositories, recreates the output folder and captures each
// Pages site with one shared browser. Per-repository failures are logged and
// tallied in the summary; only setup and teardown failures are returned.
func (r *Runner) Run(ctx context.Context) (summary *Summary, err error) {
	summary = &Summary{}
	opts := r.Options

	owner := strings.TrimSpace(opts.Owner)
	if owner == "" {
		return summary, ErrMissingOwner
	}
	if len(opts.Names) == 0 && r.Lister == nil {
		return summary, errors.New("no repository names and no lister")
	}

	names, err := r.names(ctx, owner)
	if err != nil {
		if errors.Is(err, github.ErrMissingToken) {
			log.Errorf("Cannot list repositories: %v", err)
			return summary, nil
		}
		log.Warnf("Listing stopped early, continuing with %d repositories: %v", len(names), err)
	}

	summary.Listed = len(names)
	if len(names) == 0 {
		log.Infof("No repositories to capture for %s", owner)
		return summary, nil
	}
	log.Infof("Capturing %d repositories for %s", len(names), owner)

	if err := screener.ResetFolder(opts.Output); err != nil {
		return summary, fmt.Errorf("preparing output folder: %w", err)
	}

	browser, err := r.launch(ctx, opts.Launch)
	if err != nil {
		return summary, err
	}
	defer func() {
		if cerr := browser.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	captureOptions := opts.Capture
	captureOptions.Owner = owner
	s := screener.NewScreenerWithOptions(browser, captureOptions)
	s.Debug = opts.Verbose

	for i, name := range names {
		if ctx.Err() != nil {
			log.Warnf("Run cancelled, skipping %d remaining repositories", len(names)-i)
			break
		}
		summary.add(r.capture(ctx, s, name))
	}

	log.Infof("Captured %d, skipped %d, errored %d of %d repositories",
		summary.Captured, summary.Skipped, summary.Errored, summary.Listed)

	if r.Publisher != nil && ctx.Err() == nil {
		if err := r.Publisher.Mirror(ctx, summary.Files); err != nil {
			log.Warnf("Publishing was incomplete: %v", err)
		}
	}

	return summary, nil
}

// names returns the configured names, or asks the lister. Duplicates are
// dropped so every name maps to one file.
func (r *Runner) names(ctx context.Context, owner string) ([]string, error) {
	var (
		names []string
		err   error
	)

	if len(r.Options.Names) > 0 {
		names = r.Options.Names
	} else {
		names, err = r.Lister.ListRepositories(ctx, owner, r.Options.Exclude)
	}

	visited := make(map[string]bool, len(names))
	unique := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || visited[name] || name == r.Options.Exclude {
			continue
		}
		visited[name] = true
		unique = append(unique, name)
	}

	return unique, err
}

// SetLogLevel sets the log level based on the options
func SetLogLevel(options *Options) {
	if options.Silence {
		log.SetLevel(log.FatalLevel)
	} else if options.Verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}
