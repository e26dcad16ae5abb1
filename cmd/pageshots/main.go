package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/root4loot/goutils/fileutil"
	"github.com/root4loot/goutils/log"
	"github.com/root4loot/pageshots"
	"github.com/root4loot/pageshots/pkg/config"
	"github.com/root4loot/pageshots/pkg/github"
	"github.com/root4loot/pageshots/pkg/gitremote"
	"github.com/root4loot/pageshots/pkg/publish"
	"github.com/root4loot/pageshots/pkg/screener"
)

// workDir is where the current repository is detected from.
var workDir = "."

func init() {
	log.Init("pageshots")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the tool and returns the process exit code.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	c, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 1
	}

	if c.Help {
		c.printUsage()
		return 0
	}

	if c.Version {
		fmt.Println("pageshots", pageshots.Version)
		return 0
	}

	if c.Debug {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		log.Errorf("Could not load configuration: %v", err)
		return 1
	}
	c.apply(&cfg)

	if cfg.Owner == "" || cfg.Exclude == "" {
		applyDetected(&cfg)
	}

	options, err := buildOptions(c, cfg)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}

	client := github.NewClient(cfg.GitHub.Token, cfg.GitHub.APIURL)
	client.UserAgent = "pageshots/" + pageshots.Version

	runner := pageshots.NewRunner(options, client)

	if cfg.Publish.Enabled() {
		store, err := publish.NewS3Store(publish.S3Config{
			Endpoint:  cfg.Publish.Endpoint,
			Region:    cfg.Publish.Region,
			AccessKey: cfg.Publish.AccessKey,
			SecretKey: cfg.Publish.SecretKey,
			Bucket:    cfg.Publish.Bucket,
			Prefix:    cfg.Publish.Prefix,
			UseSSL:    cfg.Publish.UseSSL,
		})
		if err != nil {
			log.Errorf("Could not configure publishing: %v", err)
			return 1
		}
		runner.Publisher = store
	}

	if _, err := runner.Run(ctx); err != nil {
		log.Errorf("Run failed: %v", err)
		return 1
	}
	return 0
}

// applyDetected fills in the owner and the excluded repository from the
// repository pageshots runs in.
func applyDetected(cfg *config.Config) {
	repo, err := gitremote.Detect(workDir)
	if err != nil {
		log.Debugf("Could not detect the current repository: %v", err)
		return
	}
	log.Debugf("Detected repository %s/%s", repo.Owner, repo.Name)

	if cfg.Owner == "" {
		cfg.Owner = repo.Owner
	}
	if cfg.Exclude == "" {
		cfg.Exclude = repo.Name
	}
}

func buildOptions(c *cli, cfg config.Config) (*pageshots.Options, error) {
	if cfg.Capture.Width <= 0 || cfg.Capture.Height <= 0 {
		return nil, fmt.Errorf("invalid capture size %dx%d", cfg.Capture.Width, cfg.Capture.Height)
	}
	if cfg.Capture.Timeout <= 0 {
		return nil, fmt.Errorf("invalid timeout: %d", cfg.Capture.Timeout)
	}
	if cfg.Capture.Delay < 0 {
		return nil, fmt.Errorf("invalid capture delay: %d", cfg.Capture.Delay)
	}

	options := pageshots.DefaultOptions()
	options.Owner = cfg.Owner
	options.Exclude = cfg.Exclude
	options.Output = cfg.Output
	options.Label = cfg.Capture.Label
	options.Silence = c.Silence
	options.Verbose = c.Debug

	options.Capture.CaptureWidth = cfg.Capture.Width
	options.Capture.CaptureHeight = cfg.Capture.Height
	options.Capture.Timeout = cfg.Capture.Timeout
	options.Capture.DelayBeforeCapture = cfg.Capture.Delay
	options.Capture.PagesDomain = cfg.PagesDomain

	options.Launch = screener.LaunchOptions{
		Driver:    cfg.Capture.Driver,
		Bin:       cfg.Capture.ChromeBin,
		UserAgent: c.UserAgent,
	}

	if c.hasInfile() {
		names, err := fileutil.ReadFile(c.Infile)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", c.Infile, err)
		}
		for _, name := range names {
			if name = strings.TrimSpace(name); name != "" && !strings.HasPrefix(name, "#") {
				options.Names = append(options.Names, name)
			}
		}
		if len(options.Names) == 0 {
			return nil, fmt.Errorf("no repository names in %s", c.Infile)
		}
	}

	return options, nil
}
