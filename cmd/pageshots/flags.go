package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/root4loot/pageshots/pkg/config"
)

const usage = `USAGE:
  pageshots [options]

INPUT:
  -l,   --list                   file with repository names (one per line)    (Default: GitHub API)
        --owner                  owner of the repositories and Pages sites     (Default: detected)
        --exclude                repository to leave out                       (Default: detected)
  -c,   --config                 TOML configuration file                       (Default: pageshots.toml)
        --api-url                GitHub API base URL                           (Default: https://api.github.com)

CONFIGURATIONS:
  -to,  --timeout                navigation timeout (seconds)                  (Default: 60)
  -dc,  --delay-capture          delay before capture (milliseconds)           (Default: 3000)
  -cw,  --capture-width          viewport and capture width                    (Default: 1200)
  -ch,  --capture-height         viewport and capture height                   (Default: 800)
        --pages-domain           Pages domain                                  (Default: github.io)
        --driver                 browser driver (rod, chromedp)                (Default: rod)
        --chrome-bin             browser binary                                (Default: auto)
  -ua,  --user-agent             specify user agent                            (Default: Chrome UA)

OUTPUT:
  -o,   --outfolder              folder recreated with one image per site      (Default: previews)
        --label                  add the repository name to output images      (Default: false)
        --s3-endpoint            mirror images to this S3-compatible endpoint
        --s3-bucket              bucket to mirror into
        --s3-prefix              key prefix inside the bucket                  (Default: previews)
  -s,   --silence                silence output
        --debug                  enable debug mode
        --version                display version
`

type cli struct {
	ConfigPath  string
	Infile      string
	Owner       string
	Exclude     string
	APIURL      string
	Output      string
	PagesDomain string
	Driver      string
	ChromeBin   string
	UserAgent   string
	Timeout     int
	Delay       int
	Width       int
	Height      int
	Label       bool
	S3Endpoint  string
	S3Bucket    string
	S3Prefix    string
	Silence     bool
	Debug       bool
	Help        bool
	Version     bool

	set map[string]bool
}

// parseFlags parses args into a cli. Flag defaults mirror config.Default so
// that the usage text holds, but only flags given explicitly override the
// loaded configuration.
func parseFlags(args []string, output io.Writer) (*cli, error) {
	c := &cli{set: make(map[string]bool)}
	defaults := config.Default()

	fs := flag.NewFlagSet("pageshots", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprint(output, usage)
	}

	// INPUT
	fs.StringVar(&c.Infile, "list", "", "")
	fs.StringVar(&c.Infile, "l", "", "")
	fs.StringVar(&c.Owner, "owner", "", "")
	fs.StringVar(&c.Exclude, "exclude", "", "")
	fs.StringVar(&c.ConfigPath, "config", config.DefaultConfigPath(), "")
	fs.StringVar(&c.ConfigPath, "c", config.DefaultConfigPath(), "")
	fs.StringVar(&c.APIURL, "api-url", "", "")

	// CONFIGURATIONS
	fs.IntVar(&c.Timeout, "timeout", defaults.Capture.Timeout, "")
	fs.IntVar(&c.Timeout, "to", defaults.Capture.Timeout, "")
	fs.IntVar(&c.Delay, "delay-capture", defaults.Capture.Delay, "")
	fs.IntVar(&c.Delay, "dc", defaults.Capture.Delay, "")
	fs.IntVar(&c.Width, "capture-width", defaults.Capture.Width, "")
	fs.IntVar(&c.Width, "cw", defaults.Capture.Width, "")
	fs.IntVar(&c.Height, "capture-height", defaults.Capture.Height, "")
	fs.IntVar(&c.Height, "ch", defaults.Capture.Height, "")
	fs.StringVar(&c.PagesDomain, "pages-domain", defaults.PagesDomain, "")
	fs.StringVar(&c.Driver, "driver", defaults.Capture.Driver, "")
	fs.StringVar(&c.ChromeBin, "chrome-bin", "", "")
	fs.StringVar(&c.UserAgent, "user-agent", "", "")
	fs.StringVar(&c.UserAgent, "ua", "", "")

	// OUTPUT
	fs.StringVar(&c.Output, "outfolder", defaults.Output, "")
	fs.StringVar(&c.Output, "o", defaults.Output, "")
	fs.BoolVar(&c.Label, "label", false, "")
	fs.StringVar(&c.S3Endpoint, "s3-endpoint", "", "")
	fs.StringVar(&c.S3Bucket, "s3-bucket", "", "")
	fs.StringVar(&c.S3Prefix, "s3-prefix", defaults.Publish.Prefix, "")
	fs.BoolVar(&c.Silence, "silence", false, "")
	fs.BoolVar(&c.Silence, "s", false, "")
	fs.BoolVar(&c.Debug, "debug", false, "")
	fs.BoolVar(&c.Help, "help", false, "")
	fs.BoolVar(&c.Help, "h", false, "")
	fs.BoolVar(&c.Version, "version", false, "")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	fs.Visit(func(f *flag.Flag) {
		c.set[f.Name] = true
	})

	return c, nil
}

// isSet reports whether any of the given aliases was passed.
func (c *cli) isSet(names ...string) bool {
	for _, name := range names {
		if c.set[name] {
			return true
		}
	}
	return false
}

// apply overrides cfg with the flags that were passed explicitly.
func (c *cli) apply(cfg *config.Config) {
	if c.isSet("owner") {
		cfg.Owner = c.Owner
	}
	if c.isSet("exclude") {
		cfg.Exclude = c.Exclude
	}
	if c.isSet("api-url") {
		cfg.GitHub.APIURL = c.APIURL
	}
	if c.isSet("outfolder", "o") {
		cfg.Output = c.Output
	}
	if c.isSet("pages-domain") {
		cfg.PagesDomain = c.PagesDomain
	}
	if c.isSet("timeout", "to") {
		cfg.Capture.Timeout = c.Timeout
	}
	if c.isSet("delay-capture", "dc") {
		cfg.Capture.Delay = c.Delay
	}
	if c.isSet("capture-width", "cw") {
		cfg.Capture.Width = c.Width
	}
	if c.isSet("capture-height", "ch") {
		cfg.Capture.Height = c.Height
	}
	if c.isSet("driver") {
		cfg.Capture.Driver = c.Driver
	}
	if c.isSet("chrome-bin") {
		cfg.Capture.ChromeBin = c.ChromeBin
	}
	if c.isSet("label") {
		cfg.Capture.Label = c.Label
	}
	if c.isSet("s3-endpoint") {
		cfg.Publish.Endpoint = c.S3Endpoint
	}
	if c.isSet("s3-bucket") {
		cfg.Publish.Bucket = c.S3Bucket
	}
	if c.isSet("s3-prefix") {
		cfg.Publish.Prefix = c.S3Prefix
	}
}

// hasInfile determines if the user has provided an input file
func (c *cli) hasInfile() bool {
	return c.Infile != ""
}

func (c *cli) printUsage() {
	fmt.Fprint(os.Stdout, usage)
}
