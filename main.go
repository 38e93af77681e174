package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dtnitsch/consent-audit/internal/audit"
	"github.com/dtnitsch/consent-audit/internal/db"
	"github.com/dtnitsch/consent-audit/internal/links"
	"github.com/dtnitsch/consent-audit/pkg/help"
	"github.com/urfave/cli/v2"
)

func pageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "driver",
			Aliases: []string{"d"},
			Usage:   "page backend: static, rod or playwright",
			Value:   "static",
		},
		&cli.BoolFlag{
			Name:  "headful",
			Usage: "show the browser window (rod and playwright)",
		},
		&cli.DurationFlag{
			Name:  "max-wait",
			Usage: "upper bound on waiting for the page to finish loading",
			Value: 60 * time.Second,
		},
		&cli.DurationFlag{
			Name:  "retry-interval",
			Usage: "delay between readiness re-checks",
			Value: time.Second,
		},
		&cli.StringFlag{
			Name:  "cache-dir",
			Usage: "cache fetched HTML for the static driver in this directory",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "output format: json or yaml",
			Value:   "json",
		},
	}
}

func main() {
	app := &cli.App{
		Name:  "consent-audit",
		Usage: "Detect cookie-consent prompts, exercise accept/reject controls and collect page links",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file",
				EnvVars: []string{"CONSENT_AUDIT_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "SQLite database path (default: next to the binary)",
				EnvVars: []string{"CONSENT_AUDIT_DB"},
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "only log errors",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log debug output, including deferred retries",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "audit",
				Usage:     "Run the consent audit sequence against one or more pages",
				ArgsUsage: "[url...]",
				Flags: append(pageFlags(),
					&cli.StringFlag{
						Name:  "urls",
						Usage: "comma-separated URLs to audit",
					},
					&cli.StringFlag{
						Name:  "injections",
						Usage: "comma-separated unit names, in order (see 'units')",
					},
					&cli.DurationFlag{
						Name:  "inject-after",
						Usage: "delay between starting navigation and injecting units",
						Value: 3 * time.Second,
					},
					&cli.DurationFlag{
						Name:  "settle",
						Usage: "time the page is left alone after injection before links are read",
						Value: 2 * time.Second,
					},
					&cli.BoolFlag{
						Name:  "gate-heuristics",
						Usage: "make keyword units wait for the page to finish loading",
					},
					&cli.BoolFlag{
						Name:  "auto-profile",
						Usage: "use the identifiers of a recognised consent platform on sites without a profile",
					},
					&cli.BoolFlag{
						Name:  "no-lang",
						Usage: "skip language detection of the page text",
					},
					&cli.BoolFlag{
						Name:  "no-db",
						Usage: "do not record scans in the database",
					},
					&cli.StringFlag{
						Name:    "output-dir",
						Aliases: []string{"o"},
						Usage:   "also write one report file per scan into this directory",
					},
					&cli.IntFlag{
						Name:  "top-hosts",
						Usage: "log the N most linked external hosts across the batch",
						Value: 10,
					},
					&cli.IntFlag{
						Name:    "workers",
						Aliases: []string{"w"},
						Usage:   "pages audited concurrently",
						Value:   1,
					},
				),
				Action: audit.AuditAction,
			},
			{
				Name:      "links",
				Usage:     "Print the hyperlink collection of a page",
				ArgsUsage: "<url>",
				Flags: append(pageFlags(),
					&cli.StringFlag{
						Name:  "protocol",
						Usage: "comma-separated protocols to keep, e.g. https,mailto",
					},
				),
				Action: links.LinksAction,
			},
			{
				Name:  "coldstart",
				Usage: "Print a quick start guide with an example config",
				Action: func(c *cli.Context) error {
					_, err := fmt.Fprint(c.App.Writer, help.ColdstartYAML)
					return err
				},
			},
			{
				Name:   "units",
				Usage:  "List injectable units",
				Action: audit.UnitsAction,
			},
			{
				Name:  "scans",
				Usage: "List recorded scans, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Value:   20,
						Usage:   "maximum number of scans to show (0 for all)",
					},
					&cli.StringFlag{
						Name:  "domain",
						Usage: "only scans of this host",
					},
				},
				Action: db.ScansAction,
			},
			{
				Name:      "scan",
				Usage:     "Show one recorded scan (latest by default)",
				ArgsUsage: "[scan-id]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "print the scan as json or yaml instead of a summary",
					},
					&cli.BoolFlag{
						Name:  "delete",
						Usage: "delete the scan instead of showing it",
					},
				},
				Action: db.ScanAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
