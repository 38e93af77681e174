package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dtnitsch/consent-audit/internal/common"
	dbpkg "github.com/dtnitsch/consent-audit/pkg/db"
	"github.com/urfave/cli/v2"
)

func openDB(c *cli.Context) (*dbpkg.DB, error) {
	cfg, err := common.LoadConfig(c)
	if err != nil {
		return nil, err
	}
	database, err := dbpkg.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

func ScansAction(c *cli.Context) error {
	database, err := openDB(c)
	if err != nil {
		return err
	}
	defer database.Close()

	scans, err := database.ListScans(c.String("domain"), c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list scans: %w", err)
	}

	w := c.App.Writer
	if len(scans) == 0 {
		fmt.Fprintln(w, "No scans found")
		return nil
	}

	fmt.Fprintf(w, "%-36s %-20s %-10s %-8s %-6s %s\n",
		"Scan ID", "Started", "Driver", "Prompt", "Links", "URL")
	fmt.Fprintln(w, strings.Repeat("-", 120))

	for _, s := range scans {
		prompt := s.Prompt
		if prompt == "" {
			prompt = "-"
		}
		line := fmt.Sprintf("%-36s %-20s %-10s %-8s %-6d %s",
			s.ScanID,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.Driver,
			prompt,
			s.LinkCount,
			s.URL,
		)
		if s.Error != "" {
			line += "  [error: " + s.Error + "]"
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintf(w, "\nTotal: %d scans\n", len(scans))
	fmt.Fprintf(w, "\nTip: Use 'consent-audit scan <id>' to see details\n")
	return nil
}

// ScanAction shows one scan, or the latest when no id is given.
func ScanAction(c *cli.Context) error {
	database, err := openDB(c)
	if err != nil {
		return err
	}
	defer database.Close()

	scanID := c.Args().First()
	if scanID == "" {
		latest, err := database.ListScans("", 1)
		if err != nil {
			return fmt.Errorf("failed to get latest scan: %w", err)
		}
		if len(latest) == 0 {
			return fmt.Errorf("no scans found. Run 'consent-audit audit <url>' first")
		}
		scanID = latest[0].ScanID
	}

	if c.Bool("delete") {
		if err := database.DeleteScan(scanID); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Deleted scan %s\n", scanID)
		return nil
	}

	scan, err := database.GetScan(scanID)
	if errors.Is(err, dbpkg.ErrScanNotFound) {
		return cli.Exit(err.Error(), 1)
	}
	if err != nil {
		return fmt.Errorf("failed to get scan: %w", err)
	}

	if c.IsSet("format") {
		return common.PrintOutput(c.App.Writer, scan, c.String("format"))
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Scan %s\n", scan.ScanID)
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "URL:        %s\n", scan.URL)
	if scan.Meta.FinalURL != "" && scan.Meta.FinalURL != scan.URL {
		fmt.Fprintf(w, "Final URL:  %s\n", scan.Meta.FinalURL)
	}
	fmt.Fprintf(w, "Driver:     %s\n", scan.Driver)
	fmt.Fprintf(w, "Started:    %s (%s)\n", scan.StartedAt.Local().Format("2006-01-02 15:04:05"), scan.Duration())
	if scan.Meta.Title != "" {
		fmt.Fprintf(w, "Title:      %s\n", scan.Meta.Title)
	}
	if scan.Meta.HTMLLang != "" || scan.Meta.DetectedLang != "" {
		fmt.Fprintf(w, "Language:   declared %q, detected %q\n", scan.Meta.HTMLLang, scan.Meta.DetectedLang)
	}
	if scan.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", scan.Error)
	}

	fmt.Fprintf(w, "\nInjection results (%d):\n", len(scan.Injections))
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, r := range scan.Injections {
		fmt.Fprintf(w, "  %-24s %s\n", r.ScriptName, r.Result)
	}

	fmt.Fprintf(w, "\nLinks (%d):\n", len(scan.Links))
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for i, l := range scan.Links {
		text := l.Text
		if text == "" {
			text = "(no text)"
		}
		fmt.Fprintf(w, "%3d. [%s] %s -> %s\n", i+1, l.Protocol, text, l.Href)
	}
	return nil
}
