package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/seo-audit/internal/app"
	"github.com/JakeFAU/seo-audit/internal/audit"
)

type auditFlags struct {
	page         bool
	maxPages     int
	maxDepth     int
	ignoreRobots bool
	headless     bool
	noDetails    bool
}

func newAuditCmd() *cobra.Command {
	var flags auditFlags

	cmd := &cobra.Command{
		Use:   "audit <url>",
		Short: "Audit one site (or page with --page) inline and print the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobType := audit.JobTypeSiteAudit
			if flags.page {
				jobType = audit.JobTypePageAudit
			}
			opts := flags.options(cmd)
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				job, err := a.Audit(ctx, jobType, args[0], opts)
				if err != nil {
					return err
				}
				if job.Status == audit.JobStatusFailed {
					msg := "unknown error"
					if job.Error != nil {
						msg = job.Error.Message
					}
					return fmt.Errorf("audit %s failed: %s", job.ID, msg)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(job.Results); err != nil {
					return fmt.Errorf("encode results: %w", err)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&flags.page, "page", false, "audit only the given page")
	cmd.Flags().IntVar(&flags.maxPages, "max-pages", 0, "maximum pages to crawl (0 uses the configured default)")
	cmd.Flags().IntVar(&flags.maxDepth, "max-depth", 0, "maximum link depth from the seed")
	cmd.Flags().BoolVar(&flags.ignoreRobots, "ignore-robots", false, "crawl paths disallowed by robots.txt")
	cmd.Flags().BoolVar(&flags.headless, "headless", false, "allow headless rendering when headless is enabled")
	cmd.Flags().BoolVar(&flags.noDetails, "no-details", false, "omit per-page details from the report")
	return cmd
}

// options maps flags onto job options; unset flags keep configured defaults.
func (f auditFlags) options(cmd *cobra.Command) audit.Options {
	opts := audit.Options{
		MaxPages:        f.maxPages,
		IgnoreRobotsTxt: f.ignoreRobots,
		Headless:        f.headless,
	}
	if cmd.Flags().Changed("max-depth") {
		depth := f.maxDepth
		opts.MaxDepth = &depth
	}
	if f.noDetails {
		include := false
		opts.IncludeDetails = &include
	}
	return opts
}
