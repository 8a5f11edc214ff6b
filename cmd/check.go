// File: cmd/check.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	json "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/steady/internal/await"
	"github.com/xkilldash9x/steady/internal/await/condition"
	"github.com/xkilldash9x/steady/internal/browser/cdpdriver"
	"github.com/xkilldash9x/steady/internal/browser/htmldriver"
	"github.com/xkilldash9x/steady/internal/config"
	"github.com/xkilldash9x/steady/internal/page"
)

// checkOptions holds the flags of `steady check`.
type checkOptions struct {
	urls      []string
	file      string
	selector  string
	index     int
	should    []string
	shouldNot []string
	timeout   time.Duration
	jsonOut   bool
}

// checkResult is one line of the report.
type checkResult struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Passed   bool   `json:"passed"`
	Error    string `json:"error,omitempty"`
	Element  string `json:"element,omitempty"`
	Duration string `json:"duration"`
}

// checksFailedError reports failed assertions. The report already explains
// them, so Execute does not log it again.
type checksFailedError struct {
	failed, total int
}

func (e *checksFailedError) Error() string {
	return fmt.Sprintf("%d of %d checks failed", e.failed, e.total)
}

// assertion is the parsed form of the condition flags.
type assertion struct {
	should    []await.Condition
	shouldNot []await.Condition
}

func newCheckCmd(cli *cliContext) *cobra.Command {
	opts := &checkOptions{}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Wait for an element to satisfy conditions on a page or an HTML file",
		Example: `  steady check --url https://example.com --selector h1 --should "text=Example"
  steady check --file ./page.html --selector "#total" --should visible --should "exact-text=42"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(opts.urls) == 0 && opts.file == "" {
				return errors.New("one of --url or --file is required")
			}
			if opts.index < 0 {
				return errors.New("--index must not be negative")
			}
			if opts.timeout < 0 {
				return errors.New("--timeout must not be negative")
			}
			a, err := parseAssertion(opts)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("timeout") {
				cli.cfg.SetWaitDefaultTimeout(opts.timeout)
			}

			results, err := runChecks(cmd.Context(), cli.cfg, opts, a, cli.logger)
			if err != nil {
				return err
			}
			if err := writeReport(cmd.OutOrStdout(), results, opts.jsonOut); err != nil {
				return err
			}

			failed := 0
			for _, r := range results {
				if !r.Passed {
					failed++
				}
			}
			if failed > 0 {
				return &checksFailedError{failed: failed, total: len(results)}
			}
			return nil
		},
	}

	flags := checkCmd.Flags()
	flags.StringArrayVar(&opts.urls, "url", nil, "page to open in the browser (repeatable)")
	flags.StringVar(&opts.file, "file", "", "HTML file to check without a browser")
	flags.StringVarP(&opts.selector, "selector", "s", "", "CSS selector, or XPath with a leading '/' or 'xpath=' prefix")
	flags.IntVar(&opts.index, "index", 0, "zero based index among the matches")
	flags.StringArrayVar(&opts.should, "should", nil, "condition that must hold (repeatable)")
	flags.StringArrayVar(&opts.shouldNot, "should-not", nil, "condition that must not hold (repeatable)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "wait timeout per condition (default wait.default_timeout)")
	flags.BoolVar(&opts.jsonOut, "json", false, "print the report as JSON")
	_ = checkCmd.MarkFlagRequired("selector")

	return checkCmd
}

func parseAssertion(opts *checkOptions) (assertion, error) {
	var a assertion
	for _, s := range opts.should {
		c, err := condition.Parse(s)
		if err != nil {
			return a, fmt.Errorf("--should: %w", err)
		}
		a.should = append(a.should, c)
	}
	for _, s := range opts.shouldNot {
		c, err := condition.Parse(s)
		if err != nil {
			return a, fmt.Errorf("--should-not: %w", err)
		}
		a.shouldNot = append(a.shouldNot, c)
	}
	if len(a.should) == 0 && len(a.shouldNot) == 0 {
		a.should = []await.Condition{condition.Exist()}
	}
	return a, nil
}

// runChecks evaluates the assertion against the file and every URL. URLs run
// concurrently, one tab each, bounded by browser.concurrency.
func runChecks(ctx context.Context, cfg *config.Config, opts *checkOptions, a assertion, logger *zap.Logger) ([]checkResult, error) {
	var results []checkResult

	if opts.file != "" {
		path, err := homedir.Expand(opts.file)
		if err != nil {
			return nil, fmt.Errorf("failed to expand %s: %w", opts.file, err)
		}
		doc, err := htmldriver.Open(path)
		if err != nil {
			return nil, err
		}
		engine := newEngine(htmldriver.New(doc, htmldriver.WithLogger(logger)), cfg.Wait(), logger)
		results = append(results, evaluate(ctx, page.New(engine, page.WithLogger(logger)), path, opts, a))
	}

	if len(opts.urls) == 0 {
		return results, nil
	}

	mgr, err := cdpdriver.NewManager(ctx, cfg.Browser(), logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(cdpdriver.Detach(ctx), 15*time.Second)
		defer cancel()
		if err := mgr.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser shutdown reported errors.", zap.Error(err))
		}
	}()

	urlResults := make([]checkResult, len(opts.urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Browser().Concurrency)
	for i, url := range opts.urls {
		g.Go(func() error {
			session, err := mgr.NewSession(gctx)
			if err != nil {
				return err
			}
			defer session.Close(gctx)

			if err := session.Navigate(gctx, url); err != nil {
				urlResults[i] = checkResult{Source: url, Target: opts.selector, Error: err.Error()}
				return nil
			}
			engine := session.Engine(
				await.WithDefaultTimeout(cfg.Wait().DefaultTimeout),
				await.WithPollInterval(cfg.Wait().PollInterval),
			)
			urlResults[i] = evaluate(gctx, page.New(engine, page.WithLogger(logger)), url, opts, a)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return append(results, urlResults...), nil
}

func newEngine(d await.Driver, wait config.WaitConfig, logger *zap.Logger) *await.Engine {
	return await.NewEngine(d,
		await.WithLogger(logger),
		await.WithDefaultTimeout(wait.DefaultTimeout),
		await.WithPollInterval(wait.PollInterval),
	)
}

// evaluate runs the assertion on one page. It stops at the first failure.
func evaluate(ctx context.Context, p *page.Page, source string, opts *checkOptions, a assertion) checkResult {
	start := time.Now()
	el := p.FindAt(opts.selector, opts.index)
	res := checkResult{Source: source, Target: el.String(), Passed: true}

	var err error
	if len(a.should) > 0 {
		_, err = el.Should(ctx, a.should...)
	}
	if err == nil && len(a.shouldNot) > 0 {
		_, err = el.ShouldNot(ctx, a.shouldNot...)
	}
	if err != nil {
		res.Passed = false
		res.Error = err.Error()
	} else {
		res.Element = el.Describe(ctx)
	}
	res.Duration = time.Since(start).Round(time.Millisecond).String()
	return res
}

func writeReport(w io.Writer, results []checkResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for _, r := range results {
		status := "PASS"
		detail := r.Element
		if !r.Passed {
			status = "FAIL"
			detail = r.Error
		}
		if _, err := fmt.Fprintf(w, "%s %s %s (%s)\n    %s\n", status, r.Source, r.Target, r.Duration, detail); err != nil {
			return err
		}
	}
	return nil
}
