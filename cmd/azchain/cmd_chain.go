package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/microsoft/azchain/internal/argtable"
	"github.com/microsoft/azchain/internal/azsteps"
	"github.com/microsoft/azchain/internal/journal"
	"github.com/microsoft/azchain/internal/plan"
	"github.com/microsoft/azchain/internal/projectconfig"
	"github.com/microsoft/azchain/internal/spinner"
	"github.com/microsoft/azchain/internal/stepchain"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// newClientFactory builds the storage client factory for an auth mode.
// Tests replace it to keep chain runs off the network.
var newClientFactory = func(authMode string) (azsteps.ClientFactory, error) {
	cred, err := azsteps.NewCredential(authMode)
	if err != nil {
		return nil, err
	}
	return azsteps.NewClientFactory(cred, nil), nil
}

const maxParallelValidations = 8

func newChainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain",
		Short: "Run and validate step chain plans",
		Long: `A plan lists steps by kind. Each step starts a long-running Azure operation,
and the next step starts only after the previous operation completes.

Kinds: ` + "storage.container.create, storage.blob.copy, delay",
	}
	cmd.AddCommand(newChainValidateCommand(), newChainRunCommand())
	return cmd
}

func newChainValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "validate <plan>...",
		Short:   "Validate plan files without running them",
		Example: "azchain chain validate plans/*.yaml",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProjectConfig()
			if err != nil {
				return err
			}
			reg := azsteps.NewRegistry(cmd.Context(), nil)
			defaults := stepDefaults(cfg.Storage.AccountURL, nil)

			results := make([]error, len(args))
			var g errgroup.Group
			g.SetLimit(maxParallelValidations)
			for i, path := range args {
				g.Go(func() error {
					results[i] = validatePlanFile(reg, path, defaults)
					return nil
				})
			}
			_ = g.Wait()

			out := cmd.OutOrStdout()
			invalid := 0
			for i, path := range args {
				if results[i] != nil {
					invalid++
					fmt.Fprintf(out, "✗ %s\n  %v\n", path, results[i]) //nolint:errcheck
					continue
				}
				fmt.Fprintf(out, "✓ %s\n", path) //nolint:errcheck
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d plan(s) are invalid", invalid, len(args))
			}
			return nil
		},
	}
}

func validatePlanFile(reg *azsteps.Registry, path string, defaults map[string]any) error {
	p, err := plan.Load(path)
	if err != nil {
		return err
	}
	steps, err := p.Build(reg, defaults)
	if err != nil {
		return err
	}
	for i, s := range steps {
		if err := reg.CheckParams(p.Steps[i].Kind, s.Params); err != nil {
			return fmt.Errorf("step %q: %w", s.Name, err)
		}
	}
	return nil
}

var chainRunArgs = argtable.Table{
	{Name: "yes", Short: "y", Help: "Run without asking for confirmation", Kind: argtable.KindBool},
	{Name: "timeout", Help: "Time to wait for each step (default from .azchain.yaml, 30m)", Kind: argtable.KindDuration},
	{Name: "no-wait", Help: "Return once a single-step plan has started", Kind: argtable.KindBool},
	{Name: "tag", Help: "Tag applied to every resource the chain creates", Kind: argtable.KindTags},
	{Name: "account-url", Help: "Storage account URL used by steps that do not set one", Kind: argtable.KindString},
	{Name: "auth-mode", Help: "Credential type", Kind: argtable.KindEnum, Choices: []string{azsteps.AuthModeDefault, azsteps.AuthModeCLI}, Default: azsteps.AuthModeDefault},
	{Name: "journal", Help: "Append the run's step history to this NDJSON file", Kind: argtable.KindString},
	{Name: "poll-frequency", Help: "Copy status polling interval", Kind: argtable.KindDuration, Hidden: true},
}

type chainRunOptions struct {
	timeout    time.Duration
	accountURL string
	authMode   string
	tags       map[string]string
	yes        bool
	noWait     bool
	confirm    bool
	poll       time.Duration
	journal    string
	journalDir string
}

func newChainRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <plan>",
		Short: "Run a plan's steps in order",
		Example: `azchain chain run provision.yaml --account-url https://myacct.blob.core.windows.net/ --yes
azchain chain run nightly.yaml --tag env=prod --timeout 1h`,
		Args: cobra.ExactArgs(1),
	}
	vals := chainRunArgs.Register(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := loadProjectConfig()
		if err != nil {
			return err
		}

		opts := chainRunOptions{
			timeout:    cfg.StepTimeout(),
			accountURL: cfg.Storage.AccountURL,
			authMode:   cfg.Auth.Mode,
			tags:       vals.Tags("tag"),
			yes:        vals.Bool("yes"),
			noWait:     vals.Bool("no-wait"),
			confirm:    cfg.Confirm(),
			poll:       cfg.PollFrequency(),
			journal:    vals.String("journal"),
			journalDir: cfg.Defaults.JournalDir,
		}
		if vals.Changed("timeout") {
			opts.timeout = vals.Duration("timeout")
		}
		if vals.Changed("account-url") {
			opts.accountURL = vals.String("account-url")
		}
		if vals.Changed("auth-mode") {
			opts.authMode = vals.String("auth-mode")
		}
		if vals.Changed("poll-frequency") {
			opts.poll = vals.Duration("poll-frequency")
		}

		return runChain(cmd, args[0], opts)
	}
	return cmd
}

func runChain(cmd *cobra.Command, path string, opts chainRunOptions) error {
	p, err := plan.Load(path)
	if err != nil {
		return err
	}
	if opts.noWait && len(p.Steps) > 1 {
		return fmt.Errorf("--no-wait needs a single-step plan; %s has %d steps", path, len(p.Steps))
	}

	in, out, errOut := cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()
	if opts.confirm && !opts.yes {
		if !isTerminal(in) {
			return fmt.Errorf("refusing to run %s without confirmation; pass --yes when not running in a terminal", path)
		}
		question := fmt.Sprintf("Run %d step(s) from plan %q?", len(p.Steps), p.Name)
		if !promptConfirm(in, out, question) {
			fmt.Fprintln(out, "Cancelled.") //nolint:errcheck
			return nil
		}
	}

	factory, err := newClientFactory(opts.authMode)
	if err != nil {
		return err
	}

	logger := slog.Default()
	reg := azsteps.NewRegistry(context.WithoutCancel(cmd.Context()), factory,
		azsteps.WithLogger(logger),
		azsteps.WithPollFrequency(opts.poll),
	)

	steps, err := p.Build(reg, stepDefaults(opts.accountURL, opts.tags))
	if err != nil {
		return err
	}
	chain, err := stepchain.New(steps, stepchain.WithLogger(logger))
	if err != nil {
		return err
	}

	jl, err := openJournal(opts, chain.RunID())
	if err != nil {
		return err
	}
	defer jl.Close() //nolint:errcheck
	logJournal(jl, journal.RunStart(chain.RunID(), p.Name, len(steps)))

	fmt.Fprintf(out, "Running plan %q (%d step(s), run %s)\n", p.Name, len(steps), chain.RunID()) //nolint:errcheck
	if _, err := chain.Start(); err != nil {
		printChainSummary(out, p, chain, err)
		recordRun(jl, chain, len(steps), err)
		return err
	}

	if opts.noWait {
		for _, e := range journal.StepEvents(chain.RunID(), chain.Reports(), -1, nil) {
			logJournal(jl, e)
		}
		fmt.Fprintf(out, "Started %q; not waiting for it to complete.\n", steps[0].Name) //nolint:errcheck
		return nil
	}

	waitErr := waitWithProgress(errOut, chain, len(steps), opts.timeout)
	printChainSummary(out, p, chain, waitErr)
	recordRun(jl, chain, len(steps), waitErr)
	if waitErr != nil {
		step, _ := chain.Current()
		if i := chain.Index(); step == "" && i >= 0 {
			step = steps[i].Name
		}
		return &ChainFailureError{RunID: chain.RunID(), Step: step, Err: waitErr}
	}
	fmt.Fprintln(out, "Chain completed.") //nolint:errcheck
	return nil
}

// waitWithProgress waits for the chain while a spinner on w names the step
// in flight. The spinner is only drawn on a terminal.
func waitWithProgress(w io.Writer, chain *stepchain.Chain, total int, timeout time.Duration) error {
	if !isTerminal(w) {
		return chain.WaitAll(timeout)
	}

	label := func() string {
		name, _ := chain.Current()
		return fmt.Sprintf("step %d/%d: %s", chain.Index()+1, total, name)
	}
	sp := spinner.Start(w, label())
	defer sp.Stop()

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				sp.Update(label())
			}
		}
	}()

	return chain.WaitAll(timeout)
}

// printChainSummary lists every step of p with its outcome. When runErr is
// set, the most recently started step is the one that failed.
func printChainSummary(w io.Writer, p *plan.Plan, chain *stepchain.Chain, runErr error) {
	reports := chain.Reports()
	failedIndex := -1
	if runErr != nil || chain.Phase() == stepchain.PhaseFailed {
		failedIndex = chain.Index()
	}

	rows := [][]string{{"#", "STEP", "KIND", "STATUS", "DURATION"}}
	for i, s := range p.Steps {
		status, duration := "pending", ""
		switch {
		case i == failedIndex:
			status = "failed"
		case i < len(reports) && reports[i].Completed():
			status = "completed"
			duration = reports[i].Duration().Round(time.Millisecond).String()
		case i < len(reports):
			status = "in flight"
		}
		rows = append(rows, []string{fmt.Sprint(i + 1), s.Name, s.Kind, status, duration})
	}
	fmt.Fprintln(w) //nolint:errcheck
	printTable(w, rows)
}

// openJournal opens the journal named by --journal, or a fresh file in the
// configured journal directory. Without either, events are discarded.
func openJournal(opts chainRunOptions, runID string) (journal.Logger, error) {
	path := opts.journal
	if path == "" && opts.journalDir != "" {
		path = journal.DefaultPath(opts.journalDir, runID)
	}
	if path == "" {
		return journal.NopLogger{}, nil
	}
	jl, err := journal.NewJSONLogger(path)
	if err != nil {
		return nil, err
	}
	slog.Debug("Writing run journal", "path", path)
	return jl, nil
}

// recordRun writes the step history and outcome of a finished or failed run.
func recordRun(jl journal.Logger, chain *stepchain.Chain, total int, runErr error) {
	failedIndex := -1
	if runErr != nil {
		failedIndex = chain.Index()
	}

	reports := chain.Reports()
	completed := 0
	for _, r := range reports {
		if r.Completed() {
			completed++
		}
	}

	for _, e := range journal.StepEvents(chain.RunID(), reports, failedIndex, runErr) {
		logJournal(jl, e)
	}
	logJournal(jl, journal.RunEnd(chain.RunID(), completed, total, runErr))
}

func logJournal(jl journal.Logger, e journal.Event) {
	if err := jl.Log(e); err != nil {
		slog.Warn("Failed to write run journal", "error", err)
	}
}

func loadProjectConfig() (*projectconfig.ProjectConfig, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	cfg, err := projectconfig.Load(wd)
	if err != nil {
		return nil, err
	}
	if cfg.Path != "" {
		slog.Debug("Loaded project config", "path", cfg.Path)
	}
	return cfg, nil
}

// stepDefaults returns the params every step inherits unless the plan
// overrides them.
func stepDefaults(accountURL string, tags map[string]string) map[string]any {
	defaults := map[string]any{}
	if accountURL != "" {
		defaults["account_url"] = accountURL
	}
	if len(tags) > 0 {
		defaults[plan.TagsParam] = tags
	}
	return defaults
}
