package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsfab/opsfab/config"
	"github.com/opsfab/opsfab/files"
	"github.com/opsfab/opsfab/providers/aws"
	"github.com/opsfab/opsfab/runlog"
	"github.com/opsfab/opsfab/services"
	"github.com/opsfab/opsfab/tasks"
	"github.com/opsfab/opsfab/venv"
)

var (
	deploySrc           string
	deploySupervisorTpl string
	deployNginxTpl      string
	deployDNS           bool
	deployDryRun        bool
	deployContinue      bool
	deployYes           bool
	deployDataDir       string
)

// deployCmd represents the deploy command
var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the application to an environment",
	Long: `Deploy to every host of an environment, host by host:

  1. create the directory layout under the deploy root
  2. rsync the application source
  3. create the virtualenv if missing and install requirements
  4. render service configs and restart the program
  5. optionally point the environment's domain at the newest instance

Each step is journaled per host.`,
	Example: `  opsfab deploy --env prod --src ./app
  opsfab deploy --env staging --src ./app --dry-run
  opsfab deploy --env prod --src ./app --dns`,
	RunE: runDeploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)

	deployCmd.Flags().StringVar(&deploySrc, "src", "", "Local application directory to deploy (required)")
	deployCmd.Flags().StringVar(&deploySupervisorTpl, "supervisor-template", "", "Supervisord program config template")
	deployCmd.Flags().StringVar(&deployNginxTpl, "nginx-template", "", "Nginx site config template")
	deployCmd.Flags().BoolVar(&deployDNS, "dns", false, "Point the environment domain at the newest instance")
	deployCmd.Flags().BoolVar(&deployDryRun, "dry-run", false, "List what would run without touching hosts")
	deployCmd.Flags().BoolVar(&deployContinue, "continue-on-failure", false, "Keep deploying remaining hosts after a failure")
	deployCmd.Flags().BoolVarP(&deployYes, "yes", "y", false, "Skip confirmation prompts")

	deployCmd.Flags().StringVar(&deployDataDir, "data-dir", defaultDataDir(), "Local inventory directory")
	_ = deployCmd.MarkFlagRequired("src")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := newLogger()

	cfg, env, err := loadEnv()
	if err != nil {
		return err
	}

	taskList := deployTasks(env)

	if deployDryRun {
		journal, err := runlog.Open(deployDataDir)
		if err != nil {
			return err
		}
		defer journal.Close()

		engine := tasks.NewEngine(env, journal, log, tasks.Options{})
		plan, err := engine.DryRun(ctx, taskList)
		if err != nil {
			return err
		}
		fmt.Printf("would run %d task(s) across hosts, %d safe, %d blocked\n",
			plan.TotalRuns, plan.SafeRuns, len(plan.BlockedRuns))
		for _, blocked := range plan.BlockedRuns {
			fmt.Printf("  blocked: %s on %s (%s)\n", blocked.Task, blocked.Host, blocked.Reason)
		}
		return nil
	}

	journal, err := runlog.Open(deployDataDir)
	if err != nil {
		return err
	}
	defer journal.Close()

	engine := tasks.NewEngine(env, journal, log, tasks.Options{
		ContinueOnFailure: deployContinue,
		SkipConfirmation:  deployYes,
	}).WithConfirmer(stdinConfirmer{})

	result, err := engine.Run(ctx, taskList)
	if err != nil {
		return err
	}

	fmt.Printf("deploy finished: %d ok, %d failed, %d skipped (journal: %s)\n",
		result.SuccessfulCount, result.FailedCount, result.SkippedCount, journal.Path())
	if result.PartialFailure {
		return fmt.Errorf("deploy failed on %d run(s)", result.FailedCount)
	}

	if deployDNS {
		return cutover(ctx, cfg, env)
	}
	return nil
}

// deployTasks builds the standard deploy pipeline for an environment
func deployTasks(env *config.Environment) []tasks.Task {
	list := []tasks.Task{
		{
			Name: "layout",
			Desc: "create directory layout under the deploy root",
			Fn:   taskLayout,
		},
		{
			Name: "app",
			Desc: "rsync application source",
			Fn:   taskApp,
		},
		{
			Name: "venv",
			Desc: "create virtualenv and install requirements",
			Fn:   taskVenv,
		},
	}
	if deploySupervisorTpl != "" || deployNginxTpl != "" || env.Program != "" {
		list = append(list, tasks.Task{
			Name: "services",
			Desc: "render service configs and restart the program",
			Fn:   taskServices,
		})
	}
	return list
}

func taskLayout(ctx context.Context, host *tasks.HostContext) error {
	lay := host.Env.Layout()
	if err := files.MkdirAll(ctx, host.Runner, true, lay.All()...); err != nil {
		return err
	}
	owner := host.Env.User + ":" + host.Env.User
	if _, err := host.Runner.Sudo(ctx, "chown", "-R", owner, lay.Root); err != nil {
		return fmt.Errorf("failed to chown deploy root: %w", err)
	}
	return nil
}

func taskApp(ctx context.Context, host *tasks.HostContext) error {
	lay := host.Env.Layout()
	err := files.Rsync(ctx, host.Host, deploySrc+"/", lay.App()+"/", files.RsyncOptions{
		Delete:   true,
		Excludes: []string{".git", "*.pyc", "__pycache__"},
	})
	if err != nil {
		return err
	}
	return host.Journal.Append(runlog.EntryUpload, host.Host.String(), "app", map[string]string{
		"src":  deploySrc,
		"dest": lay.App(),
	})
}

func taskVenv(ctx context.Context, host *tasks.HostContext) error {
	lay := host.Env.Layout()
	env := venv.New(lay.Venv(), host.Env.Interpreter())

	exists, err := env.Exists(ctx, host.Runner)
	if err != nil {
		return err
	}
	if !exists {
		if err := env.Create(ctx, host.Runner); err != nil {
			return err
		}
	}

	if host.Env.Requirements == "" {
		return nil
	}
	return env.Install(ctx, host.Runner, host.Env.Requirements)
}

func taskServices(ctx context.Context, host *tasks.HostContext) error {
	data := serviceTemplateData(host.Env)

	if deploySupervisorTpl != "" {
		supervisor := services.NewSupervisord()
		if err := supervisor.ConfInclude(ctx, host.Runner, deploySupervisorTpl, data); err != nil {
			return err
		}
		if host.Env.Program != "" {
			if err := supervisor.ReloadProgram(ctx, host.Runner, host.Env.Program); err != nil {
				return err
			}
		}
	}

	if deployNginxTpl != "" {
		nginx := services.NewNginx()
		if err := nginx.ConfInclude(ctx, host.Runner, deployNginxTpl, data); err != nil {
			return err
		}
		if err := nginx.Reload(ctx, host.Runner); err != nil {
			return err
		}
	}

	return nil
}

// serviceTemplateData is what service config templates render with
func serviceTemplateData(env *config.Environment) map[string]string {
	lay := env.Layout()
	return map[string]string{
		"Program":  env.Program,
		"Domain":   env.Domain,
		"AppEntry": env.AppEntry,
		"Root":     lay.Root,
		"App":      lay.App(),
		"Log":      lay.Log(),
		"Conf":     lay.Conf(),
		"Venv":     lay.Venv(),
		"Bin":      lay.Bin(),
		"User":     env.User,
	}
}

// cutover points the environment's domain at the newest live instance
func cutover(ctx context.Context, cfg *config.Config, env *config.Environment) error {
	if env.Domain == "" || env.ZoneID == "" {
		return fmt.Errorf("environment has no domain/zone_id for DNS cutover")
	}

	client, err := aws.NewSDKClient(ctx, cfg.Region)
	if err != nil {
		return err
	}
	provider := aws.NewProvider(client, cfg.Region)

	dns, err := aws.NewRoute53Client(ctx, cfg.Region)
	if err != nil {
		return err
	}

	filter := tagFilter(env)
	if err := aws.PointAtLatest(ctx, provider, dns, env.ZoneID, env.Domain, filter); err != nil {
		return err
	}
	fmt.Printf("pointed %s at the newest live instance\n", env.Domain)
	return nil
}

// stdinConfirmer prompts on the terminal
type stdinConfirmer struct{}

func (stdinConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	return confirm(prompt)
}
