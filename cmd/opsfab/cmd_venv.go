package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsfab/opsfab/runlog"
	"github.com/opsfab/opsfab/tasks"
	"github.com/opsfab/opsfab/venv"
)

var venvDataDir string

// venvCmd represents the venv command
var venvCmd = &cobra.Command{
	Use:       "venv {create|remove|freeze}",
	Short:     "Manage the environment's virtualenv on each host",
	ValidArgs: []string{"create", "remove", "freeze"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Example: `  opsfab venv create --env staging
  opsfab venv freeze --env prod
  opsfab venv remove --env staging`,
	RunE: runVenv,
}

func init() {
	rootCmd.AddCommand(venvCmd)

	venvCmd.Flags().StringVar(&venvDataDir, "data-dir", defaultDataDir(), "Local inventory directory")
}

func runVenv(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := newLogger()

	_, env, err := loadEnv()
	if err != nil {
		return err
	}

	journal, err := runlog.Open(venvDataDir)
	if err != nil {
		return err
	}
	defer journal.Close()

	action := args[0]
	task := tasks.Task{
		Name:        "venv-" + action,
		Destructive: action == "remove",
		Fn: func(ctx context.Context, host *tasks.HostContext) error {
			return venvAction(ctx, action, host)
		},
	}

	engine := tasks.NewEngine(env, journal, log, tasks.Options{
		AllowDestructive: true,
		SkipConfirmation: false,
	}).WithConfirmer(stdinConfirmer{})

	result, err := engine.Run(ctx, []tasks.Task{task})
	if err != nil {
		return err
	}
	if result.PartialFailure {
		return fmt.Errorf("venv %s failed on %d host(s)", action, result.FailedCount)
	}
	return nil
}

func venvAction(ctx context.Context, action string, host *tasks.HostContext) error {
	env := venv.New(host.Env.Layout().Venv(), host.Env.Interpreter())

	switch action {
	case "create":
		return env.Create(ctx, host.Runner)
	case "remove":
		return env.Remove(ctx, host.Runner)
	case "freeze":
		frozen, err := env.Freeze(ctx, host.Runner)
		if err != nil {
			return err
		}
		fmt.Printf("# %s\n%s", host.Host.String(), frozen)
		return nil
	default:
		return fmt.Errorf("unknown venv action %q", action)
	}
}
