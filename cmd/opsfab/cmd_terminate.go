package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opsfab/opsfab/providers/aws"
	"github.com/opsfab/opsfab/runlog"
	"github.com/opsfab/opsfab/telemetry"
)

var (
	terminateName    string
	terminateYes     bool
	terminateDataDir string
)

// terminateCmd represents the terminate command
var terminateCmd = &cobra.Command{
	Use:   "terminate [instance-id...]",
	Short: "Terminate EC2 instances",
	Long: `Terminate instances by id, or by Name tag with --name.

Fails unless AWS confirms every requested instance is shutting down,
a partial terminate is treated as an error.`,
	Example: `  opsfab terminate i-0123456789abcdef0
  opsfab terminate --name web2           # The single live instance named web2
  opsfab terminate i-012345 --yes        # Skip confirmation`,
	RunE: runTerminate,
}

func init() {
	rootCmd.AddCommand(terminateCmd)

	terminateCmd.Flags().StringVar(&terminateName, "name", "", "Terminate the live instance with this Name tag")
	terminateCmd.Flags().BoolVarP(&terminateYes, "yes", "y", false, "Skip confirmation prompt")
	terminateCmd.Flags().StringVar(&terminateDataDir, "data-dir", defaultDataDir(), "Local inventory directory")
}

func runTerminate(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && terminateName == "" {
		return fmt.Errorf("nothing to terminate: pass instance ids or --name")
	}
	if len(args) > 0 && terminateName != "" {
		return fmt.Errorf("pass instance ids or --name, not both")
	}

	ctx := cmd.Context()
	log := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := aws.NewSDKClient(ctx, cfg.Region)
	if err != nil {
		return err
	}
	provider := aws.NewProvider(client, cfg.Region)

	ids := args
	if terminateName != "" {
		instance, err := provider.NamedInstance(ctx, terminateName)
		if err != nil {
			return err
		}
		ids = []string{instance.ID}
	}

	if !terminateYes {
		confirmed, err := confirm(fmt.Sprintf("Terminate %s?", strings.Join(ids, ", ")))
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Println("aborted")
			return nil
		}
	}

	journal, err := runlog.Open(terminateDataDir)
	if err != nil {
		return err
	}
	defer journal.Close()

	if err := provider.Terminate(ctx, ids); err != nil {
		jerr := journal.AppendError(runlog.EntryTerminated, "", "terminate", ids, err)
		if jerr != nil {
			return fmt.Errorf("%w (journal error: %v)", err, jerr)
		}
		return err
	}

	if err := journal.Append(runlog.EntryTerminated, "", "terminate", ids); err != nil {
		log.Warn().Err(err).Msg("terminated but journaling failed")
	}
	log.LogTerminated(ctx, ids, cfg.Region)
	if telemetry.InstancesTerminated != nil {
		telemetry.InstancesTerminated.Add(ctx, int64(len(ids)))
	}

	fmt.Printf("terminated: %s\n", strings.Join(ids, ", "))
	return nil
}

// confirm asks on stdin, default no
func confirm(prompt string) (bool, error) {
	fmt.Printf("%s [y/N]: ", prompt)

	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}

	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}
