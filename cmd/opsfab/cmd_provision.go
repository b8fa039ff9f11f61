package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsfab/opsfab/providers/aws"
	"github.com/opsfab/opsfab/runlog"
	"github.com/opsfab/opsfab/telemetry"
	"github.com/opsfab/opsfab/types"
)

var (
	provisionCount   int
	provisionName    string
	provisionKeyName string
	provisionGroup   string
	provisionDataDir string
)

// provisionCmd represents the provision command
var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Launch EC2 instances from the configured spec",
	Long: `Launch instances using the instance spec from the config file,
wait until they're running, and tag them.

The instance's security group is created and opened (ssh + http) if it
doesn't exist yet.`,
	Example: `  opsfab provision                       # One instance per config
  opsfab provision --count 3             # Three instances
  opsfab provision --name web2           # Override the Name tag`,
	RunE: runProvision,
}

func init() {
	rootCmd.AddCommand(provisionCmd)

	provisionCmd.Flags().IntVarP(&provisionCount, "count", "n", 0, "Number of instances (default from config)")
	provisionCmd.Flags().StringVar(&provisionName, "name", "", "Name tag for the new instances")
	provisionCmd.Flags().StringVar(&provisionKeyName, "key-name", "", "Key pair name (default from config)")
	provisionCmd.Flags().StringVar(&provisionGroup, "security-group", "", "Security group to ensure and use")
	provisionCmd.Flags().StringVar(&provisionDataDir, "data-dir", defaultDataDir(), "Local inventory directory")
}

func runProvision(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	spec := cfg.Instance
	if spec.ImageID == "" {
		return fmt.Errorf("config has no instance.image_id to provision from")
	}
	applyProvisionFlags(&spec)

	client, err := aws.NewSDKClient(ctx, cfg.Region)
	if err != nil {
		return err
	}
	provider := aws.NewProvider(client, cfg.Region)

	if err := ensureGroup(ctx, provider, &spec); err != nil {
		return err
	}

	journal, err := runlog.Open(provisionDataDir)
	if err != nil {
		return err
	}
	defer journal.Close()

	log.Info().
		Str("image_id", spec.ImageID).
		Str("instance_type", spec.InstanceType).
		Int("count", max(spec.Count, 1)).
		Msg("provisioning instances")

	instances, err := provider.Provision(ctx, spec)
	if err != nil {
		jerr := journal.AppendError(runlog.EntryProvisioned, "", "provision", spec, err)
		if jerr != nil {
			return fmt.Errorf("%w (journal error: %v)", err, jerr)
		}
		return err
	}

	ids := instanceIDs(instances)
	if err := journal.Append(runlog.EntryProvisioned, "", "provision", ids); err != nil {
		log.Warn().Err(err).Msg("provisioned but journaling failed")
	}
	log.LogProvisioned(ctx, ids, cfg.Region)
	if telemetry.InstancesProvisioned != nil {
		telemetry.InstancesProvisioned.Add(ctx, int64(len(instances)))
	}

	// Only the new instances are known here, so record them as a
	// partial view instead of wiping the rest of the inventory.
	if err := recordInventory(provisionDataDir, instances, true); err != nil {
		log.Warn().Err(err).Msg("failed to record inventory")
	}

	return printInstances(instances, "table")
}

// applyProvisionFlags overrides spec fields from command flags
func applyProvisionFlags(spec *types.InstanceSpec) {
	if provisionCount > 0 {
		spec.Count = provisionCount
	}
	if provisionKeyName != "" {
		spec.KeyName = provisionKeyName
	}
	if provisionGroup != "" {
		spec.SecurityGroups = []string{provisionGroup}
	}
	if provisionName != "" {
		if spec.Tags == nil {
			spec.Tags = make(map[string]string)
		}
		spec.Tags["Name"] = provisionName
	}
}

// ensureGroup converges the first configured security group
func ensureGroup(ctx context.Context, provider *aws.Provider, spec *types.InstanceSpec) error {
	if len(spec.SecurityGroups) == 0 {
		return nil
	}
	_, err := provider.EnsureSecurityGroup(ctx, aws.SecurityGroupSpec{Name: spec.SecurityGroups[0]})
	return err
}

func instanceIDs(instances []types.Instance) []string {
	ids := make([]string, 0, len(instances))
	for _, instance := range instances {
		ids = append(ids, instance.ID)
	}
	return ids
}
