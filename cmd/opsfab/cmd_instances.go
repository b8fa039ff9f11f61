package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opsfab/opsfab/inventory"
	"github.com/opsfab/opsfab/providers/aws"
	"github.com/opsfab/opsfab/types"
)

var (
	instancesRegion  string
	instancesOutput  string
	instancesTags    []string
	instancesAll     bool
	instancesDataDir string
)

// instancesCmd represents the instances command
var instancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "List EC2 instances",
	Long: `List EC2 instances in a region, live ones by default.

Each listing is also recorded as a new revision in the local
inventory, so past states stay queryable.`,
	Example: `  opsfab instances                         # Live instances in the config region
  opsfab instances --region us-west-2      # Another region
  opsfab instances --tag Name=web          # Filter by tag
  opsfab instances --all                   # Include terminated
  opsfab instances --output json           # JSON output`,
	RunE: runInstances,
}

func init() {
	rootCmd.AddCommand(instancesCmd)

	instancesCmd.Flags().StringVarP(&instancesRegion, "region", "r", "", "AWS region (default from config)")
	instancesCmd.Flags().StringVarP(&instancesOutput, "output", "o", "table", "Output format: table, json")
	instancesCmd.Flags().StringArrayVarP(&instancesTags, "tag", "t", nil, "Filter by tag, key=value (repeatable)")
	instancesCmd.Flags().BoolVar(&instancesAll, "all", false, "Include terminated instances")
	instancesCmd.Flags().StringVar(&instancesDataDir, "data-dir", defaultDataDir(), "Local inventory directory")
}

func runInstances(cmd *cobra.Command, args []string) error {
	if instancesOutput != "table" && instancesOutput != "json" {
		return fmt.Errorf("invalid output format: %s (must be table or json)", instancesOutput)
	}

	filter, err := buildTagFilter(instancesTags)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	log := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	region := instancesRegion
	if region == "" {
		region = cfg.Region
	}

	client, err := aws.NewSDKClient(ctx, region)
	if err != nil {
		return err
	}
	provider := aws.NewProvider(client, region)

	instances, err := provider.Instances(ctx, filter)
	if err != nil {
		return err
	}
	if !instancesAll {
		instances = types.FilterLive(instances)
	}

	// A tag-filtered listing is not a complete view, so it must not
	// mark unmatched instances gone.
	partial := len(instancesTags) > 0
	if err := recordInventory(instancesDataDir, instances, partial); err != nil {
		log.Warn().Err(err).Msg("failed to record inventory")
	}

	return printInstances(instances, instancesOutput)
}

// recordInventory appends the listing to the local inventory store.
// Partial listings keep the liveness of instances they don't cover.
func recordInventory(dir string, instances []types.Instance, partial bool) error {
	store, err := inventory.Open(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	if partial {
		_, err = store.RecordPartial(instances)
	} else {
		_, err = store.RecordBatch(instances)
	}
	return err
}

func printInstances(instances []types.Instance, output string) error {
	if output == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(instances)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATE\tTYPE\tLAUNCHED\tPUBLIC DNS")
	for _, instance := range types.SortByLaunchTime(instances, false) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			instance.ID,
			instance.Name(),
			instance.State,
			instance.Type,
			instance.LaunchTime.Format("2006-01-02 15:04"),
			instance.PublicDNS,
		)
	}
	return w.Flush()
}

// buildTagFilter parses key=value tag flags into a filter
func buildTagFilter(tagFlags []string) (types.InstanceFilter, error) {
	filter := types.InstanceFilter{}
	if len(tagFlags) == 0 {
		return filter, nil
	}

	filter.Tags = make(map[string]string, len(tagFlags))
	for _, flag := range tagFlags {
		key, value, found := strings.Cut(flag, "=")
		if !found || key == "" {
			return filter, fmt.Errorf("invalid tag filter %q, expected key=value", flag)
		}
		filter.Tags[key] = value
	}
	return filter, nil
}

// defaultDataDir is where the inventory and run journals live
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".opsfab"
	}
	return home + "/.opsfab"
}
