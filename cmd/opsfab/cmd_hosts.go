package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsfab/opsfab/inventory"
	"github.com/opsfab/opsfab/providers/aws"
	"github.com/opsfab/opsfab/types"
)

var (
	hostsCached  bool
	hostsDataDir string
)

// hostsCmd represents the hosts command
var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "Print the public DNS names of live instances",
	Long: `Print one public DNS name per line for the environment's live
instances, ready for shell substitution.

With --cached the names come from the local inventory recorded by
earlier listings and the daemon, without touching AWS.`,
	Example: `  opsfab hosts --env prod
  ssh ec2-user@$(opsfab hosts --env prod | head -1)
  opsfab hosts --cached`,
	RunE: runHosts,
}

func init() {
	rootCmd.AddCommand(hostsCmd)

	hostsCmd.Flags().BoolVar(&hostsCached, "cached", false, "Read from the local inventory instead of AWS")
	hostsCmd.Flags().StringVar(&hostsDataDir, "data-dir", defaultDataDir(), "Local inventory directory")
}

func runHosts(cmd *cobra.Command, args []string) error {
	if hostsCached {
		return printCachedHosts(hostsDataDir)
	}

	ctx := cmd.Context()

	cfg, env, err := loadEnv()
	if err != nil {
		return err
	}

	client, err := aws.NewSDKClient(ctx, cfg.Region)
	if err != nil {
		return err
	}
	provider := aws.NewProvider(client, cfg.Region)

	hosts, err := provider.LiveHosts(ctx, tagFilter(env))
	if err != nil {
		return err
	}
	for _, host := range hosts {
		fmt.Println(host)
	}
	return nil
}

// printCachedHosts answers from the inventory without AWS calls
func printCachedHosts(dir string) error {
	store, err := inventory.Open(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, state := range store.ListLive() {
		instance, err := store.Get(state.ID)
		if err != nil {
			continue
		}
		if hosts := types.Hosts([]types.Instance{*instance}); len(hosts) > 0 {
			fmt.Println(hosts[0])
		}
	}
	return nil
}
