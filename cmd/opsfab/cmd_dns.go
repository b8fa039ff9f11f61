package main

import (
	"github.com/spf13/cobra"

	"github.com/opsfab/opsfab/config"
	"github.com/opsfab/opsfab/types"
)

// dnsCmd represents the dns command
var dnsCmd = &cobra.Command{
	Use:   "dns",
	Short: "Point the environment's domain at the newest instance",
	Long: `Upsert the environment's Route53 record to the most recently
launched live instance: a CNAME to its public DNS name, or an A record
to its public IP when it has no DNS name.

Instances are matched by the environment's tags.`,
	Example: `  opsfab dns --env prod`,
	RunE:    runDNS,
}

func init() {
	rootCmd.AddCommand(dnsCmd)
}

func runDNS(cmd *cobra.Command, args []string) error {
	cfg, env, err := loadEnv()
	if err != nil {
		return err
	}
	return cutover(cmd.Context(), cfg, env)
}

// tagFilter selects the environment's instances by its configured tags
func tagFilter(env *config.Environment) types.InstanceFilter {
	filter := types.InstanceFilter{}
	if len(env.Tags) > 0 {
		filter.Tags = env.Tags
	}
	return filter
}
