package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsfab/opsfab/vagrant"
)

var vagrantDir string

// vagrantCmd represents the vagrant command
var vagrantCmd = &cobra.Command{
	Use:   "vagrant {up|halt|destroy|status|host}",
	Short: "Drive the local Vagrant test box",
	Long: `Control the Vagrant box used as a local deployment target.

"host" prints the box as a user@addr:port host string plus its keyfile,
ready to paste into an environment's hosts list.`,
	ValidArgs: []string{"up", "halt", "destroy", "status", "host"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE:      runVagrant,
}

func init() {
	rootCmd.AddCommand(vagrantCmd)

	vagrantCmd.Flags().StringVar(&vagrantDir, "dir", ".", "Directory holding the Vagrantfile")
}

func runVagrant(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	box := vagrant.New(vagrantDir)

	switch args[0] {
	case "up":
		return box.Up(ctx)
	case "halt":
		return box.Halt(ctx)
	case "destroy":
		return box.Destroy(ctx)
	case "status":
		status, err := box.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Println(status)
		return nil
	case "host":
		host, keyfile, err := box.Host(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", host.String())
		if keyfile != "" {
			fmt.Printf("keyfile: %s\n", keyfile)
		}
		return nil
	default:
		return fmt.Errorf("unknown vagrant action %q", args[0])
	}
}
