package main

import (
	"github.com/spf13/cobra"

	"github.com/opsfab/opsfab/providers/aws"
)

var keypairPublicKey string

// keypairCmd represents the keypair command
var keypairCmd = &cobra.Command{
	Use:     "keypair NAME",
	Short:   "Import a public key as an EC2 key pair",
	Args:    cobra.ExactArgs(1),
	Example: `  opsfab keypair deploy-key --public-key ~/.ssh/id_ed25519.pub`,
	RunE:    runKeypair,
}

func init() {
	rootCmd.AddCommand(keypairCmd)

	keypairCmd.Flags().StringVar(&keypairPublicKey, "public-key", "", "Public key file to import (required)")
	_ = keypairCmd.MarkFlagRequired("public-key")
}

func runKeypair(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := aws.NewSDKClient(ctx, cfg.Region)
	if err != nil {
		return err
	}
	provider := aws.NewProvider(client, cfg.Region)

	return provider.ImportKeyPair(ctx, args[0], keypairPublicKey)
}
