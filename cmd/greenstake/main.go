package main

import (
	"fmt"
	"os"

	"github.com/greenstake/greenstake-go/pkg/clientErrors"
	"github.com/greenstake/greenstake-go/pkg/contracts"
	cli "github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "greenstake",
		Usage: "GreenStake project listing, DAO and donation client",
		Description: `The greenstake CLI browses listed projects, joins the staking DAO, votes on
project requests and donates to projects on Sepolia. Writes are signed by a local
wallet backed by a private key, an OS keyring entry or an AWS KMS key.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
				EnvVars: []string{"DEBUG"},
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Sepolia RPC endpoint used for reads and by the wallet",
				Value:   "https://ethereum-sepolia-rpc.publicnode.com",
				EnvVars: []string{"GREENSTAKE_RPC_URL"},
			},
			&cli.Uint64Flag{
				Name:    "chain-id",
				Usage:   "Network the wallet starts on",
				Value:   contracts.SupportedChainID,
				EnvVars: []string{"CHAIN_ID"},
			},
			&cli.StringSliceFlag{
				Name:    "chains",
				Aliases: []string{"c"},
				Usage:   "Additional wallet networks in format 'chainId:rpcUrl'",
				EnvVars: []string{"CHAINS"},
			},
			// Transaction signing options
			&cli.StringFlag{
				Name:    "tx-private-key",
				Usage:   "Private key for transaction signing (hex format, with or without 0x prefix)",
				EnvVars: []string{"TX_PRIVATE_KEY"},
			},
			&cli.StringFlag{
				Name:    "tx-aws-kms-key-id",
				Usage:   "AWS KMS key ID for transaction signing",
				EnvVars: []string{"TX_AWS_KMS_KEY_ID"},
			},
			&cli.StringFlag{
				Name:    "tx-aws-region",
				Usage:   "AWS region for transaction signing KMS key",
				Value:   "us-east-1",
				EnvVars: []string{"TX_AWS_REGION"},
			},
			&cli.StringFlag{
				Name:    "keyring-account",
				Usage:   "Keyring entry holding the signing key (see 'wallet import')",
				EnvVars: []string{"KEYRING_ACCOUNT"},
			},
			&cli.StringFlag{
				Name:    "keyring-dir",
				Usage:   "Directory of the encrypted file keyring",
				Value:   "~/.greenstake/keys",
				EnvVars: []string{"KEYRING_DIR"},
			},
			&cli.StringFlag{
				Name:    "keyring-password",
				Usage:   "Password of the encrypted file keyring",
				EnvVars: []string{"KEYRING_PASSWORD"},
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Approve wallet connection and signing prompts without asking",
				EnvVars: []string{"GREENSTAKE_AUTO_APPROVE"},
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "How often pending transactions are polled",
				Value:   defaultPollInterval,
				EnvVars: []string{"POLL_INTERVAL"},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "How long to wait for a transaction to settle",
				Value:   defaultWaitTimeout,
				EnvVars: []string{"TX_TIMEOUT"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "connect",
				Usage:  "Connect the wallet and show the session",
				Action: connectAction,
			},
			{
				Name:    "projects",
				Aliases: []string{"p"},
				Usage:   "List projects",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "start", Usage: "First project index"},
					&cli.Uint64Flag{Name: "limit", Usage: "Maximum number of projects (0 lists all)"},
				},
				Action: projectsAction,
			},
			{
				Name:  "list-project",
				Usage: "List a new project, paying the subscription fee",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true, Usage: "Project name"},
					&cli.StringFlag{Name: "description", Required: true, Usage: "Project description"},
				},
				Action: listProjectAction,
			},
			{
				Name:  "dao",
				Usage: "DAO membership and voting",
				Subcommands: []*cli.Command{
					{
						Name:   "status",
						Usage:  "Show minimum stake, membership and the current project request",
						Action: daoStatusAction,
					},
					{
						Name:  "join",
						Usage: "Stake ETH to join the DAO",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "stake", Usage: "Stake in ETH (defaults to the minimum stake)"},
						},
						Action: daoJoinAction,
					},
					{
						Name:  "vote",
						Usage: "Vote on a project request",
						Flags: []cli.Flag{
							&cli.Uint64Flag{Name: "project-id", Usage: "Project request id"},
							&cli.BoolFlag{Name: "against", Usage: "Vote no instead of yes"},
						},
						Action: daoVoteAction,
					},
				},
			},
			{
				Name:  "donate",
				Usage: "Donate ETH to a project",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "project-id", Required: true, Usage: "Project id"},
					&cli.StringFlag{Name: "amount", Required: true, Usage: "Amount in ETH"},
				},
				Action: donateAction,
			},
			{
				Name:   "profile",
				Usage:  "Show membership and donation history of the connected account",
				Action: profileAction,
			},
			{
				Name:  "wallet",
				Usage: "Manage signing keys",
				Subcommands: []*cli.Command{
					{
						Name:  "import",
						Usage: "Store a private key in the keyring",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "account", Required: true, Usage: "Keyring entry name"},
							&cli.StringFlag{Name: "key", Required: true, Usage: "Private key (hex)", EnvVars: []string{"IMPORT_PRIVATE_KEY"}},
						},
						Action: walletImportAction,
					},
				},
			},
		},
		Before: validateFlags,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", clientErrors.Message(err))
		fmt.Fprintf(os.Stderr, "  %v\n", err)
		os.Exit(1)
	}
}

func validateFlags(c *cli.Context) error {
	// Validate transaction signing configuration
	sources := 0
	for _, name := range []string{"tx-private-key", "tx-aws-kms-key-id", "keyring-account"} {
		if c.String(name) != "" {
			sources++
		}
	}
	if sources > 1 {
		return fmt.Errorf("can only specify one of --tx-private-key, --tx-aws-kms-key-id or --keyring-account")
	}
	if c.Duration("poll-interval") <= 0 {
		return fmt.Errorf("--poll-interval must be positive")
	}
	return nil
}
