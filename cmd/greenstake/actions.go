package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/greenstake/greenstake-go/pkg/clientErrors"
	"github.com/greenstake/greenstake-go/pkg/txSigner"
	"github.com/greenstake/greenstake-go/pkg/txTracker"
	cli "github.com/urfave/cli/v2"
)

func connectAction(c *cli.Context) error {
	cl, err := setupClient(c)
	if err != nil {
		return err
	}
	defer cl.Close()

	snap, err := cl.gateway.Connect(c.Context)
	if err != nil {
		return err
	}
	fmt.Printf("Account: %s\n", snap.Account.Hex())
	fmt.Printf("Network: %d\n", *snap.NetworkID)
	fmt.Printf("State:   %s\n", snap.State)
	for _, addr := range cl.registry.Addresses() {
		if desc, ok := cl.registry.ByAddress(addr); ok {
			fmt.Printf("  %-15s %s\n", desc.Name, addr.Hex())
		}
	}
	return nil
}

func projectsAction(c *cli.Context) error {
	cl, err := setupClient(c)
	if err != nil {
		return err
	}
	defer cl.Close()

	listing := cl.facade.ProjectListing()
	projects, err := listing.ProjectsPage(c.Context, c.Uint64("start"), c.Uint64("limit"))
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Println("No projects listed yet.")
		return nil
	}
	for _, p := range projects {
		status := "listed"
		if !p.IsListed {
			status = "pending approval"
		}
		fmt.Printf("[%s] %s (%s)\n", p.Id, p.Name, status)
		fmt.Printf("    %s\n", p.Description)
		fmt.Printf("    owner: %s  donations: %s ETH\n", p.Owner.Hex(), formatEther(p.TotalDonations))
	}
	return nil
}

func listProjectAction(c *cli.Context) error {
	cl, err := setupClient(c)
	if err != nil {
		return err
	}
	defer cl.Close()

	if _, err := cl.gateway.Connect(c.Context); err != nil {
		return err
	}
	listing := cl.facade.ProjectListing()
	fee, err := listing.SubscriptionFee(c.Context)
	if err != nil {
		return err
	}
	fmt.Printf("Subscription fee: %s ETH\n", formatEther(fee))

	record, err := listing.ListProject(c.Context, c.String("name"), c.String("description"), fee)
	if err != nil {
		return err
	}
	return awaitRecord(c, cl, record)
}

func daoStatusAction(c *cli.Context) error {
	cl, err := setupClient(c)
	if err != nil {
		return err
	}
	defer cl.Close()

	dao := cl.facade.DAO()
	stake, err := dao.MinimumStake(c.Context)
	if err != nil {
		return err
	}
	fmt.Printf("Minimum stake: %s ETH\n", formatEther(stake))

	request, err := dao.ProjectRequest(c.Context, big.NewInt(0))
	if err != nil {
		return err
	}
	fmt.Printf("Project request %s: %s\n", request.ProjectId, request.Name)
	fmt.Printf("    %s\n", request.Description)
	fmt.Printf("    yes: %s  no: %s  approved: %t  processed: %t\n", request.YesVotes, request.NoVotes, request.IsApproved, request.IsProcessed)

	account, ok := connectIfPossible(c, cl)
	if !ok {
		return nil
	}
	member, err := dao.Member(c.Context, account)
	if err != nil {
		return err
	}
	fmt.Printf("Member: %t (staked %s ETH)\n", member.IsMember, formatEther(member.StakedAmount))
	voted, err := dao.HasVoted(c.Context, request.ProjectId, account)
	if err != nil {
		return err
	}
	fmt.Printf("Voted on request %s: %t\n", request.ProjectId, voted)
	return nil
}

func daoJoinAction(c *cli.Context) error {
	cl, err := setupClient(c)
	if err != nil {
		return err
	}
	defer cl.Close()

	if _, err := cl.gateway.Connect(c.Context); err != nil {
		return err
	}
	dao := cl.facade.DAO()

	var stake *big.Int
	if s := c.String("stake"); s != "" {
		if stake, err = parseEther(s); err != nil {
			return err
		}
	} else if stake, err = dao.MinimumStake(c.Context); err != nil {
		return err
	}

	record, err := dao.JoinDAO(c.Context, stake)
	if err != nil {
		return err
	}
	return awaitRecord(c, cl, record)
}

func daoVoteAction(c *cli.Context) error {
	cl, err := setupClient(c)
	if err != nil {
		return err
	}
	defer cl.Close()

	if _, err := cl.gateway.Connect(c.Context); err != nil {
		return err
	}
	projectID := new(big.Int).SetUint64(c.Uint64("project-id"))
	record, err := cl.facade.DAO().VoteOnProject(c.Context, projectID, !c.Bool("against"))
	if err != nil {
		return err
	}
	return awaitRecord(c, cl, record)
}

func donateAction(c *cli.Context) error {
	cl, err := setupClient(c)
	if err != nil {
		return err
	}
	defer cl.Close()

	amount, err := parseEther(c.String("amount"))
	if err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return fmt.Errorf("donation amount must be greater than zero")
	}
	if _, err := cl.gateway.Connect(c.Context); err != nil {
		return err
	}
	projectID := new(big.Int).SetUint64(c.Uint64("project-id"))
	record, err := cl.facade.Donate().DonateToProject(c.Context, projectID, amount)
	if err != nil {
		return err
	}
	return awaitRecord(c, cl, record)
}

func profileAction(c *cli.Context) error {
	cl, err := setupClient(c)
	if err != nil {
		return err
	}
	defer cl.Close()

	snap, err := cl.gateway.Connect(c.Context)
	if err != nil {
		return err
	}
	account := *snap.Account
	fmt.Printf("Account: %s\n", account.Hex())

	member, err := cl.facade.DAO().Member(c.Context, account)
	if err != nil {
		return err
	}
	fmt.Printf("DAO member: %t (staked %s ETH)\n", member.IsMember, formatEther(member.StakedAmount))

	donation, err := cl.facade.Donate().DonorDonation(c.Context, account, big.NewInt(0))
	if err != nil {
		// donorDonations reverts when the account never donated.
		fmt.Println("No donations yet.")
		return nil
	}
	fmt.Printf("First donation: %s ETH to project %s\n", formatEther(donation.Amount), donation.ProjectId)
	return nil
}

func walletImportAction(c *cli.Context) error {
	ring, err := txSigner.OpenKeyring(keyringConfig(c))
	if err != nil {
		return err
	}
	account := c.String("account")
	if err := txSigner.StoreKey(ring, account, c.String("key")); err != nil {
		return err
	}
	signer, err := txSigner.NewKeyringSigner(ring, account)
	if err != nil {
		return err
	}
	addr, err := signer.GetAddress()
	if err != nil {
		return err
	}
	fmt.Printf("Stored key for %s as %q\n", addr.Hex(), account)
	return nil
}

// connectIfPossible connects when a wallet is configured. Without one the
// command carries on with public reads only.
func connectIfPossible(c *cli.Context, cl *client) (common.Address, bool) {
	if cl.wallet == nil {
		return common.Address{}, false
	}
	snap, err := cl.gateway.Connect(c.Context)
	if err != nil {
		fmt.Printf("Wallet: %s\n", clientErrors.Message(err))
		return common.Address{}, false
	}
	return *snap.Account, true
}

// awaitRecord reports a submitted write until it settles.
func awaitRecord(c *cli.Context, cl *client, record txTracker.Record) error {
	fmt.Printf("Transaction %s submitted (%s.%s)\n", record.ID.Hex(), record.Contract, record.Method)

	pending, err := cl.tracker.SubscribePending(record.ID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	select {
	case <-pending:
		fmt.Println("Transaction pending...")
	case <-ctx.Done():
		return fmt.Errorf("gave up waiting for %s: %w", record.ID.Hex(), ctx.Err())
	}

	settled, err := cl.tracker.Wait(ctx, record.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Transaction confirmed in block %s\n", settled.Receipt.BlockNumber)
	for _, ev := range settled.Events {
		fmt.Printf("    %s.%s %v\n", ev.Contract, ev.Name, ev.Fields)
	}
	return nil
}
