package facade

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/greenstake/greenstake-go/pkg/contracts"
	"github.com/greenstake/greenstake-go/pkg/txTracker"
)

// DonateCaller builds calls against the Donate contract.
type DonateCaller struct {
	f *Facade
}

func (f *Facade) Donate() *DonateCaller {
	return &DonateCaller{f: f}
}

// DonateToProject sends amount wei to projectID.
func (c *DonateCaller) DonateToProject(ctx context.Context, projectID *big.Int, amount *big.Int) (txTracker.Record, error) {
	return c.f.Write(ctx, contracts.Donate, "donateToProject", &CallOpts{Value: amount}, projectID)
}

func (c *DonateCaller) TotalDonations(ctx context.Context, projectID *big.Int) (*big.Int, error) {
	return outBigInt(c.f.Read(ctx, contracts.Donate, "totalDonationsPerProject", projectID))
}

// DonorDonation returns the index-th donation made by donor.
func (c *DonateCaller) DonorDonation(ctx context.Context, donor common.Address, index *big.Int) (*contracts.Donation, error) {
	return outTuple[contracts.Donation](c.f.Read(ctx, contracts.Donate, "donorDonations", donor, index))
}
