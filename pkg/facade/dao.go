package facade

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/greenstake/greenstake-go/pkg/contracts"
	"github.com/greenstake/greenstake-go/pkg/txTracker"
)

// DAOCaller builds calls against the DAO contract.
type DAOCaller struct {
	f *Facade
}

func (f *Facade) DAO() *DAOCaller {
	return &DAOCaller{f: f}
}

// JoinDAO stakes stake wei to become a member.
func (c *DAOCaller) JoinDAO(ctx context.Context, stake *big.Int) (txTracker.Record, error) {
	return c.f.Write(ctx, contracts.DAO, "joinDAO", &CallOpts{Value: stake})
}

func (c *DAOCaller) MinimumStake(ctx context.Context) (*big.Int, error) {
	return outBigInt(c.f.Read(ctx, contracts.DAO, "minStakeAmount"))
}

func (c *DAOCaller) Member(ctx context.Context, account common.Address) (*contracts.Member, error) {
	return outTuple[contracts.Member](c.f.Read(ctx, contracts.DAO, "members", account))
}

func (c *DAOCaller) ProjectRequest(ctx context.Context, id *big.Int) (*contracts.ProjectRequest, error) {
	return outTuple[contracts.ProjectRequest](c.f.Read(ctx, contracts.DAO, "projectRequests", id))
}

func (c *DAOCaller) VoteOnProject(ctx context.Context, projectID *big.Int, support bool) (txTracker.Record, error) {
	return c.f.Write(ctx, contracts.DAO, "voteOnProject", nil, projectID, support)
}

func (c *DAOCaller) HasVoted(ctx context.Context, projectID *big.Int, voter common.Address) (bool, error) {
	return outBool(c.f.Read(ctx, contracts.DAO, "hasVoted", projectID, voter))
}
