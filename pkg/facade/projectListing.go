package facade

import (
	"context"
	"fmt"
	"math/big"

	"github.com/greenstake/greenstake-go/pkg/contracts"
	"github.com/greenstake/greenstake-go/pkg/txTracker"
	"go.uber.org/zap"
)

// DefaultPageSize bounds how many projects Projects fetches per page.
const DefaultPageSize = 25

// ProjectListingCaller builds calls against the ProjectListing contract.
type ProjectListingCaller struct {
	f *Facade
}

func (f *Facade) ProjectListing() *ProjectListingCaller {
	return &ProjectListingCaller{f: f}
}

func (c *ProjectListingCaller) ProjectCount(ctx context.Context) (*big.Int, error) {
	return outBigInt(c.f.Read(ctx, contracts.ProjectListing, "projectCounter"))
}

func (c *ProjectListingCaller) SubscriptionFee(ctx context.Context) (*big.Int, error) {
	return outBigInt(c.f.Read(ctx, contracts.ProjectListing, "subscriptionFee"))
}

func (c *ProjectListingCaller) Project(ctx context.Context, id *big.Int) (*contracts.Project, error) {
	return outTuple[contracts.Project](c.f.Read(ctx, contracts.ProjectListing, "projects", id))
}

// ProjectsPage returns up to limit projects starting at index start.
func (c *ProjectListingCaller) ProjectsPage(ctx context.Context, start uint64, limit uint64) ([]*contracts.Project, error) {
	count, err := c.ProjectCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get project count: %w", err)
	}
	total := count.Uint64()
	if start >= total {
		return []*contracts.Project{}, nil
	}
	end := start + limit
	if limit == 0 || end > total {
		end = total
	}

	projects := make([]*contracts.Project, 0, end-start)
	for i := start; i < end; i++ {
		p, err := c.Project(ctx, new(big.Int).SetUint64(i))
		if err != nil {
			return nil, fmt.Errorf("failed to get project %d: %w", i, err)
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// Projects returns every project, fetched page by page.
func (c *ProjectListingCaller) Projects(ctx context.Context) ([]*contracts.Project, error) {
	count, err := c.ProjectCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get project count: %w", err)
	}
	total := count.Uint64()
	all := make([]*contracts.Project, 0, total)
	for start := uint64(0); start < total; start += DefaultPageSize {
		page, err := c.ProjectsPage(ctx, start, DefaultPageSize)
		if err != nil {
			return nil, err
		}
		c.f.logger.Sugar().Debugw("Fetched projects page",
			zap.Uint64("start", start),
			zap.Int("count", len(page)),
		)
		all = append(all, page...)
	}
	return all, nil
}

// ListProject submits listProject paying fee.
func (c *ProjectListingCaller) ListProject(ctx context.Context, name string, description string, fee *big.Int) (txTracker.Record, error) {
	return c.f.Write(ctx, contracts.ProjectListing, "listProject", &CallOpts{Value: fee}, name, description)
}
