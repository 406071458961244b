// Package contracts is the static registry of the three deployed contracts the
// client talks to. Each logical contract is a member of the closed Name variant;
// its address and interface shape are parsed once and never change.
package contracts

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/greenstake/greenstake-go/pkg/clientErrors"
	"github.com/greenstake/greenstake-go/pkg/util"
)

// SupportedChainID is the only network the contracts are deployed on (Sepolia).
const SupportedChainID uint64 = 11155111

// Name identifies one of the deployed contracts.
type Name uint8

const (
	ProjectListing Name = iota + 1
	DAO
	Donate
)

// Names lists every valid contract name in registry order.
var Names = []Name{ProjectListing, DAO, Donate}

func (n Name) String() string {
	switch n {
	case ProjectListing:
		return "ProjectListing"
	case DAO:
		return "DAO"
	case Donate:
		return "Donate"
	default:
		return fmt.Sprintf("Name(%d)", uint8(n))
	}
}

// Valid reports whether n is one of the registered contracts.
func (n Name) Valid() bool {
	return n >= ProjectListing && n <= Donate
}

// ParseName resolves a case-insensitive logical name.
func ParseName(s string) (Name, error) {
	for _, n := range Names {
		if strings.EqualFold(n.String(), s) {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", clientErrors.ErrUnknownContract, s)
}

// Descriptor is the immutable description of a deployed contract.
type Descriptor struct {
	Name    Name
	Address common.Address
	ABI     abi.ABI
	// Affects lists the contracts whose reads go stale once a write to this
	// contract is confirmed.
	Affects []Name
}

// Signatures returns the ordered function and event signatures of the contract.
func (d *Descriptor) Signatures() []string {
	sigs := make([]string, 0, len(d.ABI.Methods)+len(d.ABI.Events))
	for _, m := range d.ABI.Methods {
		sigs = append(sigs, m.String())
	}
	sort.Strings(sigs)
	events := make([]string, 0, len(d.ABI.Events))
	for _, e := range d.ABI.Events {
		events = append(events, e.String())
	}
	sort.Strings(events)
	return append(sigs, events...)
}

// Method returns the ABI method called name.
func (d *Descriptor) Method(name string) (abi.Method, error) {
	m, ok := d.ABI.Methods[name]
	if !ok {
		return abi.Method{}, fmt.Errorf("%w: %s.%s", clientErrors.ErrUnknownMethod, d.Name, name)
	}
	return m, nil
}

// IsRead reports whether method is a view/pure function.
func (d *Descriptor) IsRead(method string) bool {
	m, ok := d.ABI.Methods[method]
	return ok && m.IsConstant()
}

type definition struct {
	address string
	abiJSON string
	affects []Name
}

var definitions = map[Name]definition{
	ProjectListing: {
		address: "0x1955E7bFed7499c0a71394976Beb8d8AC33ABcd7",
		abiJSON: projectListingABI,
		affects: []Name{ProjectListing, DAO},
	},
	DAO: {
		address: "0xA5124D1c1f6e06F6956f77DE2917983D93840993",
		abiJSON: daoABI,
		affects: []Name{DAO, ProjectListing},
	},
	Donate: {
		address: "0x4C597Bc2CC4ca87efC738EFDeFD487E27833df4a",
		abiJSON: donateABI,
		affects: []Name{Donate, ProjectListing},
	},
}

// Registry holds the parsed descriptors of every contract.
type Registry struct {
	descriptors map[Name]*Descriptor
	ordered     []*Descriptor
}

// Load parses the embedded interface shapes. It is called once at startup.
func Load() (*Registry, error) {
	r := &Registry{descriptors: make(map[Name]*Descriptor, len(definitions))}
	for _, name := range Names {
		def := definitions[name]
		parsed, err := abi.JSON(strings.NewReader(def.abiJSON))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s ABI: %w", name, err)
		}
		d := &Descriptor{
			Name:    name,
			Address: common.HexToAddress(def.address),
			ABI:     parsed,
			Affects: def.affects,
		}
		r.descriptors[name] = d
		r.ordered = append(r.ordered, d)
	}
	return r, nil
}

// MustLoad is Load for package-level initialisation.
func MustLoad() *Registry {
	r, err := Load()
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the descriptor for name.
func (r *Registry) Get(name Name) (*Descriptor, error) {
	d, ok := r.descriptors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", clientErrors.ErrUnknownContract, name)
	}
	return d, nil
}

// ByAddress returns the descriptor deployed at addr.
func (r *Registry) ByAddress(addr common.Address) (*Descriptor, bool) {
	d := util.Find(r.ordered, func(d *Descriptor) bool {
		return d.Address == addr
	})
	return d, d != nil
}

// Addresses returns the contract addresses in Names order.
func (r *Registry) Addresses() []common.Address {
	return util.Map(r.ordered, func(d *Descriptor, _ uint64) common.Address {
		return d.Address
	})
}

// Project mirrors ProjectListing.projects(uint256).
type Project struct {
	Id                  *big.Int
	Name                string
	Description         string
	Owner               common.Address
	SubscriptionEndTime *big.Int
	IsListed            bool
	TotalDonations      *big.Int
}

// Member mirrors DAO.members(address).
type Member struct {
	StakedAmount *big.Int
	IsMember     bool
}

// ProjectRequest mirrors DAO.projectRequests(uint256).
type ProjectRequest struct {
	ProjectId    *big.Int
	ProjectOwner common.Address
	Name         string
	Description  string
	YesVotes     *big.Int
	NoVotes      *big.Int
	IsApproved   bool
	IsProcessed  bool
}

// Donation mirrors Donate.donorDonations(address,uint256).
type Donation struct {
	Donor     common.Address
	Amount    *big.Int
	ProjectId *big.Int
	Timestamp *big.Int
}
