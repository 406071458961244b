package contracts

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/greenstake/greenstake-go/pkg/clientErrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AllContracts(t *testing.T) {
	r, err := Load()
	require.NoError(t, err)

	expectedMethods := map[Name][]string{
		ProjectListing: {"listProject", "projects", "subscriptionFee", "projectCounter"},
		DAO:            {"joinDAO", "minStakeAmount", "members", "projectRequests", "voteOnProject", "hasVoted"},
		Donate:         {"donateToProject", "totalDonationsPerProject", "donorDonations"},
	}
	for name, methods := range expectedMethods {
		d, err := r.Get(name)
		require.NoError(t, err)
		assert.Equal(t, name, d.Name)
		for _, m := range methods {
			_, err := d.Method(m)
			assert.NoError(t, err, "%s.%s", name, m)
		}
	}

	dao, _ := r.Get(DAO)
	assert.Equal(t, common.HexToAddress("0xA5124D1c1f6e06F6956f77DE2917983D93840993"), dao.Address)
	assert.False(t, dao.IsRead("joinDAO"))
	assert.True(t, dao.IsRead("members"))
	assert.True(t, dao.ABI.Methods["joinDAO"].Payable)
	assert.Contains(t, dao.ABI.Events, "NewMember")
	assert.Len(t, dao.Signatures(), 8)
}

func TestRegistry_RejectsUnknownNames(t *testing.T) {
	r := MustLoad()

	_, err := r.Get(Name(42))
	assert.ErrorIs(t, err, clientErrors.ErrUnknownContract)
	assert.False(t, Name(0).Valid())

	_, err = ParseName("Treasury")
	assert.ErrorIs(t, err, clientErrors.ErrUnknownContract)

	n, err := ParseName("dao")
	require.NoError(t, err)
	assert.Equal(t, DAO, n)

	d, _ := r.Get(Donate)
	_, err = d.Method("withdraw")
	assert.ErrorIs(t, err, clientErrors.ErrUnknownMethod)
}

func TestRegistry_ByAddress(t *testing.T) {
	r := MustLoad()
	d, ok := r.ByAddress(common.HexToAddress("0x4C597Bc2CC4ca87efC738EFDeFD487E27833df4a"))
	require.True(t, ok)
	assert.Equal(t, Donate, d.Name)
	assert.Equal(t, []Name{Donate, ProjectListing}, d.Affects)

	_, ok = r.ByAddress(common.Address{})
	assert.False(t, ok)

	addrs := r.Addresses()
	require.Len(t, addrs, 3)
	assert.Equal(t, common.HexToAddress("0x1955E7bFed7499c0a71394976Beb8d8AC33ABcd7"), addrs[0])
}

func TestProjectTupleDecodesIntoStruct(t *testing.T) {
	r := MustLoad()
	d, _ := r.Get(ProjectListing)
	method := d.ABI.Methods["projects"]

	want := Project{
		Id:                  big.NewInt(3),
		Name:                "Reforest",
		Description:         "Plant trees",
		Owner:               common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		SubscriptionEndTime: big.NewInt(1700000000),
		IsListed:            true,
		TotalDonations:      big.NewInt(5e17),
	}
	packed, err := method.Outputs.Pack(want)
	require.NoError(t, err)

	out, err := method.Outputs.Unpack(packed)
	require.NoError(t, err)
	got := *abi.ConvertType(out[0], new(Project)).(*Project)
	assert.Equal(t, want, got)
}
