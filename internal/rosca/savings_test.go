package rosca

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/blues/rosca/internal/chain"
	"github.com/blues/rosca/internal/chain/chaintest"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	savingsAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	creator     = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	token       = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func summaryTuple() []interface{} {
	return []interface{}{
		"Family circle", "monthly pot", creator, token,
		big.NewInt(5e18), big.NewInt(3), big.NewInt(5), big.NewInt(2), big.NewInt(5),
		true, false, false, big.NewInt(1_700_000_000), creator, "alice",
	}
}

func TestSavings_GroupSummary(t *testing.T) {
	inv := chaintest.NewInvoker(savingsAddr, nil)
	inv.OnCall(methodGroupSummary, func(args []interface{}) ([]interface{}, error) {
		require.Equal(t, big.NewInt(7), args[0])
		return summaryTuple(), nil
	})

	g, err := NewSavings(inv).GroupSummary(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, uint64(7), g.ID)
	assert.Equal(t, "Family circle", g.Name)
	assert.Equal(t, token, g.Token)
	assert.Equal(t, big.NewInt(5e18), g.ContributionAmount)
	assert.Equal(t, uint64(3), g.CurrentMembers)
	assert.Equal(t, uint64(2), g.CurrentRound)
	assert.True(t, g.IsActive)
	assert.Equal(t, time.Unix(1_700_000_000, 0).UTC(), g.NextDeadline)
	assert.Equal(t, "alice", g.CurrentRecipientName)
	assert.Equal(t, StatusActive, g.StatusLabel())
}

func TestSavings_GroupSummaryErrors(t *testing.T) {
	inv := chaintest.NewInvoker(savingsAddr, nil)
	s := NewSavings(inv)

	missing := summaryTuple()
	missing[2] = common.Address{}
	inv.Returns(methodGroupSummary, missing...)
	_, err := s.GroupSummary(context.Background(), 1)
	assert.ErrorIs(t, err, ErrGroupNotFound)

	inv.Returns(methodGroupSummary, "only", "two")
	_, err = s.GroupSummary(context.Background(), 1)
	assert.ErrorIs(t, err, chain.ErrTupleShape)

	inv.OnCall(methodGroupSummary, func([]interface{}) ([]interface{}, error) { return nil, errors.New("rpc down") })
	_, err = s.GroupSummary(context.Background(), 1)
	assert.EqualError(t, err, "rpc down")
}

func TestSavings_InviteCode(t *testing.T) {
	inv := chaintest.NewInvoker(savingsAddr, nil)
	s := NewSavings(inv)

	inv.Returns(methodInviteCodeInfo, "ABC123", big.NewInt(4), big.NewInt(10), big.NewInt(2), big.NewInt(1_800_000_000), true)
	invite, err := s.InviteCode(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, InviteCode{Code: "ABC123", GroupID: 4, MaxUses: 10, CurrentUses: 2, ExpiryTime: 1_800_000_000, IsActive: true}, *invite)

	inv.Returns(methodInviteCodeInfo, "", big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0), false)
	_, err = s.InviteCode(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrInviteNotFound)
}

func TestSavings_ContributionStatusAndGroups(t *testing.T) {
	inv := chaintest.NewInvoker(savingsAddr, nil)
	s := NewSavings(inv)
	ctx := context.Background()

	inv.Returns(methodContributionStatus, true, false, big.NewInt(5))
	status, err := s.ContributionStatus(ctx, 1, creator)
	require.NoError(t, err)
	assert.Equal(t, ContributionPaid, status.Label())

	inv.Returns(methodUserGroups, []*big.Int{big.NewInt(1), big.NewInt(9)})
	ids, err := s.UserGroups(ctx, creator)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 9}, ids)

	inv.Returns(methodGroupCount, big.NewInt(12))
	n, err := s.GroupCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), n)
}

func TestSavings_GenerateInviteCode(t *testing.T) {
	inv := chaintest.NewInvoker(savingsAddr, nil)
	inv.OnSend(methodGenerateInviteCode, func(args []interface{}) (*types.Receipt, error) {
		assert.Equal(t, big.NewInt(3), args[0])
		assert.Equal(t, big.NewInt(10), args[1])
		assert.Equal(t, big.NewInt(1_800_000_000), args[2])
		return inv.Receipt(map[string]interface{}{"eventType": EventInviteCodeCreated, "code": "XYZ789"}), nil
	})

	code, receipt, err := NewSavings(inv).GenerateInviteCode(context.Background(), 3, 10, time.Unix(1_800_000_000, 0))
	require.NoError(t, err)
	assert.Equal(t, "XYZ789", code)
	assert.NotNil(t, receipt)
}

func TestSavings_GenerateInviteCodeWithoutEvent(t *testing.T) {
	inv := chaintest.NewInvoker(savingsAddr, nil)
	_, receipt, err := NewSavings(inv).GenerateInviteCode(context.Background(), 3, 0, time.Time{})
	assert.Error(t, err)
	assert.NotNil(t, receipt)
	assert.Equal(t, big.NewInt(0), inv.Journal.Sent()[0].Args[2])
}

func TestSavings_CreateGroup(t *testing.T) {
	inv := chaintest.NewInvoker(savingsAddr, nil)
	inv.OnSend(methodCreateGroup, func(args []interface{}) (*types.Receipt, error) {
		assert.Equal(t, big.NewInt(int64(30*24*time.Hour/time.Second)), args[4])
		return inv.Receipt(map[string]interface{}{"eventType": EventGroupCreated, "groupId": big.NewInt(21)}), nil
	})

	id, _, err := NewSavings(inv).CreateGroup(context.Background(), CreateGroupParams{
		Name:                 "Circle",
		Token:                token,
		ContributionAmount:   big.NewInt(100),
		ContributionInterval: 30 * 24 * time.Hour,
		MaxMembers:           6,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(21), id)
}
