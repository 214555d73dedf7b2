package logic

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/blues/rosca/internal/chain"
	"github.com/blues/rosca/internal/chain/chaintest"
	"github.com/blues/rosca/internal/model"
	"github.com/blues/rosca/internal/rosca"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGroupLogic(f *fixture) *GroupLogic {
	l := NewGroupLogic(f.contracts, f.records)
	l.now = func() time.Time { return fixedNow }
	return l
}

func TestGroupLogic_GetGroup(t *testing.T) {
	f := newFixture(t)
	f.savings.Returns("getGroupSummary", groupTuple(groupOpts{active: true, members: 5, recipient: account})...)

	v, err := newGroupLogic(f).GetGroup(context.Background(), 4)
	require.NoError(t, err)

	assert.Equal(t, uint64(4), v.Id)
	assert.Equal(t, rosca.StatusActive, v.Status)
	assert.Equal(t, "5000000", v.ContributionAmount)
	assert.Equal(t, "5.00", v.ContributionDisplay)
	assert.Equal(t, "1d 2h", v.TimeRemaining)
	assert.True(t, v.IsRecipient)
	assert.Equal(t, "bob", v.CurrentRecipientName)
}

func TestGroupLogic_GetGroupNotFound(t *testing.T) {
	f := newFixture(t)
	tuple := groupTuple(groupOpts{})
	tuple[2] = common.Address{}
	f.savings.Returns("getGroupSummary", tuple...)

	_, err := newGroupLogic(f).GetGroup(context.Background(), 77)
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestGroupLogic_Contribute(t *testing.T) {
	f := newFixture(t)
	f.savings.Returns("getGroupSummary", groupTuple(groupOpts{active: true, members: 5})...)
	f.savings.Returns("getContributionStatus", false, false, usdc(5))

	result, err := newGroupLogic(f).Contribute(context.Background(), 4)
	require.NoError(t, err)

	assert.Equal(t, []string{"approve", "contribute"}, f.journal.Methods())
	sent := f.journal.Sent()
	assert.Equal(t, tokenAddr, sent[0].Contract)
	assert.Equal(t, []interface{}{savingsAddr, usdc(5)}, sent[0].Args)
	assert.Equal(t, savingsAddr, sent[1].Contract)
	assert.Equal(t, big.NewInt(4), sent[1].Args[0])

	assert.Equal(t, ActionContribute, result.Action)
	assert.NotEmpty(t, result.ApproveTxHash)
	assert.NotEqual(t, result.ApproveTxHash, result.TxHash)

	records := f.txRecords(t)
	require.Len(t, records, 2)
	assert.Equal(t, ActionApprove, records[0].Action)
	assert.Equal(t, ActionContribute, records[1].Action)
	assert.Equal(t, model.TxStatusSuccess, records[1].Status)
	assert.Equal(t, "4", records[1].Subject)
}

func TestGroupLogic_ContributeRejected(t *testing.T) {
	tests := []struct {
		name   string
		group  groupOpts
		paid   bool
		target error
	}{
		{name: "already contributed", group: groupOpts{active: true}, paid: true, target: ErrAlreadyContributed},
		{name: "inactive group", group: groupOpts{canJoin: true}, target: ErrGroupNotActive},
		{name: "completed group", group: groupOpts{active: true, completed: true}, target: ErrGroupNotActive},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.savings.Returns("getGroupSummary", groupTuple(tc.group)...)
			f.savings.Returns("getContributionStatus", tc.paid, false, usdc(5))

			_, err := newGroupLogic(f).Contribute(context.Background(), 1)
			assert.ErrorIs(t, err, tc.target)
			assert.Empty(t, f.journal.Sent())
		})
	}
}

func TestGroupLogic_ContributeAbortsWhenApproveFails(t *testing.T) {
	f := newFixture(t)
	f.savings.Returns("getGroupSummary", groupTuple(groupOpts{active: true})...)
	f.savings.Returns("getContributionStatus", false, false, usdc(5))
	f.token.FailSend("approve", &chain.TxError{
		Hash:    common.HexToHash("0x01"),
		Method:  "approve",
		Receipt: &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(9)},
		Err:     chain.ErrTxReverted,
	})

	_, err := newGroupLogic(f).Contribute(context.Background(), 1)
	assert.ErrorIs(t, err, chain.ErrTxReverted)
	assert.Equal(t, []string{"approve"}, f.journal.Methods())

	records := f.txRecords(t)
	require.Len(t, records, 1)
	assert.Equal(t, model.TxStatusFailed, records[0].Status)
	assert.Equal(t, int64(9), records[0].BlockNum)
}

func TestGroupLogic_ConcurrentContributeCollapses(t *testing.T) {
	f := newFixture(t)
	f.savings.Returns("getGroupSummary", groupTuple(groupOpts{active: true})...)
	f.savings.Returns("getContributionStatus", false, false, usdc(5))

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.savings.OnSend("contribute", func([]interface{}) (*types.Receipt, error) {
		once.Do(func() { close(started) })
		<-release
		return f.savings.Receipt(nil), nil
	})

	l := newGroupLogic(f)
	results := make([]*TxResult, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r, err := l.Contribute(context.Background(), 3)
		assert.NoError(t, err)
		results[0] = r
	}()
	<-started
	go func() {
		defer wg.Done()
		r, err := l.Contribute(context.Background(), 3)
		assert.NoError(t, err)
		results[1] = r
	}()
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, []string{"approve", "contribute"}, f.journal.Methods())
	assert.Same(t, results[0], results[1])
}

// gatedInvoker 发送交易时等待放行，等待期间 ctx 结束则失败
type gatedInvoker struct {
	*chaintest.Invoker
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (g *gatedInvoker) Send(ctx context.Context, method string, args ...interface{}) (*types.Receipt, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-g.release:
	}
	return g.Invoker.Send(ctx, method, args...)
}

func TestGroupLogic_ContributeOutlivesCancelledCaller(t *testing.T) {
	f := newFixture(t)
	f.savings.Returns("getGroupSummary", groupTuple(groupOpts{active: true})...)
	f.savings.Returns("getContributionStatus", false, false, usdc(5))
	gated := &gatedInvoker{Invoker: f.savings, started: make(chan struct{}), release: make(chan struct{})}
	f.contracts.Savings = rosca.NewSavings(gated)
	l := newGroupLogic(f)

	firstCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := make(chan error, 1)
	go func() {
		_, err := l.Contribute(firstCtx, 3)
		first <- err
	}()
	<-gated.started

	second := make(chan *TxResult, 1)
	go func() {
		r, err := l.Contribute(context.Background(), 3)
		assert.NoError(t, err)
		second <- r
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(gated.release)
	result := <-second
	require.NotNil(t, result)
	assert.Equal(t, ActionContribute, result.Action)

	records := f.txRecords(t)
	require.Len(t, records, 2)
	assert.Equal(t, ActionContribute, records[1].Action)
	assert.Equal(t, model.TxStatusSuccess, records[1].Status)
	assert.Equal(t, result.TxHash, records[1].TxHash)
}

func TestGroupLogic_ClaimPayout(t *testing.T) {
	f := newFixture(t)
	f.savings.Returns("getGroupSummary", groupTuple(groupOpts{active: true, recipient: stranger})...)
	l := newGroupLogic(f)

	_, err := l.ClaimPayout(context.Background(), 2)
	assert.ErrorIs(t, err, ErrNotRecipient)
	assert.Empty(t, f.journal.Sent())

	f.savings.Returns("getGroupSummary", groupTuple(groupOpts{active: true, recipient: account})...)
	result, err := l.ClaimPayout(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.GroupId)
	assert.Equal(t, []string{"claimPayout"}, f.journal.Methods())
}

func TestGroupLogic_JoinGroup(t *testing.T) {
	f := newFixture(t)
	l := newGroupLogic(f)

	f.savings.Returns("getGroupSummary", groupTuple(groupOpts{canJoin: true, members: 5})...)
	_, err := l.JoinGroup(context.Background(), 6)
	assert.ErrorIs(t, err, ErrGroupNotJoinable)

	f.savings.Returns("getGroupSummary", groupTuple(groupOpts{canJoin: true, members: 2})...)
	result, err := l.JoinGroup(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, ActionJoinGroup, result.Action)
	assert.Equal(t, []string{"joinGroup"}, f.journal.Methods())
}

func TestGroupLogic_GetStats(t *testing.T) {
	f := newFixture(t)
	f.savings.Returns("groupCount", big.NewInt(4))
	f.savings.Returns("getUserGroups", []*big.Int{big.NewInt(1), big.NewInt(3)})
	f.savings.OnCall("getGroupSummary", func(args []interface{}) ([]interface{}, error) {
		switch args[0].(*big.Int).Int64() {
		case 1:
			return groupTuple(groupOpts{active: true}), nil
		case 2:
			return groupTuple(groupOpts{completed: true}), nil
		case 3:
			return groupTuple(groupOpts{canJoin: true, members: 1}), nil
		default:
			missing := groupTuple(groupOpts{})
			missing[2] = common.Address{}
			return missing, nil
		}
	})

	stats, err := newGroupLogic(f).GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &GroupStats{TotalGroups: 4, ActiveGroups: 1, CompletedGroups: 1, OpenGroups: 1, MyGroups: 2}, stats)
}

func TestGroupLogic_ListMyGroupsPropagatesErrors(t *testing.T) {
	f := newFixture(t)
	f.savings.Returns("getUserGroups", []*big.Int{big.NewInt(1)})
	f.savings.OnCall("getGroupSummary", func([]interface{}) ([]interface{}, error) {
		return nil, errors.New("rpc unavailable")
	})

	_, err := newGroupLogic(f).ListMyGroups(context.Background())
	assert.EqualError(t, err, "rpc unavailable")
}

func TestGroupLogic_ContributionStatus(t *testing.T) {
	f := newFixture(t)
	f.savings.Returns("getGroupSummary", groupTuple(groupOpts{active: true})...)
	f.savings.Returns("getContributionStatus", false, true, big.NewInt(0))

	v, err := newGroupLogic(f).ContributionStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, rosca.ContributionLate, v.Status)
	assert.Equal(t, "5.00", v.AmountDisplay)
}

func TestGroupLogic_CreateGroup(t *testing.T) {
	valid := CreateGroupInput{
		Name:               " Circle ",
		Token:              tokenAddr.Hex(),
		ContributionAmount: "12.5",
		IntervalDays:       30,
		MaxMembers:         6,
	}

	invalid := map[string]func(in *CreateGroupInput){
		"empty name":      func(in *CreateGroupInput) { in.Name = "  " },
		"bad token":       func(in *CreateGroupInput) { in.Token = "usdc" },
		"one member":      func(in *CreateGroupInput) { in.MaxMembers = 1 },
		"no interval":     func(in *CreateGroupInput) { in.IntervalDays = 0 },
		"zero amount":     func(in *CreateGroupInput) { in.ContributionAmount = "0" },
		"too precise":     func(in *CreateGroupInput) { in.ContributionAmount = "1.0000001" },
		"negative amount": func(in *CreateGroupInput) { in.ContributionAmount = "-3" },
	}
	for name, mutate := range invalid {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			in := valid
			mutate(&in)
			_, err := newGroupLogic(f).CreateGroup(context.Background(), in)
			assert.ErrorIs(t, err, ErrInvalidParam)
			assert.Empty(t, f.journal.Sent())
		})
	}

	t.Run("created", func(t *testing.T) {
		f := newFixture(t)
		f.savings.OnSend("createGroup", func(args []interface{}) (*types.Receipt, error) {
			assert.Equal(t, "Circle", args[0])
			assert.Equal(t, big.NewInt(12_500_000), args[3])
			assert.Equal(t, big.NewInt(30*24*3600), args[4])
			return f.savings.Receipt(map[string]interface{}{"eventType": rosca.EventGroupCreated, "groupId": big.NewInt(11)}), nil
		})

		result, err := newGroupLogic(f).CreateGroup(context.Background(), valid)
		require.NoError(t, err)
		assert.Equal(t, uint64(11), result.GroupId)
		assert.Len(t, f.txRecords(t), 1)
	})
}
