package task

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/blues/rosca/internal/database"
	"github.com/blues/rosca/internal/logic"
	"github.com/blues/rosca/internal/model"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), database.Config())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

type fakeReceipts map[common.Hash]*types.Receipt

func (f fakeReceipts) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	if hash == common.HexToHash("0xbad") {
		return nil, errors.New("connection reset")
	}
	r, ok := f[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func TestReceiptReconcileJob_Run(t *testing.T) {
	db := newTestDB(t)
	old := fixedNow.Add(-10 * time.Minute)
	seed := []model.TxRecordModel{
		{Action: logic.ActionContribute, Subject: "1", TxHash: common.HexToHash("0x01").Hex(), Status: model.TxStatusPending, CreatedAt: old},
		{Action: logic.ActionJoinGroup, Subject: "2", TxHash: common.HexToHash("0x02").Hex(), Status: model.TxStatusPending, CreatedAt: old},
		{Action: logic.ActionClaimPayout, Subject: "3", TxHash: common.HexToHash("0x03").Hex(), Status: model.TxStatusPending, CreatedAt: old},
		{Action: logic.ActionPurchase, Subject: "4", TxHash: common.HexToHash("0xbad").Hex(), Status: model.TxStatusPending, CreatedAt: old},
		{Action: logic.ActionContribute, Subject: "5", TxHash: common.HexToHash("0x05").Hex(), Status: model.TxStatusPending, CreatedAt: fixedNow.Add(-time.Second)},
	}
	for i := range seed {
		seed[i].Account = "0x00000000000000000000000000000000000000a1"
		require.NoError(t, db.Create(&seed[i]).Error)
	}

	receipts := fakeReceipts{
		common.HexToHash("0x01"): {Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(40)},
		common.HexToHash("0x03"): {Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(41)},
		common.HexToHash("0x05"): {Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(42)},
	}
	records := logic.NewTxRecordLogic(db, common.HexToAddress("0xa1"))
	job := NewReceiptReconcileJob(receipts, records, time.Minute, 2*time.Minute)
	job.now = func() time.Time { return fixedNow }

	resolved, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, resolved)

	statusOf := func(hash string) model.TxStatus {
		r, err := records.GetByHash(hash)
		require.NoError(t, err)
		return r.Status
	}
	assert.Equal(t, model.TxStatusSuccess, statusOf("0x01"))
	assert.Equal(t, model.TxStatusPending, statusOf("0x02"))
	assert.Equal(t, model.TxStatusFailed, statusOf("0x03"))
	assert.Equal(t, model.TxStatusPending, statusOf("0xbad"))
	// 未超过回执等待时间的交易不参与对账
	assert.Equal(t, model.TxStatusPending, statusOf("0x05"))

	r, err := records.GetByHash("0x01")
	require.NoError(t, err)
	assert.Equal(t, int64(40), r.BlockNum)
}

func TestEventSyncJob_WithEventLogic(t *testing.T) {
	db := newTestDB(t)
	events := logic.NewEventLogic(db)

	reader := &fakeReader{head: 300, logs: []types.Log{
		newLog(savingsAddr, topicJoined, 150, 0),
		newLog(savingsAddr, topicJoined, 250, 3),
	}}
	job := NewEventSyncJob(reader, testSources(), events, time.Minute, 100, 2)
	require.NoError(t, job.Run(context.Background()))

	list, total, err := events.ListGroupEvents(1, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	last, ok, err := events.LastSyncedBlock(eventCursor)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(300), last)
}
