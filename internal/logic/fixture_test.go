package logic

import (
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/blues/rosca/internal/chain"
	"github.com/blues/rosca/internal/chain/chaintest"
	"github.com/blues/rosca/internal/database"
	"github.com/blues/rosca/internal/merchant"
	"github.com/blues/rosca/internal/model"
	"github.com/blues/rosca/internal/rosca"
	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	account     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	stranger    = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	savingsAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenAddr   = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	coreAddr    = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	otherToken  = common.HexToAddress("0x00000000000000000000000000000000000000dd")

	fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	db        *gorm.DB
	journal   *chaintest.Journal
	savings   *chaintest.Invoker
	token     *chaintest.Invoker
	core      *chaintest.Invoker
	contracts *Contracts
	records   *TxRecordLogic
}

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

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{db: newTestDB(t), journal: &chaintest.Journal{}}
	f.savings = chaintest.NewInvoker(savingsAddr, f.journal)
	f.token = chaintest.NewInvoker(tokenAddr, f.journal)
	f.core = chaintest.NewInvoker(coreAddr, f.journal)
	f.token.Returns("decimals", uint8(6))

	f.contracts = &Contracts{
		Account:  account,
		Savings:  rosca.NewSavings(f.savings),
		Merchant: merchant.NewMerchantCore(f.core),
		Token:    merchant.NewToken(f.token),
		tokenAt: func(addr common.Address) (chain.Invoker, error) {
			if addr == tokenAddr {
				return f.token, nil
			}
			return nil, fmt.Errorf("no binding for %s", addr.Hex())
		},
	}
	f.records = NewTxRecordLogic(f.db, account)
	return f
}

func (f *fixture) txRecords(t *testing.T) []model.TxRecordModel {
	t.Helper()
	var records []model.TxRecordModel
	require.NoError(t, f.db.Order("id ASC").Find(&records).Error)
	return records
}

// usdc 6位精度的代币数量
func usdc(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000))
}

type groupOpts struct {
	active    bool
	completed bool
	canJoin   bool
	members   int64
	recipient common.Address
}

func groupTuple(o groupOpts) []interface{} {
	return []interface{}{
		"Family circle", "monthly pot", stranger, tokenAddr,
		usdc(5), big.NewInt(o.members), big.NewInt(5), big.NewInt(2), big.NewInt(5),
		o.active, o.completed, o.canJoin, big.NewInt(fixedNow.Add(26 * time.Hour).Unix()), o.recipient, "bob",
	}
}
