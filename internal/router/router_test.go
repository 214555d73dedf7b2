package router

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blues/rosca/internal/chain/chaintest"
	"github.com/blues/rosca/internal/chat"
	"github.com/blues/rosca/internal/database"
	"github.com/blues/rosca/internal/handler"
	"github.com/blues/rosca/internal/logic"
	"github.com/blues/rosca/internal/model"
	"github.com/blues/rosca/internal/rosca"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var account = common.HexToAddress("0x00000000000000000000000000000000000000a1")

type fakeHealth struct {
	status string
}

func (f fakeHealth) GetHealthStatus(context.Context) map[string]interface{} {
	return map[string]interface{}{"client_status": f.status}
}

type fakeCompleter struct{}

func (fakeCompleter) Complete(context.Context, []chat.Message) (string, error) { return "ok", nil }
func (fakeCompleter) Model() string                                            { return "test" }

func setupRouter(t *testing.T, health HealthReporter) (*gin.Engine, *gorm.DB, *chaintest.Invoker) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), database.Config())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	savings := chaintest.NewInvoker(common.HexToAddress("0xaa"), nil)
	contracts := &logic.Contracts{Account: account, Savings: rosca.NewSavings(savings)}
	records := logic.NewTxRecordLogic(db, account)

	r := Setup(Handlers{
		Group:       handler.NewGroupHandler(logic.NewGroupLogic(contracts, records), logic.NewEventLogic(db)),
		Invite:      handler.NewInviteHandler(logic.NewInviteLogic(contracts, records)),
		Merchant:    handler.NewMerchantHandler(logic.NewPurchaseLogic(contracts, records)),
		Assistant:   handler.NewAssistantHandler(fakeCompleter{}),
		Transaction: handler.NewTransactionHandler(records),
		Wallet:      handler.NewWalletHandler(logic.NewWalletLogic(contracts, nil)),
	}, health)
	return r, db, savings
}

func TestHealth(t *testing.T) {
	r, _, _ := setupRouter(t, fakeHealth{status: "connected"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, serviceName, body["service"])

	r, _, _ = setupRouter(t, fakeHealth{status: "disconnected"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRequestID(t *testing.T) {
	r, _, _ := setupRouter(t, fakeHealth{status: "connected"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-42")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))
}

func TestRequestIDStoredOnTxRecord(t *testing.T) {
	r, db, savings := setupRouter(t, fakeHealth{status: "connected"})
	savings.Returns("getInviteCodeInfo", "JOIN42", big.NewInt(4), big.NewInt(0), big.NewInt(0), big.NewInt(0), true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invites/JOIN42/redeem", nil)
	req.Header.Set(requestIDHeader, "req-redeem")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var records []model.TxRecordModel
	require.NoError(t, db.Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, "req-redeem", records[0].RequestId)
	assert.Equal(t, logic.ActionRedeemInvite, records[0].Action)
}

func TestCORSPreflight(t *testing.T) {
	r, _, _ := setupRouter(t, fakeHealth{status: "connected"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/v1/groups", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRoutesRegistered(t *testing.T) {
	r, _, _ := setupRouter(t, fakeHealth{status: "connected"})

	routes := make(map[string]bool)
	for _, route := range r.Routes() {
		routes[route.Method+" "+route.Path] = true
	}
	for _, want := range []string{
		"GET /api/v1/wallet",
		"POST /api/v1/groups",
		"GET /api/v1/groups/mine",
		"GET /api/v1/groups/stats",
		"GET /api/v1/groups/:id",
		"POST /api/v1/groups/:id/join",
		"POST /api/v1/groups/:id/contribute",
		"POST /api/v1/groups/:id/payout",
		"GET /api/v1/groups/:id/contribution",
		"GET /api/v1/groups/:id/events",
		"POST /api/v1/groups/:id/invites",
		"GET /api/v1/invites/:code",
		"POST /api/v1/invites/:code/redeem",
		"DELETE /api/v1/invites/:code",
		"GET /api/v1/products",
		"GET /api/v1/products/:id",
		"POST /api/v1/products/:id/purchase",
		"GET /api/v1/installments/mine",
		"POST /api/v1/installments/:id/pay",
		"POST /api/v1/assistant/chat",
		"GET /api/v1/transactions",
		"GET /api/v1/transactions/:hash",
	} {
		assert.True(t, routes[want], want)
	}
}
