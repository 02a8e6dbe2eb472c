package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"dscvault/crypto"
	"dscvault/native/collateral"
	"dscvault/oracle"
	"dscvault/state"
	"dscvault/storage"
	"dscvault/token"
)

var testAsset = ethcommon.HexToAddress("0x00000000000000000000000000000000000000aa")

func makeAddress(t *testing.T, seed byte) crypto.Address {
	t.Helper()
	buf := make([]byte, 20)
	for i := range buf {
		buf[i] = seed
	}
	return crypto.NewAddress(crypto.DSCPrefix, buf)
}

func units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

type rpcFixture struct {
	server     *Server
	feed       *oracle.StaticFeed
	collateral *token.Handle
	debt       *token.Handle
	user       crypto.Address
}

func newRPCFixture(t *testing.T) *rpcFixture {
	t.Helper()
	module := makeAddress(t, 0xee)
	user := makeAddress(t, 0x01)

	feed := oracle.NewStaticFeed(big.NewInt(2000_0000_0000), 8)

	debtLedger := token.NewLedger("DSC")
	debtHandle := token.Bind(debtLedger, module)

	engine, err := collateral.NewEngine(
		module,
		[]ethcommon.Address{testAsset},
		[]oracle.Feed{feed},
		debtHandle,
		collateral.DefaultRiskParameters(),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	engine.SetState(state.NewLedger(storage.NewMemDB()))

	assetLedger := token.NewLedger("WETH")
	assetHandle := token.Bind(assetLedger, module)
	directory := token.NewDirectory()
	directory.Register(testAsset, assetHandle)
	engine.SetTokenSource(directory)

	if !assetLedger.Mint(user, units(100)) {
		t.Fatalf("seed user balance")
	}

	server := NewServer(engine, nil, "")
	server.authToken = "test-token"
	return &rpcFixture{
		server:     server,
		feed:       feed,
		collateral: assetHandle,
		debt:       debtHandle,
		user:       user,
	}
}

func (f *rpcFixture) call(t *testing.T, authed bool, method string, params ...interface{}) *RPCResponse {
	t.Helper()
	raw := make([]json.RawMessage, len(params))
	for i, p := range params {
		encoded, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("marshal param: %v", err)
		}
		raw[i] = encoded
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: raw, ID: 1})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	if authed {
		req.Header.Set("Authorization", "Bearer test-token")
	}
	rec := httptest.NewRecorder()
	f.server.handle(rec, req)
	resp := &RPCResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), resp); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return resp
}

func TestHandleRejectsInvalidJSON(t *testing.T) {
	f := newRPCFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	f.server.handle(rec, req)
	resp := &RPCResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("expected parse error, got %+v", resp.Error)
	}
}

func TestHandleRejectsUnknownMethod(t *testing.T) {
	f := newRPCFixture(t)
	resp := f.call(t, false, "collateral_unknown")
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", resp.Error)
	}
}

func TestMutatingMethodsRequireAuth(t *testing.T) {
	f := newRPCFixture(t)
	resp := f.call(t, false, "collateral_deposit", map[string]string{
		"from":   f.user.String(),
		"asset":  testAsset.Hex(),
		"amount": units(1).String(),
	})
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized, got %+v", resp.Error)
	}
}

func TestDepositMintAndQueryFlow(t *testing.T) {
	f := newRPCFixture(t)

	resp := f.call(t, true, "collateral_deposit", map[string]string{
		"from":   f.user.String(),
		"asset":  testAsset.Hex(),
		"amount": units(10).String(),
	})
	if resp.Error != nil {
		t.Fatalf("deposit failed: %+v", resp.Error)
	}

	resp = f.call(t, true, "collateral_mint", map[string]string{
		"from":   f.user.String(),
		"amount": units(5000).String(),
	})
	if resp.Error != nil {
		t.Fatalf("mint failed: %+v", resp.Error)
	}

	resp = f.call(t, false, "collateral_getAccount", f.user.String())
	if resp.Error != nil {
		t.Fatalf("getAccount failed: %+v", resp.Error)
	}
	payload, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("re-marshal result: %v", err)
	}
	var account collateralAccountResult
	if err := json.Unmarshal(payload, &account); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if account.Debt != units(5000).String() {
		t.Fatalf("unexpected debt %s", account.Debt)
	}
	if account.CollateralValue != units(20000).String() {
		t.Fatalf("unexpected collateral value %s", account.CollateralValue)
	}
	// 20000 * 50% / 5000 = 2.0
	if account.HealthFactor != units(2).String() {
		t.Fatalf("unexpected health factor %s", account.HealthFactor)
	}
}

func TestMintBeyondCapacityReportsHealthFactor(t *testing.T) {
	f := newRPCFixture(t)

	if resp := f.call(t, true, "collateral_deposit", map[string]string{
		"from":   f.user.String(),
		"asset":  testAsset.Hex(),
		"amount": units(10).String(),
	}); resp.Error != nil {
		t.Fatalf("deposit failed: %+v", resp.Error)
	}

	resp := f.call(t, true, "collateral_mint", map[string]string{
		"from":   f.user.String(),
		"amount": units(10001).String(),
	})
	if resp.Error == nil || resp.Error.Code != codeServerError {
		t.Fatalf("expected solvency rejection, got %+v", resp.Error)
	}
	data, ok := resp.Error.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("expected health factor data, got %T", resp.Error.Data)
	}
	if _, ok := data["healthFactor"]; !ok {
		t.Fatalf("missing healthFactor in error data: %v", data)
	}
}

func TestLiquidateHealthyTargetConflicts(t *testing.T) {
	f := newRPCFixture(t)
	liquidator := makeAddress(t, 0x02)

	if resp := f.call(t, true, "collateral_depositAndMint", map[string]string{
		"from":       f.user.String(),
		"asset":      testAsset.Hex(),
		"quantity":   units(10).String(),
		"debtAmount": units(5000).String(),
	}); resp.Error != nil {
		t.Fatalf("depositAndMint failed: %+v", resp.Error)
	}

	resp := f.call(t, true, "collateral_liquidate", map[string]string{
		"liquidator":  liquidator.String(),
		"asset":       testAsset.Hex(),
		"target":      f.user.String(),
		"debtToCover": units(1000).String(),
	})
	if resp.Error == nil {
		t.Fatalf("expected liquidation rejection for healthy target")
	}
	if !strings.Contains(resp.Error.Message, "health factor") {
		t.Fatalf("unexpected error message %q", resp.Error.Message)
	}
}

func TestInvalidParamsRejected(t *testing.T) {
	f := newRPCFixture(t)
	cases := []struct {
		name   string
		method string
		params map[string]string
	}{
		{"bad address", "collateral_deposit", map[string]string{
			"from": "not-bech32", "asset": testAsset.Hex(), "amount": "1",
		}},
		{"bad asset", "collateral_deposit", map[string]string{
			"from": f.user.String(), "asset": "zzz", "amount": "1",
		}},
		{"zero amount", "collateral_deposit", map[string]string{
			"from": f.user.String(), "asset": testAsset.Hex(), "amount": "0",
		}},
		{"non numeric amount", "collateral_mint", map[string]string{
			"from": f.user.String(), "amount": "ten",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.call(t, true, tc.method, tc.params)
			if resp.Error == nil || resp.Error.Code != codeInvalidParams {
				t.Fatalf("expected invalid params, got %+v", resp.Error)
			}
		})
	}
}

func TestValuationQueries(t *testing.T) {
	f := newRPCFixture(t)

	resp := f.call(t, false, "collateral_getValue", map[string]string{
		"asset":  testAsset.Hex(),
		"amount": units(10).String(),
	})
	if resp.Error != nil {
		t.Fatalf("getValue failed: %+v", resp.Error)
	}
	payload, _ := json.Marshal(resp.Result)
	var value collateralValueResult
	if err := json.Unmarshal(payload, &value); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if value.Value != units(20000).String() {
		t.Fatalf("unexpected value %s", value.Value)
	}

	resp = f.call(t, false, "collateral_getQuantityFromValue", map[string]string{
		"asset":  testAsset.Hex(),
		"amount": units(20000).String(),
	})
	if resp.Error != nil {
		t.Fatalf("getQuantityFromValue failed: %+v", resp.Error)
	}
	payload, _ = json.Marshal(resp.Result)
	var qty collateralQuantityResult
	if err := json.Unmarshal(payload, &qty); err != nil {
		t.Fatalf("decode quantity: %v", err)
	}
	if qty.Quantity != units(10).String() {
		t.Fatalf("unexpected quantity %s", qty.Quantity)
	}
}

func TestHealthzRoute(t *testing.T) {
	f := newRPCFixture(t)
	ts := httptest.NewServer(f.server.Router())
	defer ts.Close()

	resp, err := http.Get(fmt.Sprintf("%s/healthz", ts.URL))
	if err != nil {
		t.Fatalf("healthz request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}
