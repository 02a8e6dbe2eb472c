package rpc

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"dscvault/crypto"
	"dscvault/native/collateral"
	nativecommon "dscvault/native/common"
)

type collateralAssetParams struct {
	From   string `json:"from"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type collateralAmountParams struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type collateralComboParams struct {
	From       string `json:"from"`
	Asset      string `json:"asset"`
	Quantity   string `json:"quantity"`
	DebtAmount string `json:"debtAmount"`
}

type collateralLiquidateParams struct {
	Liquidator  string `json:"liquidator"`
	Asset       string `json:"asset"`
	Target      string `json:"target"`
	DebtToCover string `json:"debtToCover"`
}

type collateralAccountResult struct {
	Address         string `json:"address"`
	Debt            string `json:"debt"`
	CollateralValue string `json:"collateralValue"`
	HealthFactor    string `json:"healthFactor"`
}

type collateralTxResult struct {
	Status string `json:"status"`
}

type collateralLiquidateResult struct {
	Status     string `json:"status"`
	SeizedQty  string `json:"seizedQty"`
	Asset      string `json:"asset"`
	Liquidator string `json:"liquidator"`
	Target     string `json:"target"`
}

type collateralValueResult struct {
	Asset string `json:"asset"`
	Value string `json:"value"`
}

type collateralQuantityResult struct {
	Asset    string `json:"asset"`
	Quantity string `json:"quantity"`
}

func decodeAsset(value string) (ethcommon.Address, error) {
	trimmed := strings.TrimSpace(value)
	if !ethcommon.IsHexAddress(trimmed) {
		return ethcommon.Address{}, errors.New("invalid asset address")
	}
	return ethcommon.HexToAddress(trimmed), nil
}

func (s *Server) parseAssetParams(w http.ResponseWriter, req *RPCRequest) (crypto.Address, ethcommon.Address, *big.Int, bool) {
	var params collateralAssetParams
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected parameter object", nil)
		return crypto.Address{}, ethcommon.Address{}, nil, false
	}
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return crypto.Address{}, ethcommon.Address{}, nil, false
	}
	from, err := decodeUser(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid from", err.Error())
		return crypto.Address{}, ethcommon.Address{}, nil, false
	}
	asset, err := decodeAsset(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid asset", err.Error())
		return crypto.Address{}, ethcommon.Address{}, nil, false
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return crypto.Address{}, ethcommon.Address{}, nil, false
	}
	return from, asset, amount, true
}

func (s *Server) handleCollateralDeposit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	from, asset, amount, ok := s.parseAssetParams(w, req)
	if !ok {
		return
	}
	if err := s.engine.DepositCollateral(from, asset, amount); err != nil {
		s.writeEngineError(w, req, "collateral_deposit", err)
		return
	}
	s.metrics.ObserveOperation("collateral_deposit", "ok")
	writeResult(w, req.ID, collateralTxResult{Status: "ok"})
}

func (s *Server) handleCollateralRedeem(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	from, asset, amount, ok := s.parseAssetParams(w, req)
	if !ok {
		return
	}
	if err := s.engine.RedeemCollateral(from, asset, amount); err != nil {
		s.writeEngineError(w, req, "collateral_redeem", err)
		return
	}
	s.metrics.ObserveOperation("collateral_redeem", "ok")
	writeResult(w, req.ID, collateralTxResult{Status: "ok"})
}

func (s *Server) handleCollateralMint(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	from, amount, ok := s.parseAmountParams(w, req)
	if !ok {
		return
	}
	if err := s.engine.Mint(from, amount); err != nil {
		s.writeEngineError(w, req, "collateral_mint", err)
		return
	}
	s.metrics.ObserveOperation("collateral_mint", "ok")
	writeResult(w, req.ID, collateralTxResult{Status: "ok"})
}

func (s *Server) handleCollateralBurn(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	from, amount, ok := s.parseAmountParams(w, req)
	if !ok {
		return
	}
	if err := s.engine.Burn(from, amount); err != nil {
		s.writeEngineError(w, req, "collateral_burn", err)
		return
	}
	s.metrics.ObserveOperation("collateral_burn", "ok")
	writeResult(w, req.ID, collateralTxResult{Status: "ok"})
}

func (s *Server) handleCollateralDepositAndMint(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	from, asset, qty, debt, ok := s.parseComboParams(w, req)
	if !ok {
		return
	}
	if err := s.engine.DepositCollateralAndMint(from, asset, qty, debt); err != nil {
		s.writeEngineError(w, req, "collateral_depositAndMint", err)
		return
	}
	s.metrics.ObserveOperation("collateral_depositAndMint", "ok")
	writeResult(w, req.ID, collateralTxResult{Status: "ok"})
}

func (s *Server) handleCollateralRedeemForDebt(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	from, asset, qty, debt, ok := s.parseComboParams(w, req)
	if !ok {
		return
	}
	if err := s.engine.RedeemCollateralForDebt(from, asset, qty, debt); err != nil {
		s.writeEngineError(w, req, "collateral_redeemForDebt", err)
		return
	}
	s.metrics.ObserveOperation("collateral_redeemForDebt", "ok")
	writeResult(w, req.ID, collateralTxResult{Status: "ok"})
}

func (s *Server) handleCollateralLiquidate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected parameter object", nil)
		return
	}
	var params collateralLiquidateParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	liquidator, err := decodeUser(params.Liquidator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid liquidator", err.Error())
		return
	}
	target, err := decodeUser(params.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid target", err.Error())
		return
	}
	asset, err := decodeAsset(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid asset", err.Error())
		return
	}
	cover, err := parseAmount(params.DebtToCover)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	seized, err := s.engine.Liquidate(liquidator, asset, target, cover)
	if err != nil {
		s.writeEngineError(w, req, "collateral_liquidate", err)
		return
	}
	s.metrics.ObserveOperation("collateral_liquidate", "ok")
	coverFloat, _ := new(big.Float).SetInt(cover).Float64()
	s.metrics.ObserveLiquidation(coverFloat)
	writeResult(w, req.ID, collateralLiquidateResult{
		Status:     "ok",
		SeizedQty:  seized.String(),
		Asset:      asset.Hex(),
		Liquidator: params.Liquidator,
		Target:     params.Target,
	})
}

func (s *Server) handleCollateralGetAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	user, ok := s.parseUserParam(w, req)
	if !ok {
		return
	}
	summary, err := s.engine.AccountSummary(user)
	if err != nil {
		s.writeEngineError(w, req, "collateral_getAccount", err)
		return
	}
	hf, err := s.engine.HealthFactor(user)
	if err != nil {
		s.writeEngineError(w, req, "collateral_getAccount", err)
		return
	}
	writeResult(w, req.ID, collateralAccountResult{
		Address:         user.String(),
		Debt:            summary.Debt.String(),
		CollateralValue: summary.CollateralValue.String(),
		HealthFactor:    hf.String(),
	})
}

func (s *Server) handleCollateralGetHealthFactor(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	user, ok := s.parseUserParam(w, req)
	if !ok {
		return
	}
	hf, err := s.engine.HealthFactor(user)
	if err != nil {
		s.writeEngineError(w, req, "collateral_getHealthFactor", err)
		return
	}
	writeResult(w, req.ID, map[string]string{
		"address":      user.String(),
		"healthFactor": hf.String(),
	})
}

func (s *Server) handleCollateralGetCollateral(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected parameter object", nil)
		return
	}
	var params struct {
		Address string `json:"address"`
		Asset   string `json:"asset"`
	}
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	user, err := decodeUser(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	asset, err := decodeAsset(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid asset", err.Error())
		return
	}
	qty, err := s.engine.CollateralOf(user, asset)
	if err != nil {
		s.writeEngineError(w, req, "collateral_getCollateral", err)
		return
	}
	writeResult(w, req.ID, map[string]string{
		"address":  user.String(),
		"asset":    asset.Hex(),
		"quantity": qty.String(),
	})
}

func (s *Server) handleCollateralGetValue(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	asset, amount, ok := s.parseAssetAmountParam(w, req)
	if !ok {
		return
	}
	value, err := s.engine.Valuation().ValueOf(asset, amount)
	if err != nil {
		s.writeEngineError(w, req, "collateral_getValue", err)
		return
	}
	writeResult(w, req.ID, collateralValueResult{Asset: asset.Hex(), Value: value.String()})
}

func (s *Server) handleCollateralGetQuantityFromValue(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	asset, value, ok := s.parseAssetAmountParam(w, req)
	if !ok {
		return
	}
	qty, err := s.engine.Valuation().QuantityFromValue(asset, value)
	if err != nil {
		s.writeEngineError(w, req, "collateral_getQuantityFromValue", err)
		return
	}
	writeResult(w, req.ID, collateralQuantityResult{Asset: asset.Hex(), Quantity: qty.String()})
}

func (s *Server) parseAmountParams(w http.ResponseWriter, req *RPCRequest) (crypto.Address, *big.Int, bool) {
	var params collateralAmountParams
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected parameter object", nil)
		return crypto.Address{}, nil, false
	}
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return crypto.Address{}, nil, false
	}
	from, err := decodeUser(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid from", err.Error())
		return crypto.Address{}, nil, false
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return crypto.Address{}, nil, false
	}
	return from, amount, true
}

func (s *Server) parseComboParams(w http.ResponseWriter, req *RPCRequest) (crypto.Address, ethcommon.Address, *big.Int, *big.Int, bool) {
	var params collateralComboParams
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected parameter object", nil)
		return crypto.Address{}, ethcommon.Address{}, nil, nil, false
	}
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return crypto.Address{}, ethcommon.Address{}, nil, nil, false
	}
	from, err := decodeUser(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid from", err.Error())
		return crypto.Address{}, ethcommon.Address{}, nil, nil, false
	}
	asset, err := decodeAsset(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid asset", err.Error())
		return crypto.Address{}, ethcommon.Address{}, nil, nil, false
	}
	qty, err := parseAmount(params.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return crypto.Address{}, ethcommon.Address{}, nil, nil, false
	}
	debt, err := parseAmount(params.DebtAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return crypto.Address{}, ethcommon.Address{}, nil, nil, false
	}
	return from, asset, qty, debt, true
}

func (s *Server) parseUserParam(w http.ResponseWriter, req *RPCRequest) (crypto.Address, bool) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected address parameter", nil)
		return crypto.Address{}, false
	}
	var addressParam string
	if err := json.Unmarshal(req.Params[0], &addressParam); err != nil {
		var wrapped struct {
			Address string `json:"address"`
		}
		if err := json.Unmarshal(req.Params[0], &wrapped); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address parameter", err.Error())
			return crypto.Address{}, false
		}
		addressParam = wrapped.Address
	}
	user, err := decodeUser(addressParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return crypto.Address{}, false
	}
	return user, true
}

func (s *Server) parseAssetAmountParam(w http.ResponseWriter, req *RPCRequest) (ethcommon.Address, *big.Int, bool) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected parameter object", nil)
		return ethcommon.Address{}, nil, false
	}
	var params struct {
		Asset  string `json:"asset"`
		Amount string `json:"amount"`
	}
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return ethcommon.Address{}, nil, false
	}
	asset, err := decodeAsset(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid asset", err.Error())
		return ethcommon.Address{}, nil, false
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return ethcommon.Address{}, nil, false
	}
	return asset, amount, true
}

// writeEngineError translates engine failures into the JSON-RPC error shape.
// Validation-style failures map to invalid params, solvency failures report
// the offending health factor in the error data.
func (s *Server) writeEngineError(w http.ResponseWriter, req *RPCRequest, method string, err error) {
	s.metrics.ObserveOperation(method, "error")
	var hfErr *collateral.HealthFactorError
	switch {
	case errors.As(err, &hfErr):
		s.metrics.IncSolvencyRejection(method)
		writeError(w, http.StatusConflict, req.ID, codeServerError, err.Error(), map[string]string{
			"healthFactor": hfErr.Actual.String(),
		})
	case errors.Is(err, collateral.ErrZeroAmount),
		errors.Is(err, collateral.ErrAssetNotAccepted):
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
	case errors.Is(err, collateral.ErrHealthFactorOk),
		errors.Is(err, collateral.ErrInsufficientCollateral),
		errors.Is(err, collateral.ErrDebtUnderflow),
		errors.Is(err, collateral.ErrHealthFactorWorsened):
		writeError(w, http.StatusConflict, req.ID, codeServerError, err.Error(), nil)
	case errors.Is(err, nativecommon.ErrModulePaused):
		writeError(w, http.StatusServiceUnavailable, req.ID, codeServerError, err.Error(), nil)
	default:
		s.logger.Error("collateral operation failed", "method", method, "error", err)
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error(), nil)
	}
}
