package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"vaultd/vault"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Asset     string `json:"asset,omitempty"`
	Requested string `json:"requested,omitempty"`
	Available string `json:"available,omitempty"`
	Limit     string `json:"limit,omitempty"`
}

type amountResponse struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type capsResponse struct {
	Asset       string `json:"asset"`
	DepositCap  string `json:"depositCap"`
	WithdrawCap string `json:"withdrawCap"`
	USDCap      string `json:"usdCap,omitempty"`
}

type operationRequest struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
}

type swapRequest struct {
	Account      string `json:"account"`
	AssetIn      string `json:"assetIn"`
	AssetOut     string `json:"assetOut"`
	AmountIn     string `json:"amountIn"`
	MinAmountOut string `json:"minAmountOut"`
}

type swapResponse struct {
	AssetOut  string `json:"assetOut"`
	AmountOut string `json:"amountOut"`
}

type setCapsRequest struct {
	Caller      string `json:"caller"`
	Asset       string `json:"asset"`
	DepositCap  string `json:"depositCap"`
	WithdrawCap string `json:"withdrawCap"`
}

type setUSDCapRequest struct {
	Caller string `json:"caller"`
	Cap    string `json:"cap"`
}

type rescueRequest struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(chi.URLParam(r, "account"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	asset := chi.URLParam(r, "asset")
	balance, err := s.engine.BalanceOf(account, asset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Asset: vault.NormalizeAsset(asset), Amount: balance.String()})
}

func (s *Server) handleTotal(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	total, err := s.engine.TotalOf(asset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Asset: vault.NormalizeAsset(asset), Amount: total.String()})
}

func (s *Server) handleCaps(w http.ResponseWriter, r *http.Request) {
	asset := vault.NormalizeAsset(chi.URLParam(r, "asset"))
	deposit, withdraw, err := s.engine.Caps(asset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := capsResponse{Asset: asset, DepositCap: deposit.String(), WithdrawCap: withdraw.String()}
	if asset == vault.NativeAsset {
		usdCap, err := s.engine.USDCap()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.USDCap = usdCap.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req operationRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	account, err := parseAddress(req.Account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.Deposit(account, req.Asset, amount); err != nil {
		s.observe("deposit", started, err)
		s.writeError(w, r, err)
		return
	}
	s.observe("deposit", started, nil)
	writeJSON(w, http.StatusOK, amountResponse{Asset: vault.NormalizeAsset(req.Asset), Amount: amount.String()})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req operationRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	account, err := parseAddress(req.Account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.Withdraw(account, req.Asset, amount); err != nil {
		s.observe("withdraw", started, err)
		s.writeError(w, r, err)
		return
	}
	s.observe("withdraw", started, nil)
	writeJSON(w, http.StatusOK, amountResponse{Asset: vault.NormalizeAsset(req.Asset), Amount: amount.String()})
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req swapRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	account, err := parseAddress(req.Account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amountIn, err := parseAmount(req.AmountIn)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	minOut := big.NewInt(0)
	if strings.TrimSpace(req.MinAmountOut) != "" {
		if minOut, err = parseAmount(req.MinAmountOut); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	amountOut, err := s.engine.Swap(account, req.AssetIn, req.AssetOut, amountIn, minOut)
	if err != nil {
		s.observe("swap", started, err)
		s.writeError(w, r, err)
		return
	}
	s.observe("swap", started, nil)
	writeJSON(w, http.StatusOK, swapResponse{
		AssetOut:  vault.NormalizeAsset(req.AssetOut),
		AmountOut: amountOut.String(),
	})
}

func (s *Server) handleSetCaps(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req setCapsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	deposit, err := parseAmount(req.DepositCap)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	withdraw, err := parseAmount(req.WithdrawCap)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.SetAssetCaps(caller, req.Asset, deposit, withdraw); err != nil {
		s.observe("set_caps", started, err)
		s.writeError(w, r, err)
		return
	}
	s.observe("set_caps", started, nil)
	writeJSON(w, http.StatusOK, capsResponse{
		Asset:       vault.NormalizeAsset(req.Asset),
		DepositCap:  deposit.String(),
		WithdrawCap: withdraw.String(),
	})
}

func (s *Server) handleSetUSDCap(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req setUSDCapRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cap, err := parseAmount(req.Cap)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.SetUSDCap(caller, cap); err != nil {
		s.observe("set_usd_cap", started, err)
		s.writeError(w, r, err)
		return
	}
	s.observe("set_usd_cap", started, nil)
	writeJSON(w, http.StatusOK, map[string]string{"usdCap": cap.String()})
}

func (s *Server) handleRescue(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req rescueRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.Rescue(caller, req.Asset, to, amount); err != nil {
		s.observe("rescue", started, err)
		s.writeError(w, r, err)
		return
	}
	s.observe("rescue", started, nil)
	writeJSON(w, http.StatusOK, amountResponse{Asset: vault.NormalizeAsset(req.Asset), Amount: amount.String()})
}

func (s *Server) observe(operation string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		s.metrics.ObserveError(operation, errorCode(err))
	}
	s.metrics.ObserveOperation(operation, outcome, started)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: err.Error(), Code: errorCode(err)}

	var balanceErr *vault.InsufficientBalanceError
	var liquidityErr *vault.InsufficientLiquidityError
	var capErr *vault.CapReachedError
	var limitErr *vault.WithdrawLimitError
	switch {
	case errors.As(err, &balanceErr):
		resp.Asset = balanceErr.Asset
		resp.Requested = balanceErr.Requested.String()
		resp.Available = balanceErr.Available.String()
	case errors.As(err, &liquidityErr):
		resp.Asset = liquidityErr.Asset
		resp.Requested = liquidityErr.Requested.String()
		resp.Available = liquidityErr.Available.String()
	case errors.As(err, &capErr):
		resp.Asset = capErr.Asset
		resp.Requested = capErr.Attempted.String()
		resp.Limit = capErr.Cap.String()
	case errors.As(err, &limitErr):
		resp.Asset = limitErr.Asset
		resp.Requested = limitErr.Requested.String()
		resp.Limit = limitErr.Limit.String()
	}

	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("vault operation failed",
			"requestId", requestIDFrom(r.Context()),
			"code", resp.Code,
			"error", err.Error(),
		)
	}
	writeJSON(w, status, resp)
}

func errorCode(err error) string {
	var balanceErr *vault.InsufficientBalanceError
	var liquidityErr *vault.InsufficientLiquidityError
	var capErr *vault.CapReachedError
	var limitErr *vault.WithdrawLimitError
	var transferErr *vault.TransferFailedError
	switch {
	case errors.Is(err, vault.ErrZeroAmount):
		return "zero_amount"
	case errors.Is(err, vault.ErrInvalidAsset):
		return "invalid_asset"
	case errors.Is(err, vault.ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, vault.ErrReentrantCall):
		return "reentrant_call"
	case errors.Is(err, vault.ErrOracleUnavailable):
		return "oracle_unavailable"
	case errors.Is(err, vault.ErrAmountOverflow):
		return "amount_overflow"
	case errors.As(err, &balanceErr):
		return "insufficient_balance"
	case errors.As(err, &liquidityErr):
		return "insufficient_liquidity"
	case errors.As(err, &capErr):
		return "cap_reached"
	case errors.As(err, &limitErr):
		return "withdraw_limit_exceeded"
	case errors.As(err, &transferErr):
		return "transfer_failed"
	case errors.Is(err, errBadRequest):
		return "bad_request"
	default:
		return "internal"
	}
}

func errorStatus(err error) int {
	switch errorCode(err) {
	case "zero_amount", "invalid_asset", "bad_request":
		return http.StatusBadRequest
	case "access_denied":
		return http.StatusForbidden
	case "reentrant_call":
		return http.StatusConflict
	case "insufficient_balance", "insufficient_liquidity", "cap_reached",
		"withdraw_limit_exceeded", "amount_overflow":
		return http.StatusUnprocessableEntity
	case "oracle_unavailable", "transfer_failed":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func decodeBody(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func parseAddress(value string) ([20]byte, error) {
	trimmed := strings.TrimSpace(value)
	if !ethcommon.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("%w: invalid address %q", errBadRequest, value)
	}
	return ethcommon.HexToAddress(trimmed), nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: invalid amount %q", errBadRequest, value)
	}
	return amount, nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
