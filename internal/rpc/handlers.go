package rpc

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/stackmint/stackmint-core/internal/ledger"
	klog "github.com/stackmint/stackmint-core/internal/log"
	"github.com/stackmint/stackmint-core/pkg/tx"
	"github.com/stackmint/stackmint-core/pkg/types"
)

// ledgerError maps ledger sentinels onto JSON-RPC error codes.
func ledgerError(err error) *Error {
	switch {
	case errors.Is(err, ledger.ErrTokenNotFound),
		errors.Is(err, ledger.ErrUserNotFound),
		errors.Is(err, ledger.ErrWithdrawalNotFound):
		return &Error{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrOversell):
		return &Error{Code: CodeInsufficient, Message: err.Error()}
	case errors.Is(err, ledger.ErrConcurrentModification):
		return &Error{Code: CodeConflict, Message: err.Error()}
	case errors.Is(err, ledger.ErrInvalidInput),
		errors.Is(err, ledger.ErrNotPending),
		errors.Is(err, ledger.ErrTokenExists):
		return &Error{Code: CodeInvalidParams, Message: err.Error()}
	default:
		return &Error{Code: CodeInternalError, Message: err.Error()}
	}
}

// ── Token handlers ──────────────────────────────────────────────────────

func (s *Server) handleTokenRegister(req *Request) (interface{}, *Error) {
	var p TokenRegisterParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	tok, err := s.ledger.RegisterToken(ledger.Token{
		Ticker:      p.Ticker,
		Name:        p.Name,
		TotalSupply: p.TotalSupply,
		Decimals:    p.Decimals,
		Blockchain:  p.Blockchain,
		PriceUsd:    p.PriceUsd,
	})
	if err != nil {
		return nil, ledgerError(err)
	}
	return tok, nil
}

func (s *Server) handleTokenGetInfo(req *Request) (interface{}, *Error) {
	var p TokenIDParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	tok, err := s.ledger.GetToken(p.TokenID)
	if err != nil {
		return nil, ledgerError(err)
	}
	return tok, nil
}

func (s *Server) handleTokenList(_ *Request) (interface{}, *Error) {
	tokens, err := s.ledger.ListTokens()
	if err != nil {
		return nil, ledgerError(err)
	}
	return TokenListResult{Count: len(tokens), Tokens: tokens}, nil
}

// ── Ledger handlers ─────────────────────────────────────────────────────

func (s *Server) handleGetBalance(req *Request) (interface{}, *Error) {
	var p BalanceParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	bal, err := s.ledger.GetBalance(p.TokenID, p.UserID)
	if err != nil {
		return nil, ledgerError(err)
	}
	available, err := s.ledger.AvailableBalance(p.TokenID, p.UserID)
	if err != nil {
		return nil, ledgerError(err)
	}
	return BalanceResult{Balance: *bal, Available: available}, nil
}

func (s *Server) handleGetBalances(req *Request) (interface{}, *Error) {
	var p UserParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	balances, err := s.ledger.GetBalances(p.UserID)
	if err != nil {
		return nil, ledgerError(err)
	}
	return BalancesResult{UserID: p.UserID, Balances: balances}, nil
}

func (s *Server) handleGetPortfolio(req *Request) (interface{}, *Error) {
	var p PortfolioParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	rate := p.SecondaryRate
	if rate == 0 {
		rate = s.buildCfg.SecondaryRate
	}
	portfolio, err := s.ledger.GetPortfolio(p.UserID, rate)
	if err != nil {
		return nil, ledgerError(err)
	}
	return portfolio, nil
}

func (s *Server) handleGetHolders(req *Request) (interface{}, *Error) {
	var p HoldersParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	holders, err := s.ledger.GetHolders(p.TokenID, p.MinBalance)
	if err != nil {
		return nil, ledgerError(err)
	}
	return HoldersResult{TokenID: p.TokenID, Count: len(holders), Holders: holders}, nil
}

func (s *Server) handleRecordTransaction(req *Request) (interface{}, *Error) {
	var p RecordParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	rec, err := s.ledger.RecordTransaction(ledger.RecordInput{
		Type:     ledger.RecordType(p.Type),
		TokenID:  p.TokenID,
		Amount:   p.Amount,
		FromUser: p.FromUser,
		ToUser:   p.ToUser,
		Address:  p.Address,
		Txid:     p.Txid,
		Verified: p.Verified,
	})
	if err != nil {
		return nil, ledgerError(err)
	}
	return rec, nil
}

func (s *Server) handleRecordPurchase(req *Request) (interface{}, *Error) {
	var p PurchaseParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	pur, err := s.ledger.RecordPurchase(ledger.PurchaseInput{
		UserID:        p.UserID,
		TokenID:       p.TokenID,
		Amount:        p.Amount,
		UsdValue:      p.UsdValue,
		PaymentMethod: p.PaymentMethod,
		Currency:      p.Currency,
		Txid:          p.Txid,
	})
	if err != nil {
		return nil, ledgerError(err)
	}
	return pur, nil
}

func (s *Server) handleTransfer(req *Request) (interface{}, *Error) {
	var p TransferParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	rec, err := s.ledger.Transfer(p.FromUser, p.ToUser, p.TokenID, p.Amount)
	if err != nil {
		return nil, ledgerError(err)
	}
	return rec, nil
}

func (s *Server) handleGetTransactions(req *Request) (interface{}, *Error) {
	var p TransactionsParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}

	q := ledger.RecordQuery{
		UserID:  p.UserID,
		TokenID: p.TokenID,
		Offset:  p.Offset,
		Limit:   p.Limit,
	}
	for _, t := range p.Types {
		q.Types = append(q.Types, ledger.RecordType(t))
	}
	if p.After != "" {
		ts, err := time.Parse(time.RFC3339, p.After)
		if err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid after timestamp: %v", err)}
		}
		q.After = ts
	}
	if p.Before != "" {
		ts, err := time.Parse(time.RFC3339, p.Before)
		if err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid before timestamp: %v", err)}
		}
		q.Before = ts
	}

	records, err := s.ledger.GetTransactions(q)
	if err != nil {
		return nil, ledgerError(err)
	}
	return TransactionsResult{Count: len(records), Records: records}, nil
}

func (s *Server) handleGetPendingDividends(req *Request) (interface{}, *Error) {
	var p DividendsParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	u, err := s.ledger.GetUser(p.User)
	if err != nil {
		return nil, ledgerError(err)
	}
	pending, err := s.ledger.GetPendingDividends(u.ID)
	if err != nil {
		return nil, ledgerError(err)
	}
	return DividendsResult{UserID: u.ID, Pending: pending}, nil
}

// ── Withdrawal handlers ─────────────────────────────────────────────────

func (s *Server) handleWithdrawalRequest(req *Request) (interface{}, *Error) {
	var p WithdrawalRequestParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	wd, err := s.ledger.RequestWithdrawal(ledger.WithdrawalInput{
		UserID:      p.UserID,
		TokenID:     p.TokenID,
		Amount:      p.Amount,
		Destination: p.Destination,
		Blockchain:  p.Blockchain,
	})
	if err != nil {
		return nil, ledgerError(err)
	}
	return wd, nil
}

func (s *Server) handleWithdrawalConfirm(req *Request) (interface{}, *Error) {
	var p WithdrawalResolveParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	wd, err := s.ledger.ConfirmWithdrawal(p.ID, p.Txid)
	if err != nil {
		return nil, ledgerError(err)
	}
	return wd, nil
}

func (s *Server) handleWithdrawalReject(req *Request) (interface{}, *Error) {
	var p WithdrawalResolveParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	wd, err := s.ledger.RejectWithdrawal(p.ID, p.Reason)
	if err != nil {
		return nil, ledgerError(err)
	}
	return wd, nil
}

func (s *Server) handleWithdrawalFail(req *Request) (interface{}, *Error) {
	var p WithdrawalResolveParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	wd, err := s.ledger.FailWithdrawal(p.ID, p.Reason)
	if err != nil {
		return nil, ledgerError(err)
	}
	return wd, nil
}

func (s *Server) handleWithdrawalListPending(_ *Request) (interface{}, *Error) {
	pending, err := s.ledger.ListPendingWithdrawals()
	if err != nil {
		return nil, ledgerError(err)
	}
	return WithdrawalsResult{Count: len(pending), Requests: pending}, nil
}

// ── Payout builder handlers ─────────────────────────────────────────────

// builderOptions assembles tx.Options from the server defaults and the
// per-request overrides.
func (s *Server) builderOptions(p *PayoutBuildParam) (tx.Options, *Error) {
	opts := tx.Options{
		FeeRate:       s.buildCfg.FeeRate,
		DustThreshold: s.buildCfg.DustThreshold,
		Strategy:      tx.Strategy(s.buildCfg.Strategy),
		ChangeAddress: p.ChangeAddress,
		EnableRBF:     p.EnableRBF,
	}

	netName := p.Network
	if netName == "" {
		netName = s.buildCfg.Network
	}
	if netName != "" {
		net, err := types.NetworkByName(netName)
		if err != nil {
			return tx.Options{}, &Error{Code: CodeInvalidParams, Message: err.Error()}
		}
		opts.Network = net
	}
	if p.FeeRate > 0 {
		opts.FeeRate = p.FeeRate
	}
	if p.Strategy != "" {
		opts.Strategy = tx.Strategy(p.Strategy)
	}
	return opts, nil
}

func (s *Server) handlePayoutBuild(req *Request) (interface{}, *Error) {
	var p PayoutBuildParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if len(p.UTXOs) == 0 {
		return nil, &Error{Code: CodeInvalidParams, Message: "utxos required"}
	}
	if len(p.Outputs) == 0 {
		return nil, &Error{Code: CodeInvalidParams, Message: "outputs required"}
	}

	opts, rpcErr := s.builderOptions(&p)
	if rpcErr != nil {
		return nil, rpcErr
	}
	b := tx.NewBuilder(opts)

	for _, u := range p.UTXOs {
		txid, err := types.HexToHash(u.TxID)
		if err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid utxo txid %q: %v", u.TxID, err)}
		}
		var script []byte
		if u.Script != "" {
			script, err = hex.DecodeString(u.Script)
			if err != nil {
				return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid utxo script: %v", err)}
			}
		}
		b.AddUTXO(tx.UTXO{
			TxID:          txid,
			Vout:          u.Vout,
			Value:         u.Value,
			Script:        script,
			Confirmations: uint64(u.Confirmations),
		})
	}

	for _, out := range p.Outputs {
		if err := b.AddP2PKHOutput(out.Address, out.Amount); err != nil {
			return nil, buildError(err)
		}
	}
	if p.OpReturnData != "" {
		data, err := hex.DecodeString(p.OpReturnData)
		if err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid op_return data: %v", err)}
		}
		if err := b.AddOpReturnOutput(data); err != nil {
			return nil, buildError(err)
		}
	}

	built, err := b.Build()
	if err != nil {
		return nil, buildError(err)
	}

	klog.Builder.Info().
		Str("txid", built.TxID.String()).
		Int("size", built.Size).
		Uint64("fee", built.Fee).
		Msg("payout built")
	return PayoutBuildResult{
		Txid:   built.TxID.String(),
		Raw:    hex.EncodeToString(built.Raw),
		Size:   built.Size,
		Fee:    built.Fee,
		Change: built.Change,
	}, nil
}

// PayoutEstimateParam is used by payout_estimateFee.
type PayoutEstimateParam struct {
	NumInputs  int    `json:"num_inputs"`
	NumOutputs int    `json:"num_outputs"`
	FeeRate    uint64 `json:"fee_rate,omitempty"`
}

// PayoutEstimateResult is returned by payout_estimateFee.
type PayoutEstimateResult struct {
	Size int    `json:"size"`
	Fee  uint64 `json:"fee"`
}

func (s *Server) handlePayoutEstimateFee(req *Request) (interface{}, *Error) {
	var p PayoutEstimateParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	rate := p.FeeRate
	if rate == 0 {
		rate = s.buildCfg.FeeRate
	}
	if rate == 0 {
		rate = tx.DefaultFeeRate
	}
	return PayoutEstimateResult{
		Size: tx.EstimateSize(p.NumInputs, p.NumOutputs),
		Fee:  tx.EstimateFee(p.NumInputs, p.NumOutputs, rate),
	}, nil
}

// buildError maps builder sentinels onto JSON-RPC error codes.
func buildError(err error) *Error {
	switch {
	case errors.Is(err, tx.ErrInsufficientFunds):
		return &Error{Code: CodeInsufficient, Message: err.Error()}
	case errors.Is(err, tx.ErrInvalidAddress), errors.Is(err, tx.ErrNoOutputs):
		return &Error{Code: CodeInvalidParams, Message: err.Error()}
	default:
		return &Error{Code: CodeInternalError, Message: err.Error()}
	}
}

// ── Address tool handlers ───────────────────────────────────────────────

func (s *Server) handleAddressValidate(req *Request) (interface{}, *Error) {
	var p AddressParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := types.DecodeAddress(p.Address)
	if err != nil {
		return AddressValidateResult{Valid: false, Error: err.Error()}, nil
	}

	res := AddressValidateResult{Valid: true}
	for _, net := range []types.Network{types.Mainnet, types.Testnet} {
		if net.IsAddressVersion(addr.Version) {
			res.Network = net.Name
			res.ScriptHash = addr.Version == net.ScriptHashVersion
			break
		}
	}
	return res, nil
}
