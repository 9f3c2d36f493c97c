package ws

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AlexNa-Holdings/kobonest/bus"
	"github.com/AlexNa-Holdings/kobonest/deposit"
	"github.com/rs/zerolog/log"
)

var errNoSnapshot = errors.New("position not available yet")

type depositStatus struct {
	Status string `json:"status"`
	Busy   bool   `json:"busy"`
	Hash   string `json:"hash,omitempty"`
	Error  string `json:"error,omitempty"`
}

func statusView(st bus.B_DepositStatus) depositStatus {
	return depositStatus{Status: st.Status, Busy: st.Busy, Hash: st.Hash, Error: st.Error}
}

type configView struct {
	ChainID           uint64 `json:"chainId"`
	VaultAddress      string `json:"vaultAddress"`
	NairaTokenAddress string `json:"nairaTokenAddress"`
	UsdcTokenAddress  string `json:"usdcTokenAddress"`
	AavePoolAddress   string `json:"aavePoolAddress"`
	UseMockAave       bool   `json:"useMockAave"`
	NairaPerUsdc      int64  `json:"nairaPerUsdc"`
	Ready             bool   `json:"ready"`
}

func (s *Server) handleKoboMethod(ctx context.Context, req RPCRequest, con *ConContext, res *RPCResponse) {
	method := strings.TrimPrefix(req.Method, "kobo_")
	var err error

	switch method {
	case "position":
		err = s.getPosition(res)
	case "activity":
		err = s.getActivity(res)
	case "config":
		s.getConfig(res)
	case "deposit":
		err = s.submitDeposit(ctx, req, res)
	case "subscribe":
		err = subscribe(req, con, res)
	case "unsubscribe":
		err = unsubscribe(req, con, res)
	default:
		log.Error().Msgf("Method not found: %v", req.Method)
		res.Error = &RPCError{
			Code:    -32601,
			Message: "Method not found",
		}
		return
	}

	if err != nil {
		log.Error().Err(err).Msgf("Error handling method: %v", req.Method)
		res.Error = &RPCError{
			Code:    4000,
			Message: err.Error(),
		}
	}
}

func (s *Server) getPosition(res *RPCResponse) error {
	snap := s.position.Snapshot()
	if snap == nil {
		return errNoSnapshot
	}
	res.Result = snap.View()
	return nil
}

func (s *Server) getActivity(res *RPCResponse) error {
	snap := s.position.Snapshot()
	if snap == nil {
		return errNoSnapshot
	}
	res.Result = snap.ActivityViews()
	return nil
}

func (s *Server) getConfig(res *RPCResponse) {
	c := s.cfg
	res.Result = configView{
		ChainID:           c.TargetChainID,
		VaultAddress:      c.VaultAddress,
		NairaTokenAddress: c.NairaTokenAddress,
		UsdcTokenAddress:  c.UsdcTokenAddress,
		AavePoolAddress:   c.AavePoolAddress,
		UseMockAave:       c.UseMockAave,
		NairaPerUsdc:      c.NairaPerUsdc,
		Ready:             c.Contracts().Ready(),
	}
}

func (s *Server) submitDeposit(ctx context.Context, req RPCRequest, res *RPCResponse) error {
	if s.deposit == nil {
		return deposit.ErrNotConnected
	}

	params, ok := req.Params.([]any)
	if !ok || len(params) < 1 {
		return fmt.Errorf("params must be [amount]")
	}
	amount, ok := params[0].(string)
	if !ok {
		return fmt.Errorf("amount must be a string")
	}

	if err := s.deposit.Deposit(ctx, amount); err != nil {
		return err
	}
	res.Result = statusView(s.deposit.Status())
	return nil
}

func subscribe(req RPCRequest, con *ConContext, res *RPCResponse) error {
	params, ok := req.Params.([]any)
	if !ok {
		return fmt.Errorf("params must be an array of strings")
	}

	if len(params) < 1 {
		return fmt.Errorf("length of params must be at least 1")
	}

	stype, ok := params[0].(string)
	if !ok {
		return fmt.Errorf("params must be an array of strings")
	}

	switch stype {
	case SUB_POSITION, SUB_DEPOSIT:
		res.Result = con.SM.addSubscription(stype)
	default:
		return fmt.Errorf("invalid subscription type: %s", stype)
	}

	return nil
}

func unsubscribe(req RPCRequest, con *ConContext, res *RPCResponse) error {
	params, ok := req.Params.([]any)
	if !ok {
		return fmt.Errorf("params must be an array of strings")
	}

	removed := false
	for _, p := range params {
		id, ok := p.(string)
		if !ok {
			return fmt.Errorf("params must be an array of strings")
		}
		if con.SM.removeSubscription(id) {
			removed = true
		}
	}

	res.Result = removed
	return nil
}
