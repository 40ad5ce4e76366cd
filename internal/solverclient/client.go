// Package solverclient implements the solver-broadcast client (§4.2.1
// supplement): fanning a published Auction out to every configured solver
// endpoint in parallel, bounded by a per-round deadline, collecting back the
// Solutions they propose. Grounded on the teacher's exchange.Client — a
// resty client wrapped with per-category rate limiting and retry-on-5xx —
// generalized from "one CLOB base URL" to "N independent solver endpoints",
// each with its own backoff state instead of a shared token bucket.
package solverclient

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/cow-autopilot/coordinator/internal/config"
	"github.com/cow-autopilot/coordinator/pkg/types"
)

// wireAuction is the JSON shape posted to each solver.
type wireAuction struct {
	Id     uint64            `json:"id"`
	Block  uint64            `json:"block"`
	Orders []wireOrder       `json:"orders"`
	Prices map[string]string `json:"prices"`
}

type wireOrder struct {
	Uid               string           `json:"uid"`
	SellToken         string           `json:"sellToken"`
	BuyToken          string           `json:"buyToken"`
	SellAmount        string           `json:"sellAmount"`
	BuyAmount         string           `json:"buyAmount"`
	FeeAmount         string           `json:"feeAmount"`
	Kind              string           `json:"kind"`
	PartiallyFillable bool             `json:"partiallyFillable"`
	Class             string           `json:"class"`
	PreInteractions   []wireInteraction `json:"preInteractions,omitempty"`
	PostInteractions  []wireInteraction `json:"postInteractions,omitempty"`
}

// wireInteraction is the JSON shape of a types.Interaction.
type wireInteraction struct {
	Target      string `json:"target"`
	Value       string `json:"value"`
	CallDataHex string `json:"callData"`
}

// wireSolution is the JSON shape a solver responds with.
type wireSolution struct {
	Solver         string            `json:"solver"`
	Trades         []wireTrade       `json:"trades"`
	Interactions   []wireInteraction `json:"interactions,omitempty"`
	ClearingPrices map[string]string `json:"clearingPrices"`
	CalldataHex    string            `json:"calldata"`
	TxOrigin       string            `json:"txOrigin"`
}

type wireTrade struct {
	OrderUid     string `json:"orderUid"`
	Side         string `json:"side"`
	SellToken    string `json:"sellToken"`
	SellAmount   string `json:"sellAmount"`
	BuyToken     string `json:"buyToken"`
	BuyAmount    string `json:"buyAmount"`
	ExecutedSell string `json:"executedSell"`
	ExecutedBuy  string `json:"executedBuy"`
	JitOrder     bool   `json:"jitOrder"`
	JitOwner     string `json:"jitOwner"`
}

// endpoint bundles one configured solver with its own backoff state.
type endpoint struct {
	name    string
	url     string
	backoff *Backoff
}

// Broadcaster posts the current auction to every configured solver in
// parallel and returns the Solutions that responded in time.
type Broadcaster struct {
	http      *resty.Client
	endpoints []*endpoint
	timeout   time.Duration
	nextID    uint64
	idMu      sync.Mutex
	logger    *slog.Logger
}

// New builds a Broadcaster from the solvers section of config.
func New(cfg config.SolversConfig, logger *slog.Logger) *Broadcaster {
	httpClient := resty.New().
		SetTimeout(cfg.BroadcastTimeout).
		SetRetryCount(0). // a slow/erroring solver should just miss this round, not retry into it
		SetHeader("Content-Type", "application/json")

	endpoints := make([]*endpoint, len(cfg.Endpoints))
	for i, e := range cfg.Endpoints {
		endpoints[i] = &endpoint{
			name:    e.Name,
			url:     e.URL,
			backoff: NewBackoff(cfg.RateLimit.Factor, cfg.RateLimit.MinBackoff, cfg.RateLimit.MaxBackoff),
		}
	}

	return &Broadcaster{
		http:      httpClient,
		endpoints: endpoints,
		timeout:   cfg.BroadcastTimeout,
		logger:    logger.With("component", "solverclient"),
	}
}

// HandleAuction implements engine.RoundHandler: every published round is
// broadcast to solvers. Errors are logged, never returned — a solver outage
// must not stall the auction loop.
func (b *Broadcaster) HandleAuction(ctx context.Context, auction types.Auction) {
	solutions, err := b.Broadcast(ctx, auction)
	if err != nil {
		b.logger.Error("broadcast failed", "auction_id", auction.Id, "error", err)
		return
	}
	b.logger.Info("broadcast complete", "auction_id", auction.Id, "solutions", len(solutions))
}

// Broadcast posts auction to every non-backed-off endpoint in parallel,
// bounded by the configured broadcast timeout, and returns every Solution
// that came back well-formed before the deadline.
func (b *Broadcaster) Broadcast(ctx context.Context, auction types.Auction) ([]types.Solution, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	body := toWireAuction(auction)
	now := time.Now()

	var wg sync.WaitGroup
	results := make(chan types.Solution, len(b.endpoints))

	for _, ep := range b.endpoints {
		if ep.backoff.Blocked(now) {
			b.logger.Warn("skipping solver in backoff window", "solver", ep.name)
			continue
		}
		ep := ep
		wg.Add(1)
		go func() {
			defer wg.Done()
			solution, err := b.postOne(ctx, ep, body)
			if err != nil {
				ep.backoff.Failure(now)
				b.logger.Warn("solver request failed", "solver", ep.name, "error", err)
				return
			}
			ep.backoff.Success()
			results <- solution
		}()
	}

	wg.Wait()
	close(results)

	out := make([]types.Solution, 0, len(b.endpoints))
	for s := range results {
		out = append(out, s)
	}
	return out, nil
}

func (b *Broadcaster) postOne(ctx context.Context, ep *endpoint, body wireAuction) (types.Solution, error) {
	var wire wireSolution
	resp, err := b.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&wire).
		Post(ep.url)
	if err != nil {
		return types.Solution{}, fmt.Errorf("solver %s: %w", ep.name, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.Solution{}, fmt.Errorf("solver %s: status %d: %s", ep.name, resp.StatusCode(), resp.String())
	}
	return fromWireSolution(b.nextSolutionID(), wire)
}

func (b *Broadcaster) nextSolutionID() uint64 {
	b.idMu.Lock()
	defer b.idMu.Unlock()
	b.nextID++
	return b.nextID
}

func toWireAuction(a types.Auction) wireAuction {
	orders := make([]wireOrder, len(a.Orders))
	for i, o := range a.Orders {
		orders[i] = wireOrder{
			Uid:               o.Uid.String(),
			SellToken:         o.SellToken.String(),
			BuyToken:          o.BuyToken.String(),
			SellAmount:        o.SellAmount.String(),
			BuyAmount:         o.BuyAmount.String(),
			FeeAmount:         o.FeeAmount.String(),
			Kind:              string(o.Kind),
			PartiallyFillable: o.PartiallyFillable,
			Class:             string(o.Class),
			PreInteractions:   toWireInteractions(o.PreInteractions),
			PostInteractions:  toWireInteractions(o.PostInteractions),
		}
	}
	prices := make(map[string]string, len(a.Prices))
	for tok, p := range a.Prices {
		prices[tok.String()] = p.String()
	}
	return wireAuction{Id: a.Id, Block: a.Block, Orders: orders, Prices: prices}
}

func fromWireSolution(id uint64, w wireSolution) (types.Solution, error) {
	solver, err := types.ParseToken(w.Solver)
	if err != nil {
		return types.Solution{}, fmt.Errorf("parse solver address: %w", err)
	}

	var txOrigin types.Token
	if w.TxOrigin != "" {
		txOrigin, err = types.ParseToken(w.TxOrigin)
		if err != nil {
			return types.Solution{}, fmt.Errorf("parse tx origin: %w", err)
		}
	}

	trades := make([]types.TradedOrder, len(w.Trades))
	for i, t := range w.Trades {
		trade, err := fromWireTrade(t)
		if err != nil {
			return types.Solution{}, fmt.Errorf("trade %d: %w", i, err)
		}
		trades[i] = trade
	}

	interactions, err := fromWireInteractions(w.Interactions)
	if err != nil {
		return types.Solution{}, fmt.Errorf("interactions: %w", err)
	}

	prices := make(map[types.Token]types.Amount, len(w.ClearingPrices))
	for tokStr, amtStr := range w.ClearingPrices {
		tok, err := types.ParseToken(tokStr)
		if err != nil {
			return types.Solution{}, fmt.Errorf("parse clearing price token: %w", err)
		}
		amt, err := types.ParseAmount(amtStr)
		if err != nil {
			return types.Solution{}, fmt.Errorf("parse clearing price amount: %w", err)
		}
		prices[tok] = amt
	}

	return types.Solution{
		Id:             id,
		Solver:         solver,
		Trades:         trades,
		Interactions:   interactions,
		ClearingPrices: prices,
		CalldataHex:    w.CalldataHex,
		TxOrigin:       txOrigin,
	}, nil
}

func toWireInteractions(in []types.Interaction) []wireInteraction {
	if len(in) == 0 {
		return nil
	}
	out := make([]wireInteraction, len(in))
	for i, it := range in {
		out[i] = wireInteraction{
			Target:      it.Target.String(),
			Value:       it.Value.String(),
			CallDataHex: "0x" + hex.EncodeToString(it.CallData),
		}
	}
	return out
}

func fromWireInteractions(in []wireInteraction) ([]types.Interaction, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]types.Interaction, len(in))
	for i, w := range in {
		target, err := types.ParseToken(w.Target)
		if err != nil {
			return nil, fmt.Errorf("interaction %d target: %w", i, err)
		}
		value, err := types.ParseAmount(w.Value)
		if err != nil {
			return nil, fmt.Errorf("interaction %d value: %w", i, err)
		}
		callData, err := hex.DecodeString(strings.TrimPrefix(w.CallDataHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("interaction %d calldata: %w", i, err)
		}
		out[i] = types.Interaction{Target: target, Value: value, CallData: callData}
	}
	return out, nil
}

func fromWireTrade(t wireTrade) (types.TradedOrder, error) {
	var uid types.OrderUid
	if err := parseOrderUid(t.OrderUid, &uid); err != nil {
		return types.TradedOrder{}, err
	}
	sellToken, err := types.ParseToken(t.SellToken)
	if err != nil {
		return types.TradedOrder{}, err
	}
	buyToken, err := types.ParseToken(t.BuyToken)
	if err != nil {
		return types.TradedOrder{}, err
	}
	sellAmount, err := types.ParseAmount(t.SellAmount)
	if err != nil {
		return types.TradedOrder{}, err
	}
	buyAmount, err := types.ParseAmount(t.BuyAmount)
	if err != nil {
		return types.TradedOrder{}, err
	}
	executedSell, err := types.ParseAmount(t.ExecutedSell)
	if err != nil {
		return types.TradedOrder{}, err
	}
	executedBuy, err := types.ParseAmount(t.ExecutedBuy)
	if err != nil {
		return types.TradedOrder{}, err
	}
	var jitOwner types.Token
	if t.JitOrder && t.JitOwner != "" {
		jitOwner, err = types.ParseToken(t.JitOwner)
		if err != nil {
			return types.TradedOrder{}, err
		}
	}
	return types.TradedOrder{
		OrderUid:     uid,
		Side:         types.OrderKind(t.Side),
		SellToken:    sellToken,
		SellAmount:   sellAmount,
		BuyToken:     buyToken,
		BuyAmount:    buyAmount,
		ExecutedSell: executedSell,
		ExecutedBuy:  executedBuy,
		JitOrder:     t.JitOrder,
		JitOwner:     jitOwner,
	}, nil
}
