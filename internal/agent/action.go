// Package agent implements the market participants driven by the scenario
// engine: arbitrageurs, demand agents, miners, CDP holders, liquidity
// providers, and attackers. Agents keep private balances across blocks and
// act through the narrow mutation surface of the pool and registry; their
// effects on each other flow only through shared market state.
package agent

import "fmt"

// Kind classifies what an agent did in a block. Closed set.
type Kind string

const (
	KindNone         Kind = "none"
	KindBuyZEC       Kind = "buy_zec"
	KindSellZEC      Kind = "sell_zec"
	KindBuyZAI       Kind = "buy_zai"
	KindPanicSellZAI Kind = "panic_sell_zai"
	KindMinerSell    Kind = "miner_sell"
	KindVaultOp      Kind = "vault_op"
	KindLPAdd        Kind = "lp_add"
	KindLPRemove     Kind = "lp_remove"
	KindAttackSwap   Kind = "attack_swap"
	KindQueued       Kind = "queued"
)

// Action describes one executed (or queued) agent operation.
type Action struct {
	Kind    Kind
	Spent   float64
	Got     float64
	VaultID uint64
	Detail  string
}

// None is the empty action.
var None = Action{Kind: KindNone}

func queued(detail string, args ...any) Action {
	return Action{Kind: KindQueued, Detail: fmt.Sprintf(detail, args...)}
}
