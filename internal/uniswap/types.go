package uniswap

// Token is one side of a pool pair as reported by the subgraph.
type Token struct {
	Symbol   string
	Decimals int
}

// Pool is a point-in-time snapshot of pool state. SqrtPrice is the
// sqrtPriceX96 field already normalized by 2^96; nil when the subgraph
// omitted or mangled it.
type Pool struct {
	ID        string
	SqrtPrice *float64
	Tick      *int
	Token0    Token
	Token1    Token
}

// Position is one LP position snapshot. Liquidity and the tick bounds are
// optional: when any of them is missing the exposure calculator falls back
// to the deposited/withdrawn/fee accounting fields.
type Position struct {
	ID             string
	Liquidity      *float64
	TickLower      *int
	TickUpper      *int
	Deposited0     float64
	Deposited1     float64
	Withdrawn0     float64
	Withdrawn1     float64
	CollectedFees0 float64
	CollectedFees1 float64
	Pool           *Pool
}
