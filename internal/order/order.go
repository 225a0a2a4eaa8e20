package order

import "time"

// Status is the order lifecycle state. The success path is strictly ordered:
// pending → monitoring → triggered → routing → building → submitted → confirmed.
// failed is reachable from any non-terminal state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusMonitoring Status = "monitoring"
	StatusTriggered  Status = "triggered"
	StatusRouting    Status = "routing"
	StatusBuilding   Status = "building"
	StatusSubmitted  Status = "submitted"
	StatusConfirmed  Status = "confirmed"
	StatusFailed     Status = "failed"
)

var successPath = map[Status]int{
	StatusPending:    0,
	StatusMonitoring: 1,
	StatusTriggered:  2,
	StatusRouting:    3,
	StatusBuilding:   4,
	StatusSubmitted:  5,
	StatusConfirmed:  6,
}

// Rank returns the position of s on the success path, or -1 for failed /
// unknown statuses.
func (s Status) Rank() int {
	r, ok := successPath[s]
	if !ok {
		return -1
	}
	return r
}

// Terminal reports whether no further transitions may occur.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	return s == StatusFailed || s.Rank() >= 0
}

// CanTransition reports whether from → to is a legal transition: forward on
// the success path, or into failed from any non-confirmed state. The single
// backward edge is failed → pending, the retry loop taken when the queue
// redelivers a failed job. confirmed is fully terminal.
func CanTransition(from, to Status) bool {
	if from == StatusConfirmed {
		return false
	}
	if from == StatusFailed {
		return to == StatusPending
	}
	if to == StatusFailed {
		return true
	}
	return to.Rank() >= from.Rank() && to.Rank() >= 0
}

// Order is the unit of work. The worker is the sole mutator of Status,
// SelectedDex, TxHash and ErrorMessage; the store is the durable owner.
type Order struct {
	ID           string  `json:"orderId"`
	TokenAddress string  `json:"tokenAddress"`
	AmountIn     int64   `json:"amountIn"` // base units (lamports)
	SlippageBps  int     `json:"slippageBps"`
	Status       Status  `json:"status"`
	SelectedDex  *string `json:"selectedDex,omitempty"`
	TxHash       *string `json:"txHash,omitempty"`
	ErrorMessage *string `json:"errorMessage,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Params is the immutable parameter snapshot carried by a queued job.
type Params struct {
	TokenAddress string `json:"tokenAddress"`
	AmountIn     int64  `json:"amountIn"`
	SlippageBps  int    `json:"slippageBps"`
}

func (o *Order) Params() Params {
	return Params{
		TokenAddress: o.TokenAddress,
		AmountIn:     o.AmountIn,
		SlippageBps:  o.SlippageBps,
	}
}
