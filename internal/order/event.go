package order

import "time"

// StatusEvent is the wire payload broadcast to stream subscribers on every
// state transition. Optional fields are populated as the pipeline learns them.
type StatusEvent struct {
	OrderID     string    `json:"orderId"`
	Status      Status    `json:"status"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"ts"`
	SelectedDex string    `json:"selectedDex,omitempty"`
	TxHash      string    `json:"txHash,omitempty"`
	ExplorerURL string    `json:"explorerUrl,omitempty"`
	Error       string    `json:"error,omitempty"`

	// Routing carries the quote comparison when Status is routing.
	Routing *RoutingDetail `json:"routing,omitempty"`
}

// RoutingDetail records the route decision for auditability. Output amounts
// are decimal strings of base units, matching store precision.
type RoutingDetail struct {
	Selected      string `json:"selected"`
	Reason        string `json:"reason"`
	RaydiumOutput string `json:"raydiumOutput,omitempty"`
	MeteoraOutput string `json:"meteoraOutput,omitempty"`
}
