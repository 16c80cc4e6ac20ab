package ui

import (
	"time"

	"github.com/fd1az/dex-arbitrage/business/arbitrage/domain"
	chainDomain "github.com/fd1az/dex-arbitrage/business/chain/domain"
)

// CycleMsg is sent when the pipeline finishes a cycle.
type CycleMsg struct {
	Report domain.CycleReport
}

// SlotMsg carries the slot feed status.
type SlotMsg struct {
	Status chainDomain.ConnectionStatus
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically to refresh relative timestamps.
type TickMsg time.Time
