// Package domain contains the core domain types for the chain context.
package domain

import "time"

// Slot is one observed slot update.
type Slot struct {
	Number     uint64
	Parent     uint64
	Root       uint64
	ReceivedAt time.Time
	FromHTTP   bool
}

// ConnectionState represents the state of the slot feed.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)

// ConnectionStatus contains detailed connection information.
type ConnectionStatus struct {
	State      ConnectionState
	LastSlot   uint64
	LastUpdate time.Time
	Reconnects int
	UsingHTTP  bool // true while polling getSlot instead of the subscription
}
