package app

import (
	"context"
	"time"

	"github.com/fd1az/dex-arbitrage/business/chain/domain"
	"github.com/fd1az/dex-arbitrage/internal/apperror"
)

// ChainService coordinates slot tracking and transaction submission.
type ChainService struct {
	slots  SlotTracker
	sender TransactionSender
	now    func() time.Time
}

// NewChainService creates a new ChainService.
func NewChainService(slots SlotTracker, sender TransactionSender) *ChainService {
	return &ChainService{slots: slots, sender: sender, now: time.Now}
}

// CurrentSlot returns the latest observed slot.
func (s *ChainService) CurrentSlot() uint64 {
	return s.slots.CurrentSlot()
}

// SlotAge returns how many slots have passed since slot. It is 0 when the
// tracker has not caught up to slot yet or has no data.
func (s *ChainService) SlotAge(slot uint64) uint64 {
	cur := s.slots.CurrentSlot()
	if cur == 0 || slot >= cur {
		return 0
	}
	return cur - slot
}

// CheckFresh reports an error when the slot feed has not advanced within maxAge.
func (s *ChainService) CheckFresh(_ context.Context, maxAge time.Duration) error {
	st := s.slots.Status()
	if st.LastSlot == 0 {
		return apperror.New(apperror.CodeSlotSubscribeFailed, apperror.WithContext("no slot observed yet"))
	}
	if age := s.now().Sub(st.LastUpdate); age > maxAge {
		return apperror.New(apperror.CodeSlotSubscribeFailed,
			apperror.WithContext("slot feed stale for "+age.Truncate(time.Millisecond).String()))
	}
	return nil
}

// Status returns the slot feed connection status.
func (s *ChainService) Status() domain.ConnectionStatus {
	return s.slots.Status()
}

// Sender returns the transaction sender.
func (s *ChainService) Sender() TransactionSender {
	return s.sender
}
