package worker

import (
	"context"
	"log"
	"time"

	"github.com/ticketdrop/backend/internal/service"
)

// RecoveryWorker is the periodic sweep that expires stale holds and
// repairs paid orders missing tickets. Each pass runs in its own
// transaction and is idempotent, so overlapping invocations are safe.
type RecoveryWorker struct {
	reservationService service.ReservationService
	ticketService      service.TicketService
	interval           time.Duration
	stopChan           chan struct{}
}

// NewRecoveryWorker creates new recovery worker instance
func NewRecoveryWorker(
	reservationService service.ReservationService,
	ticketService service.TicketService,
	interval time.Duration,
) *RecoveryWorker {
	return &RecoveryWorker{
		reservationService: reservationService,
		ticketService:      ticketService,
		interval:           interval,
		stopChan:           make(chan struct{}),
	}
}

// Start begins the recovery loop. Runs one sweep immediately, then on
// every tick until stopped.
func (w *RecoveryWorker) Start(ctx context.Context) {
	log.Printf("[Worker] Recovery worker started (interval: %v)", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			w.runSweep(ctx)
		case <-w.stopChan:
			log.Println("[Worker] Recovery worker stopped")
			return
		case <-ctx.Done():
			log.Println("[Worker] Recovery worker stopped due to context cancellation")
			return
		}
	}
}

// Stop gracefully stops the recovery worker
func (w *RecoveryWorker) Stop() {
	close(w.stopChan)
}

// runSweep executes both recovery passes
func (w *RecoveryWorker) runSweep(ctx context.Context) {
	start := time.Now()

	expired, err := w.reservationService.ExpireStaleHolds(ctx)
	if err != nil {
		log.Printf("[Worker] Expire pass failed: %v", err)
	} else if expired > 0 {
		log.Printf("[Worker] Expired %d stale reservation(s)", expired)
	}

	repaired, err := w.ticketService.RepairMissingTickets(ctx)
	if err != nil {
		log.Printf("[Worker] Repair pass failed: %v", err)
	} else if repaired > 0 {
		log.Printf("[Worker] Recovered %d missing ticket(s)", repaired)
	}

	log.Printf("[Worker] Sweep completed (duration: %v)", time.Since(start))
}
