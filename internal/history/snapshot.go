package history

import (
	"log"
	"time"
)

// SnapshotService rewrites the durable history image on a fixed interval.
// It runs as a background goroutine independent of the event-handling
// path; a failed snapshot is logged and retried on the next tick.
type SnapshotService struct {
	store    *Store
	interval time.Duration
	stopChan chan struct{}
}

// NewSnapshotService creates a snapshot service.
// - interval: how often to rewrite the durable image (e.g. 30 seconds)
func NewSnapshotService(store *Store, interval time.Duration) *SnapshotService {
	return &SnapshotService{
		store:    store,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background snapshot worker.
// This method runs in its own goroutine and should be called with 'go'.
func (s *SnapshotService) Start() {
	log.Printf("[History] Snapshot service started (interval: %v)", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.store.Snapshot(); err != nil {
				log.Printf("[History] Snapshot failed: %v", err)
			}
		case <-s.stopChan:
			log.Println("[History] Snapshot service stopped")
			return
		}
	}
}

// Stop shuts down the snapshot worker and writes one final snapshot so
// a graceful shutdown loses nothing.
func (s *SnapshotService) Stop() {
	close(s.stopChan)
	if err := s.store.Snapshot(); err != nil {
		log.Printf("[History] Final snapshot failed: %v", err)
	}
}
