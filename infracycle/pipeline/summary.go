package pipeline

import "sync"

// Summary aggregates task accounting across concurrently running jobs.
// Shell tasks count every step and clone tasks count every branch, so the
// completed total can exceed the number of task blocks in the config.
type Summary struct {
	mu        sync.Mutex
	completed int
	failed    int
	uploaded  int
}

// Totals is a point-in-time copy of the counters.
type Totals struct {
	Completed int
	Failed    int
	Uploaded  int
}

func (s *Summary) TaskCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed++
}

func (s *Summary) TaskFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed++
}

func (s *Summary) ArtifactUploaded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded++
}

func (s *Summary) Snapshot() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Totals{Completed: s.completed, Failed: s.failed, Uploaded: s.uploaded}
}
