package scheduler

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"apartmenthunter/internal/scraping"
)

// ErrScanInProgress is returned by RunOnce while another cycle is running.
var ErrScanInProgress = errors.New("scan already in progress")

// Scanner runs one scan cycle.
type Scanner interface {
	RunScan(ctx context.Context) scraping.ScanResult
}

// Scheduler repeats scan cycles on a fixed interval. Cycles never overlap.
type Scheduler struct {
	scanner  Scanner
	logger   *logrus.Logger
	interval time.Duration
	stopChan chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	jobMutex sync.Mutex // Ensures sequential cycle execution
	stopOnce sync.Once

	mu      sync.RWMutex
	last    *scraping.ScanResult
	lastEnd time.Time
	cycles  int
}

// NewScheduler creates a new scheduler
func NewScheduler(scanner Scanner, interval time.Duration, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	return &Scheduler{
		scanner:  scanner,
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start runs the loop in the background until Stop.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run(ctx)
	}()
}

// Run scans, sleeps the interval, and repeats until ctx is done or Stop is
// called. It blocks.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.WithField("interval", s.interval.String()).Info("Starting continuous scanning")
	for {
		if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrScanInProgress) {
			s.logger.WithError(err).Info("Stopping continuous scanning")
			return
		}

		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("Continuous scanning cancelled")
			return
		case <-s.stopChan:
			timer.Stop()
			s.logger.Info("Continuous scanning stopped")
			return
		case <-timer.C:
		}
	}
}

// RunOnce executes a single cycle unless one is already running.
func (s *Scheduler) RunOnce(ctx context.Context) (scraping.ScanResult, error) {
	if err := ctx.Err(); err != nil {
		return scraping.ScanResult{}, err
	}
	if !s.jobMutex.TryLock() {
		s.logger.Warn("Skipping scan, previous cycle still running")
		return scraping.ScanResult{}, ErrScanInProgress
	}
	defer s.jobMutex.Unlock()

	res := s.scanner.RunScan(ctx)

	s.mu.Lock()
	s.last = &res
	s.lastEnd = time.Now()
	s.cycles++
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"run_id":   res.RunID,
		"success":  res.Success,
		"new":      res.New,
		"filtered": res.Filtered,
	}).Info("Scan cycle finished")
	return res, nil
}

// Last returns the most recent result and the number of cycles run.
func (s *Scheduler) Last() (*scraping.ScanResult, time.Time, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.lastEnd, s.cycles
}

// Stop gracefully stops the scheduler. An in-flight scan is cancelled.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		if s.cancel != nil {
			s.cancel()
		}
	})
	s.wg.Wait()
}
