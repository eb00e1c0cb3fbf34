package scraping

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"apartmenthunter/internal/database"
	"apartmenthunter/internal/extractor"
	"apartmenthunter/internal/fetcher"
	"apartmenthunter/internal/filter"
	"apartmenthunter/internal/models"
)

// Session error messages for cycles that found nothing.
const (
	MsgNoListings = "No listings found"
	MsgBlocked    = "blocked by bot challenge"
)

// Store is the part of the database a scan cycle needs.
type Store interface {
	Exists(ctx context.Context, fingerprint string) (bool, error)
	BatchUpsert(ctx context.Context, listings []*models.Listing) database.BatchResult
	LogSession(ctx context.Context, s *models.ScrapeSession) (uint, error)
}

// Sink receives the accepted listings of a cycle.
type Sink interface {
	Push(listings []*models.Listing) error
}

// Options tunes a Manager.
type Options struct {
	Source       string
	URLs         []string
	Retries      int
	InitialDelay fetcher.Delay
	Delay        fetcher.Delay
	Now          func() time.Time
}

// URLOutcome describes what happened to one target URL.
type URLOutcome struct {
	URL      string `json:"url"`
	Listings int    `json:"listings"`
	Attempts int    `json:"attempts"`
	Blocked  bool   `json:"blocked"`
	Marker   string `json:"marker,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ScanResult reports one cycle. Listings holds the accepted subset.
type ScanResult struct {
	RunID    string            `json:"run_id"`
	Scraped  int               `json:"scraped"`
	New      int               `json:"new"`
	Saved    int               `json:"saved"`
	Updated  int               `json:"updated"`
	Errors   int               `json:"errors"`
	Filtered int               `json:"filtered"`
	Blocked  int               `json:"blocked"`
	URLs     []URLOutcome      `json:"urls"`
	Listings []*models.Listing `json:"listings"`
	Success  bool              `json:"success"`
	Message  string            `json:"message,omitempty"`
}

// Manager runs scan cycles: fetch, extract, persist everything new, filter.
type Manager struct {
	fetcher   fetcher.Fetcher
	detector  *fetcher.Detector
	extractor *extractor.Extractor
	store     Store
	rules     *filter.RuleFilter
	sink      Sink
	opts      Options
	logger    *logrus.Logger
}

// NewManager creates a manager.
func NewManager(f fetcher.Fetcher, x *extractor.Extractor, store Store, rules *filter.RuleFilter, opts Options, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}

	return &Manager{
		fetcher:   f,
		detector:  fetcher.NewDetector(),
		extractor: x,
		store:     store,
		rules:     rules,
		opts:      opts,
		logger:    logger,
	}
}

// SetSink routes accepted listings to a consumer such as a notifier queue.
func (m *Manager) SetSink(sink Sink) {
	m.sink = sink
}

// SetDetector replaces the default block markers.
func (m *Manager) SetDetector(d *fetcher.Detector) {
	m.detector = d
}

// URLs returns the configured targets.
func (m *Manager) URLs() []string {
	return m.opts.URLs
}

// RunScan executes one full cycle. It never returns an error: every failure
// ends up in the result and in the session record.
func (m *Manager) RunScan(ctx context.Context) (res ScanResult) {
	res.RunID = uuid.NewString()
	started := m.opts.Now()
	log := m.logger.WithFields(logrus.Fields{
		"run_id": res.RunID,
		"source": m.opts.Source,
	})
	log.WithField("urls", len(m.opts.URLs)).Info("Starting scan")

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Scan aborted")
			res.Success = false
			res.Message = fmt.Sprintf("scan panicked: %v", r)
			m.logSession(ctx, &res, started)
		}
	}()

	all, err := m.collect(ctx, &res, log)
	if err != nil {
		res.Message = err.Error()
		log.WithError(err).Warn("Scan interrupted")
		m.logSession(ctx, &res, started)
		return res
	}
	res.Scraped = len(all)

	if len(all) == 0 {
		res.Message = MsgNoListings
		if res.Blocked > 0 && res.Blocked == len(res.URLs) {
			res.Message = MsgBlocked
		}
		log.WithField("blocked", res.Blocked).Warn("Scan produced no listings")
		m.logSession(ctx, &res, started)
		return res
	}

	fresh := m.unseen(ctx, all, log)
	res.New = len(fresh)
	if len(fresh) == 0 {
		res.Success = true
		log.WithField("scraped", res.Scraped).Info("No new listings")
		m.logSession(ctx, &res, started)
		return res
	}

	// Everything new is stored; the rules only decide what gets surfaced.
	batch := m.store.BatchUpsert(ctx, fresh)
	res.Saved = batch.Inserted + batch.Updated
	res.Updated = batch.Updated
	res.Errors = batch.Errors

	res.Listings = m.rules.Filter(fresh)
	res.Filtered = len(res.Listings)
	res.Success = true

	if m.sink != nil && len(res.Listings) > 0 {
		if err := m.sink.Push(res.Listings); err != nil {
			log.WithError(err).Error("Failed to hand off accepted listings")
		}
	}

	log.WithFields(logrus.Fields{
		"scraped":  res.Scraped,
		"new":      res.New,
		"saved":    res.Saved,
		"errors":   res.Errors,
		"filtered": res.Filtered,
	}).Info("Scan complete")
	m.logSession(ctx, &res, started)
	return res
}

// collect fetches every URL in order and returns the de-duplicated listings.
// Only cancellation stops it early.
func (m *Manager) collect(ctx context.Context, res *ScanResult, log *logrus.Entry) ([]*models.Listing, error) {
	if err := m.opts.InitialDelay.Wait(ctx); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var all []*models.Listing
	for i, target := range m.opts.URLs {
		if i > 0 {
			if err := m.opts.Delay.Wait(ctx); err != nil {
				return all, err
			}
		}

		outcome := URLOutcome{URL: target}
		listings, err := m.scrapeURL(ctx, target, &outcome, log)
		res.URLs = append(res.URLs, outcome)
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			var blocked *fetcher.BlockedError
			if errors.As(err, &blocked) {
				res.Blocked++
			}
			continue
		}

		for _, l := range listings {
			if seen[l.Fingerprint] {
				continue
			}
			seen[l.Fingerprint] = true
			all = append(all, l)
		}
	}
	return all, nil
}

func (m *Manager) scrapeURL(ctx context.Context, target string, outcome *URLOutcome, log *logrus.Entry) ([]*models.Listing, error) {
	log = log.WithField("url", target)

	var (
		content string
		err     error
	)
	for attempt := 0; attempt <= m.opts.Retries; attempt++ {
		if attempt > 0 {
			log.WithField("attempt", attempt+1).Info("Retrying fetch")
			if werr := m.opts.Delay.Wait(ctx); werr != nil {
				err = werr
				break
			}
		}
		outcome.Attempts++
		content, err = m.fetcher.Fetch(ctx, target)
		if err == nil || !fetcher.IsRetryable(err) {
			break
		}
	}
	if err != nil {
		outcome.Error = err.Error()
		log.WithError(err).Warn("Giving up on URL")
		return nil, err
	}

	if err := m.detector.Check(target, content); err != nil {
		var blocked *fetcher.BlockedError
		errors.As(err, &blocked)
		outcome.Blocked = true
		outcome.Marker = blocked.Marker
		outcome.Error = err.Error()
		log.WithField("marker", blocked.Marker).Warn("Bot challenge page, treating as no listings")
		return nil, err
	}

	extracted := m.extractor.Extract(content)
	outcome.Listings = len(extracted.Listings)
	log.WithFields(logrus.Fields{
		"candidates": extracted.Candidates,
		"listings":   len(extracted.Listings),
		"dropped":    extracted.Dropped,
	}).Info("Extracted listings")
	for _, miss := range extracted.Misses {
		log.WithField("field", miss.Field).Debug(miss.Error())
	}
	return extracted.Listings, nil
}

// unseen keeps listings whose fingerprint is not stored yet. A failed lookup
// counts as unseen; the upsert that follows is idempotent.
func (m *Manager) unseen(ctx context.Context, listings []*models.Listing, log *logrus.Entry) []*models.Listing {
	var fresh []*models.Listing
	for _, l := range listings {
		exists, err := m.store.Exists(ctx, l.Fingerprint)
		if err != nil {
			log.WithError(err).WithField("fingerprint", l.Fingerprint).Warn("Existence check failed")
		}
		if !exists {
			fresh = append(fresh, l)
		}
	}
	return fresh
}

// logSession records the cycle. It uses a context detached from cancellation
// so an interrupted scan is still audited, and it never fails the cycle.
func (m *Manager) logSession(ctx context.Context, res *ScanResult, started time.Time) {
	s := &models.ScrapeSession{
		RunID:           res.RunID,
		Source:          m.opts.Source,
		ListingsFound:   res.Scraped,
		ListingsNew:     res.Saved - res.Updated,
		ListingsUpdated: res.Updated,
		StartedAt:       started,
		CompletedAt:     m.opts.Now(),
		Success:         res.Success,
	}
	if res.Message != "" && !res.Success {
		msg := res.Message
		s.ErrorMessage = &msg
	}

	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, err := m.store.LogSession(logCtx, s); err != nil {
		m.logger.WithError(err).WithField("run_id", res.RunID).Error("Failed to log scan session")
	}
}
