package poller

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inboxrelay/inboxrelay/config"
	"github.com/inboxrelay/inboxrelay/interfaces"
	"github.com/inboxrelay/inboxrelay/internal/logger"
	"github.com/inboxrelay/inboxrelay/internal/models"
	"github.com/inboxrelay/inboxrelay/internal/utils"
	"github.com/inboxrelay/inboxrelay/services/extractor"
	"github.com/inboxrelay/inboxrelay/services/notifier"
)

// DialFunc opens a fresh mailbox session for one cycle.
type DialFunc func() (interfaces.MailSource, error)

// Service runs the poll-extract-notify pipeline. One cycle at a time;
// the cursor only moves forward.
type Service struct {
	cfg      *config.Config
	log      logger.Logger
	dial     DialFunc
	notifier interfaces.Notifier
	cursor   interfaces.CursorStore

	mu         sync.RWMutex
	lastReport *models.CycleReport
}

func NewService(cfg *config.Config, log logger.Logger, dial DialFunc, n interfaces.Notifier, cursor interfaces.CursorStore) *Service {
	return &Service{
		cfg:      cfg,
		log:      log,
		dial:     dial,
		notifier: n,
		cursor:   cursor,
	}
}

// LastReport returns the most recent cycle summary, nil before the
// first cycle completes.
func (s *Service) LastReport() *models.CycleReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport
}

// RunCycle performs one full poll cycle. Errors never escape: a failed
// cycle is reported through the returned summary and the logs, and the
// next scheduled cycle starts clean.
func (s *Service) RunCycle(ctx context.Context) *models.CycleReport {
	report := &models.CycleReport{
		CycleID:   uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		report.FinishedAt = time.Now().UTC()
		s.mu.Lock()
		s.lastReport = report
		s.mu.Unlock()
	}()

	cursor := s.cursor.Load()
	report.Cursor = cursor

	src, err := s.dial()
	if err != nil {
		s.log.Errorf("cycle %s: %v", report.CycleID, err)
		report.Error = err.Error()
		s.softReport(err)
		return report
	}
	defer src.Close()

	uids, err := src.Search(cursor)
	if err != nil {
		s.log.Errorf("cycle %s: search failed: %v", report.CycleID, err)
		report.Error = err.Error()
		s.softReport(err)
		return report
	}

	// a server may echo the cursor UID back when it is still the newest
	// message in the mailbox; a handled UID is never revisited
	fresh := uids[:0]
	for _, uid := range uids {
		if uid > cursor {
			fresh = append(fresh, uid)
		}
	}
	uids = fresh

	report.Searched = len(uids)
	if len(uids) == 0 {
		s.log.Debugf("cycle %s: no new matching emails", report.CycleID)
		return report
	}

	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	// Cap the batch keeping the newest; dropped older UIDs are still
	// covered by the cursor once the batch completes.
	batch := uids
	if max := s.cfg.Poller.BatchSize; max > 0 && len(batch) > max {
		batch = batch[len(batch)-max:]
	}

	latest := cursor
	for _, uid := range batch {
		if uid > latest {
			latest = uid
		}
		s.handleMessage(src, uid, report)
	}

	if latest > cursor {
		if err := s.cursor.Save(latest); err != nil {
			s.log.Errorf("cycle %s: failed to persist cursor %d: %v", report.CycleID, latest, err)
		}
		report.Cursor = latest
	}

	s.log.Infof("cycle %s: searched=%d matched=%d notified=%d skipped=%d cursor=%d",
		report.CycleID, report.Searched, report.Matched, report.Notified, report.Skipped, report.Cursor)

	return report
}

// handleMessage processes one candidate. Whatever happens here, the UID
// is considered handled and is never revisited.
func (s *Service) handleMessage(src interfaces.MailSource, uid uint32, report *models.CycleReport) {
	msg, err := src.Fetch(uid)
	if err != nil {
		s.log.Warnf("skipping UID %d: %v", uid, err)
		report.Skipped++
		return
	}

	if !s.senderAllowed(msg.From) {
		s.log.Debugf("UID %d rejected: sender %s not in allow-list", uid, msg.From)
		report.Skipped++
		return
	}
	if !s.subjectMatches(msg.Subject) {
		s.log.Debugf("UID %d rejected: subject %q misses keywords", uid, msg.Subject)
		report.Skipped++
		return
	}

	report.Matched++

	body := extractor.BodyText(msg.Raw)
	fields := extractor.Extract(body)
	text := notifier.FormatPayment(msg.Subject, fields, body)

	sent := s.deliver(text)
	if sent {
		report.Notified++
		// best-effort post-processing, provider support varies
		src.MarkSeen(uid)
		src.AddLabel(uid, s.cfg.IMAP.ProcessedLabel)
	}

	s.log.Infof("processed UID %d: sent=%v", uid, sent)
}

func (s *Service) deliver(text string) bool {
	if s.cfg.AppConfig.DebugPreview {
		s.log.Infof("debug preview, would send:\n%s", text)
		return true
	}
	return s.notifier.Send(text)
}

// softReport pushes a cycle-level failure into the notification channel
// itself. Best-effort; a failed report is only logged.
func (s *Service) softReport(err error) {
	if s.cfg.AppConfig.DebugPreview {
		return
	}
	if ok := s.notifier.Send(notifier.FormatWorkerError(err)); !ok {
		s.log.Warnf("worker error report not delivered")
	}
}

func (s *Service) senderAllowed(from string) bool {
	allowed := s.cfg.Poller.SenderDomains()
	if len(allowed) == 0 {
		return true
	}
	domain := utils.ExtractDomainFromEmail(from)
	for _, d := range allowed {
		if domain == d {
			return true
		}
	}
	return false
}

func (s *Service) subjectMatches(subject string) bool {
	keywords := s.cfg.Poller.Keywords()
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(subject)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
