package poller

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxrelay/inboxrelay/config"
	"github.com/inboxrelay/inboxrelay/interfaces"
	relayerrors "github.com/inboxrelay/inboxrelay/internal/errors"
	"github.com/inboxrelay/inboxrelay/internal/logger"
	"github.com/inboxrelay/inboxrelay/internal/models"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func testConfig() *config.Config {
	return &config.Config{
		AppConfig: &config.AppConfig{},
		IMAP: &config.IMAPConfig{
			Folder:         "INBOX",
			SearchFrom:     "@wix.com",
			ProcessedLabel: "WixProcessed",
		},
		Telegram: &config.TelegramConfig{},
		Poller: &config.PollerConfig{
			PollSeconds:     60,
			BatchSize:       20,
			SubjectKeywords: "payment,invoice,order",
		},
		Logger: &logger.Config{DevMode: true},
	}
}

func rawMessage(name string) []byte {
	return []byte("From: orders@wix.com\r\n" +
		"Subject: Payment received\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Customer: " + name + "\r\n" +
		"Email: " + name + "@x.com\r\n" +
		"Amount: USD 49.99\r\n")
}

type fakeSource struct {
	messages   map[uint32]*models.MailMessage
	searchErr  error
	fetchFails map[uint32]bool
	fetched    []uint32
	seen       []uint32
	labeled    []uint32
	closed     bool
}

func newFakeSource(uids ...uint32) *fakeSource {
	f := &fakeSource{
		messages:   make(map[uint32]*models.MailMessage),
		fetchFails: make(map[uint32]bool),
	}
	for _, uid := range uids {
		f.messages[uid] = &models.MailMessage{
			UID:     uid,
			Subject: "Payment received",
			From:    "orders@wix.com",
			Raw:     rawMessage(fmt.Sprintf("customer-%d", uid)),
		}
	}
	return f
}

func (f *fakeSource) Search(sinceUID uint32) ([]uint32, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var uids []uint32
	for uid := range f.messages {
		if uid > sinceUID {
			uids = append(uids, uid)
		}
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}

func (f *fakeSource) Fetch(uid uint32) (*models.MailMessage, error) {
	f.fetched = append(f.fetched, uid)
	if f.fetchFails[uid] {
		return nil, errors.Wrap(relayerrors.ErrRetrieval, "gone")
	}
	msg, ok := f.messages[uid]
	if !ok {
		return nil, errors.Wrapf(relayerrors.ErrRetrieval, "message with UID %d not found", uid)
	}
	return msg, nil
}

func (f *fakeSource) MarkSeen(uid uint32) bool {
	f.seen = append(f.seen, uid)
	return true
}

func (f *fakeSource) AddLabel(uid uint32, label string) bool {
	f.labeled = append(f.labeled, uid)
	return true
}

func (f *fakeSource) Close() {
	f.closed = true
}

// echoTopSource resolves the UID range the way IMAP servers do: the
// open end of n+1:* is the highest UID in the mailbox, so a cursor
// already sitting at the top still yields that last handled message.
type echoTopSource struct {
	*fakeSource
}

func (f *echoTopSource) Search(sinceUID uint32) ([]uint32, error) {
	var top uint32
	var uids []uint32
	for uid := range f.messages {
		if uid > top {
			top = uid
		}
		if uid > sinceUID {
			uids = append(uids, uid)
		}
	}
	if len(uids) == 0 && top > 0 {
		uids = []uint32{top}
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}

type fakeNotifier struct {
	sent []string
	fail bool
}

func (f *fakeNotifier) Send(text string) bool {
	f.sent = append(f.sent, text)
	return !f.fail
}

type memCursor struct {
	uid   uint32
	saves int
}

func (m *memCursor) Load() uint32 { return m.uid }

func (m *memCursor) Save(uid uint32) error {
	m.uid = uid
	m.saves++
	return nil
}

func newServiceForTest(cfg *config.Config, src *fakeSource, n *fakeNotifier, cursor *memCursor) *Service {
	dial := func() (interfaces.MailSource, error) { return src, nil }
	return NewService(cfg, getLogger(), dial, n, cursor)
}

func TestRunCycle_ProcessesNewMessages(t *testing.T) {
	src := newFakeSource(101, 102, 103)
	n := &fakeNotifier{}
	cursor := &memCursor{}
	svc := newServiceForTest(testConfig(), src, n, cursor)

	report := svc.RunCycle(context.Background())

	assert.Equal(t, 3, report.Searched)
	assert.Equal(t, 3, report.Matched)
	assert.Equal(t, 3, report.Notified)
	assert.Equal(t, uint32(103), report.Cursor)
	assert.Equal(t, uint32(103), cursor.uid)
	assert.Equal(t, []uint32{101, 102, 103}, src.seen)
	assert.Equal(t, []uint32{101, 102, 103}, src.labeled)
	assert.True(t, src.closed)
	require.Len(t, n.sent, 3)
	assert.Contains(t, n.sent[0], "customer-101")
}

func TestRunCycle_Idempotence(t *testing.T) {
	src := newFakeSource(101, 102, 103)
	n := &fakeNotifier{}
	cursor := &memCursor{}
	svc := newServiceForTest(testConfig(), src, n, cursor)

	first := svc.RunCycle(context.Background())
	second := svc.RunCycle(context.Background())

	assert.Equal(t, uint32(103), first.Cursor)
	assert.Equal(t, 0, second.Searched)
	assert.Equal(t, 0, second.Notified)
	assert.Equal(t, uint32(103), second.Cursor)
	assert.Len(t, n.sent, 3)
	assert.Equal(t, 1, cursor.saves)
}

func TestRunCycle_IdleCyclesDoNotResendNewestMessage(t *testing.T) {
	src := &echoTopSource{fakeSource: newFakeSource(101, 102, 103)}
	n := &fakeNotifier{}
	cursor := &memCursor{}
	dial := func() (interfaces.MailSource, error) { return src, nil }
	svc := NewService(testConfig(), getLogger(), dial, n, cursor)

	first := svc.RunCycle(context.Background())
	svc.RunCycle(context.Background())
	third := svc.RunCycle(context.Background())

	assert.Equal(t, uint32(103), first.Cursor)
	assert.Equal(t, 0, third.Searched)
	assert.Equal(t, 0, third.Notified)
	assert.Equal(t, []uint32{101, 102, 103}, src.fetched)
	assert.Len(t, n.sent, 3)
	assert.Equal(t, 1, cursor.saves)
}

func TestRunCycle_CursorNeverDecreases(t *testing.T) {
	src := newFakeSource(5)
	n := &fakeNotifier{}
	cursor := &memCursor{uid: 50}
	svc := newServiceForTest(testConfig(), src, n, cursor)

	report := svc.RunCycle(context.Background())

	assert.Equal(t, 0, report.Searched)
	assert.Equal(t, uint32(50), cursor.uid)
	assert.Equal(t, 0, cursor.saves)
}

func TestRunCycle_BatchCapKeepsNewest(t *testing.T) {
	uids := make([]uint32, 0, 50)
	for uid := uint32(1); uid <= 50; uid++ {
		uids = append(uids, uid)
	}
	src := newFakeSource(uids...)
	n := &fakeNotifier{}
	cursor := &memCursor{}
	svc := newServiceForTest(testConfig(), src, n, cursor)

	report := svc.RunCycle(context.Background())

	assert.Equal(t, 50, report.Searched)
	assert.Equal(t, 20, report.Notified)
	require.Len(t, src.fetched, 20)
	assert.Equal(t, uint32(31), src.fetched[0])
	assert.Equal(t, uint32(50), src.fetched[19])
	// dropped older messages are permanently passed over
	assert.Equal(t, uint32(50), report.Cursor)
	assert.Equal(t, uint32(50), cursor.uid)
}

func TestRunCycle_TransportFailureStillAdvancesCursor(t *testing.T) {
	src := newFakeSource(7)
	n := &fakeNotifier{fail: true}
	cursor := &memCursor{}
	svc := newServiceForTest(testConfig(), src, n, cursor)

	report := svc.RunCycle(context.Background())

	assert.Equal(t, 1, report.Matched)
	assert.Equal(t, 0, report.Notified)
	assert.Equal(t, uint32(7), cursor.uid)
	assert.Empty(t, src.seen)
	assert.Empty(t, src.labeled)
}

func TestRunCycle_SubjectKeywordFilter(t *testing.T) {
	src := newFakeSource(1, 2)
	src.messages[1].Subject = "Weekly newsletter"
	src.messages[2].Subject = "Order confirmation"
	n := &fakeNotifier{}
	cursor := &memCursor{}
	svc := newServiceForTest(testConfig(), src, n, cursor)

	report := svc.RunCycle(context.Background())

	assert.Equal(t, 1, report.Matched)
	assert.Equal(t, 1, report.Skipped)
	assert.Len(t, n.sent, 1)
	// rejection never marks messages seen, the cursor alone suppresses replay
	assert.Equal(t, []uint32{2}, src.seen)
	assert.Equal(t, uint32(2), cursor.uid)
}

func TestRunCycle_SenderDomainFilter(t *testing.T) {
	cfg := testConfig()
	cfg.Poller.AllowedSenderDomains = "wix.com"
	src := newFakeSource(1, 2)
	src.messages[1].From = "spam@elsewhere.net"
	n := &fakeNotifier{}
	cursor := &memCursor{}
	svc := newServiceForTest(cfg, src, n, cursor)

	report := svc.RunCycle(context.Background())

	assert.Equal(t, 1, report.Matched)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, uint32(2), cursor.uid)
}

func TestRunCycle_FetchErrorSkipsSingleMessage(t *testing.T) {
	src := newFakeSource(1, 2, 3)
	src.fetchFails[2] = true
	n := &fakeNotifier{}
	cursor := &memCursor{}
	svc := newServiceForTest(testConfig(), src, n, cursor)

	report := svc.RunCycle(context.Background())

	assert.Equal(t, 2, report.Notified)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, uint32(3), cursor.uid)
}

func TestRunCycle_ConnectFailureAbortsWithoutSideEffects(t *testing.T) {
	cfg := testConfig()
	n := &fakeNotifier{}
	cursor := &memCursor{uid: 9}
	dial := func() (interfaces.MailSource, error) {
		return nil, errors.Wrap(relayerrors.ErrConnection, "dial tcp: refused")
	}
	svc := NewService(cfg, getLogger(), dial, n, cursor)

	report := svc.RunCycle(context.Background())

	assert.NotEmpty(t, report.Error)
	assert.Equal(t, uint32(9), cursor.uid)
	assert.Equal(t, 0, cursor.saves)
	// cycle failures are soft-reported into the channel itself
	require.Len(t, n.sent, 1)
	assert.Contains(t, n.sent[0], "Worker error")
}

func TestRunCycle_SearchFailureEndsCycle(t *testing.T) {
	src := newFakeSource(1)
	src.searchErr = errors.Wrap(relayerrors.ErrConnection, "broken pipe")
	n := &fakeNotifier{}
	cursor := &memCursor{}
	svc := newServiceForTest(testConfig(), src, n, cursor)

	report := svc.RunCycle(context.Background())

	assert.NotEmpty(t, report.Error)
	assert.Empty(t, src.fetched)
	assert.Equal(t, 0, cursor.saves)
	assert.True(t, src.closed)
}

func TestRunCycle_DebugPreviewSkipsTransport(t *testing.T) {
	cfg := testConfig()
	cfg.AppConfig.DebugPreview = true
	src := newFakeSource(1)
	n := &fakeNotifier{}
	cursor := &memCursor{}
	svc := newServiceForTest(cfg, src, n, cursor)

	report := svc.RunCycle(context.Background())

	assert.Equal(t, 1, report.Notified)
	assert.Empty(t, n.sent)
}

func TestRunCycle_StoresLastReport(t *testing.T) {
	src := newFakeSource(1)
	svc := newServiceForTest(testConfig(), src, &fakeNotifier{}, &memCursor{})

	assert.Nil(t, svc.LastReport())

	report := svc.RunCycle(context.Background())

	assert.Equal(t, report, svc.LastReport())
}
