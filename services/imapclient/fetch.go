package imapclient

import (
	"io"
	"sort"

	"github.com/emersion/go-imap"
	"github.com/pkg/errors"

	relayerrors "github.com/inboxrelay/inboxrelay/internal/errors"
	"github.com/inboxrelay/inboxrelay/internal/models"
)

// Search returns UIDs greater than sinceUID whose From header matches
// the configured sender filter, in ascending order.
func (s *Session) Search(sinceUID uint32) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()

	uidRange := new(imap.SeqSet)
	uidRange.AddRange(sinceUID+1, 0)
	criteria.Uid = uidRange

	if s.cfg.SearchFrom != "" {
		criteria.Header.Add("From", s.cfg.SearchFrom)
	}

	s.client.Timeout = commandTimeout
	uids, err := s.client.UidSearch(criteria)
	s.client.Timeout = 0
	if err != nil {
		return nil, errors.Wrap(relayerrors.ErrConnection, err.Error())
	}

	uids = newerThan(uids, sinceUID)
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	return uids, nil
}

// newerThan drops UIDs at or below the cursor. The server-side range
// n+1:* cannot do this alone: RFC 3501 resolves * to the highest UID in
// the mailbox, so once the cursor sits at the top the range collapses
// to max:max and the search returns the last handled message again.
func newerThan(uids []uint32, sinceUID uint32) []uint32 {
	filtered := uids[:0]
	for _, uid := range uids {
		if uid > sinceUID {
			filtered = append(filtered, uid)
		}
	}
	return filtered
}

// Fetch retrieves the envelope and full raw body of a single message.
func (s *Session) Fetch(uid uint32) (*models.MailMessage, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	s.client.Timeout = fetchTimeout
	go func() {
		done <- s.client.UidFetch(seqSet, items, messages)
	}()

	msg := <-messages
	err := <-done
	s.client.Timeout = 0

	if err != nil {
		return nil, errors.Wrap(relayerrors.ErrRetrieval, err.Error())
	}
	if msg == nil {
		return nil, errors.Wrapf(relayerrors.ErrRetrieval, "message with UID %d not found", uid)
	}

	raw := extractFullMessage(msg)
	if len(raw) == 0 {
		return nil, errors.Wrapf(relayerrors.ErrRetrieval, "message with UID %d has no body", uid)
	}

	result := &models.MailMessage{
		UID: uid,
		Raw: raw,
	}
	if msg.Envelope != nil {
		result.Subject = msg.Envelope.Subject
		if len(msg.Envelope.From) > 0 {
			result.From = msg.Envelope.From[0].Address()
		}
	}

	return result, nil
}

// extractFullMessage pulls the entire-message literal out of the fetch
// response. The server may answer a BODY.PEEK request with a plain BODY
// section, so the map is scanned rather than looked up.
func extractFullMessage(msg *imap.Message) []byte {
	for section, literal := range msg.Body {
		if len(section.Path) == 0 && section.Specifier == imap.EntireSpecifier {
			data, err := io.ReadAll(literal)
			if err == nil {
				return data
			}
		}
	}
	return nil
}

// MarkSeen flags the message as read. Best-effort.
func (s *Session) MarkSeen(uid uint32) bool {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}

	s.client.Timeout = commandTimeout
	err := s.client.UidStore(seqSet, item, flags, nil)
	s.client.Timeout = 0
	if err != nil {
		s.log.Debugf("failed to mark UID %d seen: %v", uid, err)
		return false
	}
	return true
}

// AddLabel tags the message with a Gmail label. Servers without
// X-GM-LABELS reject the store; the caller treats that as a non-event.
func (s *Session) AddLabel(uid uint32, label string) bool {
	if label == "" {
		return false
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	s.client.Timeout = commandTimeout
	err := s.client.UidStore(seqSet, imap.StoreItem("+X-GM-LABELS"), []interface{}{label}, nil)
	s.client.Timeout = 0
	if err != nil {
		s.log.Debugf("failed to label UID %d with %q: %v", uid, label, err)
		return false
	}
	return true
}
