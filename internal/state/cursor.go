package state

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	relayerrors "github.com/inboxrelay/inboxrelay/internal/errors"
	"github.com/inboxrelay/inboxrelay/internal/logger"
)

type cursorRecord struct {
	LastUID uint32 `json:"last_uid"`
}

// CursorStore keeps the last handled UID in a small JSON file so the
// relay survives restarts without reprocessing old messages.
type CursorStore struct {
	path string
	log  logger.Logger
}

func NewCursorStore(path string, log logger.Logger) *CursorStore {
	return &CursorStore{path: path, log: log}
}

// Load reads the persisted cursor. A missing or corrupt file reads as
// zero, which makes every message matching the search filter a candidate.
func (s *CursorStore) Load() uint32 {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warnf("cursor file %s unreadable, starting from 0: %v", s.path, err)
		}
		return 0
	}

	var record cursorRecord
	if err := json.Unmarshal(data, &record); err != nil {
		s.log.Warnf("cursor file %s corrupt, starting from 0: %v", s.path, err)
		return 0
	}

	return record.LastUID
}

// Save writes the cursor via a temp file and rename.
func (s *CursorStore) Save(uid uint32) error {
	data, err := json.Marshal(cursorRecord{LastUID: uid})
	if err != nil {
		return errors.Wrap(relayerrors.ErrPersistence, err.Error())
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(relayerrors.ErrPersistence, err.Error())
	}
	if err := os.Rename(tmp, filepath.Clean(s.path)); err != nil {
		return errors.Wrap(relayerrors.ErrPersistence, err.Error())
	}

	return nil
}
