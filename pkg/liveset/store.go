package liveset

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/metaoverlayfs/panel/command"
	"github.com/metaoverlayfs/panel/errors"
)

// Store loads and persists the live set through the command bridge.
//
// The file has no locking primitive, so another writer on the device can
// still interleave with a toggle. Toggles issued through one Store are
// serialized, which closes the race for everything going through this
// process.
type Store struct {
	bridge command.Bridge
	cmds   *command.Builder
	path   string
	logger *logrus.Entry

	mu sync.Mutex
}

// NewStore creates a Store for the live file of the builder's layout.
func NewStore(bridge command.Bridge, cmds *command.Builder, logger *logrus.Entry) *Store {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{
		bridge: bridge,
		cmds:   cmds,
		path:   cmds.Paths().LiveFile,
		logger: logger,
	}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the live set. A missing or unreadable file yields an empty set.
func (s *Store) Load(ctx context.Context) Set {
	set, err := s.read(ctx)
	if err != nil {
		s.logger.WithError(err).Debug("Failed to read live set")
		return Set{}
	}
	return set
}

func (s *Store) read(ctx context.Context) (Set, error) {
	set, _, err := s.readRaw(ctx)
	return set, err
}

func (s *Store) readRaw(ctx context.Context) (Set, string, error) {
	out, err := s.bridge.Execute(ctx, s.cmds.ReadFile(s.path))
	if err != nil {
		return Set{}, "", err
	}
	return Parse(out), out, nil
}

// writeLike renders the write of set in the newline style of prev: a file
// saved without a final newline keeps having none.
func (s *Store) writeLike(prev string, set Set) string {
	if prev != "" && !strings.HasSuffix(prev, "\n") {
		return s.cmds.WriteFileExact(s.path, set.String())
	}
	return s.cmds.WriteFile(s.path, set.String())
}

// Persist overwrites the backing file with set, in insertion order.
func (s *Store) Persist(ctx context.Context, set Set) error {
	if _, err := s.bridge.Execute(ctx, s.cmds.WriteFile(s.path, set.String())); err != nil {
		return errors.Wrap(err, errors.ErrCodeLivePersistFailed, "failed to write live set").
			WithDetail("path", s.path)
	}
	return nil
}

// Toggle adds or removes id as one read-modify-write: the file is re-read
// immediately before the change and written immediately after. It returns
// the set now on disk. On failure nothing is written and the zero Set is
// returned; the caller keeps its previous state.
func (s *Store) Toggle(ctx context.Context, id string, enable bool) (Set, error) {
	if err := command.ValidateModuleID(id); err != nil {
		return Set{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, raw, err := s.readRaw(ctx)
	if err != nil {
		return Set{}, errors.LivePersistFailed(id, err)
	}

	next := current.Without(id)
	if enable {
		next = current.With(id)
	}
	if next.Equal(current) {
		return current, nil
	}

	if _, err := s.bridge.Execute(ctx, s.writeLike(raw, next)); err != nil {
		return Set{}, errors.LivePersistFailed(id, err)
	}

	s.logger.WithFields(logrus.Fields{
		"module": id,
		"live":   enable,
		"size":   next.Len(),
	}).Info("Live set updated")
	return next, nil
}
