package ignores

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Lister reads and writes a folder's full ignore list. *client.Client
// implements it.
type Lister interface {
	IgnoreList(ctx context.Context, folder string) ([]string, error)
	SetIgnoreList(ctx context.Context, folder string, lines []string) error
}

// Store applies the codec to ignore lists fetched from the daemon.
type Store struct {
	api   Lister
	codec Codec
	log   *zap.Logger
}

// NewStore creates a store. A nil logger disables logging.
func NewStore(api Lister, codec Codec, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{api: api, codec: codec, log: log}
}

// Codec returns the codec used by the store.
func (s *Store) Codec() Codec {
	return s.codec
}

// ReadSelective returns the managed block interior of a folder, empty when
// the folder has no block.
func (s *Store) ReadSelective(ctx context.Context, folder string) ([]string, error) {
	lines, err := s.api.IgnoreList(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("read ignores of %s: %w", folder, err)
	}
	return s.codec.Read(lines), nil
}

// WriteSelective replaces the managed block interior of a folder and posts
// the full list back. The folder must already contain the block.
func (s *Store) WriteSelective(ctx context.Context, folder string, interior []string) error {
	lines, err := s.api.IgnoreList(ctx, folder)
	if err != nil {
		return fmt.Errorf("read ignores of %s: %w", folder, err)
	}
	updated, err := s.codec.Splice(lines, interior)
	if err != nil {
		return fmt.Errorf("folder %s: %w", folder, err)
	}
	if err := s.api.SetIgnoreList(ctx, folder, updated); err != nil {
		return fmt.Errorf("write ignores of %s: %w", folder, err)
	}
	s.log.Info("selective block written",
		zap.String("folder", folder),
		zap.Int("lines", len(updated)))
	return nil
}

// Enable installs an empty block in the folder's ignore list if it is
// missing. It reports whether the list was changed.
func (s *Store) Enable(ctx context.Context, folder string) (bool, error) {
	lines, err := s.api.IgnoreList(ctx, folder)
	if err != nil {
		return false, fmt.Errorf("read ignores of %s: %w", folder, err)
	}
	updated, changed, err := s.codec.Install(lines)
	if err != nil {
		return false, fmt.Errorf("folder %s: %w", folder, err)
	}
	if !changed {
		return false, nil
	}
	if err := s.api.SetIgnoreList(ctx, folder, updated); err != nil {
		return false, fmt.Errorf("write ignores of %s: %w", folder, err)
	}
	s.log.Info("selective block installed", zap.String("folder", folder))
	return true, nil
}
