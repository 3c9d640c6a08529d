// Package selective ties the daemon client, the ignore-block codec and the
// state resolver together into the operations a selective sync front end
// needs: browse an annotated tree, change the selection, and keep cached
// daemon answers fresh.
package selective

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/stselect/stselect/internal/logging"
	"github.com/stselect/stselect/pkg/cache"
	"github.com/stselect/stselect/pkg/client"
	"github.com/stselect/stselect/pkg/ignores"
	"github.com/stselect/stselect/pkg/models"
	"github.com/stselect/stselect/pkg/syncstate"
	"github.com/stselect/stselect/pkg/tree"
)

// API is the part of the daemon client used by a Session. *client.Client
// implements it.
type API interface {
	ignores.Lister
	Folders(ctx context.Context) ([]models.Folder, error)
	WithStatus(ctx context.Context, folders []models.Folder) error
	Browse(ctx context.Context, folder, prefix string, levels int) (json.RawMessage, error)
	FileInfo(ctx context.Context, folder, path string) (*models.FileInfo, error)
	Version(ctx context.Context) (*semver.Version, error)
	Subscribe(ctx context.Context, types []string) (<-chan models.Event, <-chan error)
}

// Options configures a Session.
type Options struct {
	// Codec locates the managed block. Zero value uses ignores.DefaultCodec.
	Codec ignores.Codec

	// CacheSize bounds each memo cache. Zero uses cache.DefaultMaxEntries.
	CacheSize int

	Logger *zap.Logger
}

// Session is a selective sync view over one daemon. It is safe for
// concurrent use; Watch typically runs on its own goroutine.
type Session struct {
	api   API
	store *ignores.Store
	codec ignores.Codec
	log   *zap.Logger

	browse *cache.Memo[json.RawMessage]
	files  *cache.Memo[*models.FileInfo]

	mu           sync.Mutex
	version      *semver.Version
	versionKnown bool
}

// New creates a session.
func New(api API, opts Options) *Session {
	if opts.Codec.Start == "" || opts.Codec.Finish == "" {
		opts.Codec = ignores.DefaultCodec()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Session{
		api:    api,
		store:  ignores.NewStore(api, opts.Codec, opts.Logger),
		codec:  opts.Codec,
		log:    opts.Logger,
		browse: cache.New[json.RawMessage](opts.CacheSize),
		files:  cache.New[*models.FileInfo](opts.CacheSize),
	}
}

// Folders lists the daemon's folders, sorted by ID. withStatus adds the
// aggregate byte and file counts from db/status.
func (s *Session) Folders(ctx context.Context, withStatus bool) ([]models.Folder, error) {
	folders, err := s.api.Folders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	if withStatus {
		if err := s.api.WithStatus(ctx, folders); err != nil {
			return nil, fmt.Errorf("folder status: %w", err)
		}
	}
	return folders, nil
}

// Version returns the daemon version, fetched once per session. A daemon
// reporting a non-semver version yields nil, which makes tree decoding
// detect the payload shape.
func (s *Session) Version(ctx context.Context) (*semver.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.versionKnown {
		return s.version, nil
	}
	v, err := s.api.Version(ctx)
	if err != nil && !errors.Is(err, client.ErrBadVersion) {
		return nil, fmt.Errorf("daemon version: %w", err)
	}
	if err != nil {
		logging.WithContext(ctx, s.log).Warn("daemon version not understood, detecting browse shape", zap.Error(err))
		v = nil
	}
	s.version = v
	s.versionKnown = true
	return v, nil
}

// Tree returns the nodes below prefix, levels deep (negative for the
// daemon's default), annotated with their sync state and with directory
// sizes aggregated.
func (s *Session) Tree(ctx context.Context, folder, prefix string, levels int) ([]*models.Node, error) {
	nodes, err := s.nodes(ctx, folder, prefix, levels)
	if err != nil {
		return nil, err
	}
	r, err := s.resolver(ctx, folder)
	if err != nil {
		return nil, err
	}
	r.Annotate(nodes, ignores.Clean(prefix))
	tree.AggregateAll(nodes)
	return nodes, nil
}

// FillSizes looks up files without a size through db/file and aggregates
// again. nodes must be the result of Tree for the same folder and prefix.
// It returns the combined size and whether it is complete.
func (s *Session) FillSizes(ctx context.Context, folder, prefix string, nodes []*models.Node) (int64, bool, error) {
	base := ignores.Clean(prefix)
	var failed error
	tree.Walk(nodes, base, func(p string, n *models.Node) bool {
		if failed != nil {
			return false
		}
		if n.Type != models.TypeFile || n.Size != nil {
			return true
		}
		fi, err := s.fileInfo(ctx, folder, p)
		if err != nil {
			failed = err
			return false
		}
		switch {
		case fi.Global.Exists():
			n.SetSize(fi.Global.Size)
		case fi.Local.Exists():
			n.SetSize(fi.Local.Size)
		}
		return true
	})
	if failed != nil {
		return 0, false, failed
	}
	total, complete := tree.AggregateAll(nodes)
	return total, complete, nil
}

// Selection returns the parsed managed block of folder.
func (s *Session) Selection(ctx context.Context, folder string) (*ignores.Selection, error) {
	interior, err := s.store.ReadSelective(ctx, folder)
	if err != nil {
		return nil, err
	}
	return ignores.ParseSelection(interior), nil
}

// Enable installs the managed block in folder if it is missing.
func (s *Session) Enable(ctx context.Context, folder string) (bool, error) {
	changed, err := s.store.Enable(ctx, folder)
	if err != nil {
		return false, err
	}
	if changed {
		s.Invalidate(folder)
	}
	return changed, nil
}

// FileState resolves a single path using db/file and the folder's patterns.
func (s *Session) FileState(ctx context.Context, folder, path string) (models.SyncState, error) {
	fi, err := s.fileInfo(ctx, folder, ignores.Clean(path))
	if err != nil {
		return models.StateUnknown, err
	}
	r, err := s.resolver(ctx, folder)
	if err != nil {
		return models.StateUnknown, err
	}
	return r.FileState(path, fi), nil
}

// Invalidate drops every cached answer for folder.
func (s *Session) Invalidate(folder string) {
	b := s.browse.InvalidateFolder(folder)
	f := s.files.InvalidateFolder(folder)
	if b+f > 0 {
		s.log.Debug("cache invalidated",
			zap.String("folder", folder),
			zap.Int("browse", b),
			zap.Int("files", f))
	}
}

// Children lists the entry names directly inside dir. It serves as the
// ignores.ChildrenFunc for Exclude.
func (s *Session) Children(ctx context.Context, folder string) ignores.ChildrenFunc {
	return func(dir string) ([]string, error) {
		nodes, err := s.nodes(ctx, folder, dir, 0)
		if err != nil {
			return nil, err
		}
		return tree.Names(nodes), nil
	}
}

func (s *Session) nodes(ctx context.Context, folder, prefix string, levels int) ([]*models.Node, error) {
	prefix = ignores.Clean(prefix)
	v, err := s.Version(ctx)
	if err != nil {
		return nil, err
	}

	key := cache.Key(folder, prefix) + "\x00" + strconv.Itoa(levels)
	raw, err := s.browse.GetOrLoad(key, func() (json.RawMessage, error) {
		return s.api.Browse(ctx, folder, prefix, levels)
	})
	if err != nil {
		return nil, fmt.Errorf("browse %s/%s: %w", folder, prefix, err)
	}

	nodes, err := tree.Normalize(raw, v)
	if err != nil {
		s.browse.Invalidate(key)
		return nil, fmt.Errorf("browse %s/%s: %w", folder, prefix, err)
	}
	return nodes, nil
}

func (s *Session) fileInfo(ctx context.Context, folder, path string) (*models.FileInfo, error) {
	fi, err := s.files.GetOrLoad(cache.Key(folder, path), func() (*models.FileInfo, error) {
		return s.api.FileInfo(ctx, folder, path)
	})
	if err != nil {
		return nil, fmt.Errorf("file info %s/%s: %w", folder, path, err)
	}
	return fi, nil
}

// resolver reads the ignore list on every call. It is never cached.
func (s *Session) resolver(ctx context.Context, folder string) (*syncstate.Resolver, error) {
	lines, err := s.api.IgnoreList(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("read ignores of %s: %w", folder, err)
	}
	r, err := syncstate.New(lines, s.codec)
	if err != nil {
		return nil, fmt.Errorf("parse ignores of %s: %w", folder, err)
	}
	return r, nil
}
