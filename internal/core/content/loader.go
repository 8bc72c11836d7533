package content

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/zengine/internal/core/observability/log"
	"github.com/zeusync/zengine/pkg/concurrent"
)

var _ Loader = (*FSLoader)(nil)

// Decoder turns raw asset bytes into handle data.
type Decoder func(name string, raw []byte) (Kind, any, error)

// FSLoader loads assets from a file system and caches the handles by name.
type FSLoader struct {
	fsys   fs.FS
	logger log.Log

	mu       sync.RWMutex
	decoders map[string]Decoder
	cache    map[uint64]*Handle
}

type LoaderOption func(*FSLoader)

func WithLogger(l log.Log) LoaderOption {
	return func(fl *FSLoader) { fl.logger = l }
}

// WithDecoder registers d for ext (".png", ".mesh", ...), replacing a default.
func WithDecoder(ext string, d Decoder) LoaderOption {
	return func(fl *FSLoader) { fl.decoders[strings.ToLower(ext)] = d }
}

// NewDirLoader loads assets from the directory root on disk.
func NewDirLoader(root string, options ...LoaderOption) *FSLoader {
	return NewFSLoader(os.DirFS(root), options...)
}

// NewFSLoader returns a loader reading from fsys with decoders for raw bytes
// (.bin, .raw), text (.txt), Lua scripts (.lua) and YAML data (.yaml, .yml).
func NewFSLoader(fsys fs.FS, options ...LoaderOption) *FSLoader {
	fl := &FSLoader{
		fsys:   fsys,
		logger: log.Provide(),
		decoders: map[string]Decoder{
			".bin":  decodeBytes,
			".raw":  decodeBytes,
			".txt":  decodeText(KindText),
			".lua":  decodeText(KindScript),
			".yaml": decodeYAML,
			".yml":  decodeYAML,
		},
		cache: make(map[uint64]*Handle),
	}
	for _, opt := range options {
		opt(fl)
	}
	return fl
}

// RegisterDecoder adds a decoder for an extension that has none yet.
func (l *FSLoader) RegisterDecoder(ext string, d Decoder) error {
	ext = strings.ToLower(ext)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.decoders[ext]; exists {
		return fmt.Errorf("%w: %s", ErrDecoderExists, ext)
	}
	l.decoders[ext] = d
	return nil
}

func (l *FSLoader) Load(ctx context.Context, name string) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := path.Clean(strings.TrimPrefix(name, "/"))
	key := xxhash.Sum64String(clean)

	l.mu.RLock()
	h, ok := l.cache[key]
	decode := l.decoders[strings.ToLower(path.Ext(clean))]
	l.mu.RUnlock()
	if ok {
		return h, nil
	}
	if decode == nil {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotSupported, name)
	}

	raw, err := fs.ReadFile(l.fsys, clean)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, name)
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	kind, data, err := decode(clean, raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	h = &Handle{ID: uuid.New(), Name: clean, Kind: kind, Data: data}

	l.mu.Lock()
	if existing, ok := l.cache[key]; ok {
		h = existing
	} else {
		l.cache[key] = h
	}
	l.mu.Unlock()

	l.logger.Debug("content loaded", log.String("name", clean), log.String("kind", string(kind)))
	return h, nil
}

func (l *FSLoader) Unload(name string) {
	key := xxhash.Sum64String(path.Clean(strings.TrimPrefix(name, "/")))
	l.mu.Lock()
	delete(l.cache, key)
	l.mu.Unlock()
}

// Preload loads names with at most workers concurrent reads.
func (l *FSLoader) Preload(ctx context.Context, workers int, names ...string) error {
	return concurrent.ForEach(ctx, names, workers, func(ctx context.Context, name string) error {
		_, err := l.Load(ctx, name)
		return err
	})
}

// Cached returns the number of handles currently held.
func (l *FSLoader) Cached() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.cache)
}

func decodeBytes(_ string, raw []byte) (Kind, any, error) {
	return KindBytes, raw, nil
}

func decodeText(kind Kind) Decoder {
	return func(_ string, raw []byte) (Kind, any, error) {
		return kind, string(raw), nil
	}
}

func decodeYAML(_ string, raw []byte) (Kind, any, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return "", nil, err
	}
	return KindData, doc, nil
}
