package exchange

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/alfredjeanlab/clawnet/internal/model"
)

// Dir is an Exchange backed by a shared directory, one file per message.
// Files are written to a temp name and renamed so readers never see a
// partial message.
type Dir struct {
	path   string
	codec  Codec
	logger *slog.Logger
}

var (
	_ Exchange = (*Dir)(nil)
	_ Watcher  = (*Dir)(nil)
)

// NewDir creates the directory if needed. A nil codec means JSONCodec.
func NewDir(path string, codec Codec, logger *slog.Logger) (*Dir, error) {
	if codec == nil {
		codec = JSONCodec{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create exchange dir %s: %w", path, err)
	}
	return &Dir{path: path, codec: codec, logger: logger}, nil
}

// Path returns the exchange directory.
func (d *Dir) Path() string { return d.path }

func (d *Dir) file(key string) string {
	return filepath.Join(d.path, key+d.codec.Ext())
}

func (d *Dir) Write(_ context.Context, key string, msg *model.GossipMessage) error {
	if err := checkKey("write", key); err != nil {
		return err
	}
	data, err := d.codec.Marshal(msg)
	if err != nil {
		return &model.IOError{Op: "encode", Key: key, Err: err}
	}

	tmp, err := os.CreateTemp(d.path, "."+key+".tmp-*")
	if err != nil {
		return &model.IOError{Op: "write", Key: key, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &model.IOError{Op: "write", Key: key, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &model.IOError{Op: "write", Key: key, Err: err}
	}
	if err := os.Rename(tmpName, d.file(key)); err != nil {
		os.Remove(tmpName)
		return &model.IOError{Op: "write", Key: key, Err: err}
	}
	return nil
}

func (d *Dir) ListKeys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, &model.IOError{Op: "list", Key: d.path, Err: err}
	}
	ext := d.codec.Ext()
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ext))
	}
	sort.Strings(keys)
	return keys, nil
}

func (d *Dir) Read(_ context.Context, key string) (*model.GossipMessage, error) {
	if err := checkKey("read", key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(d.file(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &model.IOError{Op: "read", Key: key, Err: err}
	}
	var msg model.GossipMessage
	if err := d.codec.Unmarshal(data, &msg); err != nil {
		return nil, &model.IOError{Op: "decode", Key: key, Err: err}
	}
	return &msg, nil
}

func (d *Dir) Delete(_ context.Context, key string) error {
	if err := checkKey("delete", key); err != nil {
		return err
	}
	if err := os.Remove(d.file(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &model.IOError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

func (d *Dir) ModifiedTime(_ context.Context, key string) (time.Time, error) {
	if err := checkKey("stat", key); err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(d.file(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, &model.IOError{Op: "stat", Key: key, Err: err}
	}
	return info.ModTime(), nil
}

// Watch signals after a message file is created or renamed into the
// directory. Signals are coalesced: a pending signal absorbs later ones.
func (d *Dir) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(d.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", d.path, err)
	}

	out := make(chan struct{}, 1)
	ext := d.codec.Ext()
	go func() {
		defer w.Close()
		defer close(out)
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				name := filepath.Base(event.Name)
				if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
					continue
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				d.logger.Warn("exchange: dir watcher error", "path", d.path, "err", err)
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
