package baseline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	"github.com/timsvoice/specimin/internal/projectconfig"
	"github.com/timsvoice/specimin/internal/utils"
)

// Store is the durable home of the serialized baseline log. Load returns nil
// data and a nil error when nothing has been saved yet.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Close() error
	fmt.Stringer
}

// OpenStore opens the store selected by cfg. Relative file paths are resolved
// against baseDir.
func OpenStore(ctx context.Context, cfg projectconfig.BaselineConfig, baseDir string) (Store, error) {
	path := utils.ResolvePath(cfg.Path, baseDir)

	switch cfg.Store {
	case "", "file":
		return NewFileStore(path), nil
	case "memory":
		return NewMemoryStore(), nil
	case "azblob":
		var opts BlobOptions
		if err := decodeOptions(cfg.Options, &opts); err != nil {
			return nil, err
		}
		if opts.Blob == "" {
			opts.Blob = filepath.Base(cfg.Path)
		}
		return NewBlobStore(opts)
	case "s3":
		var opts S3Options
		if err := decodeOptions(cfg.Options, &opts); err != nil {
			return nil, err
		}
		if opts.Key == "" {
			opts.Key = filepath.Base(cfg.Path)
		}
		return NewS3Store(ctx, opts)
	case "badger":
		var opts BadgerOptions
		if err := decodeOptions(cfg.Options, &opts); err != nil {
			return nil, err
		}
		if opts.Dir == "" && !opts.InMemory {
			opts.Dir = path
		}
		return NewBadgerStore(opts)
	default:
		return nil, fmt.Errorf("'%s' is not a valid baseline store", cfg.Store)
	}
}

func decodeOptions(raw map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("invalid baseline store options: %w", err)
	}
	return nil
}
