package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/mitchellh/mapstructure"
	"google.golang.org/api/option"

	"github.com/greut/sipi/internal/logger"
)

// objectOpener hides the storage client so the source can be tested.
type objectOpener interface {
	Open(ctx context.Context, bucket, name string) (io.ReadCloser, time.Time, error)
}

type storageOpener struct {
	client *storage.Client
}

func (so storageOpener) Open(ctx context.Context, bucket, name string) (io.ReadCloser, time.Time, error) {
	r, err := so.client.Bucket(bucket).Object(name).NewReader(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	return r, r.Attrs.LastModified, nil
}

// GCSSource reads objects named prefix + identifier in a bucket.
type GCSSource struct {
	opener objectOpener
	bucket string
	prefix string
}

// GCSOptions are read from the [images.gcs] table.
type GCSOptions struct {
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	CredentialsFile string `mapstructure:"credentials_file"`
	CredentialsJSON string `mapstructure:"credentials_json"`
	Anonymous       bool   `mapstructure:"anonymous"`
}

func NewGCSSourceFromOptions(ctx context.Context, options map[string]any) (*GCSSource, error) {
	var opts GCSOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode GCS source config: %w", err)
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("GCS source: bucket is required")
	}

	var clientOptions []option.ClientOption
	switch {
	case opts.Anonymous:
		clientOptions = append(clientOptions, option.WithoutAuthentication())
	case opts.CredentialsJSON != "":
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(opts.CredentialsJSON)))
	case opts.CredentialsFile != "":
		clientOptions = append(clientOptions, option.WithCredentialsFile(opts.CredentialsFile))
	}
	if opts.Endpoint != "" {
		clientOptions = append(clientOptions, option.WithEndpoint(opts.Endpoint))
	}

	client, err := storage.NewClient(ctx, clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}

	logger.Info("GCS source initialized: bucket=%s, prefix=%s", opts.Bucket, opts.KeyPrefix)
	return &GCSSource{opener: storageOpener{client}, bucket: opts.Bucket, prefix: opts.KeyPrefix}, nil
}

func (gs *GCSSource) Read(ctx context.Context, identifier string) ([]byte, time.Time, error) {
	if identifier == "" || strings.Contains(identifier, "://") {
		return nil, time.Time{}, ErrNotFound
	}

	name := gs.prefix + identifier
	r, modTime, err := gs.opener.Open(ctx, gs.bucket, name)
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return nil, time.Time{}, ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("source: gs://%s/%s: %w", gs.bucket, name, err)
	}
	defer r.Close()

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("source: gs://%s/%s: %w", gs.bucket, name, err)
	}
	return body, modTime, nil
}
