package baseline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// BlobOptions configures a [BlobStore]. Either ConnectionString or AccountURL
// must be set; AccountURL authenticates with the default Azure credential chain.
type BlobOptions struct {
	AccountURL       string `mapstructure:"account_url"`
	ConnectionString string `mapstructure:"connection_string"`
	Container        string `mapstructure:"container"`
	Blob             string `mapstructure:"blob"`
}

// BlobStore keeps the log in a single Azure Storage blob.
type BlobStore struct {
	client    *azblob.Client
	container string
	blob      string
}

// NewBlobStore creates a [BlobStore].
func NewBlobStore(opts BlobOptions) (*BlobStore, error) {
	if opts.Container == "" {
		return nil, errors.New("azblob baseline store requires 'container'")
	}

	var (
		client *azblob.Client
		err    error
	)
	switch {
	case opts.ConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(opts.ConnectionString, nil)
	case opts.AccountURL != "":
		cred, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, fmt.Errorf("creating Azure credential: %w", credErr)
		}
		client, err = azblob.NewClient(opts.AccountURL, cred, nil)
	default:
		return nil, errors.New("azblob baseline store requires 'account_url' or 'connection_string'")
	}
	if err != nil {
		return nil, fmt.Errorf("creating blob client: %w", err)
	}

	return &BlobStore{client: client, container: opts.Container, blob: opts.Blob}, nil
}

// Load implements [Store].
func (s *BlobStore) Load(ctx context.Context) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, s.blob, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	return io.ReadAll(resp.Body)
}

// Save implements [Store].
func (s *BlobStore) Save(ctx context.Context, data []byte) error {
	_, err := s.client.UploadBuffer(ctx, s.container, s.blob, data, nil)
	return err
}

// Close implements [Store].
func (s *BlobStore) Close() error { return nil }

func (s *BlobStore) String() string { return fmt.Sprintf("azblob:%s/%s", s.container, s.blob) }
