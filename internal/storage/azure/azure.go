// Package azure stores blobs in an Azure Storage container.
package azure

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/cockroachdb/errors"

	"ozzus/pm-tracker/internal/storage"
)

type Config struct {
	// ConnectionString takes precedence over AccountURL.
	ConnectionString string
	// AccountURL is used with the default Azure credential chain.
	AccountURL string
	Container  string
	// CreateContainer creates the container on startup when missing.
	CreateContainer bool
}

type Store struct {
	client       *azblob.Client
	container    string
	containerURL string
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Container) == "" {
		return nil, errors.New("azure container name is required")
	}

	var (
		client *azblob.Client
		err    error
	)
	switch {
	case cfg.ConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	case cfg.AccountURL != "":
		cred, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, errors.Wrap(credErr, "azure credential")
		}
		client, err = azblob.NewClient(cfg.AccountURL, cred, nil)
	default:
		return nil, errors.New("azure storage needs a connection string or an account URL")
	}
	if err != nil {
		return nil, errors.Wrap(err, "create azure blob client")
	}

	s := NewWithClient(client, cfg.Container)

	if cfg.CreateContainer {
		if _, err := client.CreateContainer(ctx, cfg.Container, nil); err != nil &&
			!bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return nil, errors.Wrapf(err, "create container %s", cfg.Container)
		}
	}

	return s, nil
}

func NewWithClient(client *azblob.Client, container string) *Store {
	return &Store{
		client:       client,
		container:    container,
		containerURL: strings.TrimSuffix(client.URL(), "/") + "/" + url.PathEscape(container),
	}
}

func (s *Store) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	opts := &azblob.UploadBufferOptions{}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: to.Ptr(contentType)}
	}

	if _, err := s.client.UploadBuffer(ctx, s.container, name, data, opts); err != nil {
		return "", errors.Wrapf(err, "upload blob %s", name)
	}
	return s.containerURL + "/" + (&url.URL{Path: name}).EscapedPath(), nil
}

func (s *Store) Get(ctx context.Context, ref string) ([]byte, error) {
	name, ok := s.name(ref)
	if !ok {
		return nil, errors.Newf("reference %q is not in container %s", ref, s.container)
	}

	resp, err := s.client.DownloadStream(ctx, s.container, name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, errors.Mark(errors.Wrapf(err, "blob %s", name), storage.ErrNotFound)
		}
		return nil, errors.Wrapf(err, "download blob %s", name)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read blob %s", name)
	}
	return data, nil
}

func (s *Store) Owns(ref string) bool {
	_, ok := s.name(ref)
	return ok
}

func (s *Store) Ping(ctx context.Context) error {
	pager := s.client.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{MaxResults: to.Ptr(int32(1))})
	if _, err := pager.NextPage(ctx); err != nil {
		return errors.Wrapf(err, "list container %s", s.container)
	}
	return nil
}

func (s *Store) name(ref string) (string, bool) {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	rest, ok := strings.CutPrefix(ref, s.containerURL+"/")
	if !ok || rest == "" {
		return "", false
	}
	name, err := url.PathUnescape(rest)
	if err != nil {
		return "", false
	}
	return name, true
}

var _ storage.BlobStore = (*Store)(nil)
