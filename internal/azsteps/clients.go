package azsteps

//go:generate go tool mockgen -source=clients.go -destination=clients_mock_test.go -package=azsteps

import (
	"context"
	"fmt"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

// ContainerCreator is the part of [*azblob.Client] used to create containers.
type ContainerCreator interface {
	// CreateContainer maps to [azblob.Client.CreateContainer]
	CreateContainer(ctx context.Context, containerName string, o *azblob.CreateContainerOptions) (azblob.CreateContainerResponse, error)
}

// BlobCopier is the part of [*blob.Client] used for server-side copies.
type BlobCopier interface {
	// StartCopyFromURL maps to [blob.Client.StartCopyFromURL]
	StartCopyFromURL(ctx context.Context, copySource string, options *blob.StartCopyFromURLOptions) (blob.StartCopyFromURLResponse, error)

	// GetProperties maps to [blob.Client.GetProperties]
	GetProperties(ctx context.Context, options *blob.GetPropertiesOptions) (blob.GetPropertiesResponse, error)
}

// ClientFactory hands out storage clients for an account.
type ClientFactory interface {
	ContainerCreator(accountURL string) (ContainerCreator, error)
	BlobCopier(accountURL, containerName, blobName string) (BlobCopier, error)
}

// Auth modes accepted by NewCredential.
const (
	AuthModeDefault = "default"
	AuthModeCLI     = "cli"
)

// NewCredential returns the token credential for mode.
func NewCredential(mode string) (azcore.TokenCredential, error) {
	switch mode {
	case "", AuthModeDefault:
		return azidentity.NewDefaultAzureCredential(nil)
	case AuthModeCLI:
		return azidentity.NewAzureCLICredential(nil)
	default:
		return nil, fmt.Errorf("unknown auth mode %q (expected %q or %q)", mode, AuthModeDefault, AuthModeCLI)
	}
}

// NewClientFactory returns a factory that creates azblob clients
// authenticated with cred. Clients are reused per account.
func NewClientFactory(cred azcore.TokenCredential, options *azblob.ClientOptions) ClientFactory {
	return &azblobFactory{
		cred:    cred,
		options: options,
		clients: map[string]*azblob.Client{},
	}
}

type azblobFactory struct {
	cred    azcore.TokenCredential
	options *azblob.ClientOptions

	mu      sync.Mutex
	clients map[string]*azblob.Client
}

func (f *azblobFactory) client(accountURL string) (*azblob.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[accountURL]; ok {
		return c, nil
	}

	c, err := azblob.NewClient(accountURL, f.cred, f.options)
	if err != nil {
		return nil, fmt.Errorf("creating blob client for %s: %w", accountURL, err)
	}
	f.clients[accountURL] = c
	return c, nil
}

func (f *azblobFactory) ContainerCreator(accountURL string) (ContainerCreator, error) {
	c, err := f.client(accountURL)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (f *azblobFactory) BlobCopier(accountURL, containerName, blobName string) (BlobCopier, error) {
	c, err := f.client(accountURL)
	if err != nil {
		return nil, err
	}
	return c.ServiceClient().NewContainerClient(containerName).NewBlobClient(blobName), nil
}
