package report

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"groupsync/internal/domain"
)

// Uploader archives run reports as JSON blobs in an Azure storage container.
// It shares the directory's token credential; the app registration needs the
// Storage Blob Data Contributor role on the container.
type Uploader struct {
	client    *azblob.Client
	container string
	prefix    string
}

// NewUploader builds an uploader for a container URL of the form
// https://account.blob.core.windows.net/container[/prefix].
func NewUploader(containerURL string, cred azcore.TokenCredential) (*Uploader, error) {
	serviceURL, container, prefix, err := splitContainerURL(containerURL)
	if err != nil {
		return nil, err
	}

	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}

	return &Uploader{client: client, container: container, prefix: prefix}, nil
}

// Upload archives the report and returns the blob name it was written to.
func (u *Uploader) Upload(ctx context.Context, report *domain.SyncReport) (string, error) {
	data, err := Marshal(report)
	if err != nil {
		return "", err
	}

	name := path.Join(u.prefix, report.StartedAt.UTC().Format("2006-01-02"), report.RunID+".json")
	if _, err := u.client.UploadBuffer(ctx, u.container, name, data, nil); err != nil {
		return "", fmt.Errorf("upload run %s: %w", report.RunID, err)
	}
	return name, nil
}

func splitContainerURL(raw string) (serviceURL, container, prefix string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", "", fmt.Errorf("parse container URL %q: %w", raw, err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return "", "", "", fmt.Errorf("container URL %q must be https://account.blob.core.windows.net/container", raw)
	}

	trimmed := strings.TrimPrefix(u.Path, "/")
	container, prefix, _ = strings.Cut(trimmed, "/")
	if container == "" {
		return "", "", "", fmt.Errorf("container URL %q is missing the container name", raw)
	}

	return u.Scheme + "://" + u.Host, container, strings.TrimSuffix(prefix, "/"), nil
}
