// Package archive mirrors delivered annotation images into blob storage,
// keyed by content hash so repeated deliveries of the same image are
// deduplicated server-side.
package archive

import (
	"context"
	"crypto/md5"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/sirupsen/logrus"

	"go-region-annotator/internal/logger"
	"go-region-annotator/internal/observer"
	"go-region-annotator/internal/raster"
)

// BlobArchive uploads image payloads to an Azure blob container.
type BlobArchive struct {
	client    *azblob.Client
	container string
	log       *logrus.Entry
}

// NewBlobArchive builds an archive backed by shared-key credentials.
// Returns nil without error when the account is not configured, so callers
// can wire it unconditionally.
func NewBlobArchive(accountName, accountKey, container string) (*BlobArchive, error) {
	if accountName == "" || container == "" {
		return nil, nil
	}

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	return &BlobArchive{
		client:    client,
		container: container,
		log:       logger.ForComponent("archive"),
	}, nil
}

// Upload stores the encoded image under images/<md5>.png. The same payload
// always maps to the same blob name, so re-uploads are idempotent.
func (a *BlobArchive) Upload(ctx context.Context, imageData string) (string, error) {
	raw, err := raster.DataURLBytes(imageData)
	if err != nil {
		return "", fmt.Errorf("archive payload: %w", err)
	}

	name := fmt.Sprintf("images/%x.png", md5.Sum(raw))
	if _, err := a.client.UploadBuffer(ctx, a.container, name, raw, nil); err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	return name, nil
}

// archiveObserver subscribes the archive to delivery events.
type archiveObserver struct {
	archive *BlobArchive
}

// NewObserver adapts a BlobArchive into a delivery observer that uploads
// the image of every successfully delivered record. A nil archive yields a
// no-op observer.
func NewObserver(a *BlobArchive) observer.Observer {
	return &archiveObserver{archive: a}
}

func (o *archiveObserver) OnEvent(ctx context.Context, event observer.Event) {
	if o.archive == nil {
		return
	}
	if event.Type != observer.DeliverySucceeded || event.ImageData == "" {
		return
	}

	name, err := o.archive.Upload(ctx, event.ImageData)
	if err != nil {
		o.archive.log.WithError(err).WithField("record_id", event.RecordID).
			Warn("image archive upload failed")
		return
	}
	o.archive.log.WithFields(logrus.Fields{
		"record_id": event.RecordID,
		"blob":      name,
	}).Debug("image archived")
}

func (o *archiveObserver) GetObserverName() string {
	return "blob_archive_observer"
}
