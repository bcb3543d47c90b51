package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/metrolabs/equiptrack/internal/httpclient"
)

// AttachmentAPI covers calibration certificates and other files attached
// to equipment records.
type AttachmentAPI struct {
	client *httpclient.Client
}

// ListForEquipment returns the attachments of one asset.
func (a *AttachmentAPI) ListForEquipment(ctx context.Context, equipmentID int64) ([]Attachment, error) {
	var attachments []Attachment
	err := a.client.Get(ctx, fmt.Sprintf("/api/attachments/equipment/%d/attachments", equipmentID), &attachments)
	return attachments, err
}

// Certificates returns only the calibration certificates of one asset.
func (a *AttachmentAPI) Certificates(ctx context.Context, equipmentID int64) ([]Attachment, error) {
	var attachments []Attachment
	err := a.client.Get(ctx, fmt.Sprintf("/api/attachments/equipment/%d/attachments/certificates", equipmentID), &attachments)
	return attachments, err
}

// Get returns one attachment's metadata.
func (a *AttachmentAPI) Get(ctx context.Context, id int64) (Attachment, error) {
	var attachment Attachment
	err := a.client.Get(ctx, fmt.Sprintf("/api/attachments/%d", id), &attachment)
	return attachment, err
}

// Upload streams a file to an asset's attachment list. The progress
// callback, when non-nil, receives upload percentages.
func (a *AttachmentAPI) Upload(ctx context.Context, equipmentID int64, filename string, file io.Reader, size int64, progress httpclient.ProgressFunc) (Attachment, error) {
	endpoint := fmt.Sprintf("/api/attachments/equipment/%d/attachments", equipmentID)
	raw, err := a.client.Upload(ctx, endpoint, filename, file, size, nil, progress)
	if err != nil {
		return Attachment{}, err
	}
	var attachment Attachment
	if len(raw) > 0 {
		if err := decode(raw, &attachment); err != nil {
			return Attachment{}, err
		}
	}
	return attachment, nil
}

// Delete removes an attachment.
func (a *AttachmentAPI) Delete(ctx context.Context, id int64) error {
	return a.client.Delete(ctx, fmt.Sprintf("/api/attachments/%d", id), nil)
}

// Download writes the attachment content to dst and returns the filename
// the server advertises.
func (a *AttachmentAPI) Download(ctx context.Context, id int64, dst io.Writer, progress httpclient.ProgressFunc) (string, error) {
	return a.client.Download(ctx, http.MethodGet, fmt.Sprintf("/api/attachments/%d/download", id), nil, dst, progress)
}

// Preview writes an inline-viewable rendition of the attachment to dst.
func (a *AttachmentAPI) Preview(ctx context.Context, id int64, dst io.Writer) error {
	_, err := a.client.Download(ctx, http.MethodGet, fmt.Sprintf("/api/attachments/%d/preview", id), nil, dst, nil)
	return err
}
