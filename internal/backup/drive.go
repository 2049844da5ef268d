// Package backup uploads user voice recordings to Google Drive so they
// survive a device reset.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Drive copies recorded audio files into a Drive folder. Re-uploading the
// same file replaces the previous copy instead of duplicating it.
type Drive struct {
	service  *drive.Service
	folderID string
	fileIDs  map[string]string
	mu       sync.Mutex
}

func NewDrive(ctx context.Context, credPath, folderID string) (*Drive, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &Drive{
		service:  svc,
		folderID: folderID,
		fileIDs:  make(map[string]string),
	}, nil
}

// Upload pushes one recording to Drive, grouped by chat in the file name.
func (d *Drive) Upload(ctx context.Context, localPath, chatID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	name := fmt.Sprintf("rozmova-%s-%s", chatID, filepath.Base(localPath))

	if fileID, ok := d.fileIDs[name]; ok {
		_, err = d.service.Files.Update(fileID, &drive.File{}).Media(f).Context(ctx).Do()
		if err == nil {
			return nil
		}
		// A stale file ID means the remote copy was removed; fall through
		// and create a fresh one.
		var apiErr *googleapi.Error
		if !errors.As(err, &apiErr) || apiErr.Code != 404 {
			return fmt.Errorf("drive update: %w", err)
		}
		delete(d.fileIDs, name)
		if _, err := f.Seek(0, 0); err != nil {
			return fmt.Errorf("rewind %s: %w", localPath, err)
		}
	}

	doc, err := d.service.Files.Create(&drive.File{
		Name:     name,
		MimeType: "audio/mp4",
		Parents:  []string{d.folderID},
	}).Media(f).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("drive create: %w", err)
	}

	d.fileIDs[name] = doc.Id
	return nil
}
