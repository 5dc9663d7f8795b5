package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	closeoutapp "github.com/closeout/backend/internal/application/closeout"
	"github.com/closeout/backend/internal/domain/integration"
)

// Ensure DirFeedArchive implements FeedArchive
var _ closeoutapp.FeedArchive = (*DirFeedArchive)(nil)

// DirFeedArchive writes feeds to a local directory using the same layout as
// S3FeedArchive. Use this for development when no object storage is available.
type DirFeedArchive struct {
	root string
}

// NewDirFeedArchive creates a new DirFeedArchive rooted at dir
func NewDirFeedArchive(dir string) (*DirFeedArchive, error) {
	if dir == "" {
		return nil, errors.New("archive directory is required")
	}
	return &DirFeedArchive{root: dir}, nil
}

// Archive writes the documents of one feed as a JSON array
func (a *DirFeedArchive) Archive(_ context.Context, runID, businessDay string, feed integration.FeedType, docs []*integration.Document) error {
	if runID == "" || businessDay == "" {
		return errors.New("run id and business day are required")
	}
	dir := filepath.Join(a.root, businessDay)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	body, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s feed: %w", feed, err)
	}
	name := filepath.Join(dir, fmt.Sprintf("%s-%s.json", feed, runID))
	if err := os.WriteFile(name, body, 0o644); err != nil {
		return fmt.Errorf("failed to write archive file: %w", err)
	}
	return nil
}
