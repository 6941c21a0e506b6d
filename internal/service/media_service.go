package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ai-livehost-be/internal/model"
	"ai-livehost-be/internal/pkg/logger"
	"ai-livehost-be/internal/repository/memory"

	"github.com/google/uuid"
)

var (
	ErrNoVideoReady  = errors.New("no completed video is waiting")
	ErrUnknownItem   = errors.New("unknown item")
	ErrVideoNotFound = errors.New("video file not found")
)

type IMediaService interface {
	// NextVideo hands out the oldest completed item that has not been
	// delivered yet.
	NextVideo() (model.Item, error)
	// MarkStreamed confirms a clip reached its consumer; the item is
	// forgotten afterwards.
	MarkStreamed(id uuid.UUID) error
	// VideoPath resolves a clip reference to an absolute path under the
	// media directory.
	VideoPath(ref string) (string, error)
	BaseVideoPath() string
}

type mediaService struct {
	repo          *memory.ItemRepository
	logger        logger.ILogger
	mediaDir      string
	baseVideoPath string
}

func NewMediaService(repo *memory.ItemRepository, log logger.ILogger, mediaDir, baseVideoPath string) IMediaService {
	return &mediaService{
		repo:          repo,
		logger:        log,
		mediaDir:      mediaDir,
		baseVideoPath: baseVideoPath,
	}
}

func (s *mediaService) NextVideo() (model.Item, error) {
	item, ok := s.repo.EarliestCompletedUndelivered()
	if !ok {
		return model.Item{}, ErrNoVideoReady
	}
	return item, nil
}

func (s *mediaService) MarkStreamed(id uuid.UUID) error {
	if err := s.repo.MarkDelivered(id); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	s.repo.Delete(id)
	s.logger.Info("Media", "Clip confirmed streamed", map[string]interface{}{"item_id": id})
	return nil
}

func (s *mediaService) VideoPath(ref string) (string, error) {
	// References are bare file names; anything with path structure is
	// refused rather than resolved.
	clean := filepath.Base(ref)
	if clean != ref || clean == "." || clean == string(filepath.Separator) {
		return "", ErrVideoNotFound
	}
	path := filepath.Join(s.mediaDir, clean)
	if _, err := os.Stat(path); err != nil {
		return "", ErrVideoNotFound
	}
	return path, nil
}

func (s *mediaService) BaseVideoPath() string {
	return s.baseVideoPath
}
