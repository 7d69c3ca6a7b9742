// internal/service/service.go
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kuaigrab/kuaigrab/internal/download"
	apperrors "github.com/kuaigrab/kuaigrab/internal/errors"
	"github.com/kuaigrab/kuaigrab/internal/extract"
	"github.com/kuaigrab/kuaigrab/internal/history"
	"github.com/kuaigrab/kuaigrab/internal/monitoring"
	"github.com/kuaigrab/kuaigrab/internal/resolver"
	"github.com/kuaigrab/kuaigrab/internal/schema"
	"github.com/kuaigrab/kuaigrab/internal/task"
	"github.com/kuaigrab/kuaigrab/internal/utils"
)

// LinkResolver resolves share text into a canonical content reference.
type LinkResolver interface {
	Resolve(ctx context.Context, rawText string) (*resolver.ResolvedLink, error)
}

// PageFetcher retrieves the raw markup of a canonical detail page.
type PageFetcher interface {
	FetchDetailPage(ctx context.Context, canonicalURL string) (string, error)
}

// MetadataExtractor parses raw markup into an extraction record.
type MetadataExtractor interface {
	Extract(markup, contentID, siteVariant string) (*extract.Record, error)
}

// Downloader fetches the media files of one content item.
type Downloader interface {
	Download(ctx context.Context, job download.Job) (string, error)
}

// HistoryStore archives completed downloads. Optional; a nil store disables
// the already-downloaded check.
type HistoryStore interface {
	Record(ctx context.Context, entry history.Entry) error
	Find(ctx context.Context, contentID string) (*history.Entry, error)
}

// Service wires the resolve, fetch, extract, map, and download pipeline
// behind the three operations the HTTP layer consumes.
type Service struct {
	resolver   LinkResolver
	fetcher    PageFetcher
	extractor  MetadataExtractor
	downloader Downloader
	registry   *task.Registry
	store      HistoryStore
	logger     utils.Logger
	metrics    *monitoring.Metrics
}

// New creates the service. Every dependency is explicit; nothing is reached
// through package-level state.
func New(
	linkResolver LinkResolver,
	fetcher PageFetcher,
	extractor MetadataExtractor,
	downloader Downloader,
	registry *task.Registry,
	store HistoryStore,
	logger utils.Logger,
	metrics *monitoring.Metrics,
) *Service {
	return &Service{
		resolver:   linkResolver,
		fetcher:    fetcher,
		extractor:  extractor,
		downloader: downloader,
		registry:   registry,
		store:      store,
		logger:     logger,
		metrics:    metrics,
	}
}

// GetMetadata runs the synchronous resolve → fetch → extract → map chain and
// returns the published metadata shape.
func (s *Service) GetMetadata(ctx context.Context, rawURL string) (*schema.VideoMetadata, error) {
	rec, _, err := s.extractRecord(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return schema.Map(rec, rawURL), nil
}

// EnqueueDownload registers a download task and schedules the work as a
// detached background unit. The task id is returned immediately; progress is
// observable only through GetTaskStatus.
func (s *Service) EnqueueDownload(rawURL string) (string, error) {
	taskID := uuid.NewString()
	if err := s.registry.Create(taskID); err != nil {
		return "", err
	}
	s.logger.Infof("task %s queued for %s", taskID, rawURL)

	go s.performDownload(taskID, rawURL)
	return taskID, nil
}

// GetTaskStatus reports the current task record; unknown ids yield a
// synthetic not_found record.
func (s *Service) GetTaskStatus(taskID string) task.Task {
	return s.registry.Lookup(taskID)
}

// performDownload is the background unit of work. It must never let a
// failure escape: every error, including panics, ends up in the registry as
// a failed status.
func (s *Service) performDownload(taskID, rawURL string) {
	ctx := context.Background()
	logger := s.logger.WithField("task_id", taskID)

	s.metrics.TaskStarted()
	status := task.StatusFailed
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("download task panicked: %v", r)
			s.failTask(taskID, fmt.Sprintf("internal error: %v", r))
		}
		s.metrics.TaskFinished(string(status))
	}()

	if err := s.registry.Transition(taskID, task.StatusProcessing, "preparing download", ""); err != nil {
		logger.Errorf("cannot start task: %v", err)
		return
	}

	rec, link, err := s.extractRecord(ctx, rawURL)
	if err != nil {
		logger.Errorf("resolve/extract failed: %v", err)
		s.failTask(taskID, apperrors.UserMessage(err))
		return
	}

	if s.store != nil {
		if prev, err := s.store.Find(ctx, rec.ContentID); err != nil {
			logger.Warnf("history lookup failed: %v", err)
		} else if prev != nil {
			logger.Infof("work %s already downloaded to %s", rec.ContentID, prev.FilePath)
			status = task.StatusCompleted
			s.completeTask(taskID, "already downloaded", prev.FilePath)
			return
		}
	}

	meta := schema.Map(rec, rawURL)
	job := download.Job{
		ContentID: rec.ContentID,
		BaseName:  deriveBaseName(meta),
		Type:      rec.ContentType,
		URLs:      rec.DownloadURLs,
	}

	logger.Infof("downloading %d file(s) for %s from %s", len(job.URLs), rec.ContentID, link.CanonicalURL)
	resultPath, err := s.downloader.Download(ctx, job)
	if err != nil {
		logger.Errorf("download failed: %v", err)
		s.failTask(taskID, apperrors.UserMessage(err))
		return
	}

	if s.store != nil {
		if err := s.store.Record(ctx, history.Entry{
			ContentID:  rec.ContentID,
			FilePath:   resultPath,
			AuthorName: rec.AuthorName,
			Caption:    rec.Caption,
		}); err != nil {
			logger.Warnf("failed to record download history: %v", err)
		}
	}

	status = task.StatusCompleted
	s.completeTask(taskID, "download completed", resultPath)
	logger.Infof("task completed, result at %s", resultPath)
}

// extractRecord runs the strictly sequential resolve → fetch → extract
// pipeline shared by metadata and download requests.
func (s *Service) extractRecord(ctx context.Context, rawURL string) (*extract.Record, *resolver.ResolvedLink, error) {
	link, err := s.resolver.Resolve(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}

	markup, err := s.fetcher.FetchDetailPage(ctx, link.CanonicalURL)
	if err != nil {
		return nil, nil, err
	}

	rec, err := s.extractor.Extract(markup, link.ContentID, link.SiteVariant)
	if err != nil {
		return nil, nil, err
	}
	return rec, link, nil
}

func (s *Service) failTask(taskID, message string) {
	if err := s.registry.Transition(taskID, task.StatusFailed, message, ""); err != nil {
		s.logger.Errorf("failed to mark task %s failed: %v", taskID, err)
	}
}

func (s *Service) completeTask(taskID, message, resultPath string) {
	if err := s.registry.Transition(taskID, task.StatusCompleted, message, resultPath); err != nil {
		s.logger.Errorf("failed to mark task %s completed: %v", taskID, err)
	}
}

// deriveBaseName builds the filename base from publish time, author, and
// caption, mirroring the platform's own archive naming.
func deriveBaseName(meta *schema.VideoMetadata) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{meta.PublishTime, meta.Author.Nickname, meta.Title} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
