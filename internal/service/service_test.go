// internal/service/service_test.go
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kuaigrab/kuaigrab/internal/download"
	apperrors "github.com/kuaigrab/kuaigrab/internal/errors"
	"github.com/kuaigrab/kuaigrab/internal/extract"
	"github.com/kuaigrab/kuaigrab/internal/history"
	"github.com/kuaigrab/kuaigrab/internal/resolver"
	"github.com/kuaigrab/kuaigrab/internal/task"
	"github.com/kuaigrab/kuaigrab/internal/utils"
)

type fakeResolver struct {
	link *resolver.ResolvedLink
	err  error
}

func (f *fakeResolver) Resolve(context.Context, string) (*resolver.ResolvedLink, error) {
	return f.link, f.err
}

type fakeFetcher struct {
	markup string
	err    error
}

func (f *fakeFetcher) FetchDetailPage(context.Context, string) (string, error) {
	return f.markup, f.err
}

type fakeExtractor struct {
	rec *extract.Record
	err error
}

func (f *fakeExtractor) Extract(string, string, string) (*extract.Record, error) {
	return f.rec, f.err
}

type fakeDownloader struct {
	path  string
	err   error
	panic bool

	mu   sync.Mutex
	jobs []download.Job
}

func (f *fakeDownloader) Download(_ context.Context, job download.Job) (string, error) {
	if f.panic {
		panic("downloader exploded")
	}
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.mu.Unlock()
	return f.path, f.err
}

type fakeStore struct {
	mu      sync.Mutex
	entries map[string]history.Entry
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]history.Entry)}
}

func (f *fakeStore) Record(_ context.Context, entry history.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[entry.ContentID] = entry
	return nil
}

func (f *fakeStore) Find(_ context.Context, contentID string) (*history.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.entries[contentID]; ok {
		return &e, nil
	}
	return nil, nil
}

func videoRecord() *extract.Record {
	return &extract.Record{
		ContentID:    "3xvid1",
		AuthorID:     "3xauthor",
		AuthorName:   "某作者",
		Caption:      "标题",
		ContentType:  extract.ContentTypeVideo,
		DownloadURLs: []string{"https://cdn.example/v.mp4"},
		LikeCount:    "1.2万",
		Duration:     float64(65000),
		PublishedAt:  1714550400000,
	}
}

func detailLink() *resolver.ResolvedLink {
	return &resolver.ResolvedLink{
		SiteVariant:  "www",
		ContentID:    "3xvid1",
		CanonicalURL: "https://www.kuaishou.com/short-video/3xvid1",
	}
}

func newTestService(r LinkResolver, f PageFetcher, e MetadataExtractor, d Downloader, store HistoryStore) *Service {
	return New(r, f, e, d, task.NewRegistry(), store,
		utils.NewLoggerWithLevel(utils.ErrorLevel), nil)
}

func waitForTerminal(t *testing.T, s *Service, taskID string) task.Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got := s.GetTaskStatus(taskID)
		if got.Status == task.StatusCompleted || got.Status == task.StatusFailed {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never reached a terminal state", taskID)
	return task.Task{}
}

func TestGetMetadata(t *testing.T) {
	s := newTestService(
		&fakeResolver{link: detailLink()},
		&fakeFetcher{markup: "<html></html>"},
		&fakeExtractor{rec: videoRecord()},
		&fakeDownloader{},
		nil,
	)

	meta, err := s.GetMetadata(context.Background(), "https://v.kuaishou.com/abc")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if meta.VideoID != "3xvid1" {
		t.Errorf("VideoID = %q", meta.VideoID)
	}
	if meta.Statistics.LikeCount != 12000 {
		t.Errorf("LikeCount = %d, want 12000", meta.Statistics.LikeCount)
	}
	if meta.Media.Duration != 65 {
		t.Errorf("Duration = %d, want 65", meta.Media.Duration)
	}
	if meta.Media.VideoURL == "" || len(meta.Media.ImageURLs) != 0 {
		t.Errorf("media exclusivity violated: %+v", meta.Media)
	}
}

func TestGetMetadataFetchErrorKeepsCategory(t *testing.T) {
	s := newTestService(
		&fakeResolver{link: detailLink()},
		&fakeFetcher{err: &apperrors.FetchError{URL: "u", Code: 503}},
		&fakeExtractor{},
		&fakeDownloader{},
		nil,
	)

	_, err := s.GetMetadata(context.Background(), "https://v.kuaishou.com/abc")
	if apperrors.KindOf(err) != apperrors.KindFetch {
		t.Fatalf("error kind = %v (%v), want fetch", apperrors.KindOf(err), err)
	}
}

func TestEnqueueDownloadCompletes(t *testing.T) {
	dl := &fakeDownloader{path: "/downloads/out.mp4"}
	store := newFakeStore()
	s := newTestService(
		&fakeResolver{link: detailLink()},
		&fakeFetcher{markup: "<html></html>"},
		&fakeExtractor{rec: videoRecord()},
		dl,
		store,
	)

	taskID, err := s.EnqueueDownload("https://v.kuaishou.com/abc")
	if err != nil {
		t.Fatalf("EnqueueDownload: %v", err)
	}
	if taskID == "" {
		t.Fatal("empty task id")
	}

	// Before the terminal state the task is observable as queued or processing.
	if got := s.GetTaskStatus(taskID).Status; got == task.StatusNotFound {
		t.Fatalf("fresh task reported not_found")
	}

	got := waitForTerminal(t, s, taskID)
	if got.Status != task.StatusCompleted {
		t.Fatalf("task = %+v, want completed", got)
	}
	if got.ResultPath != "/downloads/out.mp4" {
		t.Fatalf("ResultPath = %q", got.ResultPath)
	}

	// The download was recorded in history.
	if entry, _ := store.Find(context.Background(), "3xvid1"); entry == nil {
		t.Fatal("completed download missing from history")
	}

	// Terminal records do not mutate.
	again := s.GetTaskStatus(taskID)
	if again.Status != got.Status || again.ResultPath != got.ResultPath {
		t.Fatalf("terminal record changed: %+v vs %+v", got, again)
	}

	// The job carried the derived name parts.
	dl.mu.Lock()
	defer dl.mu.Unlock()
	if len(dl.jobs) != 1 {
		t.Fatalf("downloader ran %d jobs, want 1", len(dl.jobs))
	}
	base := dl.jobs[0].BaseName
	for _, part := range []string{"2024", "某作者", "标题"} {
		if !strings.Contains(base, part) {
			t.Errorf("BaseName %q missing %q", base, part)
		}
	}
}

func TestEnqueueDownloadFailureIsCaptured(t *testing.T) {
	s := newTestService(
		&fakeResolver{link: detailLink()},
		&fakeFetcher{markup: "<html></html>"},
		&fakeExtractor{rec: videoRecord()},
		&fakeDownloader{err: &apperrors.DownloadError{URL: "u", Attempts: 3, Err: fmt.Errorf("reset")}},
		nil,
	)

	taskID, _ := s.EnqueueDownload("https://v.kuaishou.com/abc")
	got := waitForTerminal(t, s, taskID)
	if got.Status != task.StatusFailed {
		t.Fatalf("task = %+v, want failed", got)
	}
	if got.Message == "" {
		t.Fatal("failed task must carry a message")
	}
}

func TestEnqueueDownloadAuthFailureMessage(t *testing.T) {
	s := newTestService(
		&fakeResolver{link: detailLink()},
		&fakeFetcher{err: &apperrors.AuthRequiredError{Reason: "redirected to login page"}},
		&fakeExtractor{},
		&fakeDownloader{},
		nil,
	)

	taskID, _ := s.EnqueueDownload("https://v.kuaishou.com/abc")
	got := waitForTerminal(t, s, taskID)
	if got.Status != task.StatusFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
	if !strings.Contains(got.Message, "cookie") {
		t.Fatalf("auth failure message %q should mention the cookie", got.Message)
	}
}

func TestEnqueueDownloadPanicIsCaptured(t *testing.T) {
	s := newTestService(
		&fakeResolver{link: detailLink()},
		&fakeFetcher{markup: "<html></html>"},
		&fakeExtractor{rec: videoRecord()},
		&fakeDownloader{panic: true},
		nil,
	)

	taskID, _ := s.EnqueueDownload("https://v.kuaishou.com/abc")
	got := waitForTerminal(t, s, taskID)
	if got.Status != task.StatusFailed {
		t.Fatalf("status = %q, want failed after panic", got.Status)
	}
	if !strings.Contains(got.Message, "internal error") {
		t.Fatalf("message = %q", got.Message)
	}
}

func TestEnqueueDownloadAlreadyDownloaded(t *testing.T) {
	store := newFakeStore()
	store.Record(context.Background(), history.Entry{
		ContentID: "3xvid1",
		FilePath:  "/downloads/previous.mp4",
	})

	dl := &fakeDownloader{path: "/downloads/new.mp4"}
	s := newTestService(
		&fakeResolver{link: detailLink()},
		&fakeFetcher{markup: "<html></html>"},
		&fakeExtractor{rec: videoRecord()},
		dl,
		store,
	)

	taskID, _ := s.EnqueueDownload("https://v.kuaishou.com/abc")
	got := waitForTerminal(t, s, taskID)
	if got.Status != task.StatusCompleted {
		t.Fatalf("task = %+v, want completed", got)
	}
	if got.ResultPath != "/downloads/previous.mp4" {
		t.Fatalf("ResultPath = %q, want the archived path", got.ResultPath)
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()
	if len(dl.jobs) != 0 {
		t.Fatalf("downloader ran %d jobs for an archived work, want 0", len(dl.jobs))
	}
}

func TestGetTaskStatusUnknown(t *testing.T) {
	s := newTestService(&fakeResolver{}, &fakeFetcher{}, &fakeExtractor{}, &fakeDownloader{}, nil)

	got := s.GetTaskStatus("nonexistent-id")
	if got.Status != task.StatusNotFound {
		t.Fatalf("status = %q, want not_found", got.Status)
	}
}
