package business

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alex-away/tg-ytdl-gofile/config"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/dto"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/entities"
	boterrors "github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/errors"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/limiter"
	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/progress"
	"github.com/alex-away/tg-ytdl-gofile/internal/infrastructure/metrics"
	pkgerrors "github.com/alex-away/tg-ytdl-gofile/pkg/errors"
)

const (
	sudoID    int64 = 1
	allowedID int64 = 2
	testURL         = "https://youtu.be/dQw4w9WgXcQ"
)

type fakeSender struct {
	mu        sync.Mutex
	nextID    int
	messages  []string
	choices   []string
	failures  []error
	completed []*entities.UploadOutcome
	sendErr   error
	// progressErr is returned by every progress edit
	progressErr error
	failureErr  error
}

func (f *fakeSender) SendFile(ctx context.Context, chatID int64, result *entities.DownloadResult) (string, error) {
	return "file", nil
}

func (f *fakeSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return f.sendErr
}

func (f *fakeSender) SendMessageAndGetID(ctx context.Context, chatID int64, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.nextID++
	f.messages = append(f.messages, text)
	return f.nextID, nil
}

func (f *fakeSender) ShowFormatChoice(ctx context.Context, chatID int64, messageID int, info *entities.VideoInfo, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.choices = append(f.choices, sessionID)
	return nil
}

func (f *fakeSender) ShowProgress(ctx context.Context, chatID int64, messageID int, title string, p entities.Progress) error {
	return f.progressErr
}

func (f *fakeSender) ShowCompleted(ctx context.Context, chatID int64, messageID int, result *entities.DownloadResult, outcome *entities.UploadOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, outcome)
	return nil
}

func (f *fakeSender) ShowFailure(ctx context.Context, chatID int64, messageID int, err error, isSudo bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, err)
	return f.failureErr
}

func (f *fakeSender) SendAuditEvent(ctx context.Context, channelID int64, event entities.AuditEvent) error {
	return nil
}

type fakeUsers struct {
	mu      sync.Mutex
	allowed map[int64]bool
	channel int64
}

func (f *fakeUsers) Tier(id int64) entities.Tier {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case id == sudoID:
		return entities.TierSudo
	case f.allowed[id]:
		return entities.TierAllowed
	default:
		return entities.TierUnauthorized
	}
}

func (f *fakeUsers) Add(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == sudoID || f.allowed[id] {
		return false, nil
	}
	f.allowed[id] = true
	return true, nil
}

func (f *fakeUsers) Remove(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == sudoID {
		return boterrors.ErrSudoImmutable
	}
	if !f.allowed[id] {
		return boterrors.ErrUserNotFound
	}
	delete(f.allowed, id)
	return nil
}

func (f *fakeUsers) List() []entities.UserRecord { return nil }

func (f *fakeUsers) LogChannel() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channel
}

func (f *fakeUsers) SetLogChannel(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channel = id
	return nil
}

type fakeCookies struct {
	saved []byte
}

func (f *fakeCookies) Path() (string, error) { return "cookies.txt", nil }

func (f *fakeCookies) Save(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return boterrors.ErrEmptyCookies
	}
	f.saved = data
	return nil
}

type fakeDownloader struct {
	probeErr error
	fetchErr error
	// gate blocks Fetch until closed, when set
	gate    chan struct{}
	started chan struct{}
	// publishFirst sends a progress snapshot before waiting on gate
	publishFirst bool

	mu       sync.Mutex
	cleaned  int
	requests []*entities.DownloadRequest
}

func (f *fakeDownloader) Probe(ctx context.Context, url string, useCookies bool) (*entities.VideoInfo, error) {
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	return &entities.VideoInfo{
		ID:        "dQw4w9WgXcQ",
		URL:       url,
		Title:     "Never Gonna Give You Up",
		Qualities: []entities.Format{entities.Format360p, entities.Format720p},
	}, nil
}

func (f *fakeDownloader) Fetch(ctx context.Context, req *entities.DownloadRequest, stream *progress.Stream) (*entities.DownloadResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.publishFirst {
		stream.Publish(entities.Progress{Stage: entities.StageDownloading, Percent: 10})
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	stream.Publish(entities.Progress{Stage: entities.StageDownloading, Percent: 100})
	return &entities.DownloadResult{
		Path:      "/downloads/job/video.mp4",
		Dir:       "/downloads/job",
		SizeBytes: 10 << 20,
		Title:     req.Info.Title,
		Format:    req.Format,
	}, nil
}

func (f *fakeDownloader) Cleanup(result *entities.DownloadResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleaned++
	return nil
}

type fakeDeliverer struct {
	err error
}

func (f *fakeDeliverer) Deliver(ctx context.Context, result *entities.DownloadResult, chatID int64, stream *progress.Stream) (*entities.UploadOutcome, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &entities.UploadOutcome{Mode: entities.DeliveryDirect, FileID: "file", Attempts: 1}, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []entities.AuditEventType
}

func (f *fakePublisher) Publish(ctx context.Context, event entities.AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event.Type)
	return nil
}

func (f *fakePublisher) types() []entities.AuditEventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entities.AuditEventType(nil), f.events...)
}

type fixture struct {
	uc         *UseCase
	sender     *fakeSender
	users      *fakeUsers
	cookies    *fakeCookies
	downloader *fakeDownloader
	deliverer  *fakeDeliverer
	publisher  *fakePublisher
	limiter    *limiter.Limiter
	metrics    *metrics.Metrics
	logs       *syncBuffer
}

// syncBuffer collects log output written from pipeline goroutines
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()

	f := &fixture{
		sender:     &fakeSender{},
		users:      &fakeUsers{allowed: map[int64]bool{allowedID: true}},
		cookies:    &fakeCookies{},
		downloader: &fakeDownloader{},
		deliverer:  &fakeDeliverer{},
		publisher:  &fakePublisher{},
		limiter:    limiter.New(capacity),
		metrics:    metrics.NewMetrics(prometheus.NewRegistry()),
		logs:       &syncBuffer{},
	}
	f.uc = NewUseCase(Params{
		Users:      f.users,
		Cookies:    f.cookies,
		Downloader: f.downloader,
		Deliverer:  f.deliverer,
		Publisher:  f.publisher,
		Limiter:    f.limiter,
		Metrics:    f.metrics,
		Download: &config.DownloadConfig{
			MaxSizeBytes:     2048 << 20,
			ProgressInterval: time.Millisecond,
			SessionTTL:       time.Minute,
		},
		Telegram: &config.TelegramConfig{UploadLimitBytes: 50 << 20, RequestTimeout: time.Second},
		Logger:   zerolog.New(f.logs),
	})
	f.uc.SetSender(f.sender)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = f.uc.Shutdown(ctx)
	})
	return f
}

func download(sender int64, format entities.Format) *dto.DownloadCommandRequest {
	return &dto.DownloadCommandRequest{
		Sender: entities.Sender{ID: sender, FirstName: "Ann"},
		ChatID: sender,
		URL:    testURL,
		Format: format,
	}
}

func TestHandleStart(t *testing.T) {
	f := newFixture(t, 1)

	resp, err := f.uc.HandleStart(context.Background(), &dto.StartCommandRequest{UserID: allowedID, FirstName: "<Ann>"})
	require.NoError(t, err)

	assert.Contains(t, resp.Message, "Hi &lt;Ann&gt;!")
	assert.Contains(t, resp.Message, "50 MB")
}

func TestHandleHelp_AdminSection(t *testing.T) {
	f := newFixture(t, 1)

	sudo, err := f.uc.HandleHelp(context.Background(), sudoID)
	require.NoError(t, err)
	user, err := f.uc.HandleHelp(context.Background(), allowedID)
	require.NoError(t, err)

	assert.Contains(t, sudo.Message, "/adduser")
	assert.NotContains(t, user.Message, "/adduser")
	assert.Contains(t, user.Message, "/cookieytdl")
}

func TestHandleDownload_Validation(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	req := download(allowedID, "")
	req.URL = ""
	assert.ErrorIs(t, f.uc.HandleDownload(ctx, req), boterrors.ErrMissingURL)

	req.URL = "https://example.com/watch?v=dQw4w9WgXcQ"
	assert.ErrorIs(t, f.uc.HandleDownload(ctx, req), boterrors.ErrInvalidURL)

	req = download(allowedID, entities.Format("8k"))
	assert.ErrorIs(t, f.uc.HandleDownload(ctx, req), boterrors.ErrUnknownFormat)

	assert.Zero(t, f.limiter.InUse())
}

func TestHandleDownload_DirectFormat(t *testing.T) {
	f := newFixture(t, 1)

	require.NoError(t, f.uc.HandleDownload(context.Background(), download(allowedID, entities.Format720p)))
	f.uc.wg.Wait()

	require.Len(t, f.sender.completed, 1)
	assert.Empty(t, f.sender.failures)
	assert.Equal(t, 1, f.downloader.cleaned)
	assert.Zero(t, f.limiter.InUse())
	assert.Equal(t, []entities.AuditEventType{
		entities.AuditDownloadRequest,
		entities.AuditDownloadStarted,
		entities.AuditDownloadDone,
		entities.AuditFileDeleted,
	}, f.publisher.types())
}

func TestHandleDownload_CapacityRejectsSecond(t *testing.T) {
	f := newFixture(t, 1)
	f.downloader.gate = make(chan struct{})
	f.downloader.started = make(chan struct{}, 2)
	ctx := context.Background()

	require.NoError(t, f.uc.HandleDownload(ctx, download(allowedID, entities.Format720p)))
	<-f.downloader.started
	assert.Equal(t, 1, f.limiter.InUse())

	err := f.uc.HandleDownload(ctx, download(sudoID, entities.FormatMP3))
	assert.True(t, pkgerrors.IsCapacityError(err))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CapacityRejected))

	close(f.downloader.gate)
	f.uc.wg.Wait()
	assert.Zero(t, f.limiter.InUse())

	require.NoError(t, f.uc.HandleDownload(ctx, download(sudoID, entities.FormatMP3)))
	f.uc.wg.Wait()
	assert.Len(t, f.sender.completed, 2)
}

func TestPipeline_SizeExceededReleasesPermit(t *testing.T) {
	f := newFixture(t, 1)
	f.downloader.fetchErr = pkgerrors.NewSizeExceededError(3000<<20, 2048<<20)

	require.NoError(t, f.uc.HandleDownload(context.Background(), download(allowedID, entities.Format1080p)))
	f.uc.wg.Wait()

	require.Len(t, f.sender.failures, 1)
	assert.True(t, pkgerrors.IsSizeExceededError(f.sender.failures[0]))
	assert.Zero(t, f.limiter.InUse())
	assert.Zero(t, f.downloader.cleaned)
	assert.Contains(t, f.publisher.types(), entities.AuditDownloadFailed)
}

func TestPipeline_DeliveryFailureCleansUp(t *testing.T) {
	f := newFixture(t, 1)
	f.deliverer.err = pkgerrors.NewUploadError(6, errors.New("503"))

	require.NoError(t, f.uc.HandleDownload(context.Background(), download(allowedID, entities.Format360p)))
	f.uc.wg.Wait()

	require.Len(t, f.sender.failures, 1)
	assert.Equal(t, 1, f.downloader.cleaned)
	assert.Zero(t, f.limiter.InUse())
}

func TestPipeline_ProbeFailure(t *testing.T) {
	f := newFixture(t, 1)
	f.downloader.probeErr = pkgerrors.NewExtractionError("could not fetch video information", errors.New("429"))

	require.NoError(t, f.uc.HandleDownload(context.Background(), download(allowedID, entities.Format360p)))
	f.uc.wg.Wait()

	require.Len(t, f.sender.failures, 1)
	assert.Empty(t, f.downloader.requests)
	assert.Zero(t, f.limiter.InUse())
}

func TestHandleDownload_ProbeFailureReportsFailedEdit(t *testing.T) {
	f := newFixture(t, 1)
	f.downloader.probeErr = pkgerrors.NewExtractionError("video is unavailable", errors.New("410"))
	f.sender.failureErr = boterrors.ErrChatGone

	require.NoError(t, f.uc.HandleDownload(context.Background(), download(allowedID, "")))

	require.Len(t, f.sender.failures, 1)
	assert.Empty(t, f.sender.choices)
	assert.Contains(t, f.logs.String(), "Failed to show failure")
}

func TestFormatChoice_Flow(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	require.NoError(t, f.uc.HandleDownload(ctx, download(allowedID, "")))
	require.Len(t, f.sender.choices, 1)
	sessionID := f.sender.choices[0]
	assert.Zero(t, f.limiter.InUse())

	choice := &dto.FormatChoiceRequest{
		Sender:    entities.Sender{ID: sudoID},
		ChatID:    allowedID,
		SessionID: sessionID,
		Format:    entities.Format720p,
	}
	assert.ErrorIs(t, f.uc.HandleFormatChoice(ctx, choice), boterrors.ErrNotSessionOwner)

	choice.Sender = entities.Sender{ID: allowedID}
	require.NoError(t, f.uc.HandleFormatChoice(ctx, choice))
	f.uc.wg.Wait()

	require.Len(t, f.downloader.requests, 1)
	assert.NotNil(t, f.downloader.requests[0].Info)
	assert.Len(t, f.sender.completed, 1)

	assert.ErrorIs(t, f.uc.HandleFormatChoice(ctx, choice), boterrors.ErrSessionExpired)
}

func TestFormatChoice_KeptWhenAtCapacity(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	require.NoError(t, f.uc.HandleDownload(ctx, download(allowedID, "")))
	sessionID := f.sender.choices[0]

	permit, err := f.limiter.Acquire()
	require.NoError(t, err)

	choice := &dto.FormatChoiceRequest{
		Sender:    entities.Sender{ID: allowedID},
		ChatID:    allowedID,
		SessionID: sessionID,
		Format:    entities.FormatMP3,
	}
	assert.True(t, pkgerrors.IsCapacityError(f.uc.HandleFormatChoice(ctx, choice)))

	permit.Release()
	require.NoError(t, f.uc.HandleFormatChoice(ctx, choice))
	f.uc.wg.Wait()
	assert.Len(t, f.sender.completed, 1)
}

func TestShutdown_CancelsRunningPipelines(t *testing.T) {
	f := newFixture(t, 2)
	f.downloader.gate = make(chan struct{})
	f.downloader.started = make(chan struct{}, 1)

	require.NoError(t, f.uc.HandleDownload(context.Background(), download(allowedID, entities.Format720p)))
	<-f.downloader.started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.uc.Shutdown(ctx))

	require.Len(t, f.sender.failures, 1)
	assert.ErrorIs(t, f.sender.failures[0], context.Canceled)
	assert.Zero(t, f.limiter.InUse())
}

func TestPipeline_ChatGoneAbandonsDownload(t *testing.T) {
	f := newFixture(t, 1)
	f.sender.progressErr = boterrors.ErrChatGone
	f.downloader.gate = make(chan struct{})
	f.downloader.publishFirst = true

	require.NoError(t, f.uc.HandleDownload(context.Background(), download(allowedID, entities.Format720p)))
	f.uc.wg.Wait()

	require.Len(t, f.sender.failures, 1)
	assert.ErrorIs(t, f.sender.failures[0], context.Canceled)
	assert.Zero(t, f.limiter.InUse())
	assert.Contains(t, f.publisher.types(), entities.AuditDownloadFailed)
}

func TestShutdown_RejectsNewDownloads(t *testing.T) {
	f := newFixture(t, 2)
	require.NoError(t, f.uc.Shutdown(context.Background()))

	err := f.uc.HandleDownload(context.Background(), download(allowedID, entities.Format720p))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.limiter.InUse())
	assert.Empty(t, f.downloader.requests)
}

func TestUserAdmin(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	admin := entities.Sender{ID: sudoID, Username: "root"}

	_, err := f.uc.HandleAddUser(ctx, admin, "abc")
	assert.ErrorIs(t, err, boterrors.ErrInvalidUserID)

	resp, err := f.uc.HandleAddUser(ctx, admin, " 42 ")
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "<code>42</code>")

	resp, err = f.uc.HandleAddUser(ctx, admin, "42")
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "already")

	_, err = f.uc.HandleRemoveUser(ctx, admin, "1")
	assert.ErrorIs(t, err, boterrors.ErrSudoImmutable)

	_, err = f.uc.HandleRemoveUser(ctx, admin, "42")
	require.NoError(t, err)

	_, err = f.uc.HandleRemoveUser(ctx, admin, "42")
	assert.ErrorIs(t, err, boterrors.ErrUserNotFound)

	assert.Equal(t, []entities.AuditEventType{entities.AuditUserAdded, entities.AuditUserRemoved}, f.publisher.types())
}

func TestHandleSetLogChannel(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	admin := entities.Sender{ID: sudoID}

	_, err := f.uc.HandleSetLogChannel(ctx, admin, "channel")
	assert.ErrorIs(t, err, boterrors.ErrInvalidChannelID)

	resp, err := f.uc.HandleSetLogChannel(ctx, admin, "-1001234567890")
	require.NoError(t, err)
	assert.Equal(t, int64(-1001234567890), f.users.LogChannel())
	assert.Contains(t, resp.Message, "✅")

	f.sender.sendErr = errors.New("chat not found")
	resp, err = f.uc.HandleSetLogChannel(ctx, admin, "-1009")
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "could not post")
}

func TestCookieFlow(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	admin := entities.Sender{ID: sudoID}

	_, err := f.uc.HandleCookieData(ctx, admin, []byte("data"))
	assert.ErrorIs(t, err, boterrors.ErrNoPendingCookie)

	_, err = f.uc.HandleSetCookie(ctx, sudoID)
	require.NoError(t, err)
	assert.True(t, f.uc.AwaitingCookie(sudoID))

	_, err = f.uc.HandleCookieData(ctx, admin, nil)
	assert.ErrorIs(t, err, boterrors.ErrEmptyCookies)
	assert.True(t, f.uc.AwaitingCookie(sudoID))

	_, err = f.uc.HandleCookieData(ctx, admin, []byte(".youtube.com\tTRUE\t/\tTRUE\t0\tSID\tabc"))
	require.NoError(t, err)
	assert.False(t, f.uc.AwaitingCookie(sudoID))
	assert.NotEmpty(t, f.cookies.saved)
	assert.Equal(t, []entities.AuditEventType{entities.AuditCookiesUpdated}, f.publisher.types())
}

func TestHandleCancel(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.uc.HandleCancel(ctx, sudoID)
	assert.ErrorIs(t, err, boterrors.ErrNoPendingCookie)

	_, err = f.uc.HandleSetCookie(ctx, sudoID)
	require.NoError(t, err)

	resp, err := f.uc.HandleCancel(ctx, sudoID)
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "canceled")
	assert.False(t, f.uc.AwaitingCookie(sudoID))
}
