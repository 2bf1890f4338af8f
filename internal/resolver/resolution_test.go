package resolver

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/download-resolver/internal/domain"
	"github.com/veranemoloko/download-resolver/internal/policy"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// fakeDelegate scripts every collaborator call. All callbacks fire
// synchronously unless a hold flag parks them for the test to release.
type fakeDelegate struct {
	mu sync.Mutex

	insecureStatus domain.InsecureDownloadStatus
	observerName   string
	observerAction domain.ConflictAction
	reserveResult  domain.PathValidationResult
	reservePath    string // empty: echo the requested path
	confirmResult  domain.ConfirmationResult
	confirmPath    string
	localPath      string // empty: echo the virtual path
	mimeType       string
	handledSafely  bool
	urlDanger      domain.DangerType

	holdConfirm   bool
	heldConfirm   func(domain.ConfirmationResult, string)
	doubleReserve bool

	reservedPath      string
	reservedAction    domain.ConflictAction
	reservedCreateDir bool
	confirmRequested  bool
	confirmReason     domain.ConfirmationReason
}

func newFakeDelegate() *fakeDelegate {
	return &fakeDelegate{
		insecureStatus: domain.InsecureStatusSafe,
		observerAction: domain.ConflictActionUniquify,
		reserveResult:  domain.PathValidationSuccess,
		confirmResult:  domain.ConfirmationResultConfirmed,
		urlDanger:      domain.DangerTypeNotDangerous,
	}
}

func (f *fakeDelegate) GetInsecureDownloadStatus(d *domain.Download, virtualPath string, cb func(domain.InsecureDownloadStatus)) {
	cb(f.insecureStatus)
}

func (f *fakeDelegate) NotifyObservers(d *domain.Download, virtualPath string, cb func(string, domain.ConflictAction)) {
	cb(f.observerName, f.observerAction)
}

func (f *fakeDelegate) ReserveVirtualPath(d *domain.Download, virtualPath string, createDir bool, action domain.ConflictAction, cb func(domain.PathValidationResult, string)) {
	f.mu.Lock()
	f.reservedPath = virtualPath
	f.reservedAction = action
	f.reservedCreateDir = createDir
	f.mu.Unlock()

	path := f.reservePath
	if path == "" {
		path = virtualPath
	}
	cb(f.reserveResult, path)
	if f.doubleReserve {
		cb(f.reserveResult, path)
	}
}

func (f *fakeDelegate) RequestConfirmation(d *domain.Download, virtualPath string, reason domain.ConfirmationReason, cb func(domain.ConfirmationResult, string)) {
	f.mu.Lock()
	f.confirmRequested = true
	f.confirmReason = reason
	hold := f.holdConfirm
	if hold {
		f.heldConfirm = cb
	}
	f.mu.Unlock()

	if hold {
		return
	}
	cb(f.confirmResult, f.confirmPath)
}

func (f *fakeDelegate) DetermineLocalPath(d *domain.Download, virtualPath string, cb func(string)) {
	if f.localPath != "" {
		cb(f.localPath)
		return
	}
	cb(virtualPath)
}

func (f *fakeDelegate) GetFileMimeType(localPath string, cb func(string)) {
	cb(f.mimeType)
}

func (f *fakeDelegate) DetermineIfHandledSafely(d *domain.Download, localPath, mimeType string, cb func(bool)) {
	cb(f.handledSafely)
}

func (f *fakeDelegate) CheckDownloadURL(d *domain.Download, virtualPath string, cb func(domain.DangerType)) {
	cb(f.urlDanger)
}

func (f *fakeDelegate) confirmation() (bool, domain.ConfirmationReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirmRequested, f.confirmReason
}

func (f *fakeDelegate) reservation() (string, domain.ConflictAction, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reservedPath, f.reservedAction, f.reservedCreateDir
}

type fakePrefs struct {
	mu           sync.Mutex
	downloadPath string
	saveFilePath string
	prompt       bool
	managed      bool
}

func (p *fakePrefs) DownloadPath() string { return p.downloadPath }

func (p *fakePrefs) SaveFilePath() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveFilePath == "" {
		return p.downloadPath
	}
	return p.saveFilePath
}

func (p *fakePrefs) SetSaveFilePath(dir string) {
	p.mu.Lock()
	p.saveFilePath = dir
	p.mu.Unlock()
}

func (p *fakePrefs) PromptForDownload() bool     { return p.prompt }
func (p *fakePrefs) IsDownloadPathManaged() bool { return p.managed }

type fakeHistory struct {
	ok         bool
	count      int
	firstVisit time.Time
}

func (h *fakeHistory) VisibleVisitCountToHost(referrerURL string, cb func(bool, int, time.Time)) {
	cb(h.ok, h.count, h.firstVisit)
}

type outcome struct {
	info  domain.TargetInfo
	level domain.DangerLevel
}

type fixture struct {
	delegate *fakeDelegate
	prefs    *fakePrefs
	history  *fakeHistory
	registry *Registry
	deps     Deps
	outcomes chan outcome
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		delegate: newFakeDelegate(),
		prefs:    &fakePrefs{downloadPath: filepath.Join(t.TempDir(), "downloads")},
		history:  &fakeHistory{},
		registry: NewRegistry(newTestLogger()),
		outcomes: make(chan outcome, 4),
	}
	f.deps = Deps{
		Delegate: f.delegate,
		History:  f.history,
		Prefs:    f.prefs,
		Policies: policy.NewFileTypePolicies(nil),
		Config:   Config{DefaultFilename: "download"},
		Logger:   newTestLogger(),
	}
	return f
}

func (f *fixture) start(d *domain.Download, initialVirtualPath string) *Resolution {
	return f.registry.Start(d, initialVirtualPath, domain.ConflictActionUniquify, f.deps, func(info domain.TargetInfo, level domain.DangerLevel) {
		f.outcomes <- outcome{info: info, level: level}
	})
}

func (f *fixture) wait(t *testing.T) outcome {
	t.Helper()
	select {
	case o := <-f.outcomes:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("resolution did not complete")
		return outcome{}
	}
}

// assertNoMoreOutcomes verifies the terminal callback fired exactly once.
func (f *fixture) assertNoMoreOutcomes(t *testing.T) {
	t.Helper()
	select {
	case <-f.outcomes:
		t.Fatal("terminal callback fired more than once")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestResolution_GeneratedPath(t *testing.T) {
	f := newFixture(t)
	d := domain.NewDownload(domain.DownloadRequest{
		URL:            "https://example.com/files/report.pdf",
		TransitionType: domain.TransitionFromLink,
	})

	f.start(d, "")
	o := f.wait(t)

	wantTarget := filepath.Join(f.prefs.downloadPath, "report.pdf")
	assert.Equal(t, domain.InterruptReasonNone, o.info.InterruptReason)
	assert.Equal(t, wantTarget, o.info.TargetPath)
	assert.Equal(t, wantTarget+PartialSuffix, o.info.IntermediatePath)
	assert.Equal(t, domain.TargetDispositionOverwrite, o.info.TargetDisposition)
	assert.Equal(t, domain.DangerTypeNotDangerous, o.info.DangerType)
	assert.Equal(t, domain.DangerLevelNotDangerous, o.level)
	assert.True(t, filepath.IsAbs(o.info.TargetPath))

	requested, _ := f.delegate.confirmation()
	assert.False(t, requested)
	f.assertNoMoreOutcomes(t)
}

func TestResolution_ForcedPathOverwritesWithoutPrompt(t *testing.T) {
	f := newFixture(t)
	forced := filepath.Join(f.prefs.downloadPath, "install.bin")
	d := domain.NewDownload(domain.DownloadRequest{
		URL:        "https://example.com/pkg",
		ForcedPath: forced,
	})

	f.start(d, "")
	o := f.wait(t)

	_, action, _ := f.delegate.reservation()
	assert.Equal(t, domain.ConflictActionOverwrite, action)

	requested, _ := f.delegate.confirmation()
	assert.False(t, requested)

	assert.Equal(t, domain.InterruptReasonNone, o.info.InterruptReason)
	assert.Equal(t, forced, o.info.TargetPath)
	assert.True(t, filepath.IsAbs(o.info.TargetPath))
	// Safe forced-path downloads are written straight to the target name.
	assert.Equal(t, forced, o.info.IntermediatePath)
	assert.Equal(t, domain.TargetDispositionOverwrite, o.info.TargetDisposition)
}

func TestResolution_RelativeForcedPathRootedInDownloadDir(t *testing.T) {
	f := newFixture(t)
	d := domain.NewDownload(domain.DownloadRequest{
		URL:        "https://example.com/pkg",
		ForcedPath: filepath.Join("rel", "install.bin"),
	})

	f.start(d, "")
	o := f.wait(t)

	assert.Equal(t, domain.InterruptReasonNone, o.info.InterruptReason)
	assert.True(t, filepath.IsAbs(o.info.TargetPath))
	assert.Equal(t, filepath.Join(f.prefs.downloadPath, "rel", "install.bin"), o.info.TargetPath)

	requested, _ := f.delegate.confirmation()
	assert.False(t, requested)
}

func TestResolution_TransientRelativeForcedPathRootedInDownloadDir(t *testing.T) {
	f := newFixture(t)
	d := domain.NewDownload(domain.DownloadRequest{
		URL:        "https://example.com/pkg",
		ForcedPath: "state.bin",
		Transient:  true,
	})

	f.start(d, "")
	o := f.wait(t)

	assert.Equal(t, domain.InterruptReasonNone, o.info.InterruptReason)
	assert.True(t, filepath.IsAbs(o.info.TargetPath))
	assert.Equal(t, filepath.Join(f.prefs.downloadPath, "state.bin"), o.info.TargetPath)
}

func TestResolution_SaveAsPromptsAndRemembersDirectory(t *testing.T) {
	f := newFixture(t)
	chosen := filepath.Join(t.TempDir(), "elsewhere", "report.pdf")
	f.delegate.confirmPath = chosen

	d := domain.NewDownload(domain.DownloadRequest{
		URL:               "https://example.com/report.pdf",
		TargetDisposition: domain.TargetDispositionPrompt,
	})

	f.start(d, "")
	o := f.wait(t)

	requested, reason := f.delegate.confirmation()
	require.True(t, requested)
	assert.Equal(t, domain.ConfirmationReasonSaveAs, reason)

	assert.Equal(t, chosen, o.info.TargetPath)
	assert.Equal(t, domain.TargetDispositionPrompt, o.info.TargetDisposition)
	assert.Equal(t, filepath.Dir(chosen), f.prefs.SaveFilePath())
}

func TestResolution_SaveAsStartsInLastPromptedDirectory(t *testing.T) {
	f := newFixture(t)
	lastDir := filepath.Join(t.TempDir(), "chosen-before")
	f.prefs.saveFilePath = lastDir

	d := domain.NewDownload(domain.DownloadRequest{
		URL:               "https://example.com/report.pdf",
		TargetDisposition: domain.TargetDispositionPrompt,
	})

	f.start(d, "")
	f.wait(t)

	reserved, _, _ := f.delegate.reservation()
	assert.Equal(t, filepath.Join(lastDir, "report.pdf"), reserved)
}

func TestResolution_PromptCanceled(t *testing.T) {
	f := newFixture(t)
	f.delegate.confirmResult = domain.ConfirmationResultCanceled

	d := domain.NewDownload(domain.DownloadRequest{
		URL:               "https://example.com/report.pdf",
		TargetDisposition: domain.TargetDispositionPrompt,
	})

	f.start(d, "")
	o := f.wait(t)

	assert.Equal(t, domain.InterruptReasonUserCanceled, o.info.InterruptReason)
	f.assertNoMoreOutcomes(t)
}

func TestResolution_ContinueWithoutConfirmationClearsReason(t *testing.T) {
	f := newFixture(t)
	f.prefs.prompt = true
	f.delegate.confirmResult = domain.ConfirmationResultContinueWithoutConfirmation

	d := domain.NewDownload(domain.DownloadRequest{
		URL: "https://example.com/report.pdf",
	})

	f.start(d, "")
	o := f.wait(t)

	requested, reason := f.delegate.confirmation()
	require.True(t, requested)
	assert.Equal(t, domain.ConfirmationReasonPreference, reason)

	// No user consent was recorded, so the outcome is not a prompt.
	assert.Equal(t, domain.TargetDispositionOverwrite, o.info.TargetDisposition)
}

func TestResolution_CancelWhileAwaitingPrompt(t *testing.T) {
	f := newFixture(t)
	f.delegate.holdConfirm = true

	d := domain.NewDownload(domain.DownloadRequest{
		URL:               "https://example.com/report.pdf",
		TargetDisposition: domain.TargetDispositionPrompt,
	})

	r := f.start(d, "")

	require.Eventually(t, func() bool {
		requested, _ := f.delegate.confirmation()
		return requested
	}, 5*time.Second, 10*time.Millisecond)

	r.Cancel()
	o := f.wait(t)
	assert.Equal(t, domain.InterruptReasonUserCanceled, o.info.InterruptReason)

	// A late answer from the prompt must not resurrect the resolution.
	f.delegate.mu.Lock()
	held := f.delegate.heldConfirm
	f.delegate.mu.Unlock()
	require.NotNil(t, held)
	held(domain.ConfirmationResultConfirmed, "/tmp/late.pdf")
	f.assertNoMoreOutcomes(t)
}

func TestResolution_TransientWithoutPathCancels(t *testing.T) {
	f := newFixture(t)
	d := domain.NewDownload(domain.DownloadRequest{
		URL:       "https://example.com/blob",
		Transient: true,
	})

	f.start(d, "")
	o := f.wait(t)
	assert.Equal(t, domain.InterruptReasonUserCanceled, o.info.InterruptReason)
}

func TestResolution_TransientReservationFailureCancelsSilently(t *testing.T) {
	f := newFixture(t)
	f.delegate.reserveResult = domain.PathValidationPathNotWritable

	d := domain.NewDownload(domain.DownloadRequest{
		URL:       "https://example.com/blob",
		Transient: true,
	})

	f.start(d, filepath.Join(f.prefs.downloadPath, "blob.tmp"))
	o := f.wait(t)

	requested, _ := f.delegate.confirmation()
	assert.False(t, requested)
	assert.Equal(t, domain.InterruptReasonUserCanceled, o.info.InterruptReason)
}

func TestResolution_SilentBlockAborts(t *testing.T) {
	f := newFixture(t)
	f.delegate.insecureStatus = domain.InsecureStatusSilentBlock

	d := domain.NewDownload(domain.DownloadRequest{
		URL: "http://insecure.example.com/file.pdf",
	})

	f.start(d, "")
	o := f.wait(t)
	assert.Equal(t, domain.InterruptReasonFileBlocked, o.info.InterruptReason)
	assert.Equal(t, domain.InsecureStatusSilentBlock, o.info.InsecureDownloadStatus)
}

func TestResolution_ObserverOverrideRootedInDownloadDir(t *testing.T) {
	f := newFixture(t)
	f.delegate.observerName = filepath.Join("suggested", "renamed.pdf")

	d := domain.NewDownload(domain.DownloadRequest{
		URL: "https://example.com/report.pdf",
	})

	f.start(d, "")
	o := f.wait(t)

	reserved, _, createDir := f.delegate.reservation()
	assert.Equal(t, filepath.Join(f.prefs.downloadPath, "suggested", "renamed.pdf"), reserved)
	assert.True(t, createDir)
	assert.Equal(t, reserved, o.info.TargetPath)
}

func TestResolution_ObserverTraversalIgnored(t *testing.T) {
	f := newFixture(t)
	f.delegate.observerName = filepath.Join("..", "escape.pdf")

	d := domain.NewDownload(domain.DownloadRequest{
		URL: "https://example.com/report.pdf",
	})

	f.start(d, "")
	f.wait(t)

	reserved, _, createDir := f.delegate.reservation()
	assert.Equal(t, filepath.Join(f.prefs.downloadPath, "report.pdf"), reserved)
	assert.False(t, createDir)
}

func TestResolution_UniquifiedConflictDoesNotPrompt(t *testing.T) {
	f := newFixture(t)
	uniquified := filepath.Join(f.prefs.downloadPath, "report (1).pdf")
	f.delegate.reserveResult = domain.PathValidationSuccessResolvedConflict
	f.delegate.reservePath = uniquified

	d := domain.NewDownload(domain.DownloadRequest{
		URL: "https://example.com/report.pdf",
	})

	f.start(d, "")
	o := f.wait(t)

	requested, _ := f.delegate.confirmation()
	assert.False(t, requested)
	assert.Equal(t, uniquified, o.info.TargetPath)
	assert.Equal(t, domain.TargetDispositionOverwrite, o.info.TargetDisposition)
}

func TestResolution_UnresolvedConflictPrompts(t *testing.T) {
	f := newFixture(t)
	f.delegate.reserveResult = domain.PathValidationConflict

	d := domain.NewDownload(domain.DownloadRequest{
		URL: "https://example.com/report.pdf",
	})

	f.start(d, "")
	o := f.wait(t)

	requested, reason := f.delegate.confirmation()
	require.True(t, requested)
	assert.Equal(t, domain.ConfirmationReasonTargetConflict, reason)
	assert.Equal(t, domain.TargetDispositionPrompt, o.info.TargetDisposition)
}

func TestResolution_DangerousExtensionClassified(t *testing.T) {
	f := newFixture(t)
	d := domain.NewDownload(domain.DownloadRequest{
		URL:            "https://example.com/setup.exe",
		TransitionType: domain.TransitionFromLink,
	})

	f.start(d, "")
	o := f.wait(t)

	assert.Equal(t, domain.DangerTypeDangerousFile, o.info.DangerType)
	assert.Equal(t, domain.DangerLevelAllowOnUserGesture, o.level)

	dir := filepath.Dir(o.info.IntermediatePath)
	base := filepath.Base(o.info.IntermediatePath)
	assert.Equal(t, filepath.Dir(o.info.TargetPath), dir)
	assert.True(t, strings.HasPrefix(base, "Unconfirmed "), "intermediate %q", base)
	assert.True(t, strings.HasSuffix(base, PartialSuffix))
}

func TestResolution_AddressBarDowngradesGestureType(t *testing.T) {
	f := newFixture(t)
	d := domain.NewDownload(domain.DownloadRequest{
		URL:            "https://example.com/setup.exe",
		TransitionType: domain.TransitionFromAddressBar,
	})

	f.start(d, "")
	o := f.wait(t)

	assert.Equal(t, domain.DangerTypeNotDangerous, o.info.DangerType)
	assert.Equal(t, domain.DangerLevelNotDangerous, o.level)
	assert.Equal(t, o.info.TargetPath+PartialSuffix, o.info.IntermediatePath)
}

func TestResolution_VisitedReferrerDowngrade(t *testing.T) {
	tests := []struct {
		name       string
		firstVisit time.Time
		visited    bool
		wantType   domain.DangerType
		wantLevel  domain.DangerLevel
	}{
		{
			name:       "visited on a previous day",
			firstVisit: time.Now().AddDate(0, 0, -2),
			visited:    true,
			wantType:   domain.DangerTypeNotDangerous,
			wantLevel:  domain.DangerLevelNotDangerous,
		},
		{
			name:       "first visited today",
			firstVisit: time.Now(),
			visited:    true,
			wantType:   domain.DangerTypeDangerousFile,
			wantLevel:  domain.DangerLevelAllowOnUserGesture,
		},
		{
			name:      "never visited",
			visited:   false,
			wantType:  domain.DangerTypeDangerousFile,
			wantLevel: domain.DangerLevelAllowOnUserGesture,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.history.ok = tt.visited
			if tt.visited {
				f.history.count = 3
				f.history.firstVisit = tt.firstVisit
			}

			d := domain.NewDownload(domain.DownloadRequest{
				URL:            "https://example.com/setup.exe",
				ReferrerURL:    "https://example.com/page",
				HasUserGesture: true,
				TransitionType: domain.TransitionFromLink,
			})

			f.start(d, "")
			o := f.wait(t)
			assert.Equal(t, tt.wantType, o.info.DangerType)
			assert.Equal(t, tt.wantLevel, o.level)
		})
	}
}

func TestResolution_DangerousURLVerdict(t *testing.T) {
	f := newFixture(t)
	f.delegate.urlDanger = domain.DangerTypeDangerousURL

	d := domain.NewDownload(domain.DownloadRequest{
		URL: "https://malware.example.com/file.pdf",
	})

	f.start(d, "")
	o := f.wait(t)

	assert.Equal(t, domain.DangerTypeDangerousURL, o.info.DangerType)
	base := filepath.Base(o.info.IntermediatePath)
	assert.True(t, strings.HasPrefix(base, "Unconfirmed "))
}

func TestResolution_UserValidatedVerdictIsFinal(t *testing.T) {
	f := newFixture(t)
	f.delegate.urlDanger = domain.DangerTypeDangerousURL

	d := domain.NewDownload(domain.DownloadRequest{
		URL: "https://example.com/file.pdf",
	})
	d.SetDangerType(domain.DangerTypeUserValidated)

	f.start(d, "")
	o := f.wait(t)

	assert.Equal(t, domain.DangerTypeUserValidated, o.info.DangerType)
}

func TestResolution_PathSubstitutionSkipsSniffing(t *testing.T) {
	f := newFixture(t)
	cache := filepath.Join(t.TempDir(), "cache", "blob-0001")
	f.delegate.localPath = cache
	f.delegate.mimeType = "application/pdf"

	d := domain.NewDownload(domain.DownloadRequest{
		URL: "https://example.com/report.pdf",
	})

	f.start(d, "")
	o := f.wait(t)

	assert.Equal(t, cache, o.info.TargetPath)
	// Substituted paths already point at a temporary file.
	assert.Equal(t, cache, o.info.IntermediatePath)
	assert.Empty(t, o.info.MimeType)
}

func TestResolution_EmptyLocalPathFails(t *testing.T) {
	f := newFixture(t)
	// Force an empty substitution result.
	f.deps.Delegate = emptyLocalPathDelegate{f.delegate}

	d := domain.NewDownload(domain.DownloadRequest{
		URL: "https://example.com/report.pdf",
	})

	f.start(d, "")
	o := f.wait(t)

	assert.Equal(t, domain.InterruptReasonFileFailed, o.info.InterruptReason)
}

// emptyLocalPathDelegate overrides path substitution to fail.
type emptyLocalPathDelegate struct {
	*fakeDelegate
}

func (e emptyLocalPathDelegate) DetermineLocalPath(d *domain.Download, virtualPath string, cb func(string)) {
	cb("")
}

func TestResolution_MimeTypeRecorded(t *testing.T) {
	f := newFixture(t)
	f.delegate.mimeType = "application/pdf"
	f.delegate.handledSafely = true

	d := domain.NewDownload(domain.DownloadRequest{
		URL: "https://example.com/report.pdf",
	})

	f.start(d, "")
	o := f.wait(t)

	assert.Equal(t, "application/pdf", o.info.MimeType)
	assert.True(t, o.info.IsFiletypeHandledSafely)
}

func TestResolution_PromptedResumptionReusesPath(t *testing.T) {
	f := newFixture(t)
	prior := filepath.Join(f.prefs.downloadPath, "report.pdf")

	d := domain.NewDownload(domain.DownloadRequest{
		URL:               "https://example.com/report.pdf",
		TargetDisposition: domain.TargetDispositionPrompt,
	})
	d.SetLastInterruptReason(domain.InterruptReasonNetworkFailed)

	f.start(d, prior)
	o := f.wait(t)

	reserved, action, _ := f.delegate.reservation()
	assert.Equal(t, prior, reserved)
	assert.Equal(t, domain.ConflictActionOverwrite, action)

	requested, _ := f.delegate.confirmation()
	assert.False(t, requested, "a resumed prompted download is not re-prompted")

	assert.Equal(t, prior, o.info.TargetPath)
	assert.Equal(t, domain.TargetDispositionPrompt, o.info.TargetDisposition)
}

func TestResolution_ResumptionRepromptsWhenTargetUnusable(t *testing.T) {
	f := newFixture(t)
	prior := filepath.Join(f.prefs.downloadPath, "report.pdf")

	d := domain.NewDownload(domain.DownloadRequest{
		URL:               "https://example.com/report.pdf",
		TargetDisposition: domain.TargetDispositionPrompt,
	})
	d.SetLastInterruptReason(domain.InterruptReasonFileNoSpace)

	f.start(d, prior)
	f.wait(t)

	requested, reason := f.delegate.confirmation()
	require.True(t, requested)
	assert.Equal(t, domain.ConfirmationReasonTargetNoSpace, reason)
}

func TestResolution_DangerousResumptionKeepsUnconfirmedFile(t *testing.T) {
	f := newFixture(t)
	f.delegate.urlDanger = domain.DangerTypeDangerousURL
	existing := filepath.Join(f.prefs.downloadPath, "Unconfirmed 123456.partial")

	d := domain.NewDownload(domain.DownloadRequest{
		URL: "https://example.com/setup.exe",
	})
	d.SetLastInterruptReason(domain.InterruptReasonNetworkFailed)
	d.SetFullPath(existing)

	f.start(d, filepath.Join(f.prefs.downloadPath, "setup.exe"))
	o := f.wait(t)

	assert.Equal(t, existing, o.info.IntermediatePath)
}

func TestResolution_DuplicateCompletionDropped(t *testing.T) {
	f := newFixture(t)
	f.delegate.doubleReserve = true

	d := domain.NewDownload(domain.DownloadRequest{
		URL: "https://example.com/report.pdf",
	})

	f.start(d, "")
	o := f.wait(t)

	assert.Equal(t, domain.InterruptReasonNone, o.info.InterruptReason)
	f.assertNoMoreOutcomes(t)
}

func TestResolution_UserCertificateDefaultName(t *testing.T) {
	f := newFixture(t)
	d := domain.NewDownload(domain.DownloadRequest{
		URL:      "https://example.com/certs/issue",
		MimeType: "application/x-x509-user-cert",
	})

	f.start(d, "")
	o := f.wait(t)
	assert.Equal(t, "user.crt", filepath.Base(o.info.TargetPath))
}

func TestRegistry_CancelUnknownDownload(t *testing.T) {
	g := NewRegistry(newTestLogger())
	assert.False(t, g.Cancel(domain.NewDownload(domain.DownloadRequest{}).ID))
}

func TestRegistry_RemovesFinishedResolutions(t *testing.T) {
	f := newFixture(t)
	d := domain.NewDownload(domain.DownloadRequest{
		URL: "https://example.com/report.pdf",
	})

	f.start(d, "")
	f.wait(t)

	require.Eventually(t, func() bool {
		return f.registry.ActiveCount() == 0
	}, 5*time.Second, 10*time.Millisecond)
}
