package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veranemoloko/download-resolver/internal/config"
	"github.com/veranemoloko/download-resolver/internal/domain"
	errpkg "github.com/veranemoloko/download-resolver/internal/errors"
	"github.com/veranemoloko/download-resolver/internal/history"
	"github.com/veranemoloko/download-resolver/internal/metrics"
	"github.com/veranemoloko/download-resolver/internal/policy"
	"github.com/veranemoloko/download-resolver/internal/repository"
	"github.com/veranemoloko/download-resolver/internal/reservation"
	"github.com/veranemoloko/download-resolver/internal/resolver"
	"github.com/veranemoloko/download-resolver/internal/storage"
	"github.com/veranemoloko/download-resolver/internal/worker"
)

// pendingPrompt holds an outstanding confirmation request until the user
// answers it through the API.
type pendingPrompt struct {
	proposedPath string
	reason       domain.ConfirmationReason
	respond      func(domain.ConfirmationResult, string)
}

// DownloadService is the download engine: it creates downloads, drives each
// one through target resolution and hands resolved downloads to the transfer
// worker. It also implements the pipeline's Delegate and Prefs.
type DownloadService struct {
	cfg         *config.Config
	repo        repository.DownloadRepo
	history     *history.Store
	tracker     *reservation.Tracker
	policies    *policy.FileTypePolicies
	registry    *resolver.Registry
	worker      *worker.DownloadWorker
	fileStorage *storage.FileStorage
	logger      *slog.Logger

	// ObserverOverride, when set, plays the role of extension observers: it
	// may suggest a replacement filename and conflict action for a generated
	// path before reservation.
	ObserverOverride func(d *domain.Download, virtualPath string) (string, domain.ConflictAction)

	mu           sync.Mutex
	prompts      map[uuid.UUID]*pendingPrompt
	saveFilePath string

	wg           sync.WaitGroup
	shutdownChan chan struct{}
}

// NewDownloadService wires the download engine together.
func NewDownloadService(
	cfg *config.Config,
	repo repository.DownloadRepo,
	historyStore *history.Store,
	tracker *reservation.Tracker,
	policies *policy.FileTypePolicies,
	registry *resolver.Registry,
	downloadWorker *worker.DownloadWorker,
	fileStorage *storage.FileStorage,
	logger *slog.Logger,
) *DownloadService {
	return &DownloadService{
		cfg:          cfg,
		repo:         repo,
		history:      historyStore,
		tracker:      tracker,
		policies:     policies,
		registry:     registry,
		worker:       downloadWorker,
		fileStorage:  fileStorage,
		logger:       logger,
		prompts:      make(map[uuid.UUID]*pendingPrompt),
		saveFilePath: cfg.EffectiveSaveDir(),
		shutdownChan: make(chan struct{}),
	}
}

// CreateDownload registers a new download and starts its target resolution.
func (s *DownloadService) CreateDownload(ctx context.Context, req domain.CreateDownloadRequest) (*domain.Download, error) {
	select {
	case <-s.shutdownChan:
		return nil, errpkg.ErrServiceShuttingDown
	default:
	}

	var transition domain.TransitionType
	if req.FromAddressBar {
		transition = domain.TransitionFromAddressBar
	} else {
		transition = domain.TransitionFromLink
	}
	disposition := domain.TargetDispositionOverwrite
	if req.SaveAs {
		disposition = domain.TargetDispositionPrompt
	}

	d := domain.NewDownload(domain.DownloadRequest{
		URL:                req.URL,
		ReferrerURL:        req.ReferrerURL,
		SuggestedFilename:  req.SuggestedFilename,
		ContentDisposition: req.ContentDisposition,
		MimeType:           req.MimeType,
		OriginalMimeType:   req.OriginalMimeType,
		ForcedPath:         req.ForcedPath,
		Transient:          req.Transient,
		HasUserGesture:     req.HasUserGesture,
		TransitionType:     transition,
		TargetDisposition:  disposition,
	})

	if err := s.repo.CreateDownload(ctx, d); err != nil {
		return nil, err
	}

	if req.ReferrerURL != "" {
		if err := s.history.RecordVisit(req.ReferrerURL, time.Now()); err != nil {
			s.logger.Warn("failed to record referrer visit",
				"download_id", d.ID,
				"referrer_url", req.ReferrerURL,
				"error", err,
			)
		}
	}

	metrics.DownloadsCreated.Inc()
	s.logger.Info("download created",
		"download_id", d.ID,
		"url", req.URL,
	)

	s.startResolution(d, "", domain.ConflictActionUniquify)
	return d, nil
}

// GetDownload returns a download by ID.
func (s *DownloadService) GetDownload(ctx context.Context, id uuid.UUID) (*domain.Download, error) {
	return s.repo.GetDownload(ctx, id)
}

// PendingPromptFor returns the outstanding confirmation prompt for a
// download, or nil when there is none.
func (s *DownloadService) PendingPromptFor(id uuid.UUID) *domain.PendingPrompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prompts[id]
	if !ok {
		return nil
	}
	return &domain.PendingPrompt{ProposedPath: p.proposedPath, Reason: p.reason}
}

// Confirm resolves a pending confirmation prompt. An accepted prompt may
// carry a replacement target path.
func (s *DownloadService) Confirm(ctx context.Context, id uuid.UUID, req domain.ConfirmDownloadRequest) (*domain.Download, error) {
	d, err := s.repo.GetDownload(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	p, ok := s.prompts[id]
	delete(s.prompts, id)
	s.mu.Unlock()

	if !ok {
		return nil, errpkg.ErrNoPendingPrompt
	}

	if !req.Accept {
		s.logger.Info("prompt declined", "download_id", id)
		p.respond(domain.ConfirmationResultCanceled, "")
		return d, nil
	}

	path := req.Path
	if path == "" {
		path = p.proposedPath
	}
	s.logger.Info("prompt confirmed", "download_id", id, "path", path)
	p.respond(domain.ConfirmationResultConfirmed, path)
	return d, nil
}

// Cancel aborts a download. A resolution still in flight completes with
// USER_CANCELED through its normal terminal path.
func (s *DownloadService) Cancel(ctx context.Context, id uuid.UUID) error {
	d, err := s.repo.GetDownload(ctx, id)
	if err != nil {
		return err
	}

	switch d.State() {
	case domain.DownloadStateComplete, domain.DownloadStateCancelled:
		return errpkg.ErrAlreadyTerminal
	}

	// Drop any outstanding prompt; a late answer would target a finished
	// resolution and be discarded anyway.
	s.mu.Lock()
	delete(s.prompts, id)
	s.mu.Unlock()

	if s.registry.Cancel(id) {
		// The terminal callback records the cancelled state.
		return nil
	}

	d.SetState(domain.DownloadStateCancelled)
	d.SetLastInterruptReason(domain.InterruptReasonUserCanceled)

	if s.worker.CancelTransfer(id) {
		// The transfer goroutine owns the intermediate file until it
		// observes the cancellation; onTransferDone cleans up.
		return s.repo.UpdateDownload(ctx, d)
	}

	s.tracker.Release(id)
	s.removeIntermediateFile(d)
	return s.repo.UpdateDownload(ctx, d)
}

func (s *DownloadService) removeIntermediateFile(d *domain.Download) {
	info := d.TargetInfo()
	if info == nil || info.IntermediatePath == "" {
		return
	}
	if err := s.fileStorage.Remove(info.IntermediatePath); err != nil {
		s.logger.Warn("failed to remove intermediate file",
			"download_id", d.ID,
			"path", info.IntermediatePath,
			"error", err,
		)
	}
}

// Resume restarts target resolution for an interrupted download, passing the
// previous target path back into the pipeline.
func (s *DownloadService) Resume(ctx context.Context, id uuid.UUID) (*domain.Download, error) {
	d, err := s.repo.GetDownload(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.State() != domain.DownloadStateInterrupted {
		return nil, errpkg.ErrAlreadyTerminal
	}

	initialPath := ""
	if info := d.TargetInfo(); info != nil {
		initialPath = info.TargetPath
	}

	d.SetState(domain.DownloadStateInProgress)
	if err := s.repo.UpdateDownload(ctx, d); err != nil {
		return nil, err
	}

	s.logger.Info("download resumed",
		"download_id", id,
		"last_interrupt_reason", d.LastInterruptReason(),
	)
	s.startResolution(d, initialPath, domain.ConflictActionUniquify)
	return d, nil
}

// RecoverPendingDownloads restarts resolution for downloads that were in
// progress when the service last stopped.
func (s *DownloadService) RecoverPendingDownloads(ctx context.Context) error {
	pending, err := s.repo.GetDownloadsByState(ctx, domain.DownloadStateInProgress)
	if err != nil {
		return err
	}
	for _, d := range pending {
		initialPath := ""
		if info := d.TargetInfo(); info != nil {
			initialPath = info.TargetPath
		}
		s.logger.Info("recovering pending download", "download_id", d.ID)
		s.startResolution(d, initialPath, domain.ConflictActionUniquify)
	}
	return nil
}

func (s *DownloadService) startResolution(d *domain.Download, initialVirtualPath string, action domain.ConflictAction) {
	deps := resolver.Deps{
		Delegate: s,
		History:  s.history,
		Prefs:    s,
		Policies: s.policies,
		Config: resolver.Config{
			AllowInsecureDownloads: s.cfg.AllowInsecureDownloads,
			DefaultFilename:        s.cfg.DefaultFilename,
			IsPathDLPBlocked:       s.isPathDLPBlocked,
		},
		Logger: s.logger,
	}

	start := time.Now()
	s.wg.Add(1)
	s.registry.Start(d, initialVirtualPath, action, deps, func(info domain.TargetInfo, level domain.DangerLevel) {
		defer s.wg.Done()
		metrics.ResolutionDuration.Observe(time.Since(start).Seconds())
		s.onResolved(d, info, level)
	})
}

// onResolved is the pipeline's single terminal callback.
func (s *DownloadService) onResolved(d *domain.Download, info domain.TargetInfo, level domain.DangerLevel) {
	ctx := context.Background()

	d.SetTargetInfo(&info)

	if info.InterruptReason != domain.InterruptReasonNone {
		d.SetLastInterruptReason(info.InterruptReason)
		s.tracker.Release(d.ID)

		if info.InterruptReason == domain.InterruptReasonUserCanceled {
			d.SetState(domain.DownloadStateCancelled)
			metrics.ResolutionsCanceled.Inc()
		} else {
			d.SetState(domain.DownloadStateInterrupted)
			d.SetError(string(info.InterruptReason))
			metrics.ResolutionsBlocked.Inc()
		}

		if err := s.repo.UpdateDownload(ctx, d); err != nil {
			s.logger.Error("failed to persist resolution outcome",
				"download_id", d.ID,
				"error", err,
			)
		}
		s.logger.Info("target resolution aborted",
			"download_id", d.ID,
			"interrupt_reason", info.InterruptReason,
		)
		return
	}

	d.SetDangerType(info.DangerType)
	metrics.ResolutionsCompleted.Inc()
	if info.DangerType != domain.DangerTypeNotDangerous {
		metrics.DangerousClassified.Inc()
	}

	if err := s.repo.UpdateDownload(ctx, d); err != nil {
		s.logger.Error("failed to persist resolution outcome",
			"download_id", d.ID,
			"error", err,
		)
	}

	s.logger.Info("target resolved",
		"download_id", d.ID,
		"target_path", info.TargetPath,
		"intermediate_path", info.IntermediatePath,
		"danger_type", info.DangerType,
		"danger_level", level,
	)

	s.worker.Submit(d, s.onTransferDone)
}

// onTransferDone runs in a worker pool goroutine when a byte transfer ends.
func (s *DownloadService) onTransferDone(d *domain.Download, err error) {
	ctx := context.Background()

	if err != nil {
		if d.LastInterruptReason() == domain.InterruptReasonUserCanceled {
			d.SetState(domain.DownloadStateCancelled)
			s.tracker.Release(d.ID)
			s.removeIntermediateFile(d)
			s.logger.Info("download transfer cancelled", "download_id", d.ID)
		} else {
			d.SetState(domain.DownloadStateInterrupted)
			d.SetError(err.Error())
			metrics.DownloadsFailed.Inc()
			s.logger.Error("download transfer failed",
				"download_id", d.ID,
				"error", err,
			)
		}
	} else {
		d.SetState(domain.DownloadStateComplete)
		d.SetLastInterruptReason(domain.InterruptReasonNone)
		s.tracker.Release(d.ID)
		metrics.DownloadsCompleted.Inc()
		s.logger.Info("download completed",
			"download_id", d.ID,
			"path", d.FullPath(),
			"bytes", d.BytesReceived(),
		)
	}

	if uerr := s.repo.UpdateDownload(ctx, d); uerr != nil {
		s.logger.Error("failed to persist download state",
			"download_id", d.ID,
			"error", uerr,
		)
	}
}

// Shutdown refuses new downloads and waits for in-flight resolutions to
// reach their terminal callback.
func (s *DownloadService) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down download service")
	close(s.shutdownChan)

	// Answer outstanding prompts as cancelled so their resolutions reach the
	// terminal callback instead of waiting forever.
	s.mu.Lock()
	pending := s.prompts
	s.prompts = make(map[uuid.UUID]*pendingPrompt)
	s.mu.Unlock()
	for id, p := range pending {
		s.logger.Info("cancelling pending prompt on shutdown", "download_id", id)
		p.respond(domain.ConfirmationResultCanceled, "")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("download service shutdown completed")
		return nil
	case <-ctx.Done():
		s.logger.Warn("download service shutdown timed out")
		return ctx.Err()
	}
}
