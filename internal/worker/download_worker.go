package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/veranemoloko/download-resolver/internal/domain"
	"github.com/veranemoloko/download-resolver/internal/metrics"
	"github.com/veranemoloko/download-resolver/internal/storage"
)

// ErrFileTooLarge is returned when a download body exceeds the configured limit.
var ErrFileTooLarge = errors.New("file exceeds maximum allowed size")

type job struct {
	download *domain.Download
	onDone   func(d *domain.Download, err error)
}

// DownloadWorker fetches download bodies into their intermediate paths and
// promotes them to the final target path on completion. Jobs are executed by
// a bounded pool.
type DownloadWorker struct {
	fileStorage *storage.FileStorage
	httpClient  *http.Client
	maxFileSize int64
	logger      *slog.Logger

	jobs chan job
	pool errgroup.Group

	mu     sync.Mutex
	active map[uuid.UUID]context.CancelFunc
}

// NewDownloadWorker creates a DownloadWorker executing at most poolSize
// downloads concurrently. maxFileSize of zero disables the size limit.
func NewDownloadWorker(fileStorage *storage.FileStorage, poolSize int, maxFileSize int64, timeout time.Duration, logger *slog.Logger) *DownloadWorker {
	w := &DownloadWorker{
		fileStorage: fileStorage,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxFileSize: maxFileSize,
		logger:      logger,
		jobs:        make(chan job, 64),
		active:      make(map[uuid.UUID]context.CancelFunc),
	}
	w.pool.SetLimit(poolSize)
	return w
}

// Submit queues a download for transfer. onDone is invoked from the pool
// goroutine once the transfer finishes or fails.
func (w *DownloadWorker) Submit(d *domain.Download, onDone func(d *domain.Download, err error)) {
	w.jobs <- job{download: d, onDone: onDone}
}

// Run dispatches queued jobs until ctx is cancelled, then waits for in-flight
// transfers to drain.
func (w *DownloadWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Pool goroutines never return errors; Wait only drains them.
			_ = w.pool.Wait()
			w.logger.Info("download worker stopped")
			return
		case j := <-w.jobs:
			if j.download.State() != domain.DownloadStateInProgress {
				// Cancelled while still queued.
				w.logger.Debug("skipping transfer for inactive download",
					"download_id", j.download.ID,
					"state", j.download.State(),
				)
				continue
			}
			jobCtx := w.track(ctx, j.download.ID)
			w.pool.Go(func() error {
				err := w.transfer(jobCtx, j.download)
				w.untrack(j.download.ID)
				if j.onDone != nil {
					j.onDone(j.download, err)
				}
				return nil
			})
		}
	}
}

// CancelTransfer aborts the in-flight transfer for the download, if any,
// and reports whether one was running.
func (w *DownloadWorker) CancelTransfer(id uuid.UUID) bool {
	w.mu.Lock()
	cancel, ok := w.active[id]
	w.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (w *DownloadWorker) track(parent context.Context, id uuid.UUID) context.Context {
	ctx, cancel := context.WithCancel(parent)
	w.mu.Lock()
	w.active[id] = cancel
	w.mu.Unlock()
	return ctx
}

func (w *DownloadWorker) untrack(id uuid.UUID) {
	w.mu.Lock()
	cancel, ok := w.active[id]
	delete(w.active, id)
	w.mu.Unlock()
	if ok {
		cancel()
	}
}

// transfer downloads the item's URL into its intermediate path, resuming a
// partial file when the server supports range requests, and promotes the
// intermediate file to the target path on success.
func (w *DownloadWorker) transfer(ctx context.Context, d *domain.Download) error {
	info := d.TargetInfo()
	if info == nil {
		return fmt.Errorf("download %s has no resolved target", d.ID)
	}

	var existingSize int64
	if w.fileStorage.FileExists(info.IntermediatePath) {
		if size, err := w.fileStorage.GetFileSize(info.IntermediatePath); err == nil {
			existingSize = size
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.Request.URL, nil)
	if err != nil {
		recordInterrupt(d, domain.InterruptReasonFileFailed)
		w.logger.Error("download failed",
			"download_id", d.ID,
			"url", d.Request.URL,
			"error", err,
		)
		return err
	}
	if existingSize > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", existingSize))
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		recordInterrupt(d, interruptReasonFor(err))
		w.logger.Error("download request failed",
			"download_id", d.ID,
			"url", d.Request.URL,
			"error", err,
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		recordInterrupt(d, domain.InterruptReasonNetworkFailed)
		w.logger.Error("download failed",
			"download_id", d.ID,
			"url", d.Request.URL,
			"status", resp.Status,
		)
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	// A full-body response invalidates the partial file.
	if existingSize > 0 && resp.StatusCode != http.StatusPartialContent {
		existingSize = 0
	}

	var file *os.File
	if existingSize > 0 {
		file, err = w.fileStorage.OpenForAppend(info.IntermediatePath)
	} else {
		file, err = w.fileStorage.CreateFile(info.IntermediatePath)
	}
	if err != nil {
		recordInterrupt(d, interruptReasonFor(err))
		w.logger.Error("download failed",
			"download_id", d.ID,
			"path", info.IntermediatePath,
			"error", err,
		)
		return err
	}

	d.SetFullPath(info.IntermediatePath)

	written, err := w.copyWithProgress(ctx, file, resp.Body, d, existingSize)
	closeErr := file.Close()
	if err != nil {
		recordInterrupt(d, interruptReasonFor(err))
		w.logger.Error("download failed",
			"download_id", d.ID,
			"url", d.Request.URL,
			"error", err,
		)
		return err
	}
	if closeErr != nil {
		recordInterrupt(d, domain.InterruptReasonFileFailed)
		return closeErr
	}

	if err := w.fileStorage.Promote(info.IntermediatePath, info.TargetPath); err != nil {
		recordInterrupt(d, interruptReasonFor(err))
		w.logger.Error("failed to promote intermediate file",
			"download_id", d.ID,
			"intermediate_path", info.IntermediatePath,
			"target_path", info.TargetPath,
			"error", err,
		)
		return err
	}

	d.SetFullPath(info.TargetPath)
	metrics.DownloadBytes.Add(float64(written))
	w.logger.Info("download transferred",
		"download_id", d.ID,
		"target_path", info.TargetPath,
		"bytes", existingSize+written,
	)
	return nil
}

func (w *DownloadWorker) copyWithProgress(ctx context.Context, dst *os.File, src io.Reader, d *domain.Download, offset int64) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
			nr, err := src.Read(buf)
			if nr > 0 {
				if w.maxFileSize > 0 && offset+total+int64(nr) > w.maxFileSize {
					return total, ErrFileTooLarge
				}
				nw, werr := dst.Write(buf[0:nr])
				if nw > 0 {
					total += int64(nw)
					d.SetBytesReceived(offset + total)
				}
				if werr != nil {
					return total, werr
				}
				if nr != nw {
					return total, io.ErrShortWrite
				}
			}
			if err != nil {
				if err == io.EOF {
					return total, nil
				}
				return total, err
			}
		}
	}
}

// recordInterrupt stores the reason a transfer stopped. A user cancellation
// already recorded for this attempt is final; errors from tearing the
// transfer down must not overwrite it.
func recordInterrupt(d *domain.Download, reason domain.InterruptReason) {
	if d.LastInterruptReason() == domain.InterruptReasonUserCanceled {
		return
	}
	d.SetLastInterruptReason(reason)
}

func interruptReasonFor(err error) domain.InterruptReason {
	switch {
	case errors.Is(err, context.Canceled):
		return domain.InterruptReasonUserCanceled
	case errors.Is(err, ErrFileTooLarge):
		return domain.InterruptReasonFileTooLarge
	case errors.Is(err, syscall.ENOSPC):
		return domain.InterruptReasonFileNoSpace
	case os.IsPermission(err):
		return domain.InterruptReasonFileAccessDenied
	case isFileError(err):
		return domain.InterruptReasonFileFailed
	default:
		return domain.InterruptReasonNetworkFailed
	}
}

func isFileError(err error) bool {
	var pathErr *os.PathError
	return errors.As(err, &pathErr)
}
