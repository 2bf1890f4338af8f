// Package resolver implements the download target resolution pipeline: the
// asynchronous state machine that decides where a download is saved, what
// name it gets, whether the user must be prompted, whether the file is
// dangerous, and which intermediate path receives the bytes.
package resolver

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/veranemoloko/download-resolver/internal/domain"
	"github.com/veranemoloko/download-resolver/internal/filename"
	"github.com/veranemoloko/download-resolver/internal/policy"
)

// PartialSuffix is appended to the target name to form the intermediate
// path of a safe download while bytes are still arriving.
const PartialSuffix = ".partial"

// unconfirmedUniquifierRange bounds the random uniquifier in intermediate
// names of dangerous downloads.
const unconfirmedUniquifierRange = 1000000

// state identifies a step of the pipeline. States execute strictly in
// declaration order; a state may be skipped but never revisited.
type state int

const (
	stateNone state = iota
	stateGenerateTargetPath
	stateSetInsecureDownloadStatus
	stateNotifyObservers
	stateReserveVirtualPath
	statePromptUserForDownloadPath
	stateDetermineLocalPath
	stateDetermineMimeType
	stateDetermineIfHandledSafely
	stateCheckDownloadURL
	stateCheckVisitedReferrerBefore
	stateDetermineIntermediatePath
)

var stateNames = map[state]string{
	stateNone:                       "none",
	stateGenerateTargetPath:         "generate_target_path",
	stateSetInsecureDownloadStatus:  "set_insecure_download_status",
	stateNotifyObservers:            "notify_observers",
	stateReserveVirtualPath:         "reserve_virtual_path",
	statePromptUserForDownloadPath:  "prompt_user_for_download_path",
	stateDetermineLocalPath:         "determine_local_path",
	stateDetermineMimeType:          "determine_mime_type",
	stateDetermineIfHandledSafely:   "determine_if_handled_safely",
	stateCheckDownloadURL:           "check_download_url",
	stateCheckVisitedReferrerBefore: "check_visited_referrer_before",
	stateDetermineIntermediatePath:  "determine_intermediate_path",
}

func (s state) String() string { return stateNames[s] }

// stepResult tells the driver loop what a step did.
type stepResult int

const (
	// resultContinue: the next state executes inline, same turn.
	resultContinue stepResult = iota
	// resultSuspend: a collaborator call is in flight; the next state runs
	// when its completion event arrives.
	resultSuspend
	// resultComplete: the pipeline reached a terminal outcome.
	resultComplete
)

// event resumes a suspended resolution. forState tags the state the
// completion belongs to; events for any other state are stale and dropped.
type event struct {
	forState state
	apply    func(*Resolution) stepResult
}

// Resolution runs the target resolution pipeline for one download. All
// mutable fields below the channel block are owned by the run goroutine and
// never touched from another call stack.
type Resolution struct {
	download     *domain.Download
	isResumption bool
	delegate     Delegate
	history      HistoryService
	prefs        Prefs
	policies     *policy.FileTypePolicies
	config       Config
	logger       *slog.Logger
	callback     CompletionCallback
	registry     *Registry

	events     chan event
	cancelCh   chan struct{}
	cancelOnce sync.Once

	next                  state
	virtualPath           string
	localPath             string
	intermediatePath      string
	mimeType              string
	dangerType            domain.DangerType
	dangerLevel           domain.DangerLevel
	confirmationReason    domain.ConfirmationReason
	conflictAction        domain.ConflictAction
	insecureStatus        domain.InsecureDownloadStatus
	interruptReason       domain.InterruptReason
	shouldNotifyObservers bool
	createTargetDirectory bool
	isHandledSafely       bool
}

func newResolution(d *domain.Download, initialVirtualPath string, conflictAction domain.ConflictAction, deps Deps, cb CompletionCallback, registry *Registry) *Resolution {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolution{
		download:           d,
		isResumption:       d.IsResumption(initialVirtualPath),
		delegate:           deps.Delegate,
		history:            deps.History,
		prefs:              deps.Prefs,
		policies:           deps.Policies,
		config:             deps.Config,
		logger:             logger,
		callback:           cb,
		registry:           registry,
		events:             make(chan event, 8),
		cancelCh:           make(chan struct{}),
		next:               stateGenerateTargetPath,
		virtualPath:        initialVirtualPath,
		dangerType:         d.DangerType(),
		dangerLevel:        domain.DangerLevelNotDangerous,
		confirmationReason: domain.ConfirmationReasonNone,
		conflictAction:     conflictAction,
		insecureStatus:     domain.InsecureStatusUnknown,
		interruptReason:    domain.InterruptReasonNone,
	}
}

// Cancel short-circuits the pipeline to a user-canceled outcome. It is the
// path taken when the download object is destroyed mid-resolution. Safe to
// call more than once and after completion.
func (r *Resolution) Cancel() {
	r.cancelOnce.Do(func() { close(r.cancelCh) })
}

// run drives the pipeline to its single terminal outcome.
func (r *Resolution) run() {
	result := r.doLoop()
	for result == resultSuspend {
		select {
		case ev := <-r.events:
			if ev.forState != r.next {
				r.logger.Error("dropping completion event for stale state",
					"download_id", r.download.ID,
					"event_state", ev.forState,
					"awaiting", r.next,
				)
				continue
			}
			result = ev.apply(r)
			if result == resultContinue {
				result = r.doLoop()
			}
		case <-r.cancelCh:
			r.interruptReason = domain.InterruptReasonUserCanceled
			result = resultComplete
		}
	}
	r.finish()
}

// doLoop executes states inline until one suspends or terminates.
func (r *Resolution) doLoop() stepResult {
	result := resultContinue
	for result == resultContinue {
		current := r.next
		r.next = stateNone

		switch current {
		case stateGenerateTargetPath:
			result = r.doGenerateTargetPath()
		case stateSetInsecureDownloadStatus:
			result = r.doSetInsecureDownloadStatus()
		case stateNotifyObservers:
			result = r.doNotifyObservers()
		case stateReserveVirtualPath:
			result = r.doReserveVirtualPath()
		case statePromptUserForDownloadPath:
			result = r.doRequestConfirmation()
		case stateDetermineLocalPath:
			result = r.doDetermineLocalPath()
		case stateDetermineMimeType:
			result = r.doDetermineMimeType()
		case stateDetermineIfHandledSafely:
			result = r.doDetermineIfHandledSafely()
		case stateCheckDownloadURL:
			result = r.doCheckDownloadURL()
		case stateCheckVisitedReferrerBefore:
			result = r.doCheckVisitedReferrerBefore()
		case stateDetermineIntermediatePath:
			result = r.doDetermineIntermediatePath()
		case stateNone:
			r.logger.Error("resolution stepped into the none state", "download_id", r.download.ID)
			r.interruptReason = domain.InterruptReasonFileFailed
			return resultComplete
		}
	}
	return result
}

// post queues a completion event. Non-blocking: a full queue only happens
// when a collaborator violates the one-shot contract.
func (r *Resolution) post(forState state, apply func(*Resolution) stepResult) {
	select {
	case r.events <- event{forState: forState, apply: apply}:
	default:
		r.logger.Error("dropping completion event, queue full",
			"download_id", r.download.ID,
			"event_state", forState,
		)
	}
}

func (r *Resolution) doGenerateTargetPath() stepResult {
	isForcedPath := r.download.Request.ForcedPath != ""
	r.next = stateSetInsecureDownloadStatus

	// Transient downloads use whatever path they already have.
	if r.download.Request.Transient {
		switch {
		case isForcedPath:
			r.virtualPath = r.forcedTargetPath()
		case r.virtualPath != "":
		default:
			// No path at all: nothing to resolve.
			r.interruptReason = domain.InterruptReasonUserCanceled
			return resultComplete
		}
		return resultContinue
	}

	switch {
	case r.virtualPath != "" && r.hasPromptedForPath() && !isForcedPath:
		// The download is being resumed and the user was already prompted
		// for a path. Reuse the selection and overwrite on conflict.
		r.confirmationReason = r.needsConfirmation(r.virtualPath)
		r.conflictAction = domain.ConflictActionOverwrite

	case !isForcedPath:
		generated := r.generateFilename()
		r.confirmationReason = r.needsConfirmation(generated)
		targetDir := r.prefs.DownloadPath()
		if r.confirmationReason != domain.ConfirmationReasonNone {
			// The user will be prompted; prefer the directory they chose
			// the last time they were.
			targetDir = r.prefs.SaveFilePath()
		}
		r.shouldNotifyObservers = true
		r.virtualPath = filepath.Join(targetDir, generated)

	default:
		// Forced paths come from programmatic downloads; the caller owns
		// the choice and conflicts are overwritten.
		r.conflictAction = domain.ConflictActionOverwrite
		r.virtualPath = r.forcedTargetPath()
	}

	r.logger.Debug("generated virtual path",
		"download_id", r.download.ID,
		"virtual_path", r.virtualPath,
	)
	return resultContinue
}

// forcedTargetPath returns the request's forced path. A relative forced
// path is rooted in the default download directory; the virtual path must
// stay absolute from the moment it is set.
func (r *Resolution) forcedTargetPath() string {
	forced := filepath.Clean(r.download.Request.ForcedPath)
	if filepath.IsAbs(forced) {
		return forced
	}
	return filepath.Join(r.prefs.DownloadPath(), forced)
}

// generateFilename builds a candidate filename from the request metadata.
func (r *Resolution) generateFilename() string {
	return filename.Generate(filename.GenerateInput{
		URL:                r.download.Request.URL,
		ContentDisposition: r.download.Request.ContentDisposition,
		SuggestedFilename:  r.download.Request.SuggestedFilename,
		SniffedMimeType:    r.download.Request.MimeType,
		OriginalMimeType:   r.download.Request.OriginalMimeType,
		DefaultName:        r.config.DefaultFilename,
		Policies:           r.policies,
	})
}

func (r *Resolution) doSetInsecureDownloadStatus() stepResult {
	r.next = stateNotifyObservers
	r.delegate.GetInsecureDownloadStatus(r.download, r.virtualPath, func(status domain.InsecureDownloadStatus) {
		r.post(stateNotifyObservers, func(r *Resolution) stepResult {
			return r.insecureDownloadStatusDone(status)
		})
	})
	return resultSuspend
}

func (r *Resolution) insecureDownloadStatusDone(status domain.InsecureDownloadStatus) stepResult {
	r.insecureStatus = status
	if status == domain.InsecureStatusSilentBlock {
		r.interruptReason = domain.InterruptReasonFileBlocked
		return resultComplete
	}
	return resultContinue
}

func (r *Resolution) doNotifyObservers() stepResult {
	r.next = stateReserveVirtualPath
	if !r.shouldNotifyObservers || r.download.State() != domain.DownloadStateInProgress {
		return resultContinue
	}
	r.delegate.NotifyObservers(r.download, r.virtualPath, func(overrideName string, action domain.ConflictAction) {
		r.post(stateReserveVirtualPath, func(r *Resolution) stepResult {
			return r.notifyObserversDone(overrideName, action)
		})
	})
	return resultSuspend
}

func (r *Resolution) notifyObserversDone(overrideName string, action domain.ConflictAction) stepResult {
	// Path suggestions are ignored for file URLs.
	if u, err := url.Parse(r.download.Request.URL); err == nil && u.Scheme == "file" {
		return resultContinue
	}

	if overrideName != "" {
		// Overrides are always rooted in the default download directory so
		// observer-chosen subdirectories cannot accumulate elsewhere.
		cleaned := filepath.Clean(overrideName)
		if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
			r.logger.Warn("ignoring observer path escaping the download directory",
				"download_id", r.download.ID,
				"override", overrideName,
			)
		} else {
			r.virtualPath = filepath.Join(r.prefs.DownloadPath(), cleaned)
			r.createTargetDirectory = true
		}
	}

	// An observer may set the conflict action without overriding the name.
	// Uniquify is the default suggestion and carries no information.
	if action != domain.ConflictActionUniquify {
		r.conflictAction = action
	}
	return resultContinue
}

func (r *Resolution) doReserveVirtualPath() stepResult {
	r.next = statePromptUserForDownloadPath
	if r.download.State() != domain.DownloadStateInProgress {
		return resultContinue
	}
	r.delegate.ReserveVirtualPath(r.download, r.virtualPath, r.createTargetDirectory, r.conflictAction, func(result domain.PathValidationResult, path string) {
		r.post(statePromptUserForDownloadPath, func(r *Resolution) stepResult {
			return r.reserveVirtualPathDone(result, path)
		})
	})
	return resultSuspend
}

func (r *Resolution) reserveVirtualPathDone(result domain.PathValidationResult, path string) stepResult {
	r.logger.Debug("reserved path",
		"download_id", r.download.ID,
		"path", path,
		"result", result,
	)

	if r.download.Request.Transient {
		// Transient downloads never consult the user; reservation failures
		// cancel silently.
		switch result {
		case domain.PathValidationPathNotWritable,
			domain.PathValidationNameTooLong,
			domain.PathValidationConflict:
			r.interruptReason = domain.InterruptReasonUserCanceled
			return resultComplete
		}
		return resultContinue
	}

	r.virtualPath = path
	switch result {
	case domain.PathValidationSuccess,
		domain.PathValidationSameAsSource,
		domain.PathValidationSuccessResolvedConflict:
	case domain.PathValidationPathNotWritable:
		r.confirmationReason = domain.ConfirmationReasonPathNotWritable
	case domain.PathValidationNameTooLong:
		r.confirmationReason = domain.ConfirmationReasonNameTooLong
	case domain.PathValidationConflict:
		r.confirmationReason = domain.ConfirmationReasonTargetConflict
	}
	return resultContinue
}

func (r *Resolution) doRequestConfirmation() stepResult {
	r.next = stateDetermineLocalPath

	// Don't prompt for a download that is no longer in progress; the user
	// will be prompted when it resumes.
	if r.download.State() != domain.DownloadStateInProgress {
		return resultContinue
	}
	if r.confirmationReason == domain.ConfirmationReasonNone {
		return resultContinue
	}

	r.delegate.RequestConfirmation(r.download, r.virtualPath, r.confirmationReason, func(result domain.ConfirmationResult, selectedPath string) {
		r.post(stateDetermineLocalPath, func(r *Resolution) stepResult {
			return r.requestConfirmationDone(result, selectedPath)
		})
	})
	return resultSuspend
}

func (r *Resolution) requestConfirmationDone(result domain.ConfirmationResult, selectedPath string) stepResult {
	if result == domain.ConfirmationResultCanceled {
		r.interruptReason = domain.InterruptReasonUserCanceled
		return resultComplete
	}

	// Without an actual prompt there is no recorded user consent.
	if result == domain.ConfirmationResultContinueWithoutConfirmation {
		r.confirmationReason = domain.ConfirmationReasonNone
	}
	if selectedPath != "" {
		r.virtualPath = selectedPath
	}
	r.prefs.SetSaveFilePath(filepath.Dir(r.virtualPath))
	return resultContinue
}

func (r *Resolution) doDetermineLocalPath() stepResult {
	r.next = stateDetermineMimeType
	r.delegate.DetermineLocalPath(r.download, r.virtualPath, func(localPath string) {
		r.post(stateDetermineMimeType, func(r *Resolution) stepResult {
			return r.determineLocalPathDone(localPath)
		})
	})
	return resultSuspend
}

func (r *Resolution) determineLocalPathDone(localPath string) stepResult {
	if localPath == "" {
		// Path substitution failed, e.g. a cloud-storage cache error. A
		// more specific reason would not help the user.
		r.interruptReason = domain.InterruptReasonFileFailed
		return resultComplete
	}
	r.localPath = localPath
	return resultContinue
}

func (r *Resolution) doDetermineMimeType() stepResult {
	r.next = stateDetermineIfHandledSafely
	if r.virtualPath != r.localPath {
		// The file went through path substitution; its contents are not
		// local enough to sniff.
		return resultContinue
	}
	r.delegate.GetFileMimeType(r.localPath, func(mimeType string) {
		r.post(stateDetermineIfHandledSafely, func(r *Resolution) stepResult {
			r.mimeType = mimeType
			return resultContinue
		})
	})
	return resultSuspend
}

func (r *Resolution) doDetermineIfHandledSafely() stepResult {
	r.next = stateCheckDownloadURL
	if r.mimeType == "" {
		return resultContinue
	}
	r.delegate.DetermineIfHandledSafely(r.download, r.localPath, r.mimeType, func(handledSafely bool) {
		r.post(stateCheckDownloadURL, func(r *Resolution) stepResult {
			r.isHandledSafely = handledSafely
			return resultContinue
		})
	})
	return resultSuspend
}

func (r *Resolution) doCheckDownloadURL() stepResult {
	r.next = stateCheckVisitedReferrerBefore
	// A danger verdict the user already validated is final.
	if r.dangerType == domain.DangerTypeUserValidated {
		return resultContinue
	}
	r.delegate.CheckDownloadURL(r.download, r.virtualPath, func(dangerType domain.DangerType) {
		r.post(stateCheckVisitedReferrerBefore, func(r *Resolution) stepResult {
			r.dangerType = dangerType
			return resultContinue
		})
	})
	return resultSuspend
}

func (r *Resolution) doCheckVisitedReferrerBefore() stepResult {
	r.next = stateDetermineIntermediatePath

	// Visit history only matters when the danger level depends on the file
	// type.
	switch r.dangerType {
	case domain.DangerTypeNotDangerous,
		domain.DangerTypeMaybeDangerousContent,
		domain.DangerTypeAllowlistedByPolicy:
	default:
		return resultContinue
	}

	// Classify assuming no prior visits first; only an
	// allow-on-user-gesture outcome depends on history.
	r.dangerLevel = r.getDangerLevel(false)

	if r.config.AllowInsecureDownloads {
		return resultContinue
	}
	if r.dangerLevel == domain.DangerLevelNotDangerous {
		return resultContinue
	}

	if r.dangerLevel == domain.DangerLevelAllowOnUserGesture &&
		r.history != nil && r.download.Request.ReferrerURL != "" {
		r.history.VisibleVisitCountToHost(r.download.Request.ReferrerURL, func(ok bool, count int, firstVisit time.Time) {
			visited := ok && count > 0 && beforeMostRecentMidnight(firstVisit)
			r.post(stateDetermineIntermediatePath, func(r *Resolution) stepResult {
				return r.checkVisitedReferrerBeforeDone(visited)
			})
		})
		return resultSuspend
	}

	if r.dangerType == domain.DangerTypeNotDangerous {
		r.dangerType = domain.DangerTypeDangerousFile
	}
	return resultContinue
}

func (r *Resolution) checkVisitedReferrerBeforeDone(visitedReferrerBefore bool) stepResult {
	r.dangerLevel = r.getDangerLevel(visitedReferrerBefore)
	if r.dangerLevel != domain.DangerLevelNotDangerous &&
		r.dangerType == domain.DangerTypeNotDangerous {
		r.dangerType = domain.DangerTypeDangerousFile
	}
	return resultContinue
}

func (r *Resolution) doDetermineIntermediatePath() stepResult {
	r.next = stateNone

	// If the target is a virtual path, the local path already points at a
	// temporary file; no separate intermediate path is needed.
	if filepath.Base(r.virtualPath) != filepath.Base(r.localPath) {
		r.intermediatePath = r.localPath
		return resultComplete
	}

	if r.dangerType == domain.DangerTypeNotDangerous {
		// A safe forced-path download is already sitting at its final
		// name, and transient downloads are never renamed.
		if r.download.Request.ForcedPath != "" || r.download.Request.Transient {
			r.intermediatePath = r.localPath
			return resultComplete
		}
		r.intermediatePath = PartialPath(r.localPath)
		return resultComplete
	}

	// A resumed dangerous download keeps its existing unconfirmed file
	// when it is still in the target directory.
	if r.isResumption && r.download.FullPath() != "" &&
		filepath.Dir(r.localPath) == filepath.Dir(r.download.FullPath()) {
		r.intermediatePath = r.download.FullPath()
		return resultComplete
	}

	// Dangerous downloads hide behind a randomized name until confirmed.
	name := fmt.Sprintf("Unconfirmed %d%s", rand.Intn(unconfirmedUniquifierRange), PartialSuffix)
	r.intermediatePath = filepath.Join(filepath.Dir(r.localPath), name)
	return resultComplete
}

// finish delivers the terminal callback. Called exactly once, at the end of
// run.
func (r *Resolution) finish() {
	if r.registry != nil {
		r.registry.remove(r.download.ID)
	}

	disposition := domain.TargetDispositionOverwrite
	if r.hasPromptedForPath() || r.confirmationReason != domain.ConfirmationReasonNone {
		disposition = domain.TargetDispositionPrompt
	}

	info := domain.TargetInfo{
		TargetPath:              r.localPath,
		IntermediatePath:        r.intermediatePath,
		MimeType:                r.mimeType,
		IsFiletypeHandledSafely: r.isHandledSafely,
		TargetDisposition:       disposition,
		DangerType:              r.dangerType,
		InterruptReason:         r.interruptReason,
		InsecureDownloadStatus:  r.insecureStatus,
	}

	r.logger.Debug("target resolution finished",
		"download_id", r.download.ID,
		"virtual_path", r.virtualPath,
		"local_path", r.localPath,
		"intermediate_path", r.intermediatePath,
		"confirmation_reason", r.confirmationReason,
		"danger_type", r.dangerType,
		"danger_level", r.dangerLevel,
		"interrupt_reason", r.interruptReason,
	)
	r.callback(info, r.dangerLevel)
}

// hasPromptedForPath reports whether a previous attempt already prompted
// the user for this download's path.
func (r *Resolution) hasPromptedForPath() bool {
	return r.isResumption &&
		r.download.Request.TargetDisposition == domain.TargetDispositionPrompt
}

// needsConfirmation decides whether the user must confirm the candidate
// filename, and why.
func (r *Resolution) needsConfirmation(candidate string) domain.ConfirmationReason {
	// Transient downloads never have user interaction.
	if r.download.Request.Transient {
		return domain.ConfirmationReasonNone
	}

	if r.isResumption {
		// The user already made a choice; re-prompt only when the chosen
		// target turned out to be unusable.
		switch r.download.LastInterruptReason() {
		case domain.InterruptReasonFileAccessDenied:
			return domain.ConfirmationReasonPathNotWritable
		case domain.InterruptReasonFileNoSpace, domain.InterruptReasonFileTooLarge:
			return domain.ConfirmationReasonTargetNoSpace
		default:
			return domain.ConfirmationReasonNone
		}
	}

	// Forced paths are programmatic; the caller owns the choice.
	if r.download.Request.ForcedPath != "" {
		return domain.ConfirmationReasonNone
	}

	defaultPathDLPBlocked := r.isPathDLPBlocked(r.prefs.DownloadPath())

	// A managed download path suppresses prompting, unless DLP forbids it.
	if r.prefs.IsDownloadPathManaged() && !defaultPathDLPBlocked {
		return domain.ConfirmationReasonNone
	}

	if r.download.Request.TargetDisposition == domain.TargetDispositionPrompt {
		return domain.ConfirmationReasonSaveAs
	}
	if r.policies.IsAutoOpenEnabled(candidate) {
		return domain.ConfirmationReasonNone
	}
	if r.prefs.PromptForDownload() {
		return domain.ConfirmationReasonPreference
	}
	if defaultPathDLPBlocked {
		return domain.ConfirmationReasonDLPBlocked
	}
	return domain.ConfirmationReasonNone
}

func (r *Resolution) isPathDLPBlocked(path string) bool {
	return r.config.IsPathDLPBlocked != nil && r.config.IsPathDLPBlocked(path)
}

// getDangerLevel classifies the download by file type, applying the
// legitimacy downgrades for user-approved paths, auto-open types and
// user-gesture downloads from familiar referrers.
func (r *Resolution) getDangerLevel(visitedReferrerBefore bool) domain.DangerLevel {
	if r.config.AllowInsecureDownloads {
		return domain.DangerLevelNotDangerous
	}

	// A prompted or forced path means the user (or caller) approved the
	// download. Drag-and-drop paths are not user approved.
	userApprovedPath := r.download.Request.ForcedPath != "" &&
		!r.download.Request.FromDragAndDrop
	if r.hasPromptedForPath() ||
		r.confirmationReason != domain.ConfirmationReasonNone ||
		userApprovedPath {
		return domain.DangerLevelNotDangerous
	}

	if r.policies.IsAutoOpenEnabled(r.virtualPath) && r.download.Request.HasUserGesture {
		return domain.DangerLevelNotDangerous
	}

	level := r.policies.FileDangerLevel(filepath.Base(r.virtualPath))

	// Allow-on-user-gesture types have a high frequency of legitimate use.
	// Treat the download as legitimate when the user navigated via the
	// address bar, or gestured and is familiar with the referrer (a visit
	// recorded on a previous day or earlier).
	if level == domain.DangerLevelAllowOnUserGesture &&
		((r.download.Request.TransitionType&domain.TransitionFromAddressBar) != 0 ||
			(r.download.Request.HasUserGesture && visitedReferrerBefore)) {
		return domain.DangerLevelNotDangerous
	}
	return level
}

// beforeMostRecentMidnight reports whether t falls on a previous local day.
func beforeMostRecentMidnight(t time.Time) bool {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return t.Before(midnight)
}

// PartialPath returns the intermediate path for a safe download target.
func PartialPath(targetPath string) string {
	return targetPath + PartialSuffix
}
