package domain

// DownloadState represents the current state of a Download.
type DownloadState string

const (
	DownloadStateInProgress  DownloadState = "in_progress"
	DownloadStateComplete    DownloadState = "complete"
	DownloadStateCancelled   DownloadState = "cancelled"
	DownloadStateInterrupted DownloadState = "interrupted"
)

// DangerType is the security classification attached to a download item.
// It is what the UI ultimately reports to the user.
type DangerType string

const (
	DangerTypeNotDangerous          DangerType = "not_dangerous"
	DangerTypeDangerousFile         DangerType = "dangerous_file"
	DangerTypeDangerousURL          DangerType = "dangerous_url"
	DangerTypeMaybeDangerousContent DangerType = "maybe_dangerous_content"
	DangerTypeUserValidated         DangerType = "user_validated"
	DangerTypeAllowlistedByPolicy   DangerType = "allowlisted_by_policy"
)

// DangerLevel is the pipeline-internal risk classification derived from the
// file type, distinct from the final DangerType.
type DangerLevel string

const (
	DangerLevelNotDangerous       DangerLevel = "not_dangerous"
	DangerLevelAllowOnUserGesture DangerLevel = "allow_on_user_gesture"
	DangerLevelDangerous          DangerLevel = "dangerous"
)

// InsecureDownloadStatus is the verdict of the insecure-content check.
type InsecureDownloadStatus string

const (
	InsecureStatusUnknown     InsecureDownloadStatus = "unknown"
	InsecureStatusSafe        InsecureDownloadStatus = "safe"
	InsecureStatusValidated   InsecureDownloadStatus = "validated"
	InsecureStatusWarn        InsecureDownloadStatus = "warn"
	InsecureStatusBlock       InsecureDownloadStatus = "block"
	InsecureStatusSilentBlock InsecureDownloadStatus = "silent_block"
)

// ConfirmationReason is the justification for prompting the user before
// finalizing a download's destination.
type ConfirmationReason string

const (
	ConfirmationReasonNone            ConfirmationReason = "none"
	ConfirmationReasonSaveAs          ConfirmationReason = "save_as"
	ConfirmationReasonTargetConflict  ConfirmationReason = "target_conflict"
	ConfirmationReasonPreference      ConfirmationReason = "preference"
	ConfirmationReasonNameTooLong     ConfirmationReason = "name_too_long"
	ConfirmationReasonTargetNoSpace   ConfirmationReason = "target_no_space"
	ConfirmationReasonPathNotWritable ConfirmationReason = "path_not_writable"
	ConfirmationReasonDLPBlocked      ConfirmationReason = "dlp_blocked"
)

// ConfirmationResult is the outcome of a user confirmation prompt.
type ConfirmationResult string

const (
	ConfirmationResultConfirmed                   ConfirmationResult = "confirmed"
	ConfirmationResultCanceled                    ConfirmationResult = "canceled"
	ConfirmationResultContinueWithoutConfirmation ConfirmationResult = "continue_without_confirmation"
)

// ConflictAction decides what to do when the target path already exists.
type ConflictAction string

const (
	ConflictActionOverwrite ConflictAction = "overwrite"
	ConflictActionUniquify  ConflictAction = "uniquify"
	ConflictActionPrompt    ConflictAction = "prompt"
)

// PathValidationResult is the outcome of a path reservation attempt.
type PathValidationResult string

const (
	PathValidationSuccess                 PathValidationResult = "success"
	PathValidationSuccessResolvedConflict PathValidationResult = "success_resolved_conflict"
	PathValidationSameAsSource            PathValidationResult = "same_as_source"
	PathValidationPathNotWritable         PathValidationResult = "path_not_writable"
	PathValidationNameTooLong             PathValidationResult = "name_too_long"
	PathValidationConflict                PathValidationResult = "conflict"
)

// InterruptReason explains why a download (or its target resolution) stopped.
type InterruptReason string

const (
	InterruptReasonNone             InterruptReason = "none"
	InterruptReasonUserCanceled     InterruptReason = "user_canceled"
	InterruptReasonFileBlocked      InterruptReason = "file_blocked"
	InterruptReasonFileFailed       InterruptReason = "file_failed"
	InterruptReasonFileAccessDenied InterruptReason = "file_access_denied"
	InterruptReasonFileNoSpace      InterruptReason = "file_no_space"
	InterruptReasonFileTooLarge     InterruptReason = "file_too_large"
	InterruptReasonNetworkFailed    InterruptReason = "network_failed"
)

// TargetDisposition records whether the user was (or must be) consulted
// about the target path.
type TargetDisposition string

const (
	TargetDispositionOverwrite TargetDisposition = "overwrite"
	TargetDispositionPrompt    TargetDisposition = "prompt"
)

// TransitionType carries flags describing the navigation that initiated the
// download.
type TransitionType uint32

const (
	// TransitionFromAddressBar is set when the user reached the download URL
	// through the address bar (typed, pasted or searched).
	TransitionFromAddressBar TransitionType = 1 << iota
	// TransitionFromLink is set for ordinary link-click navigations.
	TransitionFromLink
)
