package errors

import "strings"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Sentinel pseudo-codes used by GetCode.
const (
	CodeOK      ErrorCode = "OK"
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Common error codes
const (
	ErrCodeInternal          ErrorCode = "COMMON_001"
	ErrCodeInvalidInput      ErrorCode = "COMMON_002"
	ErrCodeNotFound          ErrorCode = "COMMON_003"
	ErrCodeTimeout           ErrorCode = "COMMON_004"
	ErrCodeSerialization     ErrorCode = "COMMON_005"
	ErrCodeSourceUnavailable ErrorCode = "COMMON_006"
	ErrCodeNotImplemented    ErrorCode = "COMMON_007"
)

// Structure module error codes
const (
	ErrCodeStructureParseFailed ErrorCode = "STR_001"
	ErrCodeStructureEmpty       ErrorCode = "STR_002"
	ErrCodeNoSuitableComponent  ErrorCode = "STR_003"
	ErrCodeStructureWriteFailed ErrorCode = "STR_004"
	ErrCodeUnknownElement       ErrorCode = "STR_005"
)

// Fragment module error codes
const (
	ErrCodeFragmentExtractionFailed ErrorCode = "FRG_001"
	ErrCodeSignatureInvalid         ErrorCode = "FRG_002"
	ErrCodeFingerprintFailed        ErrorCode = "FRG_003"
	ErrCodeFragmentEncodeFailed     ErrorCode = "FRG_004"
)

// Dataset / store error codes
const (
	ErrCodeDatasetOpenFailed    ErrorCode = "DS_001"
	ErrCodeIndexOpenFailed      ErrorCode = "DS_002"
	ErrCodePopulationOpenFailed ErrorCode = "DS_003"
	ErrCodeRowParseFailed       ErrorCode = "DS_004"
	ErrCodeChunkMissing         ErrorCode = "DS_005"
	ErrCodePopulationEmpty      ErrorCode = "DS_006"
	ErrCodeObjectStoreError     ErrorCode = "DS_007"
	ErrCodeIndexWriteFailed     ErrorCode = "DS_008"
)

// Matching module error codes
const (
	ErrCodeComparisonFailed ErrorCode = "MAT_001"
	ErrCodeThresholdInvalid ErrorCode = "MAT_002"
	ErrCodeDistanceFailed   ErrorCode = "MAT_003"
)

// Configuration error codes
const (
	ErrCodeConfigInvalid  ErrorCode = "CFG_001"
	ErrCodeConfigNotFound ErrorCode = "CFG_002"
)

// Report error codes
const (
	ErrCodeReportWriteFailed ErrorCode = "RPT_001"
)

// Process exit statuses for the CLI.  Fatal errors map onto a small, stable
// set so batch schedulers can distinguish usage mistakes from missing inputs
// and genuine faults.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitUsage    = 2
	ExitNoSource = 3
)

// ErrorCodeExitStatus maps ErrorCodes to process exit statuses.
var ErrorCodeExitStatus = map[ErrorCode]int{
	ErrCodeInternal:          ExitFailure,
	ErrCodeInvalidInput:      ExitUsage,
	ErrCodeNotFound:          ExitNoSource,
	ErrCodeTimeout:           ExitFailure,
	ErrCodeSerialization:     ExitFailure,
	ErrCodeSourceUnavailable: ExitNoSource,
	ErrCodeNotImplemented:    ExitFailure,

	ErrCodeStructureParseFailed: ExitFailure,
	ErrCodeStructureEmpty:       ExitUsage,
	ErrCodeNoSuitableComponent:  ExitFailure,
	ErrCodeStructureWriteFailed: ExitFailure,
	ErrCodeUnknownElement:       ExitFailure,

	ErrCodeFragmentExtractionFailed: ExitFailure,
	ErrCodeSignatureInvalid:         ExitFailure,
	ErrCodeFingerprintFailed:        ExitFailure,
	ErrCodeFragmentEncodeFailed:     ExitFailure,

	ErrCodeDatasetOpenFailed:    ExitNoSource,
	ErrCodeIndexOpenFailed:      ExitNoSource,
	ErrCodePopulationOpenFailed: ExitNoSource,
	ErrCodeRowParseFailed:       ExitFailure,
	ErrCodeChunkMissing:         ExitFailure,
	ErrCodePopulationEmpty:      ExitOK,
	ErrCodeObjectStoreError:     ExitNoSource,
	ErrCodeIndexWriteFailed:     ExitFailure,

	ErrCodeComparisonFailed: ExitFailure,
	ErrCodeThresholdInvalid: ExitUsage,
	ErrCodeDistanceFailed:   ExitFailure,

	ErrCodeConfigInvalid:  ExitUsage,
	ErrCodeConfigNotFound: ExitUsage,

	ErrCodeReportWriteFailed: ExitFailure,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:          "internal error",
	ErrCodeInvalidInput:      "invalid input",
	ErrCodeNotFound:          "resource not found",
	ErrCodeTimeout:           "operation timed out",
	ErrCodeSerialization:     "serialization failed",
	ErrCodeSourceUnavailable: "input source unavailable",
	ErrCodeNotImplemented:    "not implemented",

	ErrCodeStructureParseFailed: "failed to parse structure",
	ErrCodeStructureEmpty:       "structure contains no atoms",
	ErrCodeNoSuitableComponent:  "no suitable component of interest",
	ErrCodeStructureWriteFailed: "failed to write structure",
	ErrCodeUnknownElement:       "unknown element symbol",

	ErrCodeFragmentExtractionFailed: "fragment extraction failed",
	ErrCodeSignatureInvalid:         "invalid formula signature",
	ErrCodeFingerprintFailed:        "fingerprint generation failed",
	ErrCodeFragmentEncodeFailed:     "fragment encoding failed",

	ErrCodeDatasetOpenFailed:    "cannot open fragment dataset",
	ErrCodeIndexOpenFailed:      "cannot open row index",
	ErrCodePopulationOpenFailed: "cannot open population file",
	ErrCodeRowParseFailed:       "failed to parse dataset row",
	ErrCodeChunkMissing:         "indexed chunk missing from dataset",
	ErrCodePopulationEmpty:      "population selection is empty",
	ErrCodeObjectStoreError:     "object store operation failed",
	ErrCodeIndexWriteFailed:     "failed to write row index",

	ErrCodeComparisonFailed: "fragment comparison failed",
	ErrCodeThresholdInvalid: "invalid similarity threshold",
	ErrCodeDistanceFailed:   "interatomic distance computation failed",

	ErrCodeConfigInvalid:  "invalid configuration",
	ErrCodeConfigNotFound: "configuration file not found",

	ErrCodeReportWriteFailed: "failed to write match report",
}

// ExitStatusForCode returns the process exit status for an ErrorCode.
func ExitStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeExitStatus[code]; ok {
		return status
	}
	return ExitFailure
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsUsageError reports whether the ErrorCode corresponds to a caller mistake
// (bad flags, bad config, empty input) rather than a runtime fault.
func IsUsageError(code ErrorCode) bool {
	return ExitStatusForCode(code) == ExitUsage
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
