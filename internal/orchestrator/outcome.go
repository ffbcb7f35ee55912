// File: internal/orchestrator/outcome.go
// Description: Run outcomes. Every invocation ends in exactly one Outcome;
// the CLI maps it onto the process exit code.
package orchestrator

// Stage names the pipeline step an outcome refers to.
type Stage string

const (
	StageFetchPassword    Stage = "fetch_password"
	StageInitSession      Stage = "init_session"
	StageTriggerReset     Stage = "trigger_reset"
	StagePollMail         Stage = "poll_mail"
	StageSubmitPassword   Stage = "submit_password"
	StageVerifyLogin      Stage = "verify_login"
	StageRecordCompletion Stage = "record_completion"
)

// Status classifies how a run ended.
type Status int

const (
	// StatusSuccess means the new password was submitted and recorded.
	StatusSuccess Status = iota
	// StatusManualFallback means automation stopped deliberately (captcha,
	// email polling disabled) and an operator must finish by hand.
	StatusManualFallback
	// StatusFailed means a stage failed outright.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusManualFallback:
		return "manual_fallback"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the single result of a Run. Warnings carry non-fatal anomalies
// (ambiguous submit confirmation, verification trouble, bookkeeping errors)
// that a success still surfaces.
type Outcome struct {
	Status Status

	// Stage and Cause are set when Status is StatusFailed.
	Stage Stage
	Cause error

	// Reason is set when Status is StatusManualFallback.
	Reason string

	// Instructions holds operator recovery steps. Always set for manual
	// fallback; also set for failures an operator can finish by hand.
	Instructions string

	Warnings []string
}

// ExitCode maps the outcome onto the CLI exit contract: 0 success,
// 2 manual fallback, 1 failure.
func (o Outcome) ExitCode() int {
	switch o.Status {
	case StatusSuccess:
		return 0
	case StatusManualFallback:
		return 2
	default:
		return 1
	}
}

func success(warnings []string) Outcome {
	return Outcome{Status: StatusSuccess, Warnings: warnings}
}

func manualFallback(reason, instructions string, warnings []string) Outcome {
	return Outcome{
		Status:       StatusManualFallback,
		Reason:       reason,
		Instructions: instructions,
		Warnings:     warnings,
	}
}

func failed(stage Stage, cause error, warnings []string) Outcome {
	return Outcome{
		Status:   StatusFailed,
		Stage:    stage,
		Cause:    cause,
		Warnings: warnings,
	}
}
