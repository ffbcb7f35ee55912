// File: internal/orchestrator/run.go
// Description: The reset pipeline. One Run drives a single account through
// fetch-password, trigger-reset, mail polling, password submission, login
// verification and completion bookkeeping, and always ends in one Outcome
// with the browser session released.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsweld/rootreset/internal/browser"
	"github.com/opsweld/rootreset/internal/config"
	"github.com/opsweld/rootreset/internal/mail"
	"github.com/opsweld/rootreset/internal/secrets"
)

// Request identifies one account reset.
type Request struct {
	AccountID   string
	AccountName string
	Email       string
	SecretID    string

	// UseEmail gates the automated half of the flow. When false the run
	// triggers the reset email and hands over to the operator.
	UseEmail bool
}

// LinkRetriever finds the reset link for an account in the shared mailbox.
type LinkRetriever interface {
	PollForResetLink(ctx context.Context, accountID string, deadline time.Time) (mail.ResetLink, error)
}

// Orchestrator wires the collaborators for the reset pipeline. All state is
// per-Run; one Orchestrator may serve many sequential runs.
type Orchestrator struct {
	store     secrets.Store
	retriever LinkRetriever
	newDriver browser.Factory
	locators  browser.LocatorSet
	auto      config.AutomationConfig
	log       *zap.Logger
}

// New builds an Orchestrator. The locator overrides from cfg are applied on
// top of the defaults here so every run sees the same resolved set.
func New(cfg *config.Config, store secrets.Store, retriever LinkRetriever, factory browser.Factory, logger *zap.Logger) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if store == nil {
		return nil, errors.New("secret store is required")
	}
	if retriever == nil {
		return nil, errors.New("mail retriever is required")
	}
	if factory == nil {
		return nil, errors.New("browser factory is required")
	}

	locators := browser.DefaultLocators()
	if err := locators.ApplyOverrides(cfg.Locators); err != nil {
		return nil, fmt.Errorf("invalid locator configuration: %w", err)
	}
	return &Orchestrator{
		store:     store,
		retriever: retriever,
		newDriver: factory,
		locators:  locators,
		auto:      cfg.Automation,
		log:       logger.Named("orchestrator"),
	}, nil
}

// Run executes the pipeline for one account. It never panics outward and
// never leaks the browser session: the driver is released exactly once on
// every path, including panics inside a stage.
func (o *Orchestrator) Run(ctx context.Context, req Request) (out Outcome) {
	log := o.log.With(
		zap.String("run_id", uuid.New().String()),
		zap.String("account_id", req.AccountID),
		zap.String("email", req.Email))
	log.Info("Starting password reset")

	var warnings []string

	password, err := o.fetchPassword(ctx, req)
	if err != nil {
		log.Error("Failed to fetch target password", zap.Error(err))
		return failed(StageFetchPassword, err, warnings)
	}

	drv, err := o.newDriver(ctx)
	if err != nil {
		log.Error("Failed to start browser", zap.Error(err))
		return failed(StageInitSession, err, warnings)
	}
	stage := StageTriggerReset
	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic during reset run", zap.Any("panic", r), zap.String("stage", string(stage)))
			out = failed(stage, fmt.Errorf("panic during %s: %v", stage, r), warnings)
		}
		if err := drv.Close(); err != nil {
			log.Warn("Browser close failed", zap.Error(err))
		}
	}()

	if fb, err := o.triggerReset(ctx, drv, req); err != nil {
		return failed(StageTriggerReset, err, warnings)
	} else if fb != nil {
		log.Warn("Handing reset over to operator", zap.String("reason", fb.Reason))
		fb.Warnings = warnings
		return *fb
	}

	if !req.UseEmail {
		log.Info("Email polling disabled; reset email triggered, stopping")
		return manualFallback(
			"email polling disabled; complete the reset from the emailed link",
			ManualInstructions(req), warnings)
	}

	stage = StagePollMail
	link, err := o.retriever.PollForResetLink(ctx, req.AccountID, time.Now().Add(o.auto.WaitForEmail))
	if err != nil {
		log.Error("Failed to retrieve reset link", zap.Error(err))
		out := failed(StagePollMail, err, warnings)
		if errors.Is(err, mail.ErrMailTimeout) {
			// The reset email was triggered; the operator can still finish.
			out.Instructions = ManualInstructions(req)
		}
		return out
	}
	log.Info("Retrieved reset link", zap.Time("extracted_at", link.ExtractedAt))

	stage = StageSubmitPassword
	warn, err := o.submitPassword(ctx, drv, link.URL, password)
	if err != nil {
		log.Error("Failed to submit new password", zap.Error(err))
		o.snapshot(ctx, drv, "password_reset_error")
		return failed(StageSubmitPassword, err, warnings)
	}
	if warn != "" {
		warnings = append(warnings, warn)
	}

	stage = StageVerifyLogin
	if warn := o.verifyLogin(ctx, drv, req, password); warn != "" {
		log.Warn("Login verification inconclusive", zap.String("detail", warn))
		warnings = append(warnings, warn)
	}

	stage = StageRecordCompletion
	if err := o.recordCompletion(ctx, req); err != nil {
		log.Warn("Failed to record completion in secret store", zap.Error(err))
		warnings = append(warnings, fmt.Sprintf("completion not recorded: %v", err))
	}

	log.Info("Password reset complete", zap.Int("warnings", len(warnings)))
	return success(warnings)
}

// fetchPassword resolves the new password before any external side effect.
// A missing or malformed secret aborts the run with nothing touched.
func (o *Orchestrator) fetchPassword(ctx context.Context, req Request) (string, error) {
	payload, err := o.store.Get(ctx, req.SecretID)
	if err != nil {
		return "", fmt.Errorf("failed to read secret %s: %w", req.SecretID, err)
	}
	password := payload.Password()
	if password == "" {
		return "", fmt.Errorf("secret %s has no %q field", req.SecretID, secrets.KeyPassword)
	}
	return password, nil
}

// triggerReset walks the signin pages up to the forgot-password click. A nil,
// nil return means the reset email was requested. A non-nil Outcome means
// automation must stop and hand over (captcha).
func (o *Orchestrator) triggerReset(ctx context.Context, drv browser.Driver, req Request) (*Outcome, error) {
	if err := drv.Navigate(ctx, loginURL(req.AccountID)); err != nil {
		o.snapshot(ctx, drv, "forgot_password_error")
		return nil, err
	}

	// Some tenants land directly on the root email form; the entry link is
	// best-effort.
	if err := drv.Click(ctx, o.locators.RootUserLink); err != nil {
		o.log.Debug("Root user entry link not present; continuing", zap.Error(err))
	}

	if err := drv.ClearAndType(ctx, o.locators.EmailInput, req.Email); err != nil {
		o.snapshot(ctx, drv, "email_entry_error")
		return nil, fmt.Errorf("failed to enter email: %w", err)
	}
	if err := drv.Click(ctx, o.locators.NextButton); err != nil {
		o.snapshot(ctx, drv, "email_entry_error")
		return nil, fmt.Errorf("failed to advance past email form: %w", err)
	}

	if err := drv.Click(ctx, o.locators.ForgotPasswordLink); err != nil {
		blocked, checkErr := drv.PageContainsText(ctx, "captcha")
		if checkErr == nil && blocked {
			o.snapshot(ctx, drv, "captcha_detected")
			fb := manualFallback("captcha blocked the forgot-password page", ManualInstructions(req), nil)
			return &fb, nil
		}
		o.snapshot(ctx, drv, "forgot_password_link_error")
		return nil, fmt.Errorf("failed to reach forgot-password flow: %w", err)
	}
	return nil, nil
}

// submitPassword opens the reset link and submits the new password twice.
// When the landing URL is ambiguous the submission is treated as tentatively
// successful and the ambiguity returned as a warning.
func (o *Orchestrator) submitPassword(ctx context.Context, drv browser.Driver, resetURL, password string) (string, error) {
	if err := drv.Navigate(ctx, resetURL); err != nil {
		return "", err
	}
	if err := drv.ClearAndType(ctx, o.locators.NewPasswordInput, password); err != nil {
		return "", fmt.Errorf("failed to enter new password: %w", err)
	}
	if err := drv.ClearAndType(ctx, o.locators.ConfirmPassword, password); err != nil {
		return "", fmt.Errorf("failed to confirm new password: %w", err)
	}
	if err := drv.Click(ctx, o.locators.SubmitButton); err != nil {
		return "", fmt.Errorf("failed to submit reset form: %w", err)
	}

	if err := sleepCtx(ctx, o.auto.PostSubmitWait); err != nil {
		return "", err
	}

	url, err := drv.CurrentURL(ctx)
	if err != nil {
		return "", err
	}
	lower := strings.ToLower(url)
	if strings.Contains(lower, "success") || strings.Contains(lower, "console") {
		return "", nil
	}
	o.snapshot(ctx, drv, "password_reset_result")
	return fmt.Sprintf("password submission landed on unexpected URL %s; assuming success", url), nil
}

// verifyLogin attempts a full login with the new password. It never fails the
// run; any trouble comes back as a warning string (empty means verified).
func (o *Orchestrator) verifyLogin(ctx context.Context, drv browser.Driver, req Request, password string) string {
	if err := drv.Navigate(ctx, loginURL(req.AccountID)); err != nil {
		return fmt.Sprintf("login verification skipped: %v", err)
	}
	if err := drv.Click(ctx, o.locators.RootUserLink); err != nil {
		o.log.Debug("Root user entry link not present during verification", zap.Error(err))
	}
	if err := drv.ClearAndType(ctx, o.locators.EmailInput, req.Email); err != nil {
		return fmt.Sprintf("login verification failed at email entry: %v", err)
	}
	if err := drv.Click(ctx, o.locators.NextButton); err != nil {
		return fmt.Sprintf("login verification failed advancing to password: %v", err)
	}
	if err := drv.ClearAndType(ctx, o.locators.PasswordInput, password); err != nil {
		return fmt.Sprintf("login verification failed at password entry: %v", err)
	}
	if err := drv.Click(ctx, o.locators.SignInButton); err != nil {
		return fmt.Sprintf("login verification failed at signin: %v", err)
	}
	if err := sleepCtx(ctx, o.auto.PostSubmitWait); err != nil {
		return fmt.Sprintf("login verification interrupted: %v", err)
	}

	url, err := drv.CurrentURL(ctx)
	if err != nil {
		return fmt.Sprintf("login verification could not read URL: %v", err)
	}
	lower := strings.ToLower(url)
	// A captcha challenge after correct credentials still proves the
	// password took.
	if strings.Contains(lower, "console.aws.amazon.com") || strings.Contains(lower, "captcha") {
		return ""
	}
	return fmt.Sprintf("login verification inconclusive; landed on %s", url)
}

// recordCompletion marks the secret as live.
func (o *Orchestrator) recordCompletion(ctx context.Context, req Request) error {
	return o.store.Patch(ctx, req.SecretID, secrets.Payload{
		secrets.KeyPasswordSet:   "true",
		secrets.KeyPasswordSetAt: time.Now().Format(time.RFC3339),
	})
}

// snapshot captures a diagnostic screenshot, best-effort.
func (o *Orchestrator) snapshot(ctx context.Context, drv browser.Driver, label string) {
	if _, err := drv.Screenshot(ctx, label); err != nil {
		o.log.Debug("Screenshot failed", zap.String("label", label), zap.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
