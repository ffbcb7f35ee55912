// File: internal/mail/retriever.go
// Description: Polls the configured mailbox for the provider's reset message
// and extracts the single-use reset link. Each poll iteration opens a fresh
// connection so transient network drops never wedge the loop; only deadline
// exhaustion is terminal.
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/opsweld/rootreset/internal/config"
)

// ErrMailTimeout indicates no qualifying reset message arrived before the
// deadline. External state is untouched; the reset email may still land.
var ErrMailTimeout = errors.New("timed out waiting for password reset email")

// candidateWindow bounds how many recent matches each iteration inspects.
const candidateWindow = 10

// Mailbox is one open connection to the inbox.
type Mailbox interface {
	// SearchRecent returns raw messages from sender whose subject contains
	// subject, newest first, at most max.
	SearchRecent(sender, subject string, max int) ([][]byte, error)
	Close() error
}

// DialFunc opens and authenticates a mailbox connection.
type DialFunc func(ctx context.Context, addr, username, password string) (Mailbox, error)

// SecretSource resolves the mailbox password. The password is fetched from
// the secret store on first use, never passed in plaintext by the caller.
type SecretSource interface {
	GetString(ctx context.Context, secretID string) (string, error)
}

// Retriever polls a mailbox for reset messages.
type Retriever struct {
	cfg       config.EmailConfig
	backoff   time.Duration
	dial      DialFunc
	passwords SecretSource
	log       *zap.Logger
}

// NewRetriever builds a Retriever that connects over IMAP.
func NewRetriever(cfg config.EmailConfig, backoff time.Duration, passwords SecretSource, logger *zap.Logger) *Retriever {
	return NewRetrieverWithDialer(cfg, backoff, passwords, DialIMAP, logger)
}

// NewRetrieverWithDialer injects the connection factory. Tests use this.
func NewRetrieverWithDialer(cfg config.EmailConfig, backoff time.Duration, passwords SecretSource, dial DialFunc, logger *zap.Logger) *Retriever {
	return &Retriever{
		cfg:       cfg,
		backoff:   backoff,
		dial:      dial,
		passwords: passwords,
		log:       logger.Named("mail"),
	}
}

// PollForResetLink searches the mailbox until a qualifying message yields a
// reset link or the deadline passes. A message qualifies when it matches the
// sender and subject filters, a link pattern matches its body, and the body
// contains accountID. The account binding prevents cross-account false
// positives when several pending resets share one mailbox.
func (r *Retriever) PollForResetLink(ctx context.Context, accountID string, deadline time.Time) (ResetLink, error) {
	password, err := r.passwords.GetString(ctx, r.cfg.PasswordSecret)
	if err != nil {
		return ResetLink{}, fmt.Errorf("failed to resolve mailbox password: %w", err)
	}

	pollCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	// The limiter paces iterations a fixed backoff apart; the first Wait
	// passes immediately.
	limiter := rate.NewLimiter(rate.Every(r.backoff), 1)

	r.log.Info("Polling for password reset email",
		zap.String("account_id", accountID),
		zap.Time("deadline", deadline))

	for {
		if err := limiter.Wait(pollCtx); err != nil {
			if ctx.Err() != nil {
				return ResetLink{}, ctx.Err()
			}
			return ResetLink{}, ErrMailTimeout
		}
		if time.Now().After(deadline) {
			return ResetLink{}, ErrMailTimeout
		}

		if link, ok := r.pollOnce(pollCtx, accountID, password); ok {
			r.log.Info("Found password reset email", zap.String("account_id", accountID))
			return link, nil
		}
	}
}

// pollOnce runs one search iteration over a fresh connection. All errors are
// swallowed after logging; the caller retries until its deadline.
func (r *Retriever) pollOnce(ctx context.Context, accountID, password string) (ResetLink, bool) {
	addr := fmt.Sprintf("%s:%d", r.cfg.IMAPServer, r.cfg.IMAPPort)
	box, err := r.dial(ctx, addr, r.cfg.Address, password)
	if err != nil {
		r.log.Warn("Mailbox connection failed; will retry", zap.Error(err))
		return ResetLink{}, false
	}
	defer func() {
		if err := box.Close(); err != nil {
			r.log.Debug("Mailbox close failed", zap.Error(err))
		}
	}()

	messages, err := box.SearchRecent(r.cfg.Sender, r.cfg.SubjectContains, candidateWindow)
	if err != nil {
		r.log.Warn("Mailbox search failed; will retry", zap.Error(err))
		return ResetLink{}, false
	}

	for _, raw := range messages {
		body, err := ExtractBody(raw)
		if err != nil {
			r.log.Debug("Skipping unparseable message", zap.Error(err))
			continue
		}

		link, ok := ExtractResetLink(body)
		if !ok {
			continue
		}
		if !strings.Contains(body, accountID) {
			r.log.Debug("Reset link found but message is for a different account")
			continue
		}

		return ResetLink{URL: link, ExtractedAt: time.Now()}, true
	}

	r.log.Debug("No qualifying reset email yet")
	return ResetLink{}, false
}
