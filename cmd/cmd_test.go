package cmd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsweld/rootreset/internal/orchestrator"
)

func TestResetCommandRequiresIdentityFlags(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"no flags", []string{"reset"}},
		{"missing email", []string{"reset", "--account-id", "123456789012", "--secret-id", "s"}},
		{"missing secret", []string{"reset", "--account-id", "123456789012", "--email", "root@example.org"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rootCmd := NewRootCommand()
			rootCmd.PersistentPreRunE = nil // flag validation only

			out := &bytes.Buffer{}
			rootCmd.SetOut(out)
			rootCmd.SetErr(out)
			rootCmd.SetArgs(tc.args)

			err := rootCmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "required flag")
		})
	}
}

func TestExitError(t *testing.T) {
	err := &exitError{code: 2, msg: "manual completion required"}
	assert.EqualError(t, err, "manual completion required")

	var ee *exitError
	require.True(t, errors.As(error(err), &ee))
	assert.Equal(t, 2, ee.code)
}

func TestOutcomeMessage(t *testing.T) {
	t.Run("manual fallback names the reason", func(t *testing.T) {
		out := orchestrator.Outcome{
			Status: orchestrator.StatusManualFallback,
			Reason: "captcha blocked the forgot-password page",
		}
		assert.Equal(t, "manual completion required: captcha blocked the forgot-password page", outcomeMessage(out))
	})

	t.Run("failure names the stage and cause", func(t *testing.T) {
		out := orchestrator.Outcome{
			Status: orchestrator.StatusFailed,
			Stage:  orchestrator.StagePollMail,
			Cause:  errors.New("timed out waiting for password reset email"),
		}
		msg := outcomeMessage(out)
		assert.Contains(t, msg, "poll_mail")
		assert.Contains(t, msg, "timed out")
	})

	t.Run("warnings are appended", func(t *testing.T) {
		out := orchestrator.Outcome{
			Status:   orchestrator.StatusFailed,
			Stage:    orchestrator.StageSubmitPassword,
			Warnings: []string{"login verification inconclusive"},
		}
		assert.Contains(t, outcomeMessage(out), "login verification inconclusive")
	})
}
