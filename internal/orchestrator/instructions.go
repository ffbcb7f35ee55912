// File: internal/orchestrator/instructions.go
package orchestrator

import (
	"fmt"
	"strings"
)

// loginURL is the account-scoped console signin entry point.
func loginURL(accountID string) string {
	return fmt.Sprintf("https://%s.signin.aws.amazon.com/console", accountID)
}

// ManualInstructions renders the operator recovery runbook for one account.
// It is printed verbatim whenever automation hands the reset over to a human.
func ManualInstructions(req Request) string {
	var b strings.Builder
	divider := strings.Repeat("=", 70)

	b.WriteString(divider + "\n")
	b.WriteString("MANUAL PASSWORD RESET REQUIRED\n")
	b.WriteString(divider + "\n")
	fmt.Fprintf(&b, "Account: %s", req.AccountID)
	if req.AccountName != "" {
		fmt.Fprintf(&b, " (%s)", req.AccountName)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Email: %s\n", req.Email)
	b.WriteString("\nSteps:\n")
	fmt.Fprintf(&b, "1. Go to: %s\n", loginURL(req.AccountID))
	b.WriteString("2. Click 'Sign in using root user email'\n")
	fmt.Fprintf(&b, "3. Enter email: %s\n", req.Email)
	b.WriteString("4. Click 'Forgot password?'\n")
	b.WriteString("5. Check email for reset link\n")
	fmt.Fprintf(&b, "6. Get password: aws secretsmanager get-secret-value --secret-id %s --query SecretString\n", req.SecretID)
	b.WriteString(divider + "\n")
	return b.String()
}
