package checkin

import (
	"context"
	"errors"

	"github.com/shehryarbajwa/checkin-runner/internal/runlog"
	"github.com/shehryarbajwa/checkin-runner/pkg/models"
)

// Credentials for the check-in account
type Credentials struct {
	Username string
	Password string
}

// Result is what one pass through the flow produced
type Result struct {
	Outcome     models.OutcomeResult
	Screenshots []string
}

// Flow runs the check-in steps in order against a page it does not own
type Flow struct {
	log *runlog.Logger
}

// NewFlow creates a Flow that reports to log
func NewFlow(log *runlog.Logger) *Flow {
	return &Flow{log: log}
}

// Run logs in, waits for the form, confirms the location and saves it.
// Page-level failures (login banner, rejected form) come back in
// Result.Outcome. Wait and evaluation failures come back as the error,
// unchanged, together with any screenshots taken so far.
func (f *Flow) Run(ctx context.Context, page Page, creds Credentials) (Result, error) {
	var res Result
	shoot := func(kind string) {
		if path := f.log.Screenshot(ctx, page, kind, true); path != "" {
			res.Screenshots = append(res.Screenshots, path)
		}
	}
	fail := func(step string, err error) (Result, error) {
		f.log.Error(step, "failed:", err)
		shoot(step)
		return res, err
	}

	f.log.Info("waiting for the login page")
	if _, err := DetectLoginPage(ctx, page); err != nil {
		var wrongPage *LoginPageError
		if errors.As(err, &wrongPage) {
			f.log.Warn("landed on an unsupported login page:", wrongPage.URL)
		}
		return fail("login-page", err)
	}

	f.log.Info("logging in as", creds.Username)
	if err := SubmitCredentials(ctx, page, creds.Username, creds.Password); err != nil {
		return fail("login", err)
	}
	if _, err := WaitForLoginCompletion(ctx, page); err != nil {
		return fail("login", err)
	}

	login, err := ClassifyLoginResult(ctx, page)
	if err != nil {
		return fail("login", err)
	}
	if login.Error {
		f.log.Error("login rejected:", login.Message)
		shoot("login-rejected")
		res.Outcome = login
		return res, nil
	}
	f.log.Success("logged in")

	if err := WaitForLandingPage(ctx, page); err != nil {
		return fail("landing-page", err)
	}

	f.log.Info("confirming location and saving")
	outcome, err := ConfirmAndSave(ctx, page)
	if err != nil {
		return fail("save", err)
	}
	res.Outcome = outcome

	if outcome.Error {
		f.log.Error("check-in failed:", outcome.Message)
		shoot("failed")
		return res, nil
	}
	f.log.Success("check-in saved:", outcome.Message)
	shoot("success")
	return res, nil
}
