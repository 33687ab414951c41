package checkin

import (
	"context"

	"github.com/shehryarbajwa/checkin-runner/pkg/models"
)

// Selectors on the check-in site.
const (
	// https://onewechat.bnu.edu.cn/uc/wap/login
	LoginButton = ".btn"
	// https://onewechat.bnu.edu.cn/site/center/login
	AltLoginButton = ".login-btn"

	ErrorBanner          = ".wapat-title"
	ErrorBannerContainer = "#wapat"
	LandingMarker        = ".item-buydate.form-detail2"
	ConfirmTitle         = ".wapcf-title"
	SaveButton           = ".wapcf-btn.wapcf-btn-ok"
)

// SubmitSucceeded is the banner text the site shows after a saved submission.
const SubmitSucceeded = "提交信息成功"

// DetectLoginPage waits for either login page variant. It returns true for
// the supported one and a *LoginPageError carrying the current URL for the
// other. Whichever appears first decides.
func DetectLoginPage(ctx context.Context, page Page) (bool, error) {
	return firstOf(ctx,
		func(ctx context.Context) (bool, error) {
			if err := page.WaitForSelector(ctx, LoginButton); err != nil {
				return false, err
			}
			return true, nil
		},
		func(ctx context.Context) (bool, error) {
			if err := page.WaitForSelector(ctx, AltLoginButton); err != nil {
				return false, err
			}
			url, err := CurrentURL(ctx, page)
			if err != nil {
				return false, err
			}
			return false, &LoginPageError{URL: url}
		},
	)
}

// SubmitCredentials fills the login form model and calls its login handler.
func SubmitCredentials(ctx context.Context, page Page, username, password string) error {
	return page.Evaluate(ctx, LoginScript, nil, username, password)
}

// ClassifyLoginResult reports a failure when the error banner is shown.
func ClassifyLoginResult(ctx context.Context, page Page) (models.OutcomeResult, error) {
	banner, err := probe(ctx, page, ErrorBanner)
	if err != nil {
		return models.OutcomeResult{}, err
	}
	if banner.Shown() {
		return models.Failure(banner.Text), nil
	}
	return models.Success(""), nil
}

// WaitForLoginCompletion returns once the page navigates away or the error
// banner container appears.
//
// Both paths return true, so a failed login also counts as completed here.
// ClassifyLoginResult has to be consulted to tell them apart.
func WaitForLoginCompletion(ctx context.Context, page Page) (bool, error) {
	return firstOf(ctx,
		func(ctx context.Context) (bool, error) {
			if err := page.WaitForNavigation(ctx); err != nil {
				return false, err
			}
			return true, nil
		},
		func(ctx context.Context) (bool, error) {
			if err := page.WaitForSelector(ctx, ErrorBannerContainer); err != nil {
				return false, err
			}
			return true, nil
		},
	)
}

// WaitForLandingPage blocks until the authenticated form page has rendered.
func WaitForLandingPage(ctx context.Context, page Page) error {
	return page.WaitForSelector(ctx, LandingMarker)
}

// ConfirmLocation feeds the stored geolocation back into the form and opens
// the confirmation dialog.
func ConfirmLocation(ctx context.Context, page Page) error {
	return page.Evaluate(ctx, ConfirmScript, nil)
}

// ClassifySaveResult succeeds with the dialog title when the confirmation
// dialog is shown, and fails with the error banner text otherwise.
func ClassifySaveResult(ctx context.Context, page Page) (models.OutcomeResult, error) {
	title, err := probe(ctx, page, ConfirmTitle)
	if err != nil {
		return models.OutcomeResult{}, err
	}
	if title.Shown() {
		return models.Success(title.Text), nil
	}

	banner, err := probe(ctx, page, ErrorBanner)
	if err != nil {
		return models.OutcomeResult{}, err
	}
	return models.Failure(banner.Text), nil
}

// ClickSave presses the confirmation dialog's OK button.
func ClickSave(ctx context.Context, page Page) error {
	return page.Evaluate(ctx, ClickScript, nil, SaveButton)
}

// WaitForSaveDone blocks until the result banner exists.
func WaitForSaveDone(ctx context.Context, page Page) error {
	return page.WaitForSelector(ctx, ErrorBanner)
}

// ClassifySubmitResult reads the result banner after saving.
func ClassifySubmitResult(ctx context.Context, page Page) (models.OutcomeResult, error) {
	banner, err := probe(ctx, page, ErrorBanner)
	if err != nil {
		return models.OutcomeResult{}, err
	}
	if banner.Text == SubmitSucceeded {
		return models.Success(banner.Text), nil
	}
	return models.Failure(banner.Text), nil
}

// ConfirmAndSave confirms the location, checks the confirmation dialog,
// saves, and classifies the final banner. A dialog failure is returned
// without saving.
func ConfirmAndSave(ctx context.Context, page Page) (models.OutcomeResult, error) {
	if err := ConfirmLocation(ctx, page); err != nil {
		return models.OutcomeResult{}, err
	}

	confirmed, err := ClassifySaveResult(ctx, page)
	if err != nil || confirmed.Error {
		return confirmed, err
	}

	if err := ClickSave(ctx, page); err != nil {
		return models.OutcomeResult{}, err
	}
	if err := WaitForSaveDone(ctx, page); err != nil {
		return models.OutcomeResult{}, err
	}
	return ClassifySubmitResult(ctx, page)
}
