package checkin_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/checkin-runner/internal/checkin"
	"github.com/shehryarbajwa/checkin-runner/internal/checkin/checkintest"
	"github.com/shehryarbajwa/checkin-runner/internal/runlog"
	"github.com/shehryarbajwa/checkin-runner/pkg/models"
)

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func newFlow(t *testing.T) (*checkin.Flow, string) {
	t.Helper()
	dir := t.TempDir()
	out := &safeBuffer{}
	log, err := runlog.New(runlog.Options{
		FilePath:      filepath.Join(dir, "checkin.log"),
		ScreenshotDir: filepath.Join(dir, "screenshots"),
		Stdout:        out,
		Stderr:        out,
	})
	require.NoError(t, err)
	return checkin.NewFlow(log), dir
}

func TestFlowRun_Success(t *testing.T) {
	flow, dir := newFlow(t)
	page := checkintest.CheckinSite("u1", "p1")

	res, err := flow.Run(testContext(t), page, checkin.Credentials{Username: "u1", Password: "p1"})
	require.NoError(t, err)
	assert.Equal(t, models.Success(checkin.SubmitSucceeded), res.Outcome)
	require.Len(t, res.Screenshots, 1)
	assert.FileExists(t, res.Screenshots[0])
	assert.True(t, strings.HasPrefix(filepath.Base(res.Screenshots[0]), "success-"))

	logData, err := os.ReadFile(filepath.Join(dir, "checkin.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "logged in (success)")
	assert.Contains(t, string(logData), "check-in saved: "+checkin.SubmitSucceeded+" (success)")
}

func TestFlowRun_RedirectAfterSubmit(t *testing.T) {
	for _, tt := range []struct {
		name     string
		password string
		want     models.OutcomeResult
	}{
		{name: "accepted", password: "p1", want: models.Success(checkin.SubmitSucceeded)},
		{name: "rejected", password: "wrong", want: models.Failure("账号或密码错误")},
	} {
		t.Run(tt.name, func(t *testing.T) {
			flow, _ := newFlow(t)
			page := checkintest.StrictCheckinSite("u1", "p1")

			res, err := flow.Run(testContext(t), page, checkin.Credentials{Username: "u1", Password: tt.password})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Outcome)
		})
	}
}

// The landing marker must exist before the location is confirmed.
func TestFlowRun_WaitsForLandingPage(t *testing.T) {
	flow, _ := newFlow(t)
	page := checkintest.CheckinSite("u1", "p1")
	page.OnLogin = func(p *checkintest.Page, username, password string) {
		p.Navigate("https://onewechat.bnu.edu.cn/ncov/wap/default/index")
		go func() {
			time.Sleep(30 * time.Millisecond)
			p.Show(checkin.LandingMarker, "")
		}()
	}
	var markerAtConfirm bool
	page.OnConfirm = func(p *checkintest.Page) {
		state, err := probeState(p, checkin.LandingMarker)
		markerAtConfirm = err == nil && state.Present
		p.Show(checkin.ConfirmTitle, "确认提交信息")
	}

	res, err := flow.Run(testContext(t), page, checkin.Credentials{Username: "u1", Password: "p1"})
	require.NoError(t, err)
	assert.False(t, res.Outcome.Error)
	assert.True(t, markerAtConfirm)
	assert.Equal(t, []checkin.Credentials{{Username: "u1", Password: "p1"}}, page.Logins)
}

func probeState(p *checkintest.Page, selector string) (checkin.ElementState, error) {
	var state checkin.ElementState
	err := p.Evaluate(context.Background(), checkin.ProbeScript, &state, selector)
	return state, err
}

func TestFlowRun_LoginRejected(t *testing.T) {
	flow, _ := newFlow(t)
	page := checkintest.CheckinSite("u1", "p1")

	res, err := flow.Run(testContext(t), page, checkin.Credentials{Username: "u1", Password: "wrong"})
	require.NoError(t, err)
	assert.Equal(t, models.Failure("账号或密码错误"), res.Outcome)
	assert.Len(t, res.Screenshots, 1)
}

func TestFlowRun_WrongLoginPage(t *testing.T) {
	flow, _ := newFlow(t)
	page := checkintest.NewPage(centerLoginURL)
	page.Show(checkin.AltLoginButton, "登录")

	res, err := flow.Run(testContext(t), page, checkin.Credentials{Username: "u1", Password: "p1"})
	var wrongPage *checkin.LoginPageError
	require.ErrorAs(t, err, &wrongPage)
	assert.Equal(t, centerLoginURL, wrongPage.URL)
	assert.Empty(t, page.Logins)
	assert.Len(t, res.Screenshots, 1)
}

func TestFlowRun_ScreenshotFailureIsSwallowed(t *testing.T) {
	flow, _ := newFlow(t)
	page := checkintest.CheckinSite("u1", "p1")
	page.ScreenshotErr = assert.AnError

	res, err := flow.Run(testContext(t), page, checkin.Credentials{Username: "u1", Password: "p1"})
	require.NoError(t, err)
	assert.False(t, res.Outcome.Error)
	assert.Empty(t, res.Screenshots)
}
