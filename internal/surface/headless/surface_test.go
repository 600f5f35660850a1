package headless

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp/kb"
	"github.com/stretchr/testify/require"
)

func TestParseControl(t *testing.T) {
	t.Parallel()

	cases := map[string]control{
		`button:has-text("更多")`:                 {CSS: "button", Text: "更多"},
		`.List-footer button:has-text('展开')`:    {CSS: ".List-footer button", Text: "展开"},
		`:has-text("查看全部")`:                    {CSS: "*", Text: "查看全部"},
		`button[class*="QuestionRichText-more"]`: {CSS: `button[class*="QuestionRichText-more"]`},
	}
	for in, want := range cases {
		require.Equal(t, want, parseControl(in), in)
	}
}

func TestFindScriptEmbedsControlsInOrder(t *testing.T) {
	t.Parallel()

	script, err := findScript([]string{`button:has-text("更多")`, ".load-more"})
	require.NoError(t, err)
	require.Contains(t, script, `[{"css":"button","text":"更多"},{"css":".load-more"}]`)
	require.Contains(t, script, "return -1")
}

func TestClickScriptEscapesSelector(t *testing.T) {
	t.Parallel()

	script, err := clickScript(`button[data-x="a'b"]`)
	require.NoError(t, err)
	require.Contains(t, script, `{"css":"button[data-x=\"a'b\"]"}`)
}

func TestKeyFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, kb.End, keyFor("End"))
	require.Equal(t, kb.PageDown, keyFor("PageDown"))
	require.Equal(t, "x", keyFor("x"))
}

func TestSessionFromCookies(t *testing.T) {
	t.Parallel()

	sess := sessionFromCookies([]*network.Cookie{
		{Name: "z_c0", Value: "token"},
		nil,
		{Name: "", Value: "ignored"},
		{Name: "d_c0", Value: "device"},
	}, "harvester/1.0")

	require.Equal(t, map[string]string{"z_c0": "token", "d_c0": "device"}, sess.Cookies)
	require.Equal(t, "harvester/1.0", sess.Header.Get("User-Agent"))
	require.Equal(t, "d_c0=device; z_c0=token", sess.CookieHeader())
}

func TestWaitHonoursContext(t *testing.T) {
	t.Parallel()

	s := &Surface{}
	require.NoError(t, s.Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Wait(ctx, time.Hour), context.Canceled)
}

func TestRunReturnsCallerCancellation(t *testing.T) {
	t.Parallel()

	s := New(Config{Headless: true}, nil)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Evaluate(ctx, "1", nil), context.Canceled)
}
