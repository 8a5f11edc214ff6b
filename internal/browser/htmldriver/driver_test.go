// internal/browser/htmldriver/driver_test.go
package htmldriver_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/steady/internal/await"
	"github.com/xkilldash9x/steady/internal/await/condition"
	"github.com/xkilldash9x/steady/internal/browser/htmldriver"
	"github.com/xkilldash9x/steady/internal/page"
)

const formPage = `<!DOCTYPE html>
<html><head><title>steady</title></head>
<body>
  <form id="f">
    <input id="id1" type="text">
    <input id="ro" type="text" value="fixed" readonly>
    <input id="secret" type="hidden" value="s3">
    <textarea id="notes">first</textarea>
    <input id="file" type="file">
    <select id="colors">
      <option value="r">Red</option>
      <option value="g" selected>Green</option>
      <option value="b" disabled>Blue</option>
    </select>
    <select id="late"></select>
  </form>
  <div id="msg"></div>
  <ul id="items"><li>one</li><li>two</li></ul>
  <div id="panel" style="display: none"><span id="inner">inside</span></div>
</body></html>`

// setup builds a page over a fresh document. The engine runs on the real
// clock, so timeouts here are kept short.
func setup(t *testing.T) (*page.Page, *htmldriver.Document) {
	t.Helper()
	doc, err := htmldriver.ParseString(formPage)
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	drv := htmldriver.New(doc, htmldriver.WithLogger(logger))
	engine := await.NewEngine(drv, await.WithLogger(logger), await.WithDefaultTimeout(300*time.Millisecond))
	return page.New(engine, page.WithLogger(logger)), doc
}

func TestInputFieldClearAndSetValue(t *testing.T) {
	ctx := context.Background()
	p, _ := setup(t)

	input := p.Find("#id1")
	v, err := input.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", v)

	for round := 0; round < 2; round++ {
		_, err = input.SetValue(ctx, ",.123")
		require.NoError(t, err)
		_, err = input.SetValue(ctx, "456")
		require.NoError(t, err)

		v, err = input.Value(ctx)
		require.NoError(t, err)
		assert.Equal(t, "456", v, "round %d", round)
	}

	_, err = input.Append(ctx, "7")
	require.NoError(t, err)
	_, err = input.PressEnter(ctx)
	require.NoError(t, err)
	_, err = input.ShouldHave(ctx, condition.Value("4567"))
	assert.NoError(t, err)
}

func TestTextarea(t *testing.T) {
	ctx := context.Background()
	p, _ := setup(t)

	notes := p.Find("#notes")
	_, err := notes.Append(ctx, " second")
	require.NoError(t, err)
	v, err := notes.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first second", v)

	_, err = notes.Val(ctx, "fresh")
	require.NoError(t, err)
	v, _ = notes.Value(ctx)
	assert.Equal(t, "fresh", v)
}

func TestNonInteractableElements(t *testing.T) {
	ctx := context.Background()
	p, _ := setup(t)

	_, err := p.Find("#ro").SetValue(ctx, "x")
	assert.ErrorIs(t, err, htmldriver.ErrNotInteractable)

	_, err = p.Find("#msg").Append(ctx, "x")
	assert.ErrorIs(t, err, htmldriver.ErrNotInteractable)

	_, err = p.Find("#nope").SetValue(ctx, "x")
	assert.ErrorIs(t, err, await.ErrNoSuchElement, "one-shot operations never wait")
}

func TestTextAppearsWhileWaiting(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	p, doc := setup(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(150 * time.Millisecond)
		_, _ = doc.SetInnerHTML("#msg", "<b>456</b>")
	}()

	start := time.Now()
	el, err := p.Find("#msg").WaitUntil(ctx, condition.ExactText("456"), time.Second)
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Less(t, time.Since(start), time.Second)
	<-done
}

func TestElementReplacedWhileWaiting(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	p, doc := setup(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(100 * time.Millisecond)
		_ = doc.Replace(`<html><body><div id="msg" class="ready">ok</div></body></html>`)
	}()

	_, err := p.Find("#msg").Should(ctx, condition.CSSClass("ready"), condition.Text("OK"))
	require.NoError(t, err)
	<-done
}

func TestStaleHandle(t *testing.T) {
	ctx := context.Background()
	p, doc := setup(t)

	handle, err := p.Find("#msg").ToElement(ctx)
	require.NoError(t, err)

	wrapped := p.Wrap(handle)
	ok, err := wrapped.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := doc.Remove("#msg")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err = wrapped.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, wrapped.Describe(ctx), "stale element reference")

	_, err = wrapped.Should(ctx, condition.Absent())
	assert.NoError(t, err)
}

func TestWaitTimesOutWithDiagnostics(t *testing.T) {
	ctx := context.Background()
	p, _ := setup(t)

	_, err := p.Find("#items").FindAt("li", 1).Should(ctx, condition.ExactText("three"))
	require.Error(t, err)
	assert.True(t, await.IsTimeout(err))
	assert.Contains(t, err.Error(), "element {#items} {li}[1] hasn't exact text 'three' in 300 ms; actual value: 'two'")
	assert.Contains(t, err.Error(), "element details: '<li>two</li>'")

	_, err = p.Find("#items").FindAt("li", 5).Should(ctx, condition.Exist())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "actual value: 'element index out of range")
}

func TestVisibility(t *testing.T) {
	ctx := context.Background()
	p, doc := setup(t)

	_, err := p.Find("#inner").ShouldBe(ctx, condition.Hidden())
	require.NoError(t, err)
	text, err := p.Find("#inner").Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", text, "hidden elements render no text")

	_, err = p.Find("#secret").ShouldNotBe(ctx, condition.Visible())
	require.NoError(t, err)

	_, err = doc.SetAttribute("#panel", "style", "")
	require.NoError(t, err)
	_, err = p.Find("#inner").ShouldBe(ctx, condition.Visible(), condition.ExactText("inside"))
	assert.NoError(t, err)
}

func TestSelectOptions(t *testing.T) {
	ctx := context.Background()
	p, _ := setup(t)
	colors := p.Find("#colors")

	v, err := colors.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, "g", v)

	require.NoError(t, colors.SelectOption(ctx, "Red"))
	v, _ = colors.Value(ctx)
	assert.Equal(t, "r", v)

	require.NoError(t, colors.SelectOptionByValue(ctx, "g"))
	v, _ = colors.Value(ctx)
	assert.Equal(t, "g", v)

	assert.ErrorIs(t, colors.SelectOption(ctx, "Purple"), htmldriver.ErrNoSuchOption)
	assert.ErrorIs(t, colors.SelectOptionByValue(ctx, "b"), htmldriver.ErrNotInteractable)

	err = p.Find("#late").SelectOption(ctx, "Red")
	assert.True(t, await.IsTimeout(err), "an empty select fails the zero-timeout option wait")
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	p, _ := setup(t)

	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))

	abs, err := p.Find("#file").Upload(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, path, abs)
	v, _ := p.Find("#file").Value(ctx)
	assert.Equal(t, `C:\fakepath\report.txt`, v)

	_, err = p.Find("#msg").Upload(ctx, path)
	assert.ErrorIs(t, err, page.ErrNotInput)

	_, err = p.Find("#file").Upload(ctx, filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, page.ErrFileNotFound)
}

func TestXPathAndScopedLookups(t *testing.T) {
	ctx := context.Background()
	p, _ := setup(t)

	text, err := p.Find("//ul[@id='items']/li[2]").Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "two", text)

	text, err = p.Find("#items").Find("xpath=./li[1]").Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "one", text)

	ok, err := p.Find("#f").Find("tag=SELECT").Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = p.Find("//ul[").Exists(ctx)
	assert.ErrorIs(t, err, htmldriver.ErrInvalidSelector, "malformed selectors are fatal")
}

func TestDescribe(t *testing.T) {
	ctx := context.Background()
	p, _ := setup(t)

	assert.Equal(t, `<input id="id1" type="text"></input>`, p.Find("#id1").Describe(ctx))
	assert.Contains(t, p.Find("#panel").Describe(ctx), "displayed:false")
	assert.Contains(t, p.Find("#nope").Describe(ctx), "unable to locate element")
	assert.Equal(t, "{#nope}", p.Find("#nope").String())
}

func TestResolveWithBrowserSelectorSyntax(t *testing.T) {
	ctx := context.Background()
	doc, err := htmldriver.ParseString(`<html><body><ul>
	  <li id="café" class="größe">one</li>
	  <li id="a\b">two</li>
	  <li id='q"uote'>three</li>
	</ul></body></html>`)
	require.NoError(t, err)
	engine := await.NewEngine(htmldriver.New(doc), await.WithLogger(zaptest.NewLogger(t)))

	tests := []struct {
		name string
		sel  await.Selector
		want string
	}{
		{"non-ascii id", await.CSS("#café"), "one"},
		{"non-ascii class", await.CSS(".größe"), "one"},
		{"nth-child", await.CSS("li:nth-child(2)"), "two"},
		{"negation", await.CSS("li:not(#café)"), "two"},
		{"escaped backslash", await.CSS(`#a\\b`), "two"},
		{"id with backslash", await.ByID(`a\b`), "two"},
		{"id with quote", await.ByID(`q"uote`), "three"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := engine.Resolve(ctx, await.Select(tt.sel, 0))
			require.NoError(t, err)
			require.True(t, res.Present(), "cause: %v", res.Cause)
			text, err := htmldriver.New(doc).Text(ctx, res.Element)
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
		})
	}

	_, err = engine.Resolve(ctx, await.Select(await.CSS("li:nth-child("), 0))
	assert.ErrorIs(t, err, htmldriver.ErrInvalidSelector)
}
