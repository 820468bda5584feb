package browser

import (
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"

	"github.com/n0xframe/tavreg-cli/internal/selectors"
)

func TestQueryPrefersCSS(t *testing.T) {
	q, _ := query(selectors.ID("email"))
	assert.Equal(t, "#email", q)

	q, _ = query(selectors.Attr("input", `name="email"`))
	assert.Equal(t, `input[name="email"]`, q)
}

func TestQueryFallsBackToXPathForText(t *testing.T) {
	q, _ := query(selectors.Text("button", "Continue"))
	assert.Contains(t, q, `//button`)
	assert.Contains(t, q, "Continue")
}

func TestNodeExprsMatchLocatorKind(t *testing.T) {
	css := selectors.CSS(".mail-list .mail-item")
	assert.Contains(t, nodeExpr(css), "querySelector")
	assert.Contains(t, nodesExpr(css), "querySelectorAll")

	text := selectors.Text("a", "Sign up")
	assert.Contains(t, nodeExpr(text), "document.evaluate")
	assert.Contains(t, nodesExpr(text), "snapshotLength")
}

func TestEditableExprChecksReadonlyState(t *testing.T) {
	expr := editableExpr(selectors.ID("password"))
	assert.Contains(t, expr, `querySelector("#password")`)
	assert.Contains(t, expr, "!el.disabled")
	assert.Contains(t, expr, "!el.readOnly")
	assert.Contains(t, expr, `hasAttribute("readonly")`)
}

func TestSameSiteFromString(t *testing.T) {
	assert.Equal(t, network.CookieSameSiteStrict, sameSiteFromString("Strict"))
	assert.Equal(t, network.CookieSameSiteLax, sameSiteFromString("lax"))
	assert.Equal(t, network.CookieSameSiteNone, sameSiteFromString("None"))
	assert.Equal(t, network.CookieSameSite(""), sameSiteFromString("weird"))
}
