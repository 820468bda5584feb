// internal/selectors/registry.go
package selectors

import (
	"fmt"
	"strings"
)

// Element is the logical name of a page element the automation interacts with.
// The interaction engine only ever refers to elements by these names; the
// concrete locator strings live in the registry below.
type Element string

// Registration flow elements (app.tavily.com).
const (
	SignupButton   Element = "signup_button"
	EmailInput     Element = "email_input"
	ContinueButton Element = "continue_button"
	PasswordInput  Element = "password_input"
	SubmitButton   Element = "submit_button"
)

// Login flow elements, used when the verification link drops us on a login
// prompt instead of the dashboard.
const (
	LoginEmailInput    Element = "login_email_input"
	LoginPasswordInput Element = "login_password_input"
	LoginSubmitButton  Element = "login_submit_button"
)

// Dashboard and webmail elements.
const (
	APIKeyField Element = "api_key_field"
	InboxRows   Element = "inbox_rows"
	MessageBody Element = "message_body"
)

// By identifies the locator strategy. Strategies are ordered by how stable
// they tend to be against markup churn: identifiers first, free-text lookups
// last.
type By string

const (
	ByID   By = "id"   // element id, e.g. "email"
	ByAttr By = "attr" // tag plus attribute filter expressed as CSS
	ByCSS  By = "css"  // raw CSS selector
	ByText By = "text" // visible text content, matched per tag
)

// Locator is a single typed element descriptor.
type Locator struct {
	By    By
	Value string
	// Tag scopes ByText lookups ("a", "button", ...). Ignored otherwise.
	Tag string
}

// String renders the locator for logs.
func (l Locator) String() string {
	if l.By == ByText {
		return fmt.Sprintf("%s[text=%q]", l.Tag, l.Value)
	}
	return fmt.Sprintf("%s(%s)", l.By, l.Value)
}

// CSS returns the locator as a CSS selector string, or "" for strategies
// that cannot be expressed in CSS (ByText).
func (l Locator) CSS() string {
	switch l.By {
	case ByID:
		return "#" + l.Value
	case ByAttr, ByCSS:
		return l.Value
	default:
		return ""
	}
}

// XPath returns the locator as an XPath expression. Every strategy has an
// XPath form, which is what the browser session ultimately queries with for
// text-based lookups.
func (l Locator) XPath() string {
	switch l.By {
	case ByID:
		return fmt.Sprintf(`//*[@id=%q]`, l.Value)
	case ByText:
		tag := l.Tag
		if tag == "" {
			tag = "*"
		}
		return fmt.Sprintf(`//%s[contains(normalize-space(.), %q)]`, tag, l.Value)
	default:
		return ""
	}
}

// ID constructs a ByID locator.
func ID(id string) Locator { return Locator{By: ByID, Value: id} }

// Attr constructs a ByAttr locator from a tag and attribute filters.
func Attr(tag string, filters ...string) Locator {
	var sb strings.Builder
	sb.WriteString(tag)
	for _, f := range filters {
		sb.WriteString("[" + f + "]")
	}
	return Locator{By: ByAttr, Value: sb.String()}
}

// CSS constructs a ByCSS locator.
func CSS(sel string) Locator { return Locator{By: ByCSS, Value: sel} }

// Text constructs a ByText locator scoped to a tag.
func Text(tag, text string) Locator { return Locator{By: ByText, Value: text, Tag: tag} }

// Spec holds the ranked locator candidates for one logical element.
// The invariant the engine relies on: Primary is tried exhaustively, in
// order, before any Fallback entry; nothing reorders or dedups the lists.
type Spec struct {
	Name     Element
	Primary  []Locator
	Fallback []Locator
}

// Registry maps logical element names to their locator specs. It is built
// once at startup and never mutated afterwards.
type Registry map[Element]Spec

// Lookup returns the spec for an element name.
func (r Registry) Lookup(name Element) (Spec, bool) {
	spec, ok := r[name]
	return spec, ok
}

// Validate checks the structural invariants of the registry: every spec is
// keyed by its own name, has a non-empty primary list, and no locator has an
// empty value.
func (r Registry) Validate() error {
	for name, spec := range r {
		if spec.Name != name {
			return fmt.Errorf("registry: spec for %q is registered under key %q", spec.Name, name)
		}
		if len(spec.Primary) == 0 {
			return fmt.Errorf("registry: element %q has no primary locators", name)
		}
		for _, loc := range append(append([]Locator{}, spec.Primary...), spec.Fallback...) {
			if loc.Value == "" {
				return fmt.Errorf("registry: element %q has a locator with an empty value", name)
			}
		}
	}
	return nil
}

// Default returns the built-in registry for the Tavily signup flow and the
// 2925.com webmail interface. Ordering within each list encodes a stability
// preference: id/name attributes before context- and text-based matches,
// because neither site's markup is under our control.
func Default() Registry {
	reg := Registry{
		SignupButton: {
			Name: SignupButton,
			Primary: []Locator{
				Text("a", "Sign up"),
				Attr("a", `href*="signup"`),
			},
			Fallback: []Locator{
				Text("p", "Don't have an account?"),
				CSS(`a[class*="c7c2d7b15"]`),
			},
		},
		EmailInput: {
			Name: EmailInput,
			Primary: []Locator{
				ID("email"),
				Attr("input", `name="email"`),
				Attr("input", `type="text"`, `autocomplete="email"`),
			},
			Fallback: []Locator{
				CSS(`form._form-signup-id input[type="text"]`),
				CSS(`input[placeholder*="mail"]`),
			},
		},
		ContinueButton: {
			Name: ContinueButton,
			Primary: []Locator{
				Attr("button", `name="action"`, `type="submit"`),
				Text("button", "Continue"),
			},
			Fallback: []Locator{
				CSS(`form._form-signup-id button[type="submit"]`),
				CSS(`button._button-signup-id`),
			},
		},
		PasswordInput: {
			Name: PasswordInput,
			Primary: []Locator{
				ID("password"),
				Attr("input", `name="password"`),
				Attr("input", `type="password"`, `autocomplete="new-password"`),
			},
			Fallback: []Locator{
				Attr("input", `type="password"`),
			},
		},
		SubmitButton: {
			Name: SubmitButton,
			Primary: []Locator{
				Attr("button", `name="action"`, `type="submit"`),
				Text("button", "Continue"),
			},
			Fallback: []Locator{
				Attr("button", `type="submit"`),
				Attr("input", `type="submit"`),
			},
		},
		LoginEmailInput: {
			Name: LoginEmailInput,
			Primary: []Locator{
				ID("username"),
				ID("email"),
				Attr("input", `name="username"`),
			},
			Fallback: []Locator{
				Attr("input", `type="email"`),
				Attr("input", `autocomplete="email"`),
			},
		},
		LoginPasswordInput: {
			Name: LoginPasswordInput,
			Primary: []Locator{
				ID("password"),
				Attr("input", `name="password"`),
			},
			Fallback: []Locator{
				Attr("input", `type="password"`),
			},
		},
		LoginSubmitButton: {
			Name: LoginSubmitButton,
			Primary: []Locator{
				Attr("button", `name="action"`, `type="submit"`),
				Text("button", "Continue"),
			},
			Fallback: []Locator{
				Attr("button", `type="submit"`),
			},
		},
		APIKeyField: {
			Name: APIKeyField,
			Primary: []Locator{
				CSS(`input[value^="tvly-"]`),
				Text("code", "tvly-"),
			},
			Fallback: []Locator{
				CSS(`[data-testid*="api"]`),
				Attr("input", "readonly"),
			},
		},
		InboxRows: {
			Name: InboxRows,
			Primary: []Locator{
				CSS(`.mail-list .mail-item`),
				CSS(`.email-row`),
			},
			Fallback: []Locator{
				CSS(`[class*="mail"] [class*="item"]`),
			},
		},
		MessageBody: {
			Name: MessageBody,
			Primary: []Locator{
				CSS(`.mail-content`),
				CSS(`.message-body`),
			},
			Fallback: []Locator{
				CSS(`iframe + div`),
				CSS(`[class*="content"]`),
			},
		},
	}
	return reg
}
