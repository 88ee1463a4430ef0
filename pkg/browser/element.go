package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// httpElement is a node on the current page. Interactions translate to
// HTTP: clicking a link navigates, clicking a submit control posts the
// enclosing form with the values typed so far.
type httpElement struct {
	browser *HTTPBrowser
	sel     *goquery.Selection
}

func (e *httpElement) Text(_ context.Context) (string, error) {
	return strings.TrimSpace(e.sel.Text()), nil
}

func (e *httpElement) Attr(_ context.Context, name string) (string, bool, error) {
	val, ok := e.sel.Attr(name)
	return val, ok, nil
}

func (e *httpElement) OuterHTML(_ context.Context) (string, error) {
	html, err := goquery.OuterHtml(e.sel)
	if err != nil {
		return "", fmt.Errorf("render element: %w", err)
	}
	return html, nil
}

// SendKeys records a value for this form field, keyed by its name attribute.
// The value is sent when the form is submitted.
func (e *httpElement) SendKeys(_ context.Context, text string) error {
	name, ok := e.sel.Attr("name")
	if !ok || name == "" {
		return fmt.Errorf("element has no name attribute, cannot receive input")
	}
	e.browser.pending[name] = text
	return nil
}

// Clear drops any value typed into this field
func (e *httpElement) Clear(_ context.Context) error {
	if name, ok := e.sel.Attr("name"); ok {
		delete(e.browser.pending, name)
	}
	return nil
}

// Click follows a link or submits the enclosing form, depending on what
// this element is
func (e *httpElement) Click(ctx context.Context) error {
	if href, ok := e.sel.Attr("href"); ok && href != "" {
		target, err := e.browser.resolve(href)
		if err != nil {
			return err
		}
		return e.browser.Navigate(ctx, target.String())
	}

	form := e.sel.Closest("form")
	if form.Length() == 0 {
		return fmt.Errorf("element is neither a link nor inside a form")
	}
	return e.submitForm(ctx, form)
}

// submitForm posts the form with its default values overlaid by typed ones
func (e *httpElement) submitForm(ctx context.Context, form *goquery.Selection) error {
	values := url.Values{}
	form.Find("input, select, textarea").Each(func(_ int, field *goquery.Selection) {
		name, ok := field.Attr("name")
		if !ok || name == "" {
			return
		}
		fieldType, _ := field.Attr("type")
		switch strings.ToLower(fieldType) {
		case "submit", "button", "image", "file":
			return
		case "checkbox", "radio":
			if _, checked := field.Attr("checked"); !checked {
				return
			}
		}
		val, _ := field.Attr("value")
		values.Set(name, val)
	})
	for name, val := range e.browser.pending {
		values.Set(name, val)
	}

	action, _ := form.Attr("action")
	target, err := e.browser.resolve(action)
	if err != nil {
		return err
	}

	method, _ := form.Attr("method")
	if strings.EqualFold(method, http.MethodGet) {
		target.RawQuery = values.Encode()
		return e.browser.Navigate(ctx, target.String())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), strings.NewReader(values.Encode()))
	if err != nil {
		return fmt.Errorf("build form submission: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.browser.do(req)
}
