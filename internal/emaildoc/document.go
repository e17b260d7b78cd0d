// Package emaildoc turns an operator's markdown source into the structured
// email document that broadcast creation consumes.
//
// Source is a YAML front-matter block followed by a markdown body:
//
//	---
//	subject: Spring sale
//	summary: Everything is 20% off
//	sendToTag: vip
//	---
//	Hello! {{ subject }} starts today.
//
// Front-matter keys are matched case-insensitively and ignore "_" and "-",
// so "SendToTag", "send_to_tag" and "sendToTag" are the same key. Front-matter
// values are available to the body as Liquid variables; referencing one that
// is not defined is an ErrTemplate.
package emaildoc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/osteele/liquid"
	"github.com/russross/blackfriday/v2"
	"gopkg.in/yaml.v3"

	"github.com/ignite/broadcast-mailer/internal/domain"
)

// Sentinel errors returned by Parse and Validate.
var (
	ErrEmpty          = errors.New("markdown is empty")
	ErrFrontMatter    = errors.New("invalid front matter")
	ErrTemplate       = errors.New("invalid template in body")
	ErrMissingSubject = errors.New("subject is required")
	ErrMissingSummary = errors.New("summary is required")
	ErrMissingBody    = errors.New("body is required")
)

const fence = "---"

// Document is a parsed email: the front-matter fields the broadcast needs
// plus the rendered HTML body.
type Document struct {
	Subject   string         `json:"subject"`
	Slug      string         `json:"slug"`
	Summary   string         `json:"summary"`
	SendToTag string         `json:"send_to_tag"`
	BodyHTML  string         `json:"-"`
	Data      map[string]any `json:"data,omitempty"`
}

// engine fails on undefined variables, so a typo or a literal "{{ }}" in
// the body is reported instead of vanishing from the email. Literal braces
// go inside {% raw %}...{% endraw %}.
var engine = newEngine()

func newEngine() *liquid.Engine {
	e := liquid.NewEngine()
	e.StrictVariables()
	return e
}

// Parse splits front matter from body, renders the body, and fills in
// defaults: the slug derives from the subject and the audience defaults to
// every subscribed contact. A document that parses may still be invalid;
// call Validate before using it.
func Parse(markdown string) (*Document, error) {
	if strings.TrimSpace(markdown) == "" {
		return nil, ErrEmpty
	}

	front, body := splitFrontMatter(markdown)

	raw := map[string]any{}
	if front != "" {
		if err := yaml.Unmarshal([]byte(front), &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFrontMatter, err)
		}
	}

	doc := &Document{Data: make(map[string]any, len(raw))}
	for k, v := range raw {
		doc.Data[normalizeKey(k)] = v
	}
	doc.Subject = doc.str("subject")
	doc.Summary = doc.str("summary")
	doc.Slug = doc.str("slug")
	doc.SendToTag = doc.str("sendtotag")

	if doc.Slug == "" {
		doc.Slug = domain.Slugify(doc.Subject)
	}
	if doc.SendToTag == "" {
		doc.SendToTag = domain.AllSubscribers
	}
	doc.Data["slug"] = doc.Slug
	doc.Data["sendtotag"] = doc.SendToTag

	// The body sees front-matter keys as written and in normalized form.
	vars := make(map[string]any, len(raw)+len(doc.Data))
	for k, v := range raw {
		vars[k] = v
	}
	for k, v := range doc.Data {
		vars[k] = v
	}
	html, err := render(body, vars)
	if err != nil {
		return nil, err
	}
	doc.BodyHTML = html
	return doc, nil
}

// Validate reports every missing required field at once.
func (d *Document) Validate() error {
	var errs []error
	if d.Subject == "" {
		errs = append(errs, ErrMissingSubject)
	}
	if d.Summary == "" {
		errs = append(errs, ErrMissingSummary)
	}
	if strings.TrimSpace(d.BodyHTML) == "" {
		errs = append(errs, ErrMissingBody)
	}
	return errors.Join(errs...)
}

// Valid returns true if Validate finds nothing missing.
func (d *Document) Valid() bool { return d.Validate() == nil }

func (d *Document) str(key string) string {
	v, ok := d.Data[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func render(body string, vars map[string]any) (string, error) {
	if strings.Contains(body, "{{") || strings.Contains(body, "{%") {
		out, err := engine.ParseAndRenderString(body, liquid.Bindings(vars))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrTemplate, err)
		}
		body = out
	}
	if strings.TrimSpace(body) == "" {
		return "", nil
	}
	return string(blackfriday.Run([]byte(body))), nil
}

// splitFrontMatter returns the YAML between the opening and closing fences
// and the remaining body. Without an opening fence the whole input is body.
func splitFrontMatter(src string) (front, body string) {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.TrimLeft(src, "\n")
	if !strings.HasPrefix(src, fence+"\n") {
		return "", src
	}
	rest := src[len(fence)+1:]
	if strings.HasPrefix(rest, fence+"\n") || rest == fence {
		return "", strings.TrimPrefix(strings.TrimPrefix(rest, fence), "\n")
	}
	end := strings.Index(rest, "\n"+fence)
	if end < 0 {
		return "", src
	}
	front = rest[:end]
	body = rest[end+len(fence)+1:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && strings.TrimSpace(body[:nl]) == "" {
		body = body[nl+1:]
	} else if strings.TrimSpace(body) == "" {
		body = ""
	}
	return front, body
}

func normalizeKey(k string) string {
	k = strings.ToLower(k)
	return strings.NewReplacer("_", "", "-", "").Replace(k)
}
