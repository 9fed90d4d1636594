package core

import (
	"bytes"
	"context"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/trezcool/malalamiko/fs"
)

var (
	templates map[string]*texttmpl.Template // {name: Template}
	tmplErr   error
	tmplInit  sync.Once

	templatesDir = "assets/templates/email"
)

type (
	EmailMessage struct {
		To      []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName    string // without ext
		TemplateData    interface{}
		FrontendBaseURL string
		TextContent     string
	}

	ContextData struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails.
	EmailService interface {
		// Send delivers a single message. Implementations must honour ctx cancellation.
		Send(ctx context.Context, msg *EmailMessage) error
	}
)

func (m *EmailMessage) getContextData() ContextData {
	return ContextData{
		FrontendBaseURL: m.FrontendBaseURL,
		Data:            m.TemplateData,
	}
}

// Render fills TextContent from BodyStr or from the named template.
func (m *EmailMessage) Render() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	} else if m.TemplateName == "" {
		return nil
	}

	tmplInit.Do(func() { templates, tmplErr = parseTemplates(appfs.FS) }) // only once, during first render
	if tmplErr != nil {
		return errors.Wrap(tmplErr, "parsing email templates")
	}

	tmpl, ok := templates[m.TemplateName]
	if !ok {
		return errors.Errorf("email template %q not found", m.TemplateName)
	}

	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, m.getContextData()); err != nil {
		return errors.Wrapf(err, "executing email template %q", m.TemplateName)
	}
	m.TextContent = buff.String()
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return m.TextContent != "" }

// parseTemplates parses every `<name>.txt` template together with `_base.txt`.
func parseTemplates(fsys fs.FS) (map[string]*texttmpl.Template, error) {
	fps, err := fs.Glob(fsys, path.Join(templatesDir, "*.txt"))
	if err != nil {
		return nil, err
	}

	parsed := make(map[string]*texttmpl.Template, len(fps))
	for _, fp := range fps {
		fname := path.Base(fp)
		if strings.HasPrefix(fname, "_") {
			continue
		}
		tmpl, err := texttmpl.ParseFS(fsys, path.Join(templatesDir, "_base.txt"), fp)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", fname)
		}
		parsed[strings.TrimSuffix(fname, ".txt")] = tmpl.Option("missingkey=error")
	}
	return parsed, nil
}
