package errors

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	"github.com/louisbranch/sheetphrase/internal/platform/i18n/catalog"
)

const messageNamespace = "errors"

// messages holds the parsed message templates of one locale.
type messages struct {
	locale    string
	templates map[Code]*template.Template
	raw       map[Code]string
}

// messageCache maps a requested locale to its *messages.
var messageCache sync.Map

// Localize renders the user message for code in locale. It returns the
// locale actually used, which is the base locale when locale has no
// catalog. Unknown codes render as the code itself.
func Localize(locale string, code Code, details map[string]string) (string, string) {
	m := messagesFor(locale)
	return m.locale, m.format(code, details)
}

func messagesFor(locale string) *messages {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = catalog.BaseLocale
	}
	if cached, ok := messageCache.Load(requested); ok {
		return cached.(*messages)
	}
	resolved, raw := catalog.Default().NamespaceMessagesWithFallback(requested, messageNamespace)
	built := newMessages(resolved, raw)
	actual, _ := messageCache.LoadOrStore(requested, built)
	return actual.(*messages)
}

func newMessages(locale string, raw map[string]string) *messages {
	m := &messages{
		locale:    locale,
		templates: make(map[Code]*template.Template, len(raw)),
		raw:       make(map[Code]string, len(raw)),
	}
	for key, text := range raw {
		code := Code(key)
		m.raw[code] = text
		// Unparsable templates render verbatim.
		if tmpl, err := template.New(key).Option("missingkey=zero").Parse(text); err == nil {
			m.templates[code] = tmpl
		}
	}
	return m
}

func (m *messages) format(code Code, details map[string]string) string {
	text, ok := m.raw[code]
	if !ok {
		return string(code)
	}
	tmpl, ok := m.templates[code]
	if !ok {
		return text
	}
	if details == nil {
		details = map[string]string{}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, details); err != nil {
		return text
	}
	return buf.String()
}
