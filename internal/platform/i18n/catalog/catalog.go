// Package catalog loads the embedded locale catalogs behind phrase warnings
// and error messages.
//
// Catalog files live at locales/<locale>/<namespace>.yaml. The "phrase"
// namespace holds printf-style warnings printed through x/text/message; the
// "errors" namespace holds text/template messages keyed by error code.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"regexp"
	"slices"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the source locale every other locale translates.
const BaseLocale = "en-US"

type catalogFile struct {
	Locale    string            `yaml:"locale"`
	Namespace string            `yaml:"namespace"`
	Messages  map[string]string `yaml:"messages"`
}

// Bundle holds the messages of every locale, grouped by namespace.
type Bundle struct {
	// locales maps locale -> namespace -> key -> message.
	locales map[string]map[string]map[string]string
}

//go:embed locales/*/*.yaml
var embeddedCatalogFS embed.FS

var defaultBundle = mustLoadAndRegisterEmbedded()

// Default returns the process-wide embedded bundle.
func Default() *Bundle {
	return defaultBundle
}

// LoadEmbedded loads the catalogs embedded in this package.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedCatalogFS)
}

// LoadFromFS loads catalogs from catalogFS. Every translated message must
// exist in the base locale and use the same placeholders.
func LoadFromFS(catalogFS fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(catalogFS, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	bundle := &Bundle{locales: map[string]map[string]map[string]string{}}
	for _, p := range paths {
		data, err := fs.ReadFile(catalogFS, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		file, err := parseCatalogFile(data)
		if err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if err := bundle.add(p, file); err != nil {
			return nil, err
		}
	}

	if !bundle.HasLocale(BaseLocale) {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	if err := bundle.checkTranslations(); err != nil {
		return nil, err
	}
	return bundle, nil
}

func (b *Bundle) add(p string, file catalogFile) error {
	locale := strings.TrimSpace(file.Locale)
	namespace := strings.TrimSpace(file.Namespace)
	if dir := path.Base(path.Dir(p)); locale != dir {
		return fmt.Errorf("catalog %s: locale %q must match path locale %q", p, locale, dir)
	}
	if base := strings.TrimSuffix(path.Base(p), path.Ext(p)); namespace != base {
		return fmt.Errorf("catalog %s: namespace %q must match filename namespace %q", p, namespace, base)
	}

	namespaces, ok := b.locales[locale]
	if !ok {
		namespaces = map[string]map[string]string{}
		b.locales[locale] = namespaces
	}
	if _, exists := namespaces[namespace]; exists {
		return fmt.Errorf("catalog %s: namespace %q already defined for locale %q", p, namespace, locale)
	}

	messages := make(map[string]string, len(file.Messages))
	for key, value := range file.Messages {
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("catalog %s: message key cannot be blank", p)
		}
		// Dotted keys are printer keys and must name their namespace.
		if prefix, _, dotted := strings.Cut(key, "."); dotted && prefix != namespace {
			return fmt.Errorf("catalog %s: key %q must be defined in namespace %q", p, key, prefix)
		}
		for other, otherMessages := range namespaces {
			if _, dup := otherMessages[key]; dup {
				return fmt.Errorf("catalog %s: duplicate key %q in locale %q (also in %s)", p, key, locale, other)
			}
		}
		messages[key] = value
	}
	namespaces[namespace] = messages
	return nil
}

var (
	printfVerb    = regexp.MustCompile(`%[-+# 0-9.]*[a-zA-Z]`)
	templateField = regexp.MustCompile(`\{\{\s*\.(\w+)\s*\}\}`)
)

// placeholders lists the printf verbs and template fields of a message.
func placeholders(text string) []string {
	text = strings.ReplaceAll(text, "%%", "")
	out := printfVerb.FindAllString(text, -1)
	for _, m := range templateField.FindAllStringSubmatch(text, -1) {
		out = append(out, "."+m[1])
	}
	sort.Strings(out)
	return out
}

func (b *Bundle) checkTranslations() error {
	base := b.locales[BaseLocale]
	for _, locale := range b.Locales() {
		if locale == BaseLocale {
			continue
		}
		for namespace, messages := range b.locales[locale] {
			for key, text := range messages {
				source, ok := base[namespace][key]
				if !ok {
					return fmt.Errorf("locale %s: key %q is not in base locale %s", locale, key, BaseLocale)
				}
				if want, got := placeholders(source), placeholders(text); !slices.Equal(want, got) {
					return fmt.Errorf("locale %s: key %q uses placeholders %v, base uses %v", locale, key, got, want)
				}
			}
		}
	}
	return nil
}

// Register installs the printer keys with x/text/message, under both the
// full tag and its base language.
func (b *Bundle) Register() error {
	if b == nil {
		return nil
	}
	for _, locale := range b.Locales() {
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		tags := []language.Tag{tag}
		if base, conf := tag.Base(); conf != language.No {
			if baseTag, err := language.Parse(base.String()); err == nil && baseTag != tag {
				tags = append(tags, baseTag)
			}
		}
		for _, namespace := range sortedKeys(b.locales[locale]) {
			messages := b.locales[locale][namespace]
			for _, key := range sortedKeys(messages) {
				for _, t := range tags {
					if err := message.SetString(t, key, messages[key]); err != nil {
						return fmt.Errorf("register %s %q: %w", locale, key, err)
					}
				}
			}
		}
	}
	return nil
}

// Printer returns a message printer for locale. Unknown or malformed locales
// fall back to BaseLocale; keys missing from the locale print as given.
func Printer(locale string) *message.Printer {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil || !defaultBundle.HasLocale(tag.String()) {
		tag = language.MustParse(BaseLocale)
	}
	return message.NewPrinter(tag)
}

// HasLocale reports whether the bundle has a catalog for locale.
func (b *Bundle) HasLocale(locale string) bool {
	if b == nil {
		return false
	}
	_, ok := b.locales[strings.TrimSpace(locale)]
	return ok
}

// Locales returns the sorted locale identifiers.
func (b *Bundle) Locales() []string {
	if b == nil {
		return nil
	}
	return sortedKeys(b.locales)
}

// NamespaceMessages returns a copy of one namespace of locale.
func (b *Bundle) NamespaceMessages(locale, namespace string) map[string]string {
	if b == nil {
		return map[string]string{}
	}
	messages, ok := b.locales[strings.TrimSpace(locale)][strings.TrimSpace(namespace)]
	if !ok {
		return map[string]string{}
	}
	return maps.Clone(messages)
}

// NamespaceMessagesWithFallback returns one namespace of locale, or of the
// base locale when locale lacks it, with the locale that satisfied it.
func (b *Bundle) NamespaceMessagesWithFallback(locale, namespace string) (string, map[string]string) {
	locale = strings.TrimSpace(locale)
	if messages := b.NamespaceMessages(locale, namespace); len(messages) > 0 {
		return locale, messages
	}
	return BaseLocale, b.NamespaceMessages(BaseLocale, namespace)
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

func mustLoadAndRegisterEmbedded() *Bundle {
	bundle, err := LoadEmbedded()
	if err != nil {
		panic(err)
	}
	if err := bundle.Register(); err != nil {
		panic(err)
	}
	return bundle
}

func parseCatalogFile(data []byte) (catalogFile, error) {
	var out catalogFile
	if err := yaml.Unmarshal(data, &out); err != nil {
		return catalogFile{}, err
	}
	if out.Locale == "" {
		return catalogFile{}, fmt.Errorf("missing locale")
	}
	if out.Namespace == "" {
		return catalogFile{}, fmt.Errorf("missing namespace")
	}
	if len(out.Messages) == 0 {
		return catalogFile{}, fmt.Errorf("missing messages")
	}
	return out, nil
}
