// Package i18n renders user-facing messages (import summaries, duplicate
// reports) in the configured language. Locale files are embedded.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"path"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

var (
	bundle *i18n.Bundle
	// loaded holds the tags of the embedded locale files, in file order.
	loaded []language.Tag
)

// Init loads every embedded locale into a bundle. lang must have a locale
// file; the bundle's default language is that file's tag, so "zh-CN" falls
// back to the "zh" messages.
func Init(lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("parse language %q: %w", lang, err)
	}

	parser := i18n.NewBundle(tag)
	parser.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return fmt.Errorf("read locales dir: %w", err)
	}
	var files []*i18n.MessageFile
	for _, e := range entries {
		name := path.Join("locales", e.Name())
		data, err := localeFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read locale file %s: %w", name, err)
		}
		mf, err := parser.ParseMessageFileBytes(data, e.Name())
		if err != nil {
			return fmt.Errorf("parse locale file %s: %w", name, err)
		}
		files = append(files, mf)
		slog.Debug("loaded locale file", "file", e.Name(), "lang", mf.Tag)
	}

	tags := make([]language.Tag, 0, len(files))
	for _, mf := range files {
		tags = append(tags, mf.Tag)
	}
	def, ok := match(tags, tag)
	if !ok {
		return fmt.Errorf("no translations for language %q", lang)
	}

	b := i18n.NewBundle(def)
	for _, mf := range files {
		if err := b.AddMessages(mf.Tag, mf.Messages...); err != nil {
			return fmt.Errorf("add %s messages: %w", mf.Tag, err)
		}
	}
	bundle, loaded = b, tags
	return nil
}

// match returns the locale tag sharing tag's base language.
func match(tags []language.Tag, tag language.Tag) (language.Tag, bool) {
	base, _ := tag.Base()
	for _, t := range tags {
		if tb, _ := t.Base(); tb == base {
			return t, true
		}
	}
	return language.Und, false
}

// Languages lists the languages that have a locale file.
func Languages() []string {
	langs := make([]string, 0, len(loaded))
	for _, t := range loaded {
		langs = append(langs, t.String())
	}
	return langs
}

// NewLocalizer creates a localizer for the given languages in order of
// preference. Entries may be tags or Accept-Language header values.
func NewLocalizer(langs ...string) *i18n.Localizer {
	return i18n.NewLocalizer(bundle, langs...)
}

// WithLocalizer stores a localizer in the context.
func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

func localize(ctx context.Context, cfg *i18n.LocalizeConfig) string {
	loc, ok := ctx.Value(ctxKey{}).(*i18n.Localizer)
	if !ok {
		loc = i18n.NewLocalizer(bundle)
	}
	s, err := loc.Localize(cfg)
	if err != nil {
		slog.Warn("missing translation", "id", cfg.MessageID, "error", err)
		return cfg.MessageID
	}
	return s
}

// T translates a message by ID. Unknown IDs are returned unchanged.
func T(ctx context.Context, msgID string) string {
	return localize(ctx, &i18n.LocalizeConfig{MessageID: msgID})
}

// Td translates a message by ID with template data.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	return localize(ctx, &i18n.LocalizeConfig{MessageID: msgID, TemplateData: data})
}

// Tp translates a pluralized message by ID.
func Tp(ctx context.Context, msgID string, count int) string {
	return Tpd(ctx, msgID, count, nil)
}

// Tpd is Tp with extra template data. {{.Count}} is always set.
func Tpd(ctx context.Context, msgID string, count int, data map[string]any) string {
	td := map[string]any{"Count": count}
	maps.Copy(td, data)
	return localize(ctx, &i18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: td,
	})
}
