// Package i18n turns navigation results and errors into user-facing text.
//
// Message files are embedded and loaded into a go-i18n bundle with English
// as the fallback language:
//
//	loc, err := i18n.New(language.German)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(loc.Result(svc.Navigate(ctx, "settings")))
package i18n

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/BurntSushi/toml"
	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder"
	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder/navigation"
)

//go:embed locales/*.toml
var locales embed.FS

// NewBundle returns a bundle holding every embedded message file.
func NewBundle() (*goi18n.Bundle, error) {
	bundle := goi18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	files, err := fs.Glob(locales, "locales/*.toml")
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if _, err := bundle.LoadMessageFileFS(locales, file); err != nil {
			return nil, fmt.Errorf("load %s: %w", path.Base(file), err)
		}
	}
	return bundle, nil
}

// Localizer renders messages for one language.
type Localizer struct {
	tag       language.Tag
	localizer *goi18n.Localizer
}

// New creates a localizer for tag. Missing messages fall back to English.
func New(tag language.Tag) (*Localizer, error) {
	bundle, err := NewBundle()
	if err != nil {
		return nil, err
	}
	return NewWithBundle(bundle, tag), nil
}

// NewWithBundle creates a localizer over a caller-supplied bundle.
func NewWithBundle(bundle *goi18n.Bundle, tag language.Tag) *Localizer {
	return &Localizer{
		tag:       tag,
		localizer: goi18n.NewLocalizer(bundle, tag.String()),
	}
}

// Tag returns the requested language.
func (l *Localizer) Tag() language.Tag {
	return l.tag
}

// Message renders one message. Unknown ids render as the id itself.
func (l *Localizer) Message(id string, data map[string]any) string {
	msg, err := l.localizer.Localize(&goi18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil {
		return id
	}
	return msg
}

// Entries renders a history length, e.g. "3 entries".
func (l *Localizer) Entries(count int) string {
	msg, err := l.localizer.Localize(&goi18n.LocalizeConfig{
		MessageID:    "HistoryEntries",
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
	if err != nil {
		return fmt.Sprint(count)
	}
	return msg
}

// Result describes the outcome of a navigation request.
func (l *Localizer) Result(res navigation.Result) string {
	switch res.Status {
	case navigation.StatusSuccess:
		return l.Message("ResultSuccess", nil)
	case navigation.StatusCancelled:
		if res.Err != nil && !wayfinder.IsCancelled(res.Err) {
			return l.Error(res.Err)
		}
		return l.Message("ResultCancelled", nil)
	default:
		return l.Message("ResultFailed", map[string]any{"Reason": l.Error(res.Err)})
	}
}

var sentinels = []struct {
	err error
	id  string
}{
	{wayfinder.ErrBusy, "ErrBusy"},
	{wayfinder.ErrNotInitialized, "ErrNotInitialized"},
	{wayfinder.ErrAlreadyInitialized, "ErrAlreadyInitialized"},
	{wayfinder.ErrHistoryBoundary, "ErrHistoryBoundary"},
	{wayfinder.ErrNoModal, "ErrNoModal"},
	{wayfinder.ErrDisposed, "ErrDisposed"},
	{wayfinder.ErrRegistryFrozen, "ErrRegistryFrozen"},
	{wayfinder.ErrModalAbandoned, "ErrModalAbandoned"},
	{wayfinder.ErrCancelled, "ErrCancelled"},
}

// Error describes err. Errors outside the wayfinder taxonomy are returned
// as their Error() text.
func (l *Localizer) Error(err error) string {
	if err == nil {
		return ""
	}

	var nf *wayfinder.NotFoundError
	if errors.As(err, &nf) {
		data := map[string]any{"Kind": nf.Kind, "ID": nf.ID, "Suggestion": nf.Suggestion}
		if nf.Suggestion != "" {
			return l.Message("ErrNotFoundSuggestion", data)
		}
		return l.Message("ErrNotFound", data)
	}

	var dup *wayfinder.DuplicateIDError
	if errors.As(err, &dup) {
		return l.Message("ErrDuplicateID", map[string]any{"Kind": dup.Kind, "ID": dup.ID})
	}

	var hook *wayfinder.HookError
	if errors.As(err, &hook) {
		return l.Message("ErrHook", map[string]any{"Hook": hook.Hook, "Module": hook.Module})
	}

	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return l.Message(s.id, nil)
		}
	}
	return err.Error()
}
