// Package localization serves the user-facing strings of the verification
// API in the requester's language.
package localization

import (
	"embed"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/lovebughq/ladybug"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

type LocalizationService struct {
	bundle *i18n.Bundle
}

var (
	globalService *LocalizationService
	once          sync.Once
)

func NewLocalizationService() *LocalizationService {
	once.Do(func() {
		bundle := i18n.NewBundle(language.English)
		bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

		entries, err := localeFS.ReadDir("locales")
		if err != nil {
			globalService = &LocalizationService{bundle: bundle}
			return
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}

			// a broken locale file should not take the service down
			_, _ = bundle.LoadMessageFileFS(localeFS, "locales/"+entry.Name())
		}

		globalService = &LocalizationService{bundle: bundle}
	})

	return globalService
}

func (ls *LocalizationService) GetLocalizer(lang string) *i18n.Localizer {
	return i18n.NewLocalizer(ls.bundle, lang)
}

func (ls *LocalizationService) GetLocalizerFromRequest(r *http.Request) *i18n.Localizer {
	if ladybug.ForcedLanguage != "" {
		return i18n.NewLocalizer(ls.bundle, ladybug.ForcedLanguage, "en")
	}

	acceptLanguage := r.Header.Get("Accept-Language")
	return i18n.NewLocalizer(ls.bundle, acceptLanguage, "en")
}

// SimpleLocalizer wraps i18n.Localizer with a more convenient API.
type SimpleLocalizer struct {
	Localizer *i18n.Localizer
}

// T localizes a plain message.
func (sl *SimpleLocalizer) T(messageID string) string {
	return sl.Localizer.MustLocalize(&i18n.LocalizeConfig{MessageID: messageID})
}

// Tf localizes a message with template data, such as the seconds left on a
// cooldown.
func (sl *SimpleLocalizer) Tf(messageID string, data map[string]any) string {
	return sl.Localizer.MustLocalize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
}

// GetLocalizer creates a localizer based on the request's Accept-Language header.
func GetLocalizer(r *http.Request) *SimpleLocalizer {
	localizer := NewLocalizationService().GetLocalizerFromRequest(r)
	return &SimpleLocalizer{Localizer: localizer}
}
