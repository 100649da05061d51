package localization

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nicksnyder/go-i18n/v2/i18n"
)

var requiredKeys = []string{
	"challenge_issued", "wrong_answer", "cooldown_wait", "verified",
	"session_expired", "locked_out", "persistence_failed", "denied",
}

func TestLocalizationService(t *testing.T) {
	service := NewLocalizationService()

	t.Run("English", func(t *testing.T) {
		localizer := service.GetLocalizer("en")
		result := localizer.MustLocalize(&i18n.LocalizeConfig{MessageID: "denied"})
		if result != "Access denied." {
			t.Errorf("got %q", result)
		}
	})

	t.Run("Spanish", func(t *testing.T) {
		localizer := service.GetLocalizer("es")
		result := localizer.MustLocalize(&i18n.LocalizeConfig{MessageID: "denied"})
		if result != "Acceso denegado." {
			t.Errorf("got %q", result)
		}
	})

	t.Run("French", func(t *testing.T) {
		localizer := service.GetLocalizer("fr")
		result := localizer.MustLocalize(&i18n.LocalizeConfig{MessageID: "denied"})
		if result != "Accès refusé." {
			t.Errorf("got %q", result)
		}
	})

	for _, lang := range []string{"en", "es", "fr"} {
		t.Run("all keys exist in "+lang, func(t *testing.T) {
			localizer := service.GetLocalizer(lang)
			for _, key := range requiredKeys {
				result := localizer.MustLocalize(&i18n.LocalizeConfig{MessageID: key})
				if result == "" {
					t.Errorf("key %q returned empty string", key)
				}
			}
		})
	}
}

func TestCooldownTemplate(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept-Language", "en")

	got := GetLocalizer(r).Tf("cooldown_wait", map[string]any{"Seconds": 42})
	want := "Too fast! Try again in 42 seconds."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFallsBackToEnglish(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept-Language", "tlh")

	if got := GetLocalizer(r).T("denied"); got != "Access denied." {
		t.Errorf("got %q", got)
	}
}
