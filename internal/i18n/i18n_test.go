package i18n

import (
	"context"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "AppTitle")
	if got != "PanPhy Lab Assistant" {
		t.Errorf("T(AppTitle) = %q, want 'PanPhy Lab Assistant'", got)
	}

	got = T(ctx, "LoginInvalid")
	if got != "Incorrect teacher password." {
		t.Errorf("T(LoginInvalid) = %q", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "ResultsRecorded", 1)
	if got1 != "1 result recorded." {
		t.Errorf("Tp(ResultsRecorded, 1) = %q, want '1 result recorded.'", got1)
	}

	got5 := Tp(ctx, "ResultsRecorded", 5)
	if got5 != "5 results recorded." {
		t.Errorf("Tp(ResultsRecorded, 5) = %q, want '5 results recorded.'", got5)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestNoLocalizerInContext(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	// Without a localizer in context, T falls back to English.
	got := T(context.Background(), "QuestionNotFound")
	if got != "Unknown question." {
		t.Errorf("T without localizer = %q, want English fallback", got)
	}
}
