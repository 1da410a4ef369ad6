package cards

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/a-h/templ"
	"github.com/stretchr/testify/require"

	"mediahub.dev/portal/internal/content"
	"mediahub.dev/portal/internal/i18n"
	"mediahub.dev/portal/locales"
)

func localizer(t *testing.T, lang string) i18n.Localizer {
	t.Helper()
	b, err := i18n.Load(locales.FS, "en", []string{"en", "fr", "ar"})
	require.NoError(t, err)
	return b.Localizer(lang)
}

func renderDoc(t *testing.T, c templ.Component) *goquery.Document {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(buf.String()))
	require.NoError(t, err)
	return doc
}

func TestVideoCardShowsDuration(t *testing.T) {
	render := ForKind(content.KindVideo, localizer(t, "en"))
	require.NotNil(t, render)

	doc := renderDoc(t, render(content.Item{
		ID:    "vid-2",
		Title: "The last ferry <live>",
		Image: "https://img.example.com/ferry.jpg",
		Video: &content.VideoDetails{Duration: 3723},
	}))
	card := doc.Find("article.card--video")
	require.Equal(t, 1, card.Length())
	href, _ := card.Find("a").Attr("href")
	require.Equal(t, "/videos/vid-2", href)
	require.Equal(t, "The last ferry <live>", card.Find("h3").Text())
	require.Equal(t, "1:02:03", card.Find(".card__badge").Text())
}

func TestEventCardShowsDateAndLocation(t *testing.T) {
	start := time.Date(2025, 9, 11, 17, 0, 0, 0, time.UTC)
	doc := renderDoc(t, Item(content.Item{
		ID:    "evt-1",
		Kind:  content.KindEvent,
		Title: "Zine making",
		Event: &content.EventDetails{StartsAt: start, Location: "Lyon"},
	}, localizer(t, "en")))
	require.Equal(t, "2025-09-11", doc.Find(".card__badge").Text())
	require.Equal(t, "Lyon", doc.Find(".card__meta li").First().Text())
}

func TestCardRejectsUnsafeImageURL(t *testing.T) {
	doc := renderDoc(t, Item(content.Item{ID: "p", Kind: content.KindPost, Image: "javascript:alert(1)"}, localizer(t, "en")))
	src, _ := doc.Find("img").Attr("src")
	require.NotContains(t, src, "javascript")
}

func TestForKindUnknown(t *testing.T) {
	require.Nil(t, ForKind(content.Kind("podcast"), localizer(t, "en")))
}

func TestGuidedCardLocalisesStep(t *testing.T) {
	l := localizer(t, "fr")
	doc := renderDoc(t, Guided(l)(content.GuidedCard{Step: 2, Title: "Carte", Photo: "/p.jpg"}))
	require.Equal(t, l.T("guided.step", 2), doc.Find(".guided-card__step").Text())
	require.Equal(t, "2", doc.Find("figure").AttrOr("data-step", ""))
}

func TestDuration(t *testing.T) {
	require.Equal(t, "", Duration(0))
	require.Equal(t, "0:59", Duration(59))
	require.Equal(t, "11:00", Duration(660))
}
