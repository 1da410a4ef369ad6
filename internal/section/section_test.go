package section

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/a-h/templ"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"mediahub.dev/portal/internal/observability"
)

type card struct{ Title string }

func cardRenderer(c card) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<article class="card">`+templ.EscapeString(c.Title)+`</article>`)
		return err
	})
}

func cards(n int) []card {
	out := make([]card, n)
	for i := range out {
		out[i] = card{Title: fmt.Sprintf("Card %d", i)}
	}
	return out
}

func render(t *testing.T, ctx context.Context, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(ctx, &buf))
	return buf.String()
}

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestBasisDistinctClasses(t *testing.T) {
	got := map[int]string{}
	for _, n := range []int{1, 2, 3, 5} {
		got[n] = Basis(n, 0)
	}
	require.Equal(t, "basis-full", got[1])
	require.Equal(t, "basis-1/2", got[2])
	require.Equal(t, "basis-1/3", got[3])
	require.Equal(t, "basis-[25%]", got[5])

	seen := map[string]bool{}
	for _, class := range got {
		require.False(t, seen[class], "duplicate class %s", class)
		seen[class] = true
	}
}

func TestBasisRespectsMaxPerRow(t *testing.T) {
	require.Equal(t, "basis-[20%]", Basis(7, 5))
	require.Equal(t, "basis-[16.67%]", Basis(6, 6))
	require.Equal(t, "basis-[25%]", Basis(4, 10))
}

func TestRenderGrid(t *testing.T) {
	html := render(t, context.Background(), Render(cards(2), cardRenderer, Options{ID: "latest", Title: "Latest <news>"}))
	doc := parse(t, html)

	require.Equal(t, 1, doc.Find("section#latest.section--grid").Length())
	require.Equal(t, "Latest <news>", doc.Find("h2.section__title").Text())
	require.Equal(t, 2, doc.Find("#latest-track .section__item.basis-1\\/2 article.card").Length())
	require.Zero(t, doc.Find(".section__controls").Length())
	_, hasDir := doc.Find("section").Attr("dir")
	require.False(t, hasDir)
}

func TestRenderSliderRTLMirrorsControls(t *testing.T) {
	opts := Options{ID: "videos", Mode: Slider, Dir: "rtl", PrevLabel: "prev", NextLabel: "next"}
	ltr := parse(t, render(t, context.Background(), Render(cards(5), cardRenderer, Options{ID: "videos", Mode: Slider})))
	rtl := parse(t, render(t, context.Background(), Render(cards(5), cardRenderer, opts)))

	dir, _ := rtl.Find("section").Attr("dir")
	require.Equal(t, "rtl", dir)
	require.Equal(t, 5, rtl.Find(".section__item").Length())
	require.Equal(t,
		ltr.Find(`[data-slide="prev"]`).Text(),
		rtl.Find(`[data-slide="next"]`).Text(),
	)
	require.NotEqual(t,
		ltr.Find(`[data-slide="prev"]`).Text(),
		rtl.Find(`[data-slide="prev"]`).Text(),
	)
}

func TestRenderEmpty(t *testing.T) {
	require.Empty(t, render(t, context.Background(), Render[card](nil, cardRenderer, Options{ID: "x"})))

	html := render(t, context.Background(), Render([]card{}, cardRenderer, Options{ID: "results", EmptyText: "No results"}))
	doc := parse(t, html)
	require.Equal(t, "No results", doc.Find(`#results p.section__empty[role="status"]`).Text())
}

func TestRenderNilRendererLogsAndRendersNothing(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := observability.WithLogger(context.Background(), zap.New(core))

	html := render(t, ctx, Render(cards(3), nil, Options{ID: "broken"}))
	require.Empty(t, html)
	require.Equal(t, 1, logs.FilterMessage("section rendered without an item renderer").Len())

	require.Empty(t, render(t, ctx, Page(cards(1), nil, Options{ID: "broken"})))
}

func TestRenderLoadMoreTrigger(t *testing.T) {
	opts := Options{ID: "cat", LoadMore: &LoadMore{URL: "/videos/category/42/more?hl=fr", Offset: 8, HasMore: true, Label: "More"}}
	doc := parse(t, render(t, context.Background(), Render(cards(8), cardRenderer, opts)))

	btn := doc.Find("#cat-more button")
	require.Equal(t, 1, btn.Length())
	get, _ := btn.Attr("hx-get")
	require.Equal(t, "/videos/category/42/more?hl=fr&offset=8", get)
	target, _ := btn.Attr("hx-target")
	require.Equal(t, "#cat-track", target)
	swap, _ := btn.Attr("hx-swap")
	require.Equal(t, "beforeend", swap)

	opts.LoadMore.HasMore = false
	doc = parse(t, render(t, context.Background(), Render(cards(3), cardRenderer, opts)))
	require.Equal(t, 1, doc.Find("#cat-more").Length())
	require.Zero(t, doc.Find("#cat-more button").Length())
}

func TestPageFragmentReplacesTriggerOutOfBand(t *testing.T) {
	opts := Options{ID: "cat", LoadMore: &LoadMore{URL: "/posts/category/1/more", Offset: 16, HasMore: true}}
	doc := parse(t, render(t, context.Background(), Page(cards(8), cardRenderer, opts)))

	require.Equal(t, 8, doc.Find(".section__item").Length())
	oob, _ := doc.Find("#cat-more").Attr("hx-swap-oob")
	require.Equal(t, "true", oob)
	require.Equal(t, 1, doc.Find("#cat-more button").Length())

	opts.LoadMore.HasMore = false
	doc = parse(t, render(t, context.Background(), Page(cards(2), cardRenderer, opts)))
	require.Zero(t, doc.Find("#cat-more button").Length())
}

func TestPagerStopsOnShortPage(t *testing.T) {
	p := NewPager(8)
	p.Advance(8)
	require.True(t, p.HasMore)
	require.Equal(t, 8, p.Offset)
	p.Advance(3)
	require.False(t, p.HasMore)
	require.Equal(t, 11, p.Offset)
}

func TestFeedAppendsAndStops(t *testing.T) {
	feed := NewFeed(cards(8), 8)
	var offsets []int
	fetch := func(_ context.Context, offset, limit int) ([]card, error) {
		offsets = append(offsets, offset)
		require.Equal(t, 8, limit)
		if offset == 8 {
			return cards(8), nil
		}
		return cards(5), nil
	}

	next, err := feed.LoadMore(context.Background(), fetch)
	require.NoError(t, err)
	require.Len(t, next, 8)
	require.Len(t, feed.Items(), 16)

	_, err = feed.LoadMore(context.Background(), fetch)
	require.NoError(t, err)
	require.Len(t, feed.Items(), 21)
	require.False(t, feed.Pager().HasMore)

	next, err = feed.LoadMore(context.Background(), fetch)
	require.NoError(t, err)
	require.Empty(t, next)
	require.Equal(t, []int{8, 16}, offsets)
	require.Equal(t, "Card 0", feed.Items()[0].Title)
}

func TestFeedShortFirstPageNeverFetches(t *testing.T) {
	feed := NewFeed(cards(5), 8)
	called := false
	_, err := feed.LoadMore(context.Background(), func(context.Context, int, int) ([]card, error) {
		called = true
		return nil, nil
	})
	require.NoError(t, err)
	require.False(t, called)
}

func TestFeedSuppressesConcurrentLoads(t *testing.T) {
	feed := NewFeed(cards(8), 8)
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = feed.LoadMore(context.Background(), func(context.Context, int, int) ([]card, error) {
			close(started)
			<-release
			return cards(8), nil
		})
	}()
	<-started
	require.True(t, feed.Loading())

	_, err := feed.LoadMore(context.Background(), func(context.Context, int, int) ([]card, error) {
		t.Fatal("duplicate load must not fetch")
		return nil, nil
	})
	require.True(t, errors.Is(err, ErrLoadInProgress))

	close(release)
	wg.Wait()
	require.Len(t, feed.Items(), 16)
}

func TestFeedFailureKeepsItems(t *testing.T) {
	feed := NewFeed(cards(8), 8)
	_, err := feed.LoadMore(context.Background(), func(context.Context, int, int) ([]card, error) {
		return nil, errors.New("down")
	})
	require.Error(t, err)
	require.Len(t, feed.Items(), 8)
	require.True(t, feed.Pager().HasMore)
	require.False(t, feed.Loading())
}
