package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"lot-watcher/internal/observability"
	"lot-watcher/internal/scraper"
)

type fakeChannel struct {
	photoErr   error
	textErr    error
	panicPhoto bool
	photos     []string
	texts      []string
	images     [][]byte
}

func (c *fakeChannel) SendPhoto(_ context.Context, image []byte, caption string) error {
	if c.panicPhoto {
		panic("nil pointer in client")
	}
	c.photos = append(c.photos, caption)
	c.images = append(c.images, image)
	return c.photoErr
}

func (c *fakeChannel) SendText(_ context.Context, caption string) error {
	c.texts = append(c.texts, caption)
	return c.textErr
}

type fakeImages struct {
	failures int
	calls    int
}

func (f *fakeImages) Download(context.Context, string) ([]byte, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("timeout")
	}
	return []byte{0xFF, 0xD8, 0xFF}, nil
}

func testLot() scraper.Lot {
	return scraper.Lot{
		ID:       "778",
		Title:    "Honda Beat <2019> & co",
		Location: "Solo",
		PlateRaw: "AD 1234 BC",
		Link:     "https://www.jba.co.id/id/lelang-motor/detail/778?a=1&b=2",
		PhotoURL: "https://www.jba.co.id/img/778.jpg",
	}
}

func newTestNotifier(ch Channel, images ImageSource) *Notifier {
	return NewNotifier(ch, images, 3, 0, observability.NewNopLogger())
}

func TestCaptionEscapes(t *testing.T) {
	caption := Caption(testLot(), "AD 1234 BC")

	require.Contains(t, caption, "<b>Honda Beat &lt;2019&gt; &amp; co</b>")
	require.Contains(t, caption, "📍 Lokasi: Solo")
	require.Contains(t, caption, "🏷 Plat: AD 1234 BC")
	require.Contains(t, caption, `<a href="https://www.jba.co.id/id/lelang-motor/detail/778?a=1&amp;b=2">Lihat detail lelang</a>`)
}

func TestCaptionWithoutLink(t *testing.T) {
	lot := testLot()
	lot.Link = ""
	require.NotContains(t, Caption(lot, "AD 1"), "<a ")
}

func TestDeliverPhoto(t *testing.T) {
	ch := &fakeChannel{}
	images := &fakeImages{}

	require.True(t, newTestNotifier(ch, images).Deliver(context.Background(), testLot(), "AD 1234 BC"))
	require.Len(t, ch.photos, 1)
	require.Empty(t, ch.texts)
	require.Equal(t, []byte{0xFF, 0xD8, 0xFF}, ch.images[0])
}

func TestDeliverDownloadRetriesThenSucceeds(t *testing.T) {
	ch := &fakeChannel{}
	images := &fakeImages{failures: 2}

	require.True(t, newTestNotifier(ch, images).Deliver(context.Background(), testLot(), "AD 1234 BC"))
	require.Equal(t, 3, images.calls)
	require.Len(t, ch.photos, 1)
}

func TestDeliverDownloadExhaustedFallsBackToText(t *testing.T) {
	ch := &fakeChannel{}
	images := &fakeImages{failures: 10}

	require.True(t, newTestNotifier(ch, images).Deliver(context.Background(), testLot(), "AD 1234 BC"))
	require.Equal(t, 3, images.calls)
	require.Empty(t, ch.photos)
	require.Len(t, ch.texts, 1)

	failing := &fakeChannel{textErr: ErrChannel}
	require.False(t, newTestNotifier(failing, &fakeImages{failures: 10}).Deliver(context.Background(), testLot(), "AD 1234 BC"))
}

func TestDeliverPhotoRejectedFallsBackToText(t *testing.T) {
	ch := &fakeChannel{photoErr: ErrChannel}

	require.True(t, newTestNotifier(ch, &fakeImages{}).Deliver(context.Background(), testLot(), "AD 1234 BC"))
	require.Len(t, ch.photos, 1)
	require.Len(t, ch.texts, 1)
	require.Equal(t, ch.photos[0], ch.texts[0])
}

func TestDeliverNoPhotoSendsText(t *testing.T) {
	ch := &fakeChannel{}
	images := &fakeImages{}
	lot := testLot()
	lot.PhotoURL = ""

	require.True(t, newTestNotifier(ch, images).Deliver(context.Background(), lot, "AD 1234 BC"))
	require.Zero(t, images.calls)
	require.Len(t, ch.texts, 1)
}

func TestDeliverLongCaptionSkipsPhoto(t *testing.T) {
	ch := &fakeChannel{}
	images := &fakeImages{}
	lot := testLot()
	lot.Title = strings.Repeat("x", MaxPhotoCaption)

	require.True(t, newTestNotifier(ch, images).Deliver(context.Background(), lot, "AD 1234 BC"))
	require.Zero(t, images.calls)
	require.Len(t, ch.texts, 1)
}

func TestDeliverRecoversFromPanic(t *testing.T) {
	ch := &fakeChannel{panicPhoto: true}

	require.True(t, newTestNotifier(ch, &fakeImages{}).Deliver(context.Background(), testLot(), "AD 1234 BC"))
	require.Len(t, ch.texts, 1)
}

func TestDeliverTextTransportError(t *testing.T) {
	ch := &fakeChannel{textErr: errors.New("dial tcp: connection refused")}
	lot := testLot()
	lot.PhotoURL = ""

	require.False(t, newTestNotifier(ch, &fakeImages{}).Deliver(context.Background(), lot, "AD 1234 BC"))
}
