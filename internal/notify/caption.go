package notify

import (
	"html"
	"strings"

	"lot-watcher/internal/scraper"
)

// MaxPhotoCaption: лимит подписи к фото в Telegram Bot API.
const MaxPhotoCaption = 1024

// Caption собирает HTML-подпись: все поля экранируются.
func Caption(lot scraper.Lot, matchedPlate string) string {
	var b strings.Builder

	b.WriteString("<b>")
	b.WriteString(html.EscapeString(lot.Title))
	b.WriteString("</b>\n")
	b.WriteString("📍 Lokasi: ")
	b.WriteString(html.EscapeString(lot.Location))
	b.WriteString("\n🏷 Plat: ")
	b.WriteString(html.EscapeString(matchedPlate))

	if lot.Link != "" {
		b.WriteString("\n🔗 <a href=\"")
		b.WriteString(html.EscapeString(lot.Link))
		b.WriteString("\">Lihat detail lelang</a>")
	}

	return b.String()
}
