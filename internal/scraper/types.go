package scraper

const (
	DefaultTitle    = "(tanpa judul)"
	DefaultLocation = "(tidak diketahui)"
	PlateSentinel   = "-"
)

// IDSource: откуда взят идентификатор лота.
type IDSource int

const (
	IDFromPosition IDSource = iota // page-N-I, нестабилен между прогонами
	IDFromMarkup
	IDFromHash
)

// Lot: один лот аукциона, извлечённый из карточки листинга.
type Lot struct {
	ID       string
	IDSource IDSource
	Title    string
	Location string
	PlateRaw string
	Link     string
	PhotoURL string
	Page     int
	Index    int
}

// StableID: по такому ID можно дедуплицировать между прогонами.
func (l Lot) StableID() bool {
	return l.IDSource != IDFromPosition
}

// HasPlate: номер извлечён (не сентинел и не пустой после очистки).
func (l Lot) HasPlate() bool {
	return l.PlateRaw != "" && l.PlateRaw != PlateSentinel
}

type Selectors struct {
	// Первый селектор основной, остальные для других вариантов вёрстки.
	CardSelectors     []string `yaml:"card_selectors"`
	IDAttrs           []string `yaml:"id_attrs"`
	TitleSelectors    []string `yaml:"title_selectors"`
	LocationSelectors []string `yaml:"location_selectors"`
	LocationPatterns  []string `yaml:"location_patterns"`
	PlateSelectors    []string `yaml:"plate_selectors"`
	PlatePatterns     []string `yaml:"plate_patterns"`
	LinkSelectors     []string `yaml:"link_selectors"`
	ImageSelectors    []string `yaml:"image_selectors"`
	ImageAttrs        []string `yaml:"image_attrs"`

	DetailPlateSelectors []string `yaml:"detail_plate_selectors"`
	DetailPlateLabels    []string `yaml:"detail_plate_labels"`
}

// DefaultSelectors: вёрстка листинга JBA (lelang-motor) и её старый вариант.
func DefaultSelectors() *Selectors {
	return &Selectors{
		CardSelectors: []string{"div.vehicle-item", "div.lot-item, div.card-lot"},
		IDAttrs:       []string{"data-id", "data-lot-id", "id"},
		TitleSelectors: []string{
			"h4",
			".vehicle-title",
			".lot-title",
			".card-title",
		},
		LocationSelectors: []string{
			"span.location",
			".vehicle-location",
			".lot-location",
		},
		LocationPatterns: []string{`(?i)Lokasi[:\s]*([^|\n]+)`},
		PlateSelectors: []string{
			"span.plate-number",
			".plate-number",
			".nopol",
			".license-plate",
		},
		PlatePatterns: []string{
			`(?i)(?:No\.?\s*Polisi|Nopol|Plat)[:\s]*([A-Z]{1,2}\s*-?\s*\d{1,4}\s*-?\s*[A-Z]{0,3})`,
		},
		LinkSelectors:  []string{"a[href]"},
		ImageSelectors: []string{"img.vehicle-image", "img"},
		ImageAttrs:     []string{"data-src", "data-lazy-src", "src"},
		DetailPlateSelectors: []string{
			"span.plate-number",
			"#plate-number",
			"td.plate-number",
			"[data-field='plate'] .value",
		},
		DetailPlateLabels: []string{"No. Polisi", "Nomor Polisi", "Nopol", "Plat Nomor"},
	}
}
