package checksum

import (
	"crypto/sha256"
	"fmt"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// LotID строит стабильный идентификатор лота, когда в разметке нет data-id.
// Формула: SHA256(plate|link), первые 16 байт в hex.
// Пустая строка, если нет ни номера, ни ссылки: такой лот дедуплицировать нельзя.
func (g *Generator) LotID(canonicalPlate, link string) string {
	if canonicalPlate == "" && link == "" {
		return ""
	}

	content := fmt.Sprintf("%s|%s", canonicalPlate, link)
	hash := sha256.Sum256([]byte(content))

	return fmt.Sprintf("lot-%x", hash[:16])
}

// VerifyLotID проверяет, что id построен из этих номера и ссылки.
func (g *Generator) VerifyLotID(id, canonicalPlate, link string) bool {
	computed := g.LotID(canonicalPlate, link)
	return computed != "" && computed == id
}
