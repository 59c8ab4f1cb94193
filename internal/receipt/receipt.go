// Package receipt renders the confirmation a customer can scan after a sale.
package receipt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"club-pos/internal/models"
	"club-pos/internal/pricing"

	"github.com/skip2/go-qrcode"
)

const qrSize = 256

var ErrMalformedReceipt = errors.New("malformed receipt")

type Receipt struct {
	SaleID        string    `json:"sale_id"`
	SoldAt        time.Time `json:"sold_at"`
	Event         string    `json:"event"`
	Tickets       int       `json:"tickets"`
	Total         string    `json:"total"`
	PaymentMethod string    `json:"payment_method"`
}

func FromSale(record models.SaleRecord) Receipt {
	return Receipt{
		SaleID:        record.ID,
		SoldAt:        record.SoldAt,
		Event:         record.EventName,
		Tickets:       record.TicketCount(),
		Total:         pricing.FormatEUR(record.Total),
		PaymentMethod: record.PaymentMethod,
	}
}

type Generator struct {
	aead cipher.AEAD
}

func NewGenerator(secret string) (*Generator, error) {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	block, err := aes.NewCipher(hashed[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Generator{aead: aead}, nil
}

// Seal encrypts the receipt into a URL-safe token.
func (g *Generator) Seal(r Receipt) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, g.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := g.aead.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (g *Generator) Open(token string) (Receipt, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrMalformedReceipt, err)
	}
	n := g.aead.NonceSize()
	if len(raw) < n {
		return Receipt{}, ErrMalformedReceipt
	}
	data, err := g.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrMalformedReceipt, err)
	}
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrMalformedReceipt, err)
	}
	return r, nil
}

// QR returns the sealed token for the sale and a PNG QR code encoding it.
func (g *Generator) QR(record models.SaleRecord) (string, []byte, error) {
	token, err := g.Seal(FromSale(record))
	if err != nil {
		return "", nil, err
	}
	png, err := qrcode.Encode(token, qrcode.Medium, qrSize)
	if err != nil {
		return "", nil, err
	}
	return token, png, nil
}
