package artifacts

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"symptom-guide/internal/core"
)

// byteCapacity is the version 40 byte-mode capacity per recovery level.
var byteCapacity = map[qrcode.RecoveryLevel]int{
	qrcode.Low:     2953,
	qrcode.Medium:  2331,
	qrcode.High:    1663,
	qrcode.Highest: 1273,
}

const (
	qrCaption       = "Scan for your symptom guidance"
	captionHeight   = 20
	captionBaseline = 14
)

// QREncoder renders query and guidance as a captioned PNG QR code.
type QREncoder struct {
	Level qrcode.RecoveryLevel
	Size  int
}

// ParseLevel maps a config name to a recovery level.
func ParseLevel(name string) (qrcode.RecoveryLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "low":
		return qrcode.Low, nil
	case "", "medium":
		return qrcode.Medium, nil
	case "high":
		return qrcode.High, nil
	case "highest":
		return qrcode.Highest, nil
	}
	return qrcode.Medium, fmt.Errorf("unknown qr level %q", name)
}

// QRPayload joins query and guidance with a blank line.
func QRPayload(query, sanitizedText string) string {
	return query + "\n\n" + sanitizedText
}

// Capacity is the largest payload, in bytes, the encoder accepts.
func (e *QREncoder) Capacity() int {
	return byteCapacity[e.Level]
}

// EncodeQR encodes the payload for query and guidance. Payloads beyond the
// capacity of the largest symbol fail with a payload_too_large error.
func (e *QREncoder) EncodeQR(query, sanitizedText string) (core.QrImage, error) {
	payload := QRPayload(query, sanitizedText)
	if limit := e.Capacity(); len(payload) > limit {
		return core.QrImage{}, core.NewError(core.KindPayloadTooLarge,
			fmt.Sprintf("qr payload is %d bytes, limit is %d", len(payload), limit))
	}

	q, err := qrcode.New(payload, e.Level)
	if err != nil {
		// content length is the only way New fails
		return core.QrImage{}, core.WrapError(core.KindPayloadTooLarge, "qr payload cannot be encoded", err)
	}

	size := e.Size
	if size <= 0 {
		size = 256
	}
	img := captioned(q.Image(size), qrCaption)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return core.QrImage{}, core.WrapError(core.KindPayloadTooLarge, "qr image encoding failed", err)
	}
	return core.QrImage{Data: buf.Bytes(), Payload: payload}, nil
}

// captioned returns code with a white band and centred caption beneath it.
func captioned(code image.Image, caption string) image.Image {
	b := code.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()+captionHeight))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(0, 0, b.Dx(), b.Dy()), code, b.Min, draw.Src)

	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
	}
	width := d.MeasureString(caption).Ceil()
	x := (b.Dx() - width) / 2
	if x < 0 {
		x = 0
	}
	d.Dot = fixed.P(x, b.Dy()+captionBaseline)
	d.DrawString(caption)
	return canvas
}
