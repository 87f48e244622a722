package crawler

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// GB18030Decoder decodes every body as GB18030 and ignores whatever charset
// the response declared; the upstream site mislabels its pages.
type GB18030Decoder struct {
	enc encoding.Encoding
}

// NewGB18030Decoder returns the decoder used for all catalog and chapter pages.
func NewGB18030Decoder() *GB18030Decoder {
	return &GB18030Decoder{enc: simplifiedchinese.GB18030}
}

// Decode converts the raw bytes to a UTF-8 string.
func (d *GB18030Decoder) Decode(body []byte) (string, error) {
	out, err := d.enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("decode gb18030: %w", err)
	}
	return string(out), nil
}
