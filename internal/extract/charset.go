package extract

import (
	"strings"

	"github.com/saintfish/chardet"
)

// Detector guesses the character encoding of raw bytes and returns its label.
type Detector interface {
	Detect(b []byte) (string, error)
}

// ChardetDetector runs statistical charset detection over the raw bytes,
// markup included.
type ChardetDetector struct {
	d *chardet.Detector
}

func NewChardetDetector() *ChardetDetector {
	return &ChardetDetector{d: chardet.NewTextDetector()}
}

func (c *ChardetDetector) Detect(b []byte) (string, error) {
	res, err := c.d.DetectBest(b)
	if err != nil {
		return "", err
	}
	return res.Charset, nil
}

// SameCharset compares encoding labels ignoring case and '_' versus '-'.
func SameCharset(a, b string) bool {
	norm := func(s string) string { return strings.ReplaceAll(strings.TrimSpace(s), "_", "-") }
	return strings.EqualFold(norm(a), norm(b))
}
