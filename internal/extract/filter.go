package extract

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goscrape/internal/metrics"
)

// Reason names the predicate that rejected a page. The zero value means accepted.
type Reason string

const (
	Accept         Reason = ""
	RejectEncoding Reason = "encoding"
	RejectCJK      Reason = "cjk"
	RejectPrefix   Reason = "prefix"
)

const (
	DefaultMinCJK  = 30
	DefaultCharset = "UTF-8"
	// PDFPrefix catches PDF bytes served with an HTML content type.
	PDFPrefix = "%PDF-1.5%"
)

// Accepted is a page whose text passed every predicate. Text has had all
// whitespace removed; CJKCount was measured before that.
type Accepted struct {
	URL      string
	Title    string
	Text     string
	CJKCount int
}

// Filter decides whether a fetched page is kept. A page is accepted when its
// raw bytes are detected as RequiredCharset, its visible text holds more
// than MinCJK CJK ideographs, and that text starts with none of RejectPrefixes.
type Filter struct {
	Detector        Detector
	RequiredCharset string
	MinCJK          int
	RejectPrefixes  []string
	Metrics         *metrics.Metrics
}

// NewFilter returns a Filter with the default acceptance thresholds.
func NewFilter() *Filter {
	return &Filter{
		Detector:        NewChardetDetector(),
		RequiredCharset: DefaultCharset,
		MinCJK:          DefaultMinCJK,
		RejectPrefixes:  []string{PDFPrefix},
	}
}

// Extract applies the predicates to body. Rejection is reported through the
// Reason, never as an error.
func (f *Filter) Extract(body []byte) (Accepted, Reason) {
	if reason := f.checkCharset(body); reason != Accept {
		return f.reject(reason)
	}
	title, text := VisibleText(body)
	cjk := CountCJK(text)
	if cjk <= f.MinCJK {
		return f.reject(RejectCJK)
	}
	for _, p := range f.RejectPrefixes {
		if p != "" && strings.HasPrefix(text, p) {
			return f.reject(RejectPrefix)
		}
	}
	f.Metrics.RecordAccepted()
	return Accepted{Title: title, Text: Collapse(text), CJKCount: cjk}, Accept
}

func (f *Filter) checkCharset(body []byte) Reason {
	if f.Detector == nil {
		return Accept
	}
	want := f.RequiredCharset
	if want == "" {
		want = DefaultCharset
	}
	got, err := f.Detector.Detect(body)
	if err != nil {
		log.Debug().Err(err).Msg("charset detection failed")
		return RejectEncoding
	}
	if !SameCharset(got, want) {
		log.Debug().Str("charset", got).Msg("charset mismatch")
		return RejectEncoding
	}
	return Accept
}

func (f *Filter) reject(reason Reason) (Accepted, Reason) {
	f.Metrics.RecordRejected(string(reason))
	return Accepted{}, reason
}
