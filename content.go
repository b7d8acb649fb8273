package pagetextcache

// TextContent is the extracted text of one document page. The cache stores
// and returns it unchanged; it never inspects the items beyond estimating
// their size for diagnostics.
type TextContent struct {
	Items  []TextItem           `json:"items"`
	Styles map[string]TextStyle `json:"styles,omitempty"`
}

// TextItem is a single positioned text run on a page.
type TextItem struct {
	Str       string    `json:"str"`
	Dir       string    `json:"dir,omitempty"`
	Width     float64   `json:"width,omitempty"`
	Height    float64   `json:"height,omitempty"`
	Transform []float64 `json:"transform,omitempty"`
	FontName  string    `json:"fontName,omitempty"`
	HasEOL    bool      `json:"hasEOL,omitempty"`
}

// TextStyle describes the font metrics referenced by text items.
type TextStyle struct {
	FontFamily string  `json:"fontFamily,omitempty"`
	Ascent     float64 `json:"ascent,omitempty"`
	Descent    float64 `json:"descent,omitempty"`
	Vertical   bool    `json:"vertical,omitempty"`
}

// EstimatedSize returns a rough in-memory byte count for diagnostics.
// It is not an exact serialized size.
func (tc *TextContent) EstimatedSize() int {
	if tc == nil {
		return 0
	}
	size := 0
	for i := range tc.Items {
		item := &tc.Items[i]
		size += len(item.Str) + len(item.Dir) + len(item.FontName)
		size += 8 * (len(item.Transform) + 2)
	}
	for name := range tc.Styles {
		size += len(name) + 32
	}
	return size
}
