package entities

// ResponseItem is a tagged union over ResponseKind. Only the fields of
// the item's Kind are meaningful.
type ResponseItem struct {
	Kind ResponseKind `json:"kind"`

	// KindText: HTML-lite body with <b> and <a href> only.
	Text string `json:"text,omitempty"`

	// KindCoordinates, degrees.
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// KindImage. Either may be absent, never both.
	Image   []byte `json:"image,omitempty"`
	Caption string `json:"caption,omitempty"`
}

func TextItem(body string) ResponseItem {
	return ResponseItem{Kind: KindText, Text: body}
}

func CoordinatesItem(c Coordinates) ResponseItem {
	return ResponseItem{Kind: KindCoordinates, Latitude: c.Latitude, Longitude: c.Longitude}
}

// ImageItem builds an image item. ok is false when both slots are empty,
// in which case no item should be emitted.
func ImageItem(image []byte, caption string) (ResponseItem, bool) {
	if len(image) == 0 && caption == "" {
		return ResponseItem{}, false
	}
	return ResponseItem{Kind: KindImage, Image: image, Caption: caption}, true
}

// Response is the ordered result of dispatching one classified message.
type Response struct {
	Intent Intent         `json:"intent"`
	Kind   ResponseKind   `json:"kind"`
	Items  []ResponseItem `json:"items"`
}

// Empty reports whether the gateway has nothing to send.
func (r Response) Empty() bool {
	return len(r.Items) == 0
}
