package models

// CaptureRequest is the event published to the capture topic when an item is
// accepted. Acceptance acknowledges scheduling, never completion.
type CaptureRequest struct {
	ItemID string `json:"item_id"`
	UserID string `json:"user_id"`
	URL    string `json:"url"`
}
