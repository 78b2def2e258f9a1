package domain

import "time"

// Media is one uploaded image as recorded in the ledger.
type Media struct {
	ID             int64     `json:"id"`
	Category       string    `json:"category"`
	OwnerRef       string    `json:"owner_ref,omitempty"`
	OriginalName   string    `json:"original_name"`
	StoredPath     string    `json:"-"`
	URL            string    `json:"url"`
	OriginalSize   int64     `json:"original_size"`
	CompressedSize int64     `json:"compressed_size"`
	Format         string    `json:"format"`
	Width          int       `json:"width"`
	Height         int       `json:"height"`
	Failed         bool      `json:"failed"`
	ErrorMessage   string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Saved returns the bytes saved by compression. Negative when the output grew.
func (m *Media) Saved() int64 {
	return m.OriginalSize - m.CompressedSize
}

// Totals aggregates sizes across the ledger.
type Totals struct {
	Files          int64 `db:"files" json:"files"`
	Failed         int64 `db:"failed" json:"failed"`
	OriginalSize   int64 `db:"original_size" json:"original_size"`
	CompressedSize int64 `db:"compressed_size" json:"compressed_size"`
}
