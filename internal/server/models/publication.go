package models

import "time"

// Publication status values. A record starts PENDING_ONCHAIN and moves once
// to PUBLISHED, or to FAILED when a rollback could not delete it.
const (
	StatusPendingOnchain = "PENDING_ONCHAIN"
	StatusPublished      = "PUBLISHED"
	StatusFailed         = "FAILED"
)

type Publication struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	About      string    `json:"about,omitempty"`
	Tags       []string  `json:"tags"`
	S3Key      string    `json:"s3key"`
	PaperHash  string    `json:"paper_hash"`
	Price      uint64    `json:"price"`
	RoyaltyBps uint16    `json:"royalty_bps"`
	Status     string    `json:"status"`
	TxHash     string    `json:"tx_hash,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PublicationAuthor links a publication to an author (a user id) in
// byline order.
type PublicationAuthor struct {
	PublicationID string `json:"publication_id"`
	AuthorID      string `json:"author_id"`
	AuthorOrder   int    `json:"author_order"`
}

type Citation struct {
	ID                  string    `json:"id"`
	CitingPublicationID string    `json:"citing_publication_id"`
	CitedPublicationID  string    `json:"cited_publication_id"`
	CitationContext     string    `json:"citation_context,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}
