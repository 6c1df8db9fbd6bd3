package models

// ScoredPassage is a live passage with its final retrieval score.
type ScoredPassage struct {
	Passage *Passage `json:"passage"`
	Score   float64  `json:"score"`
	Cosine  float64  `json:"cosine"`
	Boost   float64  `json:"boost"`
}

// ChatRequest is the body of a chat query.
type ChatRequest struct {
	Query string `json:"query" validate:"required,max=2000"`
}

// ChatResponse is the answer to a chat query. Sources are de-duplicated passage titles.
type ChatResponse struct {
	Response string   `json:"response"`
	Sources  []string `json:"sources"`
}
