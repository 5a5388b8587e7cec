package model

// Flashcard is a single question/answer card. CreatedAt is unix milliseconds.
type Flashcard struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Topic     string `json:"topic"`
	CreatedAt int64  `json:"created_at"`
}

// FlashcardSet is a saved, titled collection of cards owned by one user.
type FlashcardSet struct {
	ID         string      `db:"id" json:"id"`
	UserID     string      `db:"user_id" json:"user_id"`
	Title      string      `db:"title" json:"title"`
	Topic      string      `db:"topic" json:"topic"`
	Flashcards []Flashcard `db:"flashcards" json:"flashcards"`
	CreatedAt  int64       `db:"created_at" json:"created_at"`
}
