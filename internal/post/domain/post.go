package domain

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	TitleMinLen       = 4
	TitleMaxLen       = 16
	DescriptionMinLen = 10
	DescriptionMaxLen = 120
)

type Post struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	MediaIDs    []string  `json:"mediaIds"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func NewPost(userID, title, description string, mediaIDs []string) (*Post, error) {
	if userID == "" {
		return nil, ErrInvalidPost
	}
	if err := ValidateContent(title, description); err != nil {
		return nil, err
	}
	if mediaIDs == nil {
		mediaIDs = []string{}
	}

	now := time.Now().UTC()
	return &Post{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       title,
		Description: description,
		MediaIDs:    mediaIDs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// --- Métodos de dominio ---

func (p *Post) OwnedBy(userID string) bool {
	return p.UserID == userID
}

func (p *Post) Update(title, description string) error {
	if err := ValidateContent(title, description); err != nil {
		return err
	}
	p.Title = title
	p.Description = description
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// ValidateContent aplica los límites de longitud (en caracteres, no bytes).
func ValidateContent(title, description string) error {
	if n := utf8.RuneCountInString(title); n < TitleMinLen || n > TitleMaxLen {
		return &ValidationError{Field: "title", Min: TitleMinLen, Max: TitleMaxLen}
	}
	if n := utf8.RuneCountInString(description); n < DescriptionMinLen || n > DescriptionMaxLen {
		return &ValidationError{Field: "description", Min: DescriptionMinLen, Max: DescriptionMaxLen}
	}
	return nil
}
