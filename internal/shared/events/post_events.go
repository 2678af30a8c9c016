package events

import (
	"time"
)

// Routing keys del exchange compartido.
const (
	PostCreated = "post.created"
	PostUpdated = "post.updated"
	PostDeleted = "post.deleted"

	// PostAll lo usan los consumidores que quieren todo el ciclo de vida de un post.
	PostAll = "post.*"
)

// Estos son contratos de integración, NO entidades del dominio.
// Llevan todo lo que un proyector necesita: nadie llama de vuelta al servicio de posts.
type PostCreatedEvent struct {
	PostID      string    `json:"postId"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

type PostUpdatedEvent struct {
	PostID      string    `json:"postId"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type PostDeletedEvent struct {
	PostID   string   `json:"postId"`
	UserID   string   `json:"userId"`
	MediaIDs []string `json:"mediaIds"`
}
