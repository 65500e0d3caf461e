package model

// RepoMessage is the repository payload published to Kafka by the star
// crawler and consumed by the batch upsert consumer.
type RepoMessage struct {
	User        string  `json:"user"`
	Name        string  `json:"name"`
	FullName    string  `json:"full_name"`
	Rank        *int    `json:"rank"`
	Stars       *int    `json:"stars"`
	Description string  `json:"description"`
	Language    string  `json:"language"`
	AvatarUrl   *string `json:"avatar_url"`
	RepoUrl     *string `json:"repo_url"`
}
