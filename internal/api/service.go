package api

import (
	"context"

	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/postservice"
)

// Posts is what the handlers need from the post service.
type Posts interface {
	ListPosts(ctx context.Context, limit, offset int, tag string) ([]postservice.PostListItem, int, error)
	GetPost(ctx context.Context, key string) (*postservice.PostDetail, error)
	Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error)
	Tags(ctx context.Context) ([]index.TagCount, error)
}

var _ Posts = (*postservice.Service)(nil)
