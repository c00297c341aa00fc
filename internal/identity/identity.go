package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/RaikyD/krusty-orders-service/internal/domain"
)

// Resolver maps an opaque bearer credential to the acting user.
type Resolver interface {
	Resolve(ctx context.Context, token string) (domain.Actor, error)
}

type StaticResolver struct {
	tokens map[string]domain.Actor
}

func NewStatic(tokens map[string]domain.Actor) *StaticResolver {
	cp := make(map[string]domain.Actor, len(tokens))
	for k, v := range tokens {
		cp[k] = v
	}
	return &StaticResolver{tokens: cp}
}

func (s *StaticResolver) Resolve(ctx context.Context, token string) (domain.Actor, error) {
	a, ok := s.tokens[token]
	if !ok || token == "" {
		return domain.Actor{}, domain.ErrUnauthenticated
	}
	return a, nil
}

// RedisResolver looks up sessions written by the identity service under
// session:<token> as {"id": "...", "role": "..."}.
type RedisResolver struct {
	client *redis.Client
	prefix string
}

func NewRedisResolver(client *redis.Client) *RedisResolver {
	return &RedisResolver{client: client, prefix: "session:"}
}

func (r *RedisResolver) Resolve(ctx context.Context, token string) (domain.Actor, error) {
	if strings.TrimSpace(token) == "" {
		return domain.Actor{}, domain.ErrUnauthenticated
	}

	raw, err := r.client.Get(ctx, r.prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Actor{}, domain.ErrUnauthenticated
	}
	if err != nil {
		return domain.Actor{}, fmt.Errorf("identity: %w", err)
	}

	var s struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return domain.Actor{}, fmt.Errorf("%w: malformed session", domain.ErrUnauthenticated)
	}
	role, err := domain.ParseRole(s.Role)
	if err != nil || s.ID == "" {
		return domain.Actor{}, fmt.Errorf("%w: session has no valid actor", domain.ErrUnauthenticated)
	}
	return domain.Actor{ID: s.ID, Role: role}, nil
}
