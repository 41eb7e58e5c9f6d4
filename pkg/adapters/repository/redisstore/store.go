// Package redisstore is the document-oriented Store. Each link is a hash keyed by its short
// code, each user a hash keyed by a UUID, and each link's clicks a list of JSON documents.
// Ordering and aggregation happen client side.
//
// Key layout (all under an optional prefix):
//
//	users:{id}            hash  id, email, credential, created_at
//	users:email:{email}   string -> user id
//	links:{code}          hash  code, owner_id, destination_url, click_count, created_at
//	owners:{id}:links     set of codes
//	clicks:{code}         list of click documents
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

const scanBatch = 200

type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// Open connects using a redis:// URL
func Open(redisURL, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return New(rdb, prefix), nil
}

// New wraps an existing client. The store owns it from then on.
func New(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) userKey(id string) string       { return s.prefix + "users:" + id }
func (s *RedisStore) emailKey(email string) string   { return s.prefix + "users:email:" + email }
func (s *RedisStore) linkKey(code string) string     { return s.prefix + "links:" + code }
func (s *RedisStore) ownerKey(ownerID string) string { return s.prefix + "owners:" + ownerID + ":links" }
func (s *RedisStore) clicksKey(code string) string   { return s.prefix + "clicks:" + code }

type clickDoc struct {
	Origin    string `json:"origin"`
	Country   string `json:"country,omitempty"`
	Timestamp string `json:"ts"`
}

func (s *RedisStore) CreateUser(ctx context.Context, email, credential string) (string, error) {
	id := uuid.NewString()
	emailKey := s.emailKey(email)

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, emailKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrDuplicateEmail
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, emailKey, id, 0)
			pipe.HSet(ctx, s.userKey(id), map[string]interface{}{
				"id":         id,
				"email":      email,
				"credential": credential,
				"created_at": formatTime(time.Now()),
			})
			return nil
		})
		return err
	}, emailKey)

	// emails are never released, so a concurrent change means someone else took it
	if errors.Is(err, redis.TxFailedErr) {
		return "", domain.ErrDuplicateEmail
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *RedisStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	id, err := s.rdb.Get(ctx, s.emailKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.NewError(domain.KindNotFound, "user not found")
	}
	if err != nil {
		return nil, err
	}

	fields, err := s.rdb.HGetAll(ctx, s.userKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, domain.NewError(domain.KindNotFound, "user not found")
	}

	return &domain.User{
		ID:         fields["id"],
		Email:      fields["email"],
		Credential: fields["credential"],
		CreatedAt:  parseTime(fields["created_at"]),
	}, nil
}

// CreateLink stores the link under its code, which doubles as the link id
func (s *RedisStore) CreateLink(ctx context.Context, ownerID, destinationURL, code string) (string, error) {
	linkKey := s.linkKey(code)

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		taken, err := tx.Exists(ctx, linkKey).Result()
		if err != nil {
			return err
		}
		if taken > 0 {
			return domain.ErrDuplicateCode
		}
		owner, err := tx.Exists(ctx, s.userKey(ownerID)).Result()
		if err != nil {
			return err
		}
		if owner == 0 {
			return domain.NewError(domain.KindNotFound, "owner not found")
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, linkKey, map[string]interface{}{
				"code":            code,
				"owner_id":        ownerID,
				"destination_url": destinationURL,
				"click_count":     0,
				"created_at":      formatTime(time.Now()),
			})
			pipe.SAdd(ctx, s.ownerKey(ownerID), code)
			return nil
		})
		return err
	}, linkKey)

	if errors.Is(err, redis.TxFailedErr) {
		return "", domain.ErrDuplicateCode
	}
	if err != nil {
		return "", err
	}
	return code, nil
}

func (s *RedisStore) GetLinkByCode(ctx context.Context, code string) (*domain.Link, error) {
	fields, err := s.rdb.HGetAll(ctx, s.linkKey(code)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, domain.NewError(domain.KindNotFound, "link not found")
	}
	link := linkFromHash(fields)
	return &link, nil
}

func (s *RedisStore) ListLinksByOwner(ctx context.Context, ownerID string) ([]domain.Link, error) {
	codes, err := s.rdb.SMembers(ctx, s.ownerKey(ownerID)).Result()
	if err != nil {
		return nil, err
	}

	links := make([]domain.Link, 0, len(codes))
	if len(codes) == 0 {
		return links, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(codes))
	for i, code := range codes {
		cmds[i] = pipe.HGetAll(ctx, s.linkKey(code))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		links = append(links, linkFromHash(fields))
	}

	sort.Slice(links, func(i, j int) bool {
		if links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].ShortCode > links[j].ShortCode
		}
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
	return links, nil
}

// AppendClick pushes the click document and bumps the counter in one MULTI/EXEC,
// so history and counter move together or not at all.
func (s *RedisStore) AppendClick(ctx context.Context, click *domain.Click) error {
	linkKey := s.linkKey(click.LinkID)

	n, err := s.rdb.Exists(ctx, linkKey).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewError(domain.KindNotFound, "link not found")
	}

	doc, err := json.Marshal(clickDoc{
		Origin:    click.Origin,
		Country:   click.Country,
		Timestamp: formatTime(click.CreatedAt),
	})
	if err != nil {
		return err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, s.clicksKey(click.LinkID), doc)
		pipe.HIncrBy(ctx, linkKey, "click_count", 1)
		return nil
	})
	return err
}

func (s *RedisStore) ListClicksByLink(ctx context.Context, linkID string) ([]domain.Click, error) {
	raw, err := s.rdb.LRange(ctx, s.clicksKey(linkID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	// newest appended last; walk backwards so equal timestamps keep newest first
	clicks := make([]domain.Click, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var doc clickDoc
		if err := json.Unmarshal([]byte(raw[i]), &doc); err != nil {
			return nil, fmt.Errorf("decode click document: %w", err)
		}
		clicks = append(clicks, domain.Click{
			LinkID:    linkID,
			Origin:    doc.Origin,
			Country:   doc.Country,
			CreatedAt: parseTime(doc.Timestamp),
		})
	}

	sort.SliceStable(clicks, func(i, j int) bool {
		return clicks[i].CreatedAt.After(clicks[j].CreatedAt)
	})
	return clicks, nil
}

// SumClicksAllLinks walks every link document and adds up the counters
func (s *RedisStore) SumClicksAllLinks(ctx context.Context) (int64, error) {
	var (
		total  int64
		cursor uint64
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, s.prefix+"links:*", scanBatch).Result()
		if err != nil {
			return 0, err
		}

		if len(keys) > 0 {
			pipe := s.rdb.Pipeline()
			cmds := make([]*redis.StringCmd, len(keys))
			for i, key := range keys {
				cmds[i] = pipe.HGet(ctx, key, "click_count")
			}
			if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
				return 0, err
			}
			for _, cmd := range cmds {
				n, err := cmd.Int64()
				if err != nil {
					continue
				}
				total += n
			}
		}

		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}

// CountUsers counts user hashes, skipping the email index keys that share their prefix
func (s *RedisStore) CountUsers(ctx context.Context) (int64, error) {
	return s.countKeys(ctx, s.prefix+"users:*", s.emailKey(""))
}

func (s *RedisStore) CountLinks(ctx context.Context) (int64, error) {
	return s.countKeys(ctx, s.prefix+"links:*", "")
}

// countKeys dedupes since SCAN may return a key more than once
func (s *RedisStore) countKeys(ctx context.Context, match, skipPrefix string) (int64, error) {
	seen := make(map[string]struct{})
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return 0, err
		}
		for _, key := range keys {
			if skipPrefix != "" && strings.HasPrefix(key, skipPrefix) {
				continue
			}
			seen[key] = struct{}{}
		}

		cursor = next
		if cursor == 0 {
			return int64(len(seen)), nil
		}
	}
}

func linkFromHash(fields map[string]string) domain.Link {
	clicks, _ := strconv.ParseInt(fields["click_count"], 10, 64)
	return domain.Link{
		ID:             fields["code"],
		OwnerID:        fields["owner_id"],
		DestinationURL: fields["destination_url"],
		ShortCode:      fields["code"],
		Clicks:         clicks,
		CreatedAt:      parseTime(fields["created_at"]),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t.UTC()
}

// Ensure interface compliance
var _ ports.Store = (*RedisStore)(nil)
