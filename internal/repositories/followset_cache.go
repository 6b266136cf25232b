package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/nano-midea/moments/internal/models"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultFollowSetTTL bounds how stale a cached follow set may get.
const DefaultFollowSetTTL = 5 * time.Minute

// followVersionTTL keeps the per-user invalidation counter around well past any set TTL.
const followVersionTTL = 24 * time.Hour

// emptyMember marks a cached set for a user who follows nobody; redis drops
// empty sets.
const emptyMember = "\x00"

// setClient is the slice of the redis client the follow set cache uses.
type setClient interface {
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

// CachedFollowRepository serves follow sets from redis and falls back to the
// wrapped repository on a miss. Writes go through and drop the cached set.
type CachedFollowRepository struct {
	FollowRepository
	client setClient
	ttl    time.Duration
	log    *logrus.Entry
}

func NewCachedFollowRepository(repo FollowRepository, client setClient, ttl time.Duration, log *logrus.Entry) *CachedFollowRepository {
	if ttl <= 0 {
		ttl = DefaultFollowSetTTL
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &CachedFollowRepository{
		FollowRepository: repo,
		client:           client,
		ttl:              ttl,
		log:              log.WithField("component", "follow_cache"),
	}
}

func followSetKey(userID string) string {
	return fmt.Sprintf("follows:%s", userID)
}

// followVersionKey is bumped on every invalidation. A fill that sees it change
// while reading PostgreSQL drops the set it wrote.
func followVersionKey(userID string) string {
	return fmt.Sprintf("follows:%s:version", userID)
}

func (r *CachedFollowRepository) version(ctx context.Context, userID string) (string, error) {
	v, err := r.client.Get(ctx, followVersionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (r *CachedFollowRepository) GetFollowingIDs(ctx context.Context, userID string) ([]string, error) {
	key := followSetKey(userID)

	members, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		r.log.WithError(err).Warn("follow set cache read failed")
	} else if len(members) > 0 {
		ids := make([]string, 0, len(members))
		for _, m := range members {
			if m != emptyMember {
				ids = append(ids, m)
			}
		}
		return ids, nil
	}

	before, verErr := r.version(ctx, userID)

	ids, err := r.FollowRepository.GetFollowingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if verErr != nil {
		r.log.WithError(verErr).Warn("follow set version read failed, not caching")
		return ids, nil
	}

	values := make([]interface{}, 0, len(ids)+1)
	values = append(values, emptyMember)
	for _, id := range ids {
		values = append(values, id)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SAdd(ctx, key, values...)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		r.log.WithError(err).Warn("follow set cache write failed")
		return ids, nil
	}

	after, err := r.version(ctx, userID)
	if err != nil || after != before {
		// a follow changed while we read; the set just written may be stale
		if err := r.client.Del(ctx, key).Err(); err != nil {
			r.log.WithError(err).WithField("user_id", userID).Warn("follow set cache rollback failed")
		}
	}
	return ids, nil
}

func (r *CachedFollowRepository) CreateFollow(ctx context.Context, follow *models.Follow) error {
	if err := r.FollowRepository.CreateFollow(ctx, follow); err != nil {
		return err
	}
	r.invalidate(ctx, follow.FollowerID)
	return nil
}

func (r *CachedFollowRepository) DeleteFollow(ctx context.Context, followerID, followingID string) error {
	if err := r.FollowRepository.DeleteFollow(ctx, followerID, followingID); err != nil {
		return err
	}
	r.invalidate(ctx, followerID)
	return nil
}

func (r *CachedFollowRepository) invalidate(ctx context.Context, userID string) {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, followVersionKey(userID))
		pipe.Expire(ctx, followVersionKey(userID), followVersionTTL)
		pipe.Del(ctx, followSetKey(userID))
		return nil
	})
	if err != nil {
		r.log.WithError(err).WithField("user_id", userID).Warn("follow set cache invalidation failed")
	}
}
