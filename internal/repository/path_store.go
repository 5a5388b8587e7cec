package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"flashcards/internal/model"

	"github.com/redis/go-redis/v9"
)

// PathStore keeps user state in Redis under hierarchical, path-addressed keys:
//
//	users/<id>/createdAt
//	users/<id>/email
//	users/<id>/stripeCustomerId
//	users/<id>/subscriptionStatus
//	users/<id>/anthropicKey
//	users/<id>/flashcardSets            (hash: set id -> JSON)
//	stripeCustomers/<customer id>       (reverse index -> user id)
//
// Values are whole-value sets; any write creates the user implicitly.
type PathStore struct {
	client *redis.Client
	prefix string
}

// NewPathStore wraps client. prefix is prepended verbatim to every key.
func NewPathStore(client *redis.Client, prefix string) *PathStore {
	return &PathStore{client: client, prefix: prefix}
}

var (
	_ UserRepository         = (*PathStore)(nil)
	_ APIKeyRepository       = (*PathStore)(nil)
	_ FlashcardSetRepository = (*PathStore)(nil)
)

func (s *PathStore) userKey(userID, field string) string {
	return s.prefix + "users/" + userID + "/" + field
}

func (s *PathStore) customerIndexKey(customerID string) string {
	return s.prefix + "stripeCustomers/" + customerID
}

// assignCustomerScript sets the user's customer id and its reverse index only
// when the user has none, returning the stored id. It returns "" without
// writing when the index already names a different user.
var assignCustomerScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
	return current
end
local owner = redis.call('GET', KEYS[2])
if owner and owner ~= ARGV[2] then
	return ''
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[2])
redis.call('SETNX', KEYS[3], ARGV[3])
return ARGV[1]
`)

// setStatusScript writes the status and, when ARGV[2] is non-empty, attaches
// the customer id if the user has none and no other user owns it. It runs
// atomically as one write.
var setStatusScript = redis.NewScript(`
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SETNX', KEYS[4], ARGV[4])
if ARGV[2] ~= '' and not redis.call('GET', KEYS[2]) then
	local owner = redis.call('GET', KEYS[3])
	if not owner or owner == ARGV[3] then
		redis.call('SET', KEYS[2], ARGV[2])
		redis.call('SET', KEYS[3], ARGV[3])
	end
end
return 1
`)

func (s *PathStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	vals, err := s.client.MGet(ctx,
		s.userKey(userID, "createdAt"),
		s.userKey(userID, "email"),
		s.userKey(userID, "stripeCustomerId"),
		s.userKey(userID, "subscriptionStatus"),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", userID, err)
	}

	found := false
	for _, v := range vals {
		if v != nil {
			found = true
			break
		}
	}
	if !found {
		return nil, nil
	}

	u := model.DefaultUser(userID)
	if createdAt, ok := vals[0].(string); ok {
		if ms, err := strconv.ParseInt(createdAt, 10, 64); err == nil {
			u.CreatedAt = time.UnixMilli(ms).UTC()
		}
	}
	if email, ok := vals[1].(string); ok {
		u.Email = email
	}
	if customerID, ok := vals[2].(string); ok && customerID != "" {
		u.StripeCustomerID = &customerID
	}
	if status, ok := vals[3].(string); ok && model.SubscriptionStatus(status).Valid() {
		u.SubscriptionStatus = model.SubscriptionStatus(status)
	}
	return u, nil
}

func (s *PathStore) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	userID, err := s.client.Get(ctx, s.customerIndexKey(customerID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch user by stripe customer %s: %w", customerID, err)
	}
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil || u.CustomerID() != customerID {
		// index entry without a matching owner
		return nil, nil
	}
	return u, nil
}

func (s *PathStore) UpsertUser(ctx context.Context, userID, email string) (*model.User, error) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, s.userKey(userID, "createdAt"), now, 0)
		if email != "" {
			pipe.Set(ctx, s.userKey(userID, "email"), email, 0)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upsert user %s: %w", userID, err)
	}
	return s.GetUser(ctx, userID)
}

func (s *PathStore) AssignStripeCustomerID(ctx context.Context, userID, customerID string) (string, error) {
	keys := []string{
		s.userKey(userID, "stripeCustomerId"),
		s.customerIndexKey(customerID),
		s.userKey(userID, "createdAt"),
	}
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	stored, err := assignCustomerScript.Run(ctx, s.client, keys, customerID, userID, now).Text()
	if err != nil {
		return "", fmt.Errorf("assign stripe customer id for user %s: %w", userID, err)
	}
	if stored == "" {
		return "", fmt.Errorf("assign stripe customer id %s for user %s: %w", customerID, userID, ErrStripeCustomerTaken)
	}
	return stored, nil
}

func (s *PathStore) SetSubscriptionStatus(ctx context.Context, userID string, status model.SubscriptionStatus, customerID string) error {
	indexKey := s.customerIndexKey(customerID)
	if customerID == "" {
		// never touched by the script, but KEYS must stay positional
		indexKey = s.customerIndexKey("-")
	}
	keys := []string{
		s.userKey(userID, "subscriptionStatus"),
		s.userKey(userID, "stripeCustomerId"),
		indexKey,
		s.userKey(userID, "createdAt"),
	}
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := setStatusScript.Run(ctx, s.client, keys, string(status), customerID, userID, now).Err(); err != nil {
		return fmt.Errorf("set subscription status %s for user %s: %w", status, userID, err)
	}
	return nil
}

func (s *PathStore) GetAPIKey(ctx context.Context, userID string) (string, error) {
	key, err := s.client.Get(ctx, s.userKey(userID, "anthropicKey")).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("fetch api key for user %s: %w", userID, err)
	}
	return key, nil
}

func (s *PathStore) SetAPIKey(ctx context.Context, userID, apiKey string) error {
	if err := s.client.Set(ctx, s.userKey(userID, "anthropicKey"), apiKey, 0).Err(); err != nil {
		return fmt.Errorf("store api key for user %s: %w", userID, err)
	}
	return nil
}

func (s *PathStore) DeleteAPIKey(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.userKey(userID, "anthropicKey")).Err(); err != nil {
		return fmt.Errorf("delete api key for user %s: %w", userID, err)
	}
	return nil
}

func (s *PathStore) CreateSet(ctx context.Context, set *model.FlashcardSet) error {
	raw, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshal flashcard set %s: %w", set.ID, err)
	}
	if err := s.client.HSet(ctx, s.userKey(set.UserID, "flashcardSets"), set.ID, raw).Err(); err != nil {
		return fmt.Errorf("store flashcard set %s: %w", set.ID, err)
	}
	return nil
}

func (s *PathStore) ListSets(ctx context.Context, userID string) ([]model.FlashcardSet, error) {
	entries, err := s.client.HGetAll(ctx, s.userKey(userID, "flashcardSets")).Result()
	if err != nil {
		return nil, fmt.Errorf("list flashcard sets for user %s: %w", userID, err)
	}
	sets := make([]model.FlashcardSet, 0, len(entries))
	for id, raw := range entries {
		var set model.FlashcardSet
		if err := json.Unmarshal([]byte(raw), &set); err != nil {
			return nil, fmt.Errorf("unmarshal flashcard set %s: %w", id, err)
		}
		sets = append(sets, set)
	}
	sort.Slice(sets, func(i, j int) bool {
		if sets[i].CreatedAt == sets[j].CreatedAt {
			return sets[i].ID < sets[j].ID
		}
		return sets[i].CreatedAt > sets[j].CreatedAt
	})
	return sets, nil
}

func (s *PathStore) GetSet(ctx context.Context, userID, setID string) (*model.FlashcardSet, error) {
	raw, err := s.client.HGet(ctx, s.userKey(userID, "flashcardSets"), setID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch flashcard set %s: %w", setID, err)
	}
	var set model.FlashcardSet
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		return nil, fmt.Errorf("unmarshal flashcard set %s: %w", setID, err)
	}
	return &set, nil
}

func (s *PathStore) DeleteSet(ctx context.Context, userID, setID string) (bool, error) {
	n, err := s.client.HDel(ctx, s.userKey(userID, "flashcardSets"), setID).Result()
	if err != nil {
		return false, fmt.Errorf("delete flashcard set %s: %w", setID, err)
	}
	return n > 0, nil
}
