package users

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/domain"
)

const (
	defaultTimeout  = 5 * time.Second
	defaultCacheTTL = 10 * time.Minute

	cacheKeyPrefix = "user:"
)

// userDTO — формат пользователя во внешнем справочнике.
type userDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Cache — минимальный контракт кэша справочника.
// Реализуется поверх Redis; nil-кэш отключает кэширование.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

// Client — HTTP-клиент справочника пользователей со сквозным кэшем.
// Имена ритейлеров и производителей меняются редко, поэтому промахи
// дорогого batch-запроса закрываются кэшем.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      Cache
	cacheTTL   time.Duration
	logger     *log.Entry
}

// NewClient создаёт клиента справочника. cache может быть nil.
func NewClient(baseURL string, timeout time.Duration, cache Cache, logger *log.Entry) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		cacheTTL:   defaultCacheTTL,
		logger:     logger.WithField("component", "users_client"),
	}
}

// GetUsersByIds возвращает пользователей по списку идентификаторов.
// Сначала читается кэш, затем недостающие идентификаторы запрашиваются
// одним HTTP-вызовом; отсутствующие пользователи не попадают в результат.
func (c *Client) GetUsersByIds(ctx context.Context, userIDs []string) (map[string]domain.User, error) {
	result := make(map[string]domain.User, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	missing := make([]string, 0, len(userIDs))
	for _, id := range dedupe(userIDs) {
		if user, ok := c.fromCache(ctx, id); ok {
			result[id] = user
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return result, nil
	}

	endpoint := fmt.Sprintf("%s/api/users?ids=%s", c.baseURL, url.QueryEscape(strings.Join(missing, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build users request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewDependencyError("user service call failed", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewDependencyError(
			fmt.Sprintf("user service returned status %d", resp.StatusCode), "", nil)
	}

	var dtos []userDTO
	if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
		return nil, domain.NewDependencyError("decode users response", "", err)
	}

	for _, dto := range dtos {
		user := domain.User{ID: dto.ID, Name: dto.Name, Phone: dto.Phone, Address: dto.Address}
		result[dto.ID] = user
		c.toCache(ctx, dto.ID, user)
	}

	return result, nil
}

func (c *Client) fromCache(ctx context.Context, userID string) (domain.User, bool) {
	if c.cache == nil {
		return domain.User{}, false
	}

	raw, ok := c.cache.Get(ctx, cacheKeyPrefix+userID)
	if !ok {
		return domain.User{}, false
	}

	var dto userDTO
	if err := json.Unmarshal([]byte(raw), &dto); err != nil {
		c.logger.WithField("user_id", userID).WithError(err).Warn("broken cache entry, refetching")
		return domain.User{}, false
	}
	return domain.User{ID: dto.ID, Name: dto.Name, Phone: dto.Phone, Address: dto.Address}, true
}

func (c *Client) toCache(ctx context.Context, userID string, user domain.User) {
	if c.cache == nil {
		return
	}

	raw, err := json.Marshal(userDTO{ID: user.ID, Name: user.Name, Phone: user.Phone, Address: user.Address})
	if err != nil {
		return
	}
	c.cache.Set(ctx, cacheKeyPrefix+userID, string(raw), c.cacheTTL)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

// RedisCache — реализация Cache поверх Redis.
type RedisCache struct {
	client redis.UniversalClient
	logger *log.Entry
}

// NewRedisCache оборачивает Redis-клиент в Cache.
func NewRedisCache(client redis.UniversalClient, logger *log.Entry) *RedisCache {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &RedisCache{
		client: client,
		logger: logger.WithField("component", "users_cache"),
	}
}

// Get читает значение; ошибки Redis трактуются как промах кэша.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	value, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithField("key", key).WithError(err).Warn("cache read failed")
		}
		return "", false
	}
	return value, true
}

// Set пишет значение; ошибка записи не мешает основному потоку.
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.WithField("key", key).WithError(err).Warn("cache write failed")
	}
}

var (
	_ domain.UserDirectory = (*Client)(nil)
	_ Cache                = (*RedisCache)(nil)
)
