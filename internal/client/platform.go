package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"rental/internal/domain"
	internalRedis "rental/internal/redis"
	"rental/internal/service"
)

// PlatformClient talks to the platform service.
type PlatformClient struct {
	client *Client
}

// NewPlatformClient creates a new PlatformClient.
func NewPlatformClient(cfg Config, logger logrus.FieldLogger) *PlatformClient {
	return &PlatformClient{client: New("platform-service", cfg, logger)}
}

type platformResponse struct {
	PlatformID string `json:"platformId"`
	Name       string `json:"name"`
}

func (p platformResponse) toDomain() domain.Platform {
	return domain.Platform{ID: p.PlatformID, Name: p.Name}
}

type authorizeRequest struct {
	PlatformAccessKeyID     string `json:"platformAccessKeyId"`
	PlatformSecretAccessKey string `json:"platformSecretAccessKey"`
}

// Authorize resolves an access key pair. Rejected keys return
// service.ErrUnauthorized.
func (c *PlatformClient) Authorize(ctx context.Context, accessKeyID, secret string) (*domain.AccessKey, error) {
	var resp struct {
		Platform      platformResponse `json:"platform"`
		PermissionIDs []string         `json:"permissionIds"`
	}

	req := authorizeRequest{PlatformAccessKeyID: accessKeyID, PlatformSecretAccessKey: secret}
	if err := c.client.SendJSON(ctx, http.MethodPost, "/platforms/accessKeys/authorize", req, &resp); err != nil {
		if IsStatus(err, http.StatusUnauthorized) || IsStatus(err, http.StatusForbidden) || IsStatus(err, http.StatusNotFound) {
			return nil, service.ErrUnauthorized
		}
		return nil, err
	}

	return &domain.AccessKey{Platform: resp.Platform.toDomain(), Permissions: resp.PermissionIDs}, nil
}

// GetPlatform returns a platform by id.
func (c *PlatformClient) GetPlatform(ctx context.Context, platformID string) (*domain.Platform, error) {
	var resp struct {
		Platform platformResponse `json:"platform"`
	}
	if err := c.client.GetJSON(ctx, "/platforms/"+escape(platformID), nil, &resp); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: platform %s not found", service.ErrInvalidInput, platformID)
		}
		return nil, err
	}

	platform := resp.Platform.toDomain()
	return &platform, nil
}

// CachedPlatformAuthenticator authorizes access keys through the platform
// service, remembering successful results in Redis.
type CachedPlatformAuthenticator struct {
	platforms *PlatformClient
	cache     internalRedis.PlatformCacheInterface
	logger    logrus.FieldLogger
}

// NewCachedPlatformAuthenticator creates a new CachedPlatformAuthenticator.
func NewCachedPlatformAuthenticator(
	platforms *PlatformClient,
	cache internalRedis.PlatformCacheInterface,
	logger logrus.FieldLogger,
) *CachedPlatformAuthenticator {
	return &CachedPlatformAuthenticator{platforms: platforms, cache: cache, logger: logger}
}

// Authenticate resolves an access key pair, consulting the cache first.
// Cache failures fall through to the platform service.
func (a *CachedPlatformAuthenticator) Authenticate(ctx context.Context, accessKeyID, secret string) (*domain.AccessKey, error) {
	if accessKeyID == "" || secret == "" {
		return nil, service.ErrUnauthorized
	}

	cached, err := a.cache.GetPlatform(ctx, accessKeyID, secret)
	if err != nil {
		a.logger.WithError(err).Warn("platform cache read failed")
	}
	if cached != nil {
		return &domain.AccessKey{
			Platform:    domain.Platform{ID: cached.ID, Name: cached.Name},
			Permissions: cached.Permissions,
		}, nil
	}

	key, err := a.platforms.Authorize(ctx, accessKeyID, secret)
	if err != nil {
		return nil, err
	}

	entry := &internalRedis.CachedPlatform{
		ID:          key.Platform.ID,
		Name:        key.Platform.Name,
		Permissions: key.Permissions,
	}
	if err := a.cache.SetPlatform(ctx, accessKeyID, secret, entry); err != nil {
		a.logger.WithError(err).Warn("platform cache write failed")
	}

	return key, nil
}
