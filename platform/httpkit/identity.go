// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity represents the authenticated caller.
// Handlers read the tenant from here and never from request bodies.
type Identity interface {
	UserID() uuid.UUID
	TenantID() (uuid.UUID, bool)
	Roles() []string
	HasRole(role string) bool
	IsAuthenticated() bool
}

type identity struct {
	userID        uuid.UUID
	tenantID      uuid.UUID
	hasTenant     bool
	roles         []string
	authenticated bool
}

func (i *identity) UserID() uuid.UUID { return i.userID }

func (i *identity) TenantID() (uuid.UUID, bool) { return i.tenantID, i.hasTenant }

func (i *identity) Roles() []string { return i.roles }

func (i *identity) HasRole(role string) bool {
	for _, r := range i.roles {
		if r == role {
			return true
		}
	}
	return false
}

func (i *identity) IsAuthenticated() bool { return i.authenticated }

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if user info is not present.
func GetIdentity(c *gin.Context) Identity {
	userID, userOK := c.Get(ContextUserIDKey)
	if !userOK {
		return &identity{}
	}

	uid, ok := userID.(uuid.UUID)
	if !ok {
		return &identity{}
	}

	id := &identity{userID: uid, authenticated: true}
	if roles, ok := c.Get(ContextRolesKey); ok {
		id.roles, _ = roles.([]string)
	}
	if tenant, ok := c.Get(ContextTenantIDKey); ok {
		id.tenantID, id.hasTenant = tenant.(uuid.UUID)
	}
	return id
}

// MustGetTenant returns the caller's tenant or aborts the request.
// 401 when unauthenticated, 403 when the token carries no tenant.
func MustGetTenant(c *gin.Context) (Identity, uuid.UUID, bool) {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, uuid.Nil, false
	}
	tenantID, ok := id.TenantID()
	if !ok {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "no organization context"})
		return nil, uuid.Nil, false
	}
	return id, tenantID, true
}
