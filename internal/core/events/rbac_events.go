package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeRolePermissionsSynced = "rbac.role_permissions_synced"
	EventTypeUserRolesSynced       = "rbac.user_roles_synced"
	EventTypeUserPermissionsSynced = "rbac.user_permissions_synced"
	EventTypeRoleCreated           = "rbac.role_created"
	EventTypeRoleDeleted           = "rbac.role_deleted"
	EventTypePermissionCreated     = "rbac.permission_created"
	EventTypePermissionDeleted     = "rbac.permission_deleted"
	EventTypeUserDeleted           = "user.deleted"
)

// AccessSyncedEvent records the member set a relation was replaced with.
type AccessSyncedEvent struct {
	BaseEvent
	Relation  string  `json:"relation"`
	OwnerID   int64   `json:"owner_id"`
	MemberIDs []int64 `json:"member_ids"`
	ActorID   int64   `json:"actor_id,omitempty"`
}

func NewAccessSyncedEvent(eventType, relation string, ownerID int64, memberIDs []int64, actorID int64) *AccessSyncedEvent {
	return &AccessSyncedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"relation":   relation,
				"owner_id":   ownerID,
				"member_ids": memberIDs,
				"actor_id":   actorID,
			},
		},
		Relation:  relation,
		OwnerID:   ownerID,
		MemberIDs: memberIDs,
		ActorID:   actorID,
	}
}

// EntityChangedEvent is emitted when a role, permission or user row is
// created or removed.
type EntityChangedEvent struct {
	BaseEvent
	EntityID int64  `json:"entity_id"`
	Name     string `json:"name,omitempty"`
	ActorID  int64  `json:"actor_id,omitempty"`
}

func NewEntityChangedEvent(eventType string, entityID int64, name string, actorID int64) *EntityChangedEvent {
	return &EntityChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"entity_id": entityID,
				"name":      name,
				"actor_id":  actorID,
			},
		},
		EntityID: entityID,
		Name:     name,
		ActorID:  actorID,
	}
}
