// Package store defines the interface for database implementations holding the off-chain state of the service: user
// profiles, registered groups, memberships and chat history. On-chain state is never cached here.
package store

import (
	"context"
	"errors"
	"time"
)

// DB defines the persistence methods the REST service requires.
type DB interface {
	// user methods
	AddUser(ctx context.Context, u User) (User, error)
	GetUserByAddress(ctx context.Context, address string) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	// group methods
	AddGroup(ctx context.Context, g Group) (Group, error)
	GetGroup(ctx context.Context, id int64) (Group, error)
	GetGroupBySpace(ctx context.Context, space string) (Group, error)
	GetGroups(ctx context.Context) ([]Group, error)
	GetUserGroups(ctx context.Context, userID int64) ([]Group, error)
	// membership methods
	AddMember(ctx context.Context, groupID, userID int64, role string) (Member, error)
	GetMembers(ctx context.Context, groupID int64) ([]Member, error)
	// message methods
	AddMessage(ctx context.Context, m Message) (Message, error)
	GetMessage(ctx context.Context, id int64) (Message, error)
	GetMessages(ctx context.Context, groupID int64) ([]Message, error)
}

// Membership roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Errors returned
var (
	ErrNotFound  = errors.New("row was not found in store")
	ErrDuplicate = errors.New("row already exists in store")
)

// User is a registered profile, keyed off-chain by id and on-chain by ethereum address.
type User struct {
	ID              int64     `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	EthereumAddress string    `json:"ethereumAddress"`
	ProfileImageURL string    `json:"profileImageUrl,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Group mirrors a deployed space and the contract addresses its registration produced.
type Group struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Space       string    `json:"spaceContractAddress"`
	Invite      string    `json:"inviteContractAddress"`
	Shares      string    `json:"sharesContractAddress"`
	Treasury    string    `json:"treasuryContractAddress"`
	CreatedBy   int64     `json:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Member links a user to a group with a role.
type Member struct {
	GroupID  int64     `json:"groupId"`
	UserID   int64     `json:"userId"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Message is one chat entry in a group. Notification holds an optional system annotation such as a trade
// confirmation.
type Message struct {
	ID           int64      `json:"id"`
	GroupID      int64      `json:"groupId"`
	SenderID     int64      `json:"senderId,omitempty"`
	Content      string     `json:"content"`
	Notification string     `json:"notification,omitempty"`
	SentAt       time.Time  `json:"sentAt"`
	EditedAt     *time.Time `json:"editedAt,omitempty"`
}
