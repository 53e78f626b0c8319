package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationType distinguishes the two cases worth notifying an author
// about: a reply landing on a post, or a reply landing on another reply.
type NotificationType string

const (
	NotificationPostReply  NotificationType = "post_reply"
	NotificationReplyReply NotificationType = "reply_reply"
)

// Notification is delivered to a local Post/Reply author when someone other
// than themselves replies to it (no self-notify when the commenter is the author).
type Notification struct {
	Id               uuid.UUID
	RecipientId      uuid.UUID        // local Person receiving the notification
	NotificationType NotificationType // post_reply or reply_reply
	ActorId          uuid.UUID        // the Person who posted the reply (local or remote)
	ActorUsername    string           // denormalized for display
	ActorDomain      string           // denormalized for display, empty for local actors
	PostId           uuid.UUID        // the post the reply thread belongs to
	ReplyId          uuid.UUID        // the reply that triggered the notification
	ReplyPreview     string           // first 100 chars of reply content
	Read             bool
	CreatedAt        time.Time
}

// ActorHandle returns the formatted @user or @user@domain string.
func (n *Notification) ActorHandle() string {
	if n.ActorDomain == "" {
		return "@" + n.ActorUsername
	}
	return "@" + n.ActorUsername + "@" + n.ActorDomain
}

// TypeLabel returns a human-readable label for the notification type.
func (n *Notification) TypeLabel() string {
	switch n.NotificationType {
	case NotificationPostReply:
		return "replied to your post"
	case NotificationReplyReply:
		return "replied to your comment"
	default:
		return ""
	}
}

// Summary returns a one-line summary of the notification, used by the admin
// console's notification feed.
func (n *Notification) Summary() string {
	return fmt.Sprintf("%s %s", n.ActorHandle(), n.TypeLabel())
}
