// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/dalemusser/promohub/internal/app/store/audit"
	"github.com/dalemusser/promohub/internal/app/system/paging"
)

// listItem is one audit event as returned to operators.
type listItem struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	Category      string            `json:"category"`
	EventType     string            `json:"event_type"`
	PromoID       string            `json:"promo_id,omitempty"`
	MemberID      string            `json:"member_id,omitempty"`
	ActorID       string            `json:"actor_id,omitempty"`
	Success       bool              `json:"success"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
}

// listResponse is the body of GET /audit.
type listResponse struct {
	Items []listItem   `json:"items"`
	Total int64        `json:"total"`
	Range paging.Range `json:"range"`
}

func toItem(e audit.Event) listItem {
	return listItem{
		ID:            e.ID.Hex(),
		Timestamp:     e.Timestamp,
		Category:      e.Category,
		EventType:     e.EventType,
		PromoID:       e.PromoID,
		MemberID:      e.MemberID,
		ActorID:       e.ActorID,
		Success:       e.Success,
		FailureReason: e.FailureReason,
		Details:       e.Details,
	}
}
