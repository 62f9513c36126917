package domain

import (
	"time"
)

// RecordKind identifies one of the tenant-scoped CRM entity collections.
// All kinds share the same storage shape and access rules; business fields
// live in the opaque Attributes payload.
type RecordKind string

const (
	KindLead       RecordKind = "lead"
	KindDeal       RecordKind = "deal"
	KindContact    RecordKind = "contact"
	KindDealer     RecordKind = "dealer"
	KindSubsidiary RecordKind = "subsidiary"
)

// RecordKinds returns all tenant-scoped entity kinds.
func RecordKinds() []RecordKind {
	return []RecordKind{KindLead, KindDeal, KindContact, KindDealer, KindSubsidiary}
}

// IsValidRecordKind checks whether the given kind is known.
func IsValidRecordKind(kind RecordKind) bool {
	for _, k := range RecordKinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// Record is the shape shared by every tenant-scoped entity (leads, deals,
// contacts, dealers, subsidiaries). An empty VisibleTo list means the record
// is visible to the entire tenant.
type Record struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id"`
	OwnerID    string         `json:"owner_id"`
	VisibleTo  []string       `json:"visible_to"`
	Attributes map[string]any `json:"attributes"`
	CreatedBy  string         `json:"created_by"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedBy  string         `json:"updated_by"`
	UpdatedAt  time.Time      `json:"updated_at"`
	IsDeleted  bool           `json:"is_deleted"`
	DeletedBy  *string        `json:"deleted_by,omitempty"`
	DeletedAt  *time.Time     `json:"deleted_at,omitempty"`
}

// VisibleToCaller reports whether the record may be returned to the given
// caller. A record is visible iff it belongs to the caller's tenant and
// either carries no visibility allow-list, lists the caller, or is owned or
// created by the caller. Callers failing this predicate must observe the
// record as not found, never as forbidden.
func (r *Record) VisibleToCaller(caller *Identity) bool {
	if caller == nil || r.TenantID != caller.TenantID {
		return false
	}
	if len(r.VisibleTo) == 0 {
		return true
	}
	if r.OwnerID == caller.UserID || r.CreatedBy == caller.UserID {
		return true
	}
	for _, uid := range r.VisibleTo {
		if uid == caller.UserID {
			return true
		}
	}
	return false
}
