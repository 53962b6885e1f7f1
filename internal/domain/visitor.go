package domain

import (
	"strings"
)

// Visitor is one check-in event. CheckoutTime is nil while the visitor is on site.
type Visitor struct {
	ID           string
	Name         string
	Phone        string
	Address      string
	Purpose      string
	Company      string
	PersonToMeet string
	PhotoRef     *string
	CheckinTime  int64
	CheckoutTime *int64
	CreatedBy    *int64
}

func (v *Visitor) CheckedOut() bool {
	return v.CheckoutTime != nil
}

// CheckInRequest carries the registration form. CheckinTime is decoded for
// compatibility with older clients but never persisted.
type CheckInRequest struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	Purpose      string `json:"purpose"`
	Company      string `json:"company"`
	PersonToMeet string `json:"personToMeet"`
	Photo        string `json:"photo,omitempty"`
	CheckinTime  any    `json:"checkin_time,omitempty"`

	// PhotoData is the raw image, filled from Photo or a multipart upload.
	PhotoData []byte `json:"-"`
}

func (r *CheckInRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Address = strings.TrimSpace(r.Address)
	r.Purpose = strings.TrimSpace(r.Purpose)
	r.Company = strings.TrimSpace(r.Company)
	r.PersonToMeet = strings.TrimSpace(r.PersonToMeet)
}

func (r *CheckInRequest) Validate() error {
	if r.Name == "" {
		return NewValidationError("name", "name is required")
	}
	return nil
}

type VisitorStatus string

const (
	StatusCheckedIn  VisitorStatus = "checked_in"
	StatusCheckedOut VisitorStatus = "checked_out"
)

func ParseVisitorStatus(s string) (VisitorStatus, bool) {
	switch VisitorStatus(s) {
	case StatusCheckedIn, StatusCheckedOut:
		return VisitorStatus(s), true
	default:
		return "", false
	}
}

// ListQuery selects visitors by normalized check-in time. Nil bounds default to [0, now].
type ListQuery struct {
	From   *int64
	To     *int64
	Search string
	Status VisitorStatus
	Limit  int
	Offset int
}

// Matches applies the non-time filters.
func (q ListQuery) Matches(v *Visitor) bool {
	switch q.Status {
	case StatusCheckedIn:
		if v.CheckedOut() {
			return false
		}
	case StatusCheckedOut:
		if !v.CheckedOut() {
			return false
		}
	}
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	if needle == "" {
		return true
	}
	for _, field := range []string{v.Name, v.Phone, v.Company, v.PersonToMeet, v.Purpose} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// VisitorDTO is the wire form of a Visitor; Photo is an absolute URL.
type VisitorDTO struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Phone        string  `json:"phone"`
	Address      string  `json:"address"`
	Purpose      string  `json:"purpose"`
	Company      string  `json:"company"`
	PersonToMeet string  `json:"person_to_meet"`
	Photo        *string `json:"photo"`
	CheckinTime  int64   `json:"checkin_time"`
	CheckoutTime *int64  `json:"checkout_time"`
	CreatedBy    *int64  `json:"created_by"`
}

// ToDTO converts v, resolving the photo reference with resolve. A nil result from
// resolve leaves Photo empty.
func (v *Visitor) ToDTO(resolve func(ref string) *string) VisitorDTO {
	dto := VisitorDTO{
		ID:           v.ID,
		Name:         v.Name,
		Phone:        v.Phone,
		Address:      v.Address,
		Purpose:      v.Purpose,
		Company:      v.Company,
		PersonToMeet: v.PersonToMeet,
		CheckinTime:  v.CheckinTime,
		CheckoutTime: v.CheckoutTime,
		CreatedBy:    v.CreatedBy,
	}
	if v.PhotoRef != nil && resolve != nil {
		dto.Photo = resolve(*v.PhotoRef)
	}
	return dto
}

type CheckoutResponse struct {
	ID           string `json:"id"`
	CheckoutTime int64  `json:"checkout_time"`
}
