// models/fleet.go
package models

// Vehicle and Tag are owned by the fleet management side; the tracker
// only reads them to label and filter feeds.
type Vehicle struct {
	ID        int64   `json:"id"`
	AccountID int64   `json:"account_id"`
	Name      string  `json:"name"`
	Plate     *string `json:"plate"`
	Color     *string `json:"color"`
	DeviceID  *int64  `json:"device_id"`
	TagIDs    []int64 `json:"tag_ids"`
}

// HasAnyTag reports whether the vehicle carries at least one of tagIDs.
func (v Vehicle) HasAnyTag(tagIDs []int64) bool {
	for _, want := range tagIDs {
		for _, have := range v.TagIDs {
			if want == have {
				return true
			}
		}
	}
	return false
}

type Tag struct {
	ID        int64   `json:"id"`
	AccountID int64   `json:"account_id"`
	Name      string  `json:"name"`
	Color     *string `json:"color"`
}
