package models

type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
)

type Student struct {
	Name              string                   `json:"name"`
	Score             int                      `json:"score"`
	Gender            Gender                   `json:"gender"`
	ImageLabel        string                   `json:"imageLabel"`
	CustomImage       *string                  `json:"customImage"`
	CustomImageFileID *string                  `json:"customImageFileId"`
	DeductionHistory  []DeductionHistoryRecord `json:"deductionHistory"`
}

// HasHistoryRecord проверяет, есть ли у ученика запись истории с таким id.
func (s Student) HasHistoryRecord(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range s.DeductionHistory {
		if r.ID == id {
			return true
		}
	}
	return false
}

// Clone делает глубокую копию (история и указатели не разделяются).
func (s Student) Clone() Student {
	out := s
	if s.CustomImage != nil {
		v := *s.CustomImage
		out.CustomImage = &v
	}
	if s.CustomImageFileID != nil {
		v := *s.CustomImageFileID
		out.CustomImageFileID = &v
	}
	out.DeductionHistory = make([]DeductionHistoryRecord, len(s.DeductionHistory))
	for i, r := range s.DeductionHistory {
		out.DeductionHistory[i] = r
		if r.ItemID != nil {
			id := *r.ItemID
			out.DeductionHistory[i].ItemID = &id
		}
	}
	return out
}
