package models

import "time"

// UserState is the short-lived dialogue context of one chat user while a
// reservation is being assembled (day, time, duration).
type UserState struct {
	UserID    int64                  `json:"user_id"`
	Step      string                 `json:"step"`
	TempData  map[string]interface{} `json:"temp_data"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// GetInt64 tolerates the float64 values produced by a JSON round trip.
func (s *UserState) GetInt64(key string) int64 {
	if s == nil || s.TempData == nil {
		return 0
	}
	switch v := s.TempData[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func (s *UserState) GetString(key string) string {
	if s == nil || s.TempData == nil {
		return ""
	}
	v, _ := s.TempData[key].(string)
	return v
}

func (s *UserState) GetTime(key string) time.Time {
	str := s.GetString(key)
	if str == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return time.Time{}
	}
	return t
}

// GetDuration reads a value stored as whole minutes.
func (s *UserState) GetDuration(key string) time.Duration {
	return time.Duration(s.GetInt64(key)) * time.Minute
}
