package conversation

import (
	"strings"
	"time"
)

// Summary describes a session at a point in time.
type Summary struct {
	SessionID         string     `json:"session_id"`
	TotalMessages     int        `json:"total_messages"`
	UserMessages      int        `json:"user_messages"`
	AssistantMessages int        `json:"assistant_messages"`
	DurationSeconds   float64    `json:"duration_seconds"`
	AvgResponseTime   float64    `json:"avg_response_time"`
	StartTime         *time.Time `json:"start_time,omitempty"`
	EndTime           *time.Time `json:"end_time,omitempty"`
}

// Duration returns DurationSeconds as a time.Duration.
func (s Summary) Duration() time.Duration {
	return time.Duration(s.DurationSeconds * float64(time.Second))
}

// Summary computes counts, duration and the average assistant response time.
// Assistant records without a response time are left out of the average.
func (h *History) Summary() Summary {
	sum := Summary{SessionID: h.sessionID}
	if len(h.records) == 0 {
		return sum
	}

	var rtTotal float64
	var rtCount int
	for _, r := range h.records {
		switch r.Role {
		case RoleUser:
			sum.UserMessages++
		case RoleAssistant:
			sum.AssistantMessages++
			if r.ResponseTime != nil {
				rtTotal += *r.ResponseTime
				rtCount++
			}
		}
	}
	if rtCount > 0 {
		sum.AvgResponseTime = rtTotal / float64(rtCount)
	}

	start := h.records[0].Timestamp
	end := h.records[len(h.records)-1].Timestamp
	sum.TotalMessages = len(h.records)
	sum.DurationSeconds = end.Sub(start).Seconds()
	sum.StartTime = &start
	sum.EndTime = &end
	return sum
}

// Search returns the records whose content contains keyword, ignoring case,
// in chronological order. An empty keyword matches everything.
func (h *History) Search(keyword string) []Record {
	needle := strings.ToLower(keyword)
	out := []Record{}
	for _, r := range h.records {
		if strings.Contains(strings.ToLower(r.Content), needle) {
			out = append(out, r.clone())
		}
	}
	return out
}
