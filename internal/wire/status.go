package wire

// Delivery statuses, in the order they may be reached.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// StatusRank orders delivery statuses. Unknown statuses rank 0.
func StatusRank(s string) int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return 0
}

// ValidStatus reports whether s is a known delivery status.
func ValidStatus(s string) bool {
	return StatusRank(s) > 0
}
