// Package trace provides per-round recording of what a coordinator requested
// and what it delivered to each optimizer slot.
// This package has no dependencies on coord/; it stores pure data types.
package trace

// RequestRecord captures one point generated during a request phase.
type RequestRecord struct {
	Round     int
	Requester int
	Point     int
	Token     string
	Padding   bool
	Requests  int // encoded requests submitted for the point
}

// DeliveryRecord captures one observation routed to a slot.
type DeliveryRecord struct {
	Round     int
	Consumer  int
	Generator int
	Point     int
	Token     string
	Value     float64
}
