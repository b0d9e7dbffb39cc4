package coord

// RequestKey addresses one point inside a round: the slot that generated it
// and the index it was generated under.
type RequestKey struct {
	Requester int
	Point     int
}

// RequestRecord is what the ledger keeps per point.
type RequestRecord struct {
	ID Token
	X  []float64
}

// Round is the request ledger of a single round. A new Round is built for
// every request phase; nothing carries over between rounds.
//
// Thread-safety: NOT thread-safe.
type Round struct {
	seq     int
	records map[RequestKey]RequestRecord
	order   []RequestKey
}

// NewRound creates an empty ledger for round seq.
func NewRound(seq int) *Round {
	return &Round{
		seq:     seq,
		records: make(map[RequestKey]RequestRecord),
	}
}

// Seq returns the round number.
func (r *Round) Seq() int { return r.seq }

// Record stores the point for key. Recording the same key twice is a
// consistency fault.
func (r *Round) Record(key RequestKey, id Token, x []float64) error {
	if _, exists := r.records[key]; exists {
		return &ConsistencyError{What: "duplicate ledger key", Instance: key.Requester,
			Expected: len(r.records) + 1, Actual: len(r.records)}
	}
	xs := make([]float64, len(x))
	copy(xs, x)
	r.records[key] = RequestRecord{ID: id, X: xs}
	r.order = append(r.order, key)
	return nil
}

// Lookup returns the record for key or an *UnknownRequestError.
// The returned point is a copy.
func (r *Round) Lookup(key RequestKey) (RequestRecord, error) {
	rec, ok := r.records[key]
	if !ok {
		return RequestRecord{}, &UnknownRequestError{Round: r.seq, Key: key, Known: len(r.records)}
	}
	xs := make([]float64, len(rec.X))
	copy(xs, rec.X)
	return RequestRecord{ID: rec.ID, X: xs}, nil
}

// Len returns the number of recorded points.
func (r *Round) Len() int { return len(r.records) }

// Keys returns the recorded keys in insertion order.
func (r *Round) Keys() []RequestKey {
	out := make([]RequestKey, len(r.order))
	copy(out, r.order)
	return out
}
