package orders

type Status string

const (
	StatusCart    Status = "cart"
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusUnpaid  Status = "unpaid"
)

var validNext = map[Status]map[Status]bool{
	StatusCart:    {StatusPending: true},
	StatusPending: {StatusPaid: true, StatusUnpaid: true},
	StatusPaid:    {},
	StatusUnpaid:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	next, ok := validNext[s]
	return ok && len(next) == 0
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}
