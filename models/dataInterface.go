package models

// Entity is implemented by every branch-partitioned record the local store
// owns. The store uses it to generate sync queue entries uniformly for any
// collection.
type Entity interface {
	EntityKind() EntityKind
	EntityId() string
	BranchScope() string
}

// Session identifies who is operating which register. It is passed explicitly
// into every transaction and shift entry point instead of living in ambient
// globals, so each call is self-contained and testable.
type Session struct {
	BranchId string
	UserId   string
	ShiftId  string
}
