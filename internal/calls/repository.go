package calls

import "context"

// Repository persists call records.
//
// Insert must run the record insert and, when incrementLink is true, the atomic
// increment of rec.LinkID's counter in one transaction. It returns
// ErrDuplicateCall on an external call id conflict, ErrLinkNotFound when the
// link row is gone, and ErrReferenceNotFound for any other dangling reference.
type Repository interface {
	Insert(ctx context.Context, rec CallRecord, incrementLink bool) (int64, error)
}
