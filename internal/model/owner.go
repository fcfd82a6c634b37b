package model

// OwnerProfile is the operator-side data used for sender tokens and the
// provider callback number. Accounts live in the external auth system; this
// is a read-only snapshot.
type OwnerProfile struct {
	ID          int64  `db:"id"`
	PhoneNumber string `db:"phone_number"`
	CompanyName string `db:"company_name"`
	ManagerName string `db:"name"`
}
