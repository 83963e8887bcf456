package entity

// PaymentMethod is an entry from the user's payment method directory.
// Selection is local UI state only; the engine never talks to a gateway.
type PaymentMethod struct {
	Type         string
	DisplayLabel string
	IsPrimary    bool
}

// Address is a delivery address used by the coin checkout.
type Address struct {
	Name      string
	Line1     string
	Line2     string
	City      string
	Pincode   string
	Phone     string
	IsDefault bool
}
