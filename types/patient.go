package types

// Patient is an entry of the protected patient listing.
type Patient struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
