package models

// CartItem is a line item as stored by the cart service. Price is the
// display string, e.g. "Rs. 1,250.00".
type CartItem struct {
	ID          string `json:"id" bson:"id"`
	Name        string `json:"name" bson:"name"`
	Price       string `json:"price" bson:"price"`
	Quantity    int    `json:"quantity" bson:"quantity"`
	CompanyName string `json:"companyname,omitempty" bson:"companyname,omitempty"`
	ImageURL    string `json:"imageurl,omitempty" bson:"imageurl,omitempty"`
}

// Cart is owned by exactly one user.
type Cart struct {
	UserID string     `json:"user_id" bson:"user_id"`
	Items  []CartItem `json:"items" bson:"items"`
}

// IsEmpty reports whether the cart has no line items.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Snapshot copies the line items so later cart edits do not leak into a
// checkout record.
func (c *Cart) Snapshot() []CartItem {
	if c == nil {
		return nil
	}
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	return items
}
