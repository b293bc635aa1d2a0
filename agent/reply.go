package agent

// ShopReply is the structured reply of the assistant
type ShopReply struct {
	Reply            string   `json:"reply" yaml:"reply" toml:"reply" jsonschema:"description=The answer to the customer in the language of the customer" validate:"required"`
	Products         []string `json:"products,omitempty" yaml:"products,omitempty" toml:"products,omitempty" jsonschema:"description=Names of the products mentioned in the reply"`
	CartTotal        string   `json:"cart_total,omitempty" yaml:"cart_total,omitempty" toml:"cart_total,omitempty" jsonschema:"description=The formatted cart total when it is known (for example $1\\,234.56)"`
	SuggestedActions []string `json:"suggested_actions,omitempty" yaml:"suggested_actions,omitempty" toml:"suggested_actions,omitempty" jsonschema:"description=Short next steps the customer may take"`
}

func (r ShopReply) GetContent() string {
	return r.Reply
}
