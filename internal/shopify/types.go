package shopify

// Order is one Shopify order as returned by the Admin REST API. Monetary
// amounts arrive as decimal strings.
type Order struct {
	ID         int64      `json:"id"`
	CreatedAt  string     `json:"created_at"`
	TotalPrice string     `json:"total_price"`
	Customer   *Customer  `json:"customer"`
	LineItems  []LineItem `json:"line_items"`
}

// Customer is the order-embedded customer summary.
type Customer struct {
	ID          int64  `json:"id"`
	OrdersCount int    `json:"orders_count"`
	CreatedAt   string `json:"created_at"`
}

// LineItem is one line of an order. ProductID is zero for custom items.
type LineItem struct {
	ProductID int64  `json:"product_id"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
}

// Product carries the variant inventory used for remaining-stock snapshots.
type Product struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Variants []Variant `json:"variants"`
}

// Variant holds per-variant inventory.
type Variant struct {
	InventoryQuantity int `json:"inventory_quantity"`
}

type ordersResponse struct {
	Orders []Order `json:"orders"`
}

type productsResponse struct {
	Products []Product `json:"products"`
}

type accessTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// Traffic is one day of session analytics.
type Traffic struct {
	Sessions int
	Visitors int
}

type graphqlRequest struct {
	Query string `json:"query"`
}

type graphqlResponse struct {
	Data *struct {
		ShopifyqlQuery *struct {
			TableData *struct {
				RowData [][]any `json:"rowData"`
				Columns []struct {
					Name     string `json:"name"`
					DataType string `json:"dataType"`
				} `json:"columns"`
			} `json:"tableData"`
			ParseErrors []struct {
				Message string `json:"message"`
			} `json:"parseErrors"`
		} `json:"shopifyqlQuery"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}
