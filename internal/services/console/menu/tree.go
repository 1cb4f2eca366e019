package menu

// Roles known to the console.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleFinance  = "finance"
)

// Default returns a fresh copy of the console navigation tree.
func Default() []Node {
	staff := []string{RoleAdmin, RoleOperator}
	money := []string{RoleAdmin, RoleFinance}
	return []Node{
		{Key: "/dashboard", Title: "Dashboard", Icon: "gauge"},
		{Key: "/merchants", Title: "Merchants", Icon: "store", Children: []Node{
			{Key: "/merchants/list", Title: "Merchant list", Permissions: staff},
			{Key: "/merchants/review", Title: "Merchant review", Permissions: staff},
		}},
		{Key: "/products", Title: "Products", Icon: "box", Children: []Node{
			{Key: "/products/list", Title: "Product list", Permissions: staff},
			{Key: "/products/categories", Title: "Categories", Permissions: []string{RoleAdmin}},
		}},
		{Key: "/orders", Title: "Orders", Icon: "receipt", Children: []Node{
			{Key: "/orders/list", Title: "Order list", Permissions: []string{RoleAdmin, RoleOperator, RoleFinance}},
			{Key: "/orders/after-sales", Title: "After-sales", Permissions: staff},
		}},
		{Key: "/users", Title: "Users", Icon: "users", Permissions: []string{RoleAdmin}, Children: []Node{
			{Key: "/users/list", Title: "User list", Permissions: []string{RoleAdmin}},
			{Key: "/users/roles", Title: "Roles", Permissions: []string{RoleAdmin}},
		}},
		{Key: "/statistics", Title: "Statistics", Icon: "chart", Children: []Node{
			{Key: "/statistics/sales", Title: "Sales", Permissions: []string{RoleAdmin, RoleOperator, RoleFinance}},
			{Key: "/statistics/merchants", Title: "Merchant performance", Permissions: money},
		}},
		{Key: "/system", Title: "System", Icon: "gear", Children: []Node{
			{Key: "/system/settings", Title: "Settings", Permissions: []string{RoleAdmin}},
			{Key: "/system/logs", Title: "Operation logs", Permissions: []string{RoleAdmin}},
			{Key: "/account/password", Title: "Change password"},
		}},
	}
}
