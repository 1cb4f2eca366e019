package mockapi

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gorilla/mux"
)

//go:embed openapi.yaml
var contractYAML []byte

// LoadContract parses and validates the bundled OpenAPI document.
func LoadContract(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(contractYAML)
	if err != nil {
		return nil, fmt.Errorf("load api contract: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate api contract: %w", err)
	}
	return doc, nil
}

// CheckRoutes fails when router serves a method and path the contract does
// not describe.
func CheckRoutes(router *mux.Router, contract *openapi3.T) error {
	if router == nil || contract == nil || contract.Paths == nil {
		return fmt.Errorf("router and contract are required")
	}
	var missing []string
	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		template, err := route.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, err := route.GetMethods()
		if err != nil {
			return nil
		}
		item := contract.Paths.Find(template)
		for _, method := range methods {
			if item == nil || item.GetOperation(method) == nil {
				missing = append(missing, method+" "+template)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk routes: %w", err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("routes missing from api contract: %s", strings.Join(missing, ", "))
	}
	return nil
}

