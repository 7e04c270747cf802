package demoshop

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strings"
)

// APITitle is the title of the OpenAPI document and the API docs page.
const APITitle = "Demo Shop API"

type openAPIOperation struct {
	Summary     string                     `json:"summary"`
	Security    []map[string][]string      `json:"security,omitempty"`
	RequestBody *openAPIBody               `json:"requestBody,omitempty"`
	Responses   map[string]openAPIResponse `json:"responses"`
}

type openAPIBody struct {
	Required bool                   `json:"required"`
	Content  map[string]interface{} `json:"content"`
}

type openAPIResponse struct {
	Description string `json:"description"`
}

// OpenAPIDocument describes the shop API.
type OpenAPIDocument struct {
	OpenAPI    string                                 `json:"openapi"`
	Info       map[string]string                      `json:"info"`
	Paths      map[string]map[string]openAPIOperation `json:"paths"`
	Components map[string]interface{}                 `json:"components"`
}

var bearer = []map[string][]string{{"bearerAuth": {}}}

func jsonBody(schema map[string]interface{}) *openAPIBody {
	return &openAPIBody{
		Required: true,
		Content: map[string]interface{}{
			"application/json": map[string]interface{}{"schema": schema},
		},
	}
}

// APIDocument returns the OpenAPI description served at RouteOpenAPI.
func APIDocument() OpenAPIDocument {
	return OpenAPIDocument{
		OpenAPI: "3.0.0",
		Info:    map[string]string{"title": APITitle, "version": "1.0.0"},
		Paths: map[string]map[string]openAPIOperation{
			RouteLogin: {
				"post": {
					Summary: "Authenticate user",
					RequestBody: jsonBody(map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"username": map[string]string{"type": "string"},
							"password": map[string]string{"type": "string"},
						},
						"required": []string{"username", "password"},
					}),
					Responses: map[string]openAPIResponse{
						"200": {Description: "Returns session info"},
						"400": {Description: "Malformed request body"},
						"401": {Description: "Invalid credentials"},
						"429": {Description: "Too many login attempts"},
					},
				},
			},
			RouteCart: {
				"get": {
					Summary:   "Retrieve cart for authenticated user",
					Security:  bearer,
					Responses: map[string]openAPIResponse{"200": {Description: "Cart contents"}, "401": {Description: "Missing or expired token"}},
				},
				"post": {
					Summary:  "Add an item to cart",
					Security: bearer,
					RequestBody: jsonBody(map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"name":  map[string]string{"type": "string"},
							"price": map[string]string{"type": "number"},
						},
						"required": []string{"name"},
					}),
					Responses: map[string]openAPIResponse{"200": {Description: "Updated cart"}, "400": {Description: "Missing item"}},
				},
				"delete": {
					Summary:   "Empty the cart",
					Security:  bearer,
					Responses: map[string]openAPIResponse{"200": {Description: "Empty cart"}},
				},
			},
			RouteOrders: {
				"get": {
					Summary:   "List orders",
					Security:  bearer,
					Responses: map[string]openAPIResponse{"200": {Description: "Order list"}},
				},
			},
		},
		Components: map[string]interface{}{
			"securitySchemes": map[string]interface{}{
				"bearerAuth": map[string]string{"type": "http", "scheme": "bearer"},
			},
		},
	}
}

func openAPIHandler() http.HandlerFunc {
	doc, err := json.MarshalIndent(APIDocument(), "", "  ")
	if err != nil {
		panic("failed to encode OpenAPI document: " + err.Error())
	}
	return func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(doc)
	}
}

var swaggerTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="/styles.css">
</head>
<body class="api-docs">
<h1 id="api-title">{{.Title}}</h1>
<p>OpenAPI {{.Version}} &middot; <a href="{{.SpecURL}}">{{.SpecURL}}</a></p>
<table id="api-operations">
<thead><tr><th>Method</th><th>Path</th><th>Summary</th></tr></thead>
<tbody>
{{range .Operations}}<tr class="api-operation"><td class="method">{{.Method}}</td><td class="path">{{.Path}}</td><td>{{.Summary}}</td></tr>
{{end}}</tbody>
</table>
</body>
</html>
`

type swaggerOperation struct {
	Method  string
	Path    string
	Summary string
}

func (s *Server) swaggerHandler() (http.HandlerFunc, error) {
	tmpl, err := template.New("swagger").Parse(swaggerTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse API docs template: %w", err)
	}

	doc := APIDocument()
	var ops []swaggerOperation
	for path, methods := range doc.Paths {
		for method, op := range methods {
			ops = append(ops, swaggerOperation{Method: strings.ToUpper(method), Path: path, Summary: op.Summary})
		}
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Path != ops[j].Path {
			return ops[i].Path < ops[j].Path
		}
		return ops[i].Method < ops[j].Method
	})

	data := struct {
		Title      string
		Version    string
		SpecURL    string
		Operations []swaggerOperation
	}{APITitle, doc.OpenAPI, RouteOpenAPI, ops}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			s.logger.Errorf("failed to render API docs: %v", err)
		}
	}, nil
}
