// Package openapi describes the registered HTTP routes as an OpenAPI 3.0
// document and serves it with a Swagger UI page.
package openapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

var documentedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Generator builds the document from the router's route table, so it stays
// in step with whatever the handlers registered.
type Generator struct {
	routes     func() []*echo.Route
	version    string
	basePath   string
	openPrefix []string
}

// NewGenerator documents routes under basePath. Paths under any of
// openPrefixes are marked as not requiring a bearer token.
func NewGenerator(routes func() []*echo.Route, version, basePath string, openPrefixes ...string) *Generator {
	return &Generator{routes: routes, version: version, basePath: basePath, openPrefix: openPrefixes}
}

func (g *Generator) GenerateSpec() map[string]interface{} {
	paths := make(map[string]map[string]interface{})
	tags := map[string]bool{}

	routes := g.routes()
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})

	for _, r := range routes {
		if !documentedMethods[r.Method] || !strings.HasPrefix(r.Path, g.basePath) || strings.HasSuffix(r.Path, "*") {
			continue
		}
		path, params := convertPath(r.Path)
		tag := g.tagFor(r.Path)
		tags[tag] = true

		op := map[string]interface{}{
			"operationId": operationID(r.Name),
			"tags":        []string{tag},
			"responses":   responsesFor(r.Method),
		}
		if len(params) > 0 {
			op["parameters"] = params
		}
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			op["requestBody"] = map[string]interface{}{
				"required": true,
				"content": map[string]interface{}{
					"application/json": map[string]interface{}{
						"schema": map[string]string{"type": "object"},
					},
				},
			}
		}
		if !g.isOpen(r.Path) {
			op["security"] = []map[string][]string{{"bearerAuth": {}}}
		}

		if paths[path] == nil {
			paths[path] = make(map[string]interface{})
		}
		paths[path][strings.ToLower(r.Method)] = op
	}

	tagList := make([]map[string]string, 0, len(tags))
	for t := range tags {
		tagList = append(tagList, map[string]string{"name": t})
	}
	sort.Slice(tagList, func(i, j int) bool { return tagList[i]["name"] < tagList[j]["name"] })

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":       "Medical Screening API",
			"version":     g.version,
			"description": "Questionnaire screening and caloric requirement service",
		},
		"servers": []map[string]string{{"url": "/"}},
		"tags":    tagList,
		"paths":   paths,
		"components": map[string]interface{}{
			"securitySchemes": map[string]interface{}{
				"bearerAuth": map[string]string{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
			"schemas": map[string]interface{}{
				"Error": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"message": map[string]interface{}{
							"oneOf": []map[string]interface{}{
								{"type": "string"},
								{
									"type": "object",
									"properties": map[string]interface{}{
										"code":    map[string]string{"type": "string"},
										"message": map[string]string{"type": "string"},
									},
								},
							},
						},
					},
				},
			},
		},
	}
}

func (g *Generator) isOpen(path string) bool {
	for _, p := range g.openPrefix {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// tagFor names a route by its first resource segment, skipping the access
// prefixes ("/public", "/auth").
func (g *Generator) tagFor(path string) string {
	rest := strings.TrimPrefix(path, g.basePath)
	for _, p := range g.openPrefix {
		if strings.HasPrefix(path, p) {
			rest = strings.TrimPrefix(path, p)
			break
		}
	}
	for _, seg := range strings.Split(rest, "/") {
		if seg != "" && !strings.HasPrefix(seg, ":") {
			return seg
		}
	}
	return "default"
}

// convertPath turns echo's ":id" segments into OpenAPI "{id}" templates.
func convertPath(path string) (string, []map[string]interface{}) {
	segs := strings.Split(path, "/")
	var params []map[string]interface{}
	for i, s := range segs {
		if strings.HasPrefix(s, ":") {
			name := s[1:]
			segs[i] = "{" + name + "}"
			params = append(params, map[string]interface{}{
				"name":     name,
				"in":       "path",
				"required": true,
				"schema":   map[string]string{"type": "string", "format": "uuid"},
			})
		}
	}
	return strings.Join(segs, "/"), params
}

// operationID trims the package path from an echo handler name, leaving
// e.g. "Handler.Submit".
func operationID(handlerName string) string {
	name := handlerName[strings.LastIndex(handlerName, "/")+1:]
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, "-fm")
	name = strings.NewReplacer("(", "", ")", "", "*", "").Replace(name)
	return name
}

func responsesFor(method string) map[string]interface{} {
	errorRef := map[string]interface{}{
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]string{"$ref": "#/components/schemas/Error"},
			},
		},
	}
	withDesc := func(desc string) map[string]interface{} {
		out := map[string]interface{}{"description": desc}
		for k, v := range errorRef {
			out[k] = v
		}
		return out
	}

	ok := map[string]interface{}{"200": map[string]interface{}{"description": "Success"}}
	switch method {
	case http.MethodPost:
		ok = map[string]interface{}{"201": map[string]interface{}{"description": "Created"}}
	case http.MethodDelete:
		ok = map[string]interface{}{"204": map[string]interface{}{"description": "Deleted"}}
	}
	ok["400"] = withDesc("Invalid request")
	ok["401"] = withDesc("Authentication required")
	ok["403"] = withDesc("Forbidden")
	ok["404"] = withDesc("Not found")
	return ok
}

const docsCSP = "default-src 'self'; script-src 'self' 'unsafe-inline' https://unpkg.com; " +
	"style-src 'self' 'unsafe-inline' https://unpkg.com; img-src 'self' data: https://unpkg.com"

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Medical Screening API - Swagger UI</title>
  <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" >
  <style>
    html { box-sizing: border-box; overflow-y: scroll; }
    *, *:before, *:after { box-sizing: inherit; }
    body { margin: 0; background: #fafafa; }
  </style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/openapi.json",
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [
        SwaggerUIBundle.presets.apis,
        SwaggerUIBundle.SwaggerUIStandalonePreset
      ],
      layout: "BaseLayout"
    })
  </script>
</body>
</html>`

// RegisterRoutes serves /openapi.json and /docs on e.
func (g *Generator) RegisterRoutes(e *echo.Echo) {
	e.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, g.GenerateSpec())
	})
	e.GET("/docs", func(c echo.Context) error {
		// the UI loads its assets and an inline bootstrap script from unpkg
		c.Response().Header().Set("Content-Security-Policy", docsCSP)
		return c.HTML(http.StatusOK, swaggerUIHTML)
	})
}
