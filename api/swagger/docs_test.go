package swagger

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

var routerAnnotation = regexp.MustCompile(`@Router\s+(\S+)\s+\[(\w+)\]`)

// annotatedRoutes collects "METHOD path" for every @Router comment under
// the given source roots.
func annotatedRoutes(t *testing.T, roots ...string) map[string]bool {
	t.Helper()
	routes := make(map[string]bool)
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			src, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			for _, m := range routerAnnotation.FindAllStringSubmatch(string(src), -1) {
				routes[strings.ToUpper(m[2])+" "+m[1]] = true
			}
			return nil
		})
		if err != nil {
			t.Fatalf("walk %s: %v", root, err)
		}
	}
	return routes
}

func TestDocMatchesAnnotations(t *testing.T) {
	var doc struct {
		BasePath string                                `json:"basePath"`
		Paths    map[string]map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal([]byte(SwaggerInfo.ReadDoc()), &doc); err != nil {
		t.Fatalf("document is not valid JSON: %v", err)
	}
	if doc.BasePath != "/api/v1" {
		t.Errorf("basePath = %q, want /api/v1", doc.BasePath)
	}

	documented := make(map[string]bool)
	for path, ops := range doc.Paths {
		for method := range ops {
			documented[strings.ToUpper(method)+" "+path] = true
		}
	}
	annotated := annotatedRoutes(t, "../../internal", "../../cmd")
	if len(annotated) == 0 {
		t.Fatal("no @Router annotations found")
	}

	for route := range annotated {
		if !documented[route] {
			t.Errorf("%s is annotated but missing from the document", route)
		}
	}
	for route := range documented {
		if !annotated[route] {
			t.Errorf("%s is documented but has no handler annotation", route)
		}
	}
}
