package hrdesk_test

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestModuleDependencies_StackPresent(t *testing.T) {
	for _, module := range []string{
		"github.com/gin-gonic/gin",
		"github.com/knadh/koanf/v2",
		"github.com/simp-lee/logger",
		"github.com/golang-jwt/jwt/v5",
		"github.com/prometheus/client_golang",
		"github.com/spf13/cobra",
		"gorm.io/driver/mysql",
		"golang.org/x/time",
	} {
		t.Run(module, func(t *testing.T) {
			testModulePresence(t, module)
		})
	}
}

func TestModuleDependencies_ReplacedModulesAbsent(t *testing.T) {
	goMod, err := os.ReadFile("go.mod")
	if err != nil {
		t.Fatalf("read go.mod: %v", err)
	}
	for _, module := range replacedModules {
		if moduleRequired(string(goMod), module) {
			t.Errorf("module %q should no longer be required", module)
		}
	}
}

func TestSources_NoReplacedImports(t *testing.T) {
	t.Run("happy_repo_has_no_replaced_import", func(t *testing.T) {
		matches, err := findReplacedImports(".")
		if err != nil {
			t.Fatalf("scan repository: %v", err)
		}
		if len(matches) != 0 {
			t.Fatalf("expected no imports of replaced modules, found in: %v", matches)
		}
	})

	t.Run("error_fixture_with_replaced_import_is_detected", func(t *testing.T) {
		fixture := `package pkg

import "github.com/simp-lee/pagination"`
		if !hasReplacedImport(fixture) {
			t.Fatal("expected replaced import to be detected in fixture")
		}
	})
}

// replacedModules were superseded by in-tree packages or other libraries.
var replacedModules = []string{
	"github.com/simp-lee/pagination",
	"github.com/simp-lee/jwt",
	"github.com/simp-lee/rbac",
	"github.com/simp-lee/cache",
	"github.com/simp-lee/ginx",
}

func testModulePresence(t *testing.T, module string) {
	t.Helper()

	t.Run("happy_present_in_real_go_mod", func(t *testing.T) {
		goMod, err := os.ReadFile("go.mod")
		if err != nil {
			t.Fatalf("read go.mod: %v", err)
		}
		if !moduleRequired(string(goMod), module) {
			t.Fatalf("expected module %q to be present in go.mod", module)
		}
	})

	t.Run("error_missing_module_in_fixture", func(t *testing.T) {
		fixture := `module example.com/demo

go 1.25.0

require (
	github.com/glebarez/sqlite v1.11.0
)`
		if moduleRequired(fixture, module) {
			t.Fatalf("expected fixture to not contain module %q", module)
		}
	})
}

func moduleRequired(goModContent, module string) bool {
	re := regexp.MustCompile(`(?m)^\s*` + regexp.QuoteMeta(module) + `\s+v\S+`)
	return re.MatchString(goModContent)
}

func findReplacedImports(root string) ([]string, error) {
	matches := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		b, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		if hasReplacedImport(string(b)) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func hasReplacedImport(content string) bool {
	for _, module := range replacedModules {
		re := regexp.MustCompile(`"` + regexp.QuoteMeta(module) + `(/[^"]*)?"`)
		if re.MatchString(content) {
			return true
		}
	}
	return false
}
