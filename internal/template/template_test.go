package template

import (
	"reflect"
	"testing"
)

func TestRender_SubstitutesAndReportsMissing(t *testing.T) {
	t.Parallel()

	rendered, missing := Render("Hi {{name}}, code {{code}}", map[string]any{"name": "Amina"})

	if rendered != "Hi Amina, code {{code}}" {
		t.Fatalf("unexpected rendered message: %q", rendered)
	}
	if !reflect.DeepEqual(missing, []string{"code"}) {
		t.Fatalf("expected missing=[code], got %v", missing)
	}
}

func TestRender_MissingKeysSortedAndDeduplicated(t *testing.T) {
	t.Parallel()

	_, missing := Render("{{zeta}} {{alpha}} {{zeta}}", nil)
	if !reflect.DeepEqual(missing, []string{"alpha", "zeta"}) {
		t.Fatalf("expected sorted deduped missing keys, got %v", missing)
	}
}

func TestRender_NilValueCountsAsMissing(t *testing.T) {
	t.Parallel()

	rendered, missing := Render("Hello {{who}}", map[string]any{"who": nil})
	if rendered != "Hello {{who}}" {
		t.Fatalf("expected placeholder left verbatim, got %q", rendered)
	}
	if !reflect.DeepEqual(missing, []string{"who"}) {
		t.Fatalf("expected missing=[who], got %v", missing)
	}
}

func TestRender_NonStringValues(t *testing.T) {
	t.Parallel()

	rendered, missing := Render("Order {{id}} total {{amount}}", map[string]any{
		"id":     1042,
		"amount": 19.5,
	})
	if rendered != "Order 1042 total 19.5" {
		t.Fatalf("unexpected rendered message: %q", rendered)
	}
	if len(missing) != 0 {
		t.Fatalf("expected no missing keys, got %v", missing)
	}
}

func TestRender_WhitespaceInsidePlaceholder(t *testing.T) {
	t.Parallel()

	rendered, _ := Render("Hi {{ name }}", map[string]any{"name": "Joy"})
	if rendered != "Hi Joy" {
		t.Fatalf("expected whitespace-tolerant placeholder, got %q", rendered)
	}
}

func TestRender_IgnoresNonIdentifierBraces(t *testing.T) {
	t.Parallel()

	rendered, missing := Render("keep {{9bad}} and {{}}", map[string]any{"9bad": "x"})
	if rendered != "keep {{9bad}} and {{}}" {
		t.Fatalf("expected malformed placeholders untouched, got %q", rendered)
	}
	if len(missing) != 0 {
		t.Fatalf("expected no missing keys for malformed placeholders, got %v", missing)
	}
}
