package filter

import "testing"

func TestNewTagIn(t *testing.T) {
	c, err := NewTagIn("kind", "profile", "project")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Key() != "kind" || len(c.Values()) != 2 {
		t.Errorf("unexpected condition %+v", c)
	}
}

func TestNewTagIn_Invalid(t *testing.T) {
	if _, err := NewTagIn("", "x"); err == nil {
		t.Error("expected error for empty key")
	}
	if _, err := NewTagIn("kind"); err == nil {
		t.Error("expected error for no values")
	}
	if _, err := NewTagIn("kind", "profile", ""); err == nil {
		t.Error("expected error for empty value")
	}
}

func TestNewExpression(t *testing.T) {
	c, _ := NewTagIn("kind", "profile")

	e, err := NewExpression([]Condition{c}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.IsEmpty() || len(e.Must()) != 1 || len(e.MustNot()) != 0 {
		t.Errorf("unexpected expression %+v", e)
	}

	empty, _ := NewExpression(nil, nil)
	if !empty.IsEmpty() {
		t.Error("expected empty expression")
	}
}

func TestNewExpression_TooMany(t *testing.T) {
	c, _ := NewTagIn("kind", "profile")
	conds := make([]Condition, MaxConditions+1)
	for i := range conds {
		conds[i] = c
	}
	if _, err := NewExpression(conds, nil); err == nil {
		t.Error("expected error")
	}
}
