package credential

import "testing"

func TestCredential(t *testing.T) {
	c := New()
	if tok, gen := c.Current(); tok != "" || gen != 0 {
		t.Fatalf("new credential = %q gen %d", tok, gen)
	}
	if !c.UpdatedAt().IsZero() {
		t.Error("UpdatedAt set before first write")
	}

	c.Set("abc")
	tok, first := c.Current()
	if tok != "abc" || first == 0 {
		t.Errorf("Current = %q gen %d", tok, first)
	}
	c.Clear()
	if c.Get() != "" {
		t.Errorf("credential not cleared: %q", c.Get())
	}
	if c.Generation() <= first {
		t.Errorf("generation %d did not advance past %d", c.Generation(), first)
	}
	if c.UpdatedAt().IsZero() {
		t.Error("UpdatedAt not recorded")
	}
}

func TestGenerationChangesOnSameToken(t *testing.T) {
	c := New()
	c.Set("abc")
	gen := c.Generation()
	c.Set("abc")
	if c.Generation() == gen {
		t.Error("re-setting the token kept the generation")
	}
}
