package tutor

import (
	"strings"
	"testing"
)

func TestSystemPromptFor_SubstitutesPlaceholders(t *testing.T) {
	tut := &Tutor{
		Name:         "Marie",
		Language:     "french",
		SystemPrompt: DefaultSystemPrompt,
	}

	prompt, err := tut.SystemPromptFor("Ada")
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	for _, want := range []string{"Marie", "french", "Ada"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "{") {
		t.Fatalf("unresolved placeholder left in prompt:\n%s", prompt)
	}
}

func TestSystemPromptFor_AppendsPersonality(t *testing.T) {
	tut := &Tutor{
		Name:              "Marie",
		Language:          "french",
		SystemPrompt:      "You are {name}, teaching {language} to {student_name}.\n",
		PersonalityPrompt: "You love talking about {language} cinema.",
	}

	prompt, err := tut.SystemPromptFor("Ada")
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	// placeholders in the personality fragment are substituted too
	if !strings.Contains(prompt, "french cinema") {
		t.Fatalf("personality fragment not composed:\n%s", prompt)
	}
}

func TestSystemPromptFor_UnknownPlaceholderFails(t *testing.T) {
	tut := &Tutor{
		Name:         "Marie",
		Language:     "french",
		SystemPrompt: "You are {name} and you like {favorite_food}.",
	}

	if _, err := tut.SystemPromptFor("Ada"); err == nil {
		t.Fatalf("expected an error for the unknown placeholder")
	}
}

func TestModelNameMapping(t *testing.T) {
	pairs := []struct {
		public   PublicModelName
		internal ModelName
	}{
		{PublicModelGPT4, ModelGPT4},
		{PublicModelGPT35Turbo, ModelGPT35Turbo},
	}
	for _, p := range pairs {
		gotInternal, err := p.public.Internal()
		if err != nil {
			t.Fatalf("%q: %v", p.public, err)
		}
		if gotInternal != p.internal {
			t.Fatalf("%q mapped to %q, want %q", p.public, gotInternal, p.internal)
		}
		gotPublic, err := p.internal.Public()
		if err != nil {
			t.Fatalf("%q: %v", p.internal, err)
		}
		if gotPublic != p.public {
			t.Fatalf("%q mapped to %q, want %q", p.internal, gotPublic, p.public)
		}
	}
}

func TestModelNameMapping_UnknownFails(t *testing.T) {
	if _, err := PublicModelName("gpt5").Internal(); err == nil {
		t.Fatalf("unknown public model must fail")
	}
	if _, err := ModelName("gpt-5-preview").Public(); err == nil {
		t.Fatalf("unknown internal model must fail")
	}
}
